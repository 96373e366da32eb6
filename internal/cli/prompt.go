package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"rsi-swap-bot/internal/service"
)

// assetMenu 交互式启动时可选的资产，顺序即菜单编号
var assetMenu = []string{"ethereum", "degen-base", "aerodrome-finance"}

// Prompter 从终端读取启动参数
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) readLine(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %q: %w", strings.TrimSpace(label), err)
	}
	return strings.TrimSpace(line), nil
}

// String 读取一行文本，空输入返回 def
func (p *Prompter) String(label, def string) (string, error) {
	if def != "" {
		label = fmt.Sprintf("%s [%s]", label, def)
	}
	s, err := p.readLine(label + ": ")
	if err != nil {
		return "", err
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// Float 读取一个数字，空输入返回 def，非法输入返回错误
func (p *Prompter) Float(label string, def float64) (float64, error) {
	s, err := p.readLine(fmt.Sprintf("%s [%g]: ", label, def))
	if err != nil {
		return 0, err
	}
	if s == "" {
		return def, nil
	}
	v, err := service.StringToFloat(s)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number for %s: %q", label, s)
	}
	return v, nil
}

// Asset 显示资产菜单并返回所选资产 id
func (p *Prompter) Asset() (string, error) {
	fmt.Fprintln(p.out, "Choose a coin to trade:")
	for i, a := range assetMenu {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, a)
	}
	s, err := p.readLine(fmt.Sprintf("Enter choice (1-%d): ", len(assetMenu)))
	if err != nil {
		return "", err
	}
	n, err := service.StringToInt64(s)
	if err != nil || n < 1 || int(n) > len(assetMenu) {
		return "", fmt.Errorf("invalid coin choice %q", s)
	}
	return assetMenu[n-1], nil
}

// promptLive 交互式收集实盘参数，返回只包含一个实例的配置
func promptLive(p *Prompter, cfg *service.Config) (string, service.BotConfig, error) {
	wallet, err := p.String("Wallet address", cfg.Execution.Wallet)
	if err != nil {
		return "", service.BotConfig{}, err
	}
	apiKey, err := p.String("Gateway API key (leave empty for simulated execution)", "")
	if err != nil {
		return "", service.BotConfig{}, err
	}

	bot := service.DefaultBotConfig("")
	if bot.InitialBalance, err = p.Float("Initial USDC balance", bot.InitialBalance); err != nil {
		return "", service.BotConfig{}, err
	}
	if bot.ProfitTake, err = p.Float("Profit take (USD)", bot.ProfitTake); err != nil {
		return "", service.BotConfig{}, err
	}
	if bot.ProfitStop, err = p.Float("Profit stop (USD, negative)", bot.ProfitStop); err != nil {
		return "", service.BotConfig{}, err
	}
	if bot.Asset, err = p.Asset(); err != nil {
		return "", service.BotConfig{}, err
	}

	cfg.Execution.Wallet = wallet
	if apiKey != "" {
		cfg.Execution.APIKey = apiKey
		cfg.Execution.Mode = "gateway"
	}
	return bot.Asset, bot, nil
}
