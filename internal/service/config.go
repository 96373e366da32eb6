// internal/service/config.go
package service

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 默认参数 (与实盘/回测共用，保证两种模式阈值一致)
const (
	DefaultRSIPeriod         = 14
	DefaultRSIBuyThreshold   = 30.0
	DefaultRSISellThreshold  = 70.0
	DefaultRebalanceFraction = 0.2
	DefaultMinTradeValue     = 1.0
	DefaultMinVolumeForRSI   = 1_000_000.0
	DefaultSampleInterval    = time.Hour
)

// Config 是完整的运行配置
type Config struct {
	Feed      FeedConfig           `mapstructure:"Feed"`
	Execution ExecutionConfig      `mapstructure:"Execution"`
	TradeLog  TradeLogConfig       `mapstructure:"TradeLog"`
	Instances map[string]BotConfig `mapstructure:"Instances"`
}

// FeedConfig 定义了行情源
type FeedConfig struct {
	Source      string        // coingecko 或 okx
	BaseURL     string        // CoinGecko REST 地址
	APIKey      string        // CoinGecko demo key (可选)
	WSURL       string        // OKX 公共 websocket 地址
	Timeout     time.Duration // HTTP 请求超时
	StaleAfter  time.Duration // websocket 行情超过该时长视为不可用
	HistoryDays int           // 回测默认拉取天数
}

// ExecutionConfig 定义了执行层 (链上兑换网关) 的参数
type ExecutionConfig struct {
	Mode           string // simulated 或 gateway
	GatewayURL     string
	APIKey         string
	Wallet         string
	Slippage       float64 // 最大滑点百分比
	MaxRetries     int
	RetryDelay     time.Duration
	RetryJitter    time.Duration
	ConfirmTimeout time.Duration
	MinGasBalance  float64 // 启动前原生 gas 余额下限
}

// TradeLogConfig 定义了交易日志的存储方式
type TradeLogConfig struct {
	Type   string // jsonl 或 sqlite
	Dir    string // jsonl 文件目录，每个实例一个文件
	DBPath string // sqlite 数据库路径
}

// BotConfig 是单个交易实例的参数，一次运行期间不可变
type BotConfig struct {
	Asset             string
	ProfitTake        float64 // 净利润 >= 该值时全部卖出
	ProfitStop        float64 // 净利润 <= 该值时全部卖出 (通常为负)
	InitialBalance    float64
	RSIPeriod         int
	RSIBuyThreshold   float64
	RSISellThreshold  float64
	RebalanceFraction float64
	MinTradeValue     float64
	MinVolumeForRSI   float64
	SampleInterval    time.Duration
}

// DefaultBotConfig 返回带默认参数的实例配置
func DefaultBotConfig(asset string) BotConfig {
	return BotConfig{
		Asset:             asset,
		ProfitTake:        10,
		ProfitStop:        -10,
		InitialBalance:    100,
		RSIPeriod:         DefaultRSIPeriod,
		RSIBuyThreshold:   DefaultRSIBuyThreshold,
		RSISellThreshold:  DefaultRSISellThreshold,
		RebalanceFraction: DefaultRebalanceFraction,
		MinTradeValue:     DefaultMinTradeValue,
		MinVolumeForRSI:   DefaultMinVolumeForRSI,
		SampleInterval:    DefaultSampleInterval,
	}
}

// setInstanceDefaults 为配置文件中的每个实例注册策略参数默认值。
// 显式写成 0 的参数 (例如 MinVolumeForRSI: 0 关闭成交量门槛) 保留原值。
func setInstanceDefaults(v *viper.Viper) {
	for name := range v.GetStringMap("Instances") {
		prefix := "Instances." + name + "."
		v.SetDefault(prefix+"RSIPeriod", DefaultRSIPeriod)
		v.SetDefault(prefix+"RSIBuyThreshold", DefaultRSIBuyThreshold)
		v.SetDefault(prefix+"RSISellThreshold", DefaultRSISellThreshold)
		v.SetDefault(prefix+"RebalanceFraction", DefaultRebalanceFraction)
		v.SetDefault(prefix+"MinTradeValue", DefaultMinTradeValue)
		v.SetDefault(prefix+"MinVolumeForRSI", DefaultMinVolumeForRSI)
		v.SetDefault(prefix+"SampleInterval", DefaultSampleInterval)
	}
}

// Validate 检查实例配置
func (b BotConfig) Validate() error {
	if strings.TrimSpace(b.Asset) == "" {
		return fmt.Errorf("asset is required")
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"initial balance", b.InitialBalance},
		{"profit take", b.ProfitTake},
		{"profit stop", b.ProfitStop},
		{"rsi buy threshold", b.RSIBuyThreshold},
		{"rsi sell threshold", b.RSISellThreshold},
		{"rebalance fraction", b.RebalanceFraction},
		{"min trade value", b.MinTradeValue},
		{"min volume for rsi", b.MinVolumeForRSI},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", f.name, f.value)
		}
	}
	if b.InitialBalance <= 0 {
		return fmt.Errorf("initial balance must be positive")
	}
	if b.RSIPeriod < 2 {
		return fmt.Errorf("rsi period must be at least 2")
	}
	if b.RSIBuyThreshold < 0 || b.RSIBuyThreshold > 100 || b.RSISellThreshold < 0 || b.RSISellThreshold > 100 {
		return fmt.Errorf("rsi thresholds must be within [0, 100]")
	}
	if b.RSIBuyThreshold >= b.RSISellThreshold {
		return fmt.Errorf("rsi buy threshold must be below sell threshold")
	}
	if b.RebalanceFraction <= 0 || b.RebalanceFraction > 1 {
		return fmt.Errorf("rebalance fraction must be within (0, 1]")
	}
	if b.MinTradeValue < 0 {
		return fmt.Errorf("min trade value must not be negative")
	}
	if b.MinVolumeForRSI < 0 {
		return fmt.Errorf("min volume for rsi must not be negative")
	}
	if b.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be positive")
	}
	return nil
}

// MisconfiguredExits 止盈阈值不高于止损阈值时两条规则可能同时满足 (止盈优先)
func (b BotConfig) MisconfiguredExits() bool {
	return b.ProfitTake <= b.ProfitStop
}

// Validate 检查全局配置
func (c *Config) Validate() error {
	switch c.Feed.Source {
	case "coingecko", "okx":
	default:
		return fmt.Errorf("feed source must be 'coingecko' or 'okx', got %q", c.Feed.Source)
	}
	switch c.Execution.Mode {
	case "simulated":
	case "gateway":
		if c.Execution.GatewayURL == "" {
			return fmt.Errorf("execution gateway url required for gateway mode")
		}
		if c.Execution.Wallet == "" {
			return fmt.Errorf("execution wallet required for gateway mode")
		}
	default:
		return fmt.Errorf("execution mode must be 'simulated' or 'gateway', got %q", c.Execution.Mode)
	}
	switch c.TradeLog.Type {
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("trade log type must be 'jsonl' or 'sqlite', got %q", c.TradeLog.Type)
	}
	for name, inst := range c.Instances {
		if err := inst.Validate(); err != nil {
			return fmt.Errorf("instance %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Feed.Source", "coingecko")
	v.SetDefault("Feed.BaseURL", "https://api.coingecko.com/api/v3")
	v.SetDefault("Feed.APIKey", "")
	v.SetDefault("Feed.WSURL", "wss://ws.okx.com:8443/ws/v5/public")
	v.SetDefault("Feed.Timeout", 10*time.Second)
	v.SetDefault("Feed.StaleAfter", 2*time.Minute)
	v.SetDefault("Feed.HistoryDays", 5)

	v.SetDefault("Execution.Mode", "simulated")
	v.SetDefault("Execution.GatewayURL", "")
	v.SetDefault("Execution.APIKey", "")
	v.SetDefault("Execution.Wallet", "0xDemoAddress")
	v.SetDefault("Execution.Slippage", 1.0)
	v.SetDefault("Execution.MaxRetries", 5)
	v.SetDefault("Execution.RetryDelay", 10*time.Second)
	v.SetDefault("Execution.RetryJitter", 5*time.Second)
	v.SetDefault("Execution.ConfirmTimeout", 300*time.Second)
	v.SetDefault("Execution.MinGasBalance", 0.0005)

	v.SetDefault("TradeLog.Type", "jsonl")
	v.SetDefault("TradeLog.Dir", "trades")
	v.SetDefault("TradeLog.DBPath", "trades.sqlite")
}

// LoadConfig 读取并解析配置。configPath 可以是目录 (查找 config.yaml) 或文件；
// 找不到配置文件时使用默认值。环境变量前缀 RSIBOT_，例如 RSIBOT_EXECUTION_APIKEY。
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RSIBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(configPath)
		}

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	setInstanceDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.Instances == nil {
		cfg.Instances = make(map[string]BotConfig)
	}

	return &cfg, nil
}
