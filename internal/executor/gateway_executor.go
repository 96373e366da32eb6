package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GatewayConfig 是兑换网关 (外部签名中继) 的连接参数
type GatewayConfig struct {
	BaseURL        string
	APIKey         string
	Wallet         string
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// GatewayExecutor 把兑换请求提交给签名中继，并轮询交易状态直到确认。
// 私钥由网关托管，本进程只持有 API key。
type GatewayExecutor struct {
	cfg    GatewayConfig
	client *http.Client
	logger *zap.SugaredLogger
}

func NewGatewayExecutor(cfg GatewayConfig, client *http.Client, logger *zap.SugaredLogger) *GatewayExecutor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GatewayExecutor{cfg: cfg, client: client, logger: logger}
}

type swapPayload struct {
	Wallet          string  `json:"wallet"`
	TokenIn         string  `json:"token_in"`
	TokenOut        string  `json:"token_out"`
	AmountIn        string  `json:"amount_in"` // 整数 base units
	SlippagePercent float64 `json:"slippage_percent"`
}

type txStatus struct {
	TxHash  string `json:"tx_hash"`
	Status  string `json:"status"` // pending | confirmed | failed
	Block   int64  `json:"block"`
	Message string `json:"message"`
}

const (
	statusPending   = "pending"
	statusConfirmed = "confirmed"
	statusFailed    = "failed"
)

// ExecuteSwap 提交兑换并等待确认
func (g *GatewayExecutor) ExecuteSwap(ctx context.Context, req SwapRequest) (Confirmation, error) {
	in, err := LookupToken(req.From)
	if err != nil {
		return Confirmation{}, err
	}
	out, err := LookupToken(req.To)
	if err != nil {
		return Confirmation{}, err
	}
	amount, err := ToBaseUnits(req.Amount, in.Decimals)
	if err != nil {
		return Confirmation{}, err
	}
	if amount == "0" {
		return Confirmation{}, fmt.Errorf("swap amount %v %s rounds to zero base units", req.Amount, req.From)
	}

	var st txStatus
	err = g.doJSON(ctx, http.MethodPost, "/swap", swapPayload{
		Wallet:          g.cfg.Wallet,
		TokenIn:         in.Address,
		TokenOut:        out.Address,
		AmountIn:        amount,
		SlippagePercent: req.MaxSlippagePercent,
	}, &st)
	if err != nil {
		return Confirmation{}, fmt.Errorf("submit swap: %w", err)
	}
	if st.TxHash == "" {
		return Confirmation{}, fmt.Errorf("gateway returned no tx hash")
	}
	g.logger.Infof("Swap submitted: %s tx=%s", req, st.TxHash)

	st, err = g.waitConfirmed(ctx, st)
	if err != nil {
		return Confirmation{}, err
	}
	g.logger.Infof("Swap confirmed in block %d: tx=%s", st.Block, st.TxHash)
	return Confirmation{TxHash: st.TxHash, Attempts: 1}, nil
}

func (g *GatewayExecutor) waitConfirmed(ctx context.Context, st txStatus) (txStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	for {
		switch st.Status {
		case statusConfirmed:
			return st, nil
		case statusFailed:
			return st, fmt.Errorf("transaction %s failed: %s", st.TxHash, st.Message)
		case statusPending, "":
		default:
			return st, fmt.Errorf("%w: transaction %s: unexpected status %q", ErrUnconfirmed, st.TxHash, st.Status)
		}

		select {
		case <-ctx.Done():
			return st, fmt.Errorf("%w: wait for transaction %s: %w", ErrUnconfirmed, st.TxHash, ctx.Err())
		case <-ticker.C:
		}

		hash := st.TxHash
		if err := g.doJSON(ctx, http.MethodGet, "/tx/"+url.PathEscape(hash), nil, &st); err != nil {
			g.logger.Warnf("Poll tx %s failed: %v", hash, err)
			st = txStatus{TxHash: hash, Status: statusPending}
			continue
		}
		if st.TxHash == "" {
			st.TxHash = hash
		}
	}
}

type balanceResponse struct {
	Balance string `json:"balance"` // 整数 base units
}

// TokenBalance 查询 ERC20 余额
func (g *GatewayExecutor) TokenBalance(ctx context.Context, wallet, symbol string) (float64, error) {
	tok, err := LookupToken(symbol)
	if err != nil {
		return 0, err
	}
	return g.balance(ctx, wallet, tok.Address, tok.Decimals)
}

// NativeBalance 查询原生 ETH 余额
func (g *GatewayExecutor) NativeBalance(ctx context.Context, wallet string) (float64, error) {
	return g.balance(ctx, wallet, "native", NativeDecimals)
}

func (g *GatewayExecutor) balance(ctx context.Context, wallet, token string, decimals int32) (float64, error) {
	q := url.Values{}
	q.Set("address", wallet)
	q.Set("token", token)

	var body balanceResponse
	if err := g.doJSON(ctx, http.MethodGet, "/balance?"+q.Encode(), nil, &body); err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return FromBaseUnits(body.Balance, decimals)
}

func (g *GatewayExecutor) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var msg txStatus
		_ = json.NewDecoder(res.Body).Decode(&msg)
		return fmt.Errorf("gateway http %d: %s", res.StatusCode, msg.Message)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
