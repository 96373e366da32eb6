package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"rsi-swap-bot/internal/model"
)

// CoinGeckoConfig CoinGecko REST 参数
type CoinGeckoConfig struct {
	BaseURL string
	APIKey  string // demo key，可为空
}

// CoinGecko 实现当前价格和历史序列两种行情能力
type CoinGecko struct {
	cfg    CoinGeckoConfig
	client *http.Client
	logger *zap.Logger
}

func NewCoinGecko(cfg CoinGeckoConfig, client *http.Client, logger *zap.Logger) *CoinGecko {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CoinGecko{cfg: cfg, client: client, logger: logger}
}

type coinResponse struct {
	MarketData struct {
		CurrentPrice map[string]float64 `json:"current_price"`
		TotalVolume  map[string]float64 `json:"total_volume"`
	} `json:"market_data"`
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"` // [毫秒时间戳, 价格]
}

// CurrentPrice 获取最新 USD 价格和 24h 成交量。任何传输、状态码、解析错误都归为 ErrFeedUnavailable。
func (c *CoinGecko) CurrentPrice(ctx context.Context, asset string) (model.PriceSample, error) {
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("market_data", "true")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")
	q.Set("sparkline", "false")

	var body coinResponse
	if err := c.get(ctx, fmt.Sprintf("/coins/%s?%s", url.PathEscape(asset), q.Encode()), &body); err != nil {
		return model.PriceSample{}, fmt.Errorf("%w: %s: %w", model.ErrFeedUnavailable, asset, err)
	}

	price, ok := body.MarketData.CurrentPrice["usd"]
	if !ok || !model.ValidPrice(price) {
		return model.PriceSample{}, fmt.Errorf("%w: %s: no usable usd price", model.ErrFeedUnavailable, asset)
	}

	return model.PriceSample{
		Timestamp: time.Now().UTC(),
		Price:     price,
		Volume:    body.MarketData.TotalVolume["usd"],
	}, nil
}

// HistoricalSeries 获取过去 days 天的价格序列 (按时间排序)。成交量缺失，视为总是满足门槛。
func (c *CoinGecko) HistoricalSeries(ctx context.Context, asset string, days int) ([]model.PriceSample, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))

	var body marketChartResponse
	if err := c.get(ctx, fmt.Sprintf("/coins/%s/market_chart?%s", url.PathEscape(asset), q.Encode()), &body); err != nil {
		return nil, fmt.Errorf("%w: %s history: %w", model.ErrFeedUnavailable, asset, err)
	}

	series := make([]model.PriceSample, 0, len(body.Prices))
	for _, p := range body.Prices {
		series = append(series, model.PriceSample{
			Timestamp: time.UnixMilli(int64(p[0])).UTC(),
			Price:     p[1],
			Volume:    model.UnlimitedVolume,
		})
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})

	c.logger.Info("Fetched historical series",
		zap.String("Asset", asset), zap.Int("Days", days), zap.Int("Points", len(series)))
	return series, nil
}

func (c *CoinGecko) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.cfg.APIKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return fmt.Errorf("coingecko http %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
