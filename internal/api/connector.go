package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/service"
)

// OkxWsData 适用于 Okx V5 的通用响应结构
type OkxWsData struct {
	Arg struct {
		Channel string `json:"channel"`
		InstId  string `json:"instId"`
	} `json:"arg"`
	Data  json.RawMessage `json:"data"` // 延迟解析
	Event string          `json:"event"`
	Msg   string          `json:"msg"`
}

// OkxTickerData 结构体，用于解析 tickers 频道数据
type OkxTickerData struct {
	LastPrice string `json:"last"`      // 最新成交价
	VolCcy24h string `json:"volCcy24h"` // 24h 成交额 (计价货币，USDT)
	Timestamp string `json:"ts"`
	InstId    string `json:"instId"`
}

// Connector 订阅 OKX tickers 频道，缓存每个资产的最新价格
type Connector struct {
	wsURL          string
	staleAfter     time.Duration
	reconnectDelay time.Duration
	logger         *zap.Logger

	instToAsset map[string]string // instId -> 资产 id
	assetToInst map[string]string

	mu     sync.RWMutex
	latest map[string]model.PriceSample // 资产 id -> 最新样本
}

// NewConnector 为一组资产 id 创建连接器
func NewConnector(wsURL string, assets []string, staleAfter time.Duration, logger *zap.Logger) (*Connector, error) {
	if logger == nil {
		logger = service.Logger
	}
	c := &Connector{
		wsURL:          wsURL,
		staleAfter:     staleAfter,
		reconnectDelay: 5 * time.Second,
		logger:         logger,
		instToAsset:    make(map[string]string, len(assets)),
		assetToInst:    make(map[string]string, len(assets)),
		latest:         make(map[string]model.PriceSample, len(assets)),
	}
	for _, a := range assets {
		info, err := model.LookupAsset(a)
		if err != nil {
			return nil, err
		}
		c.instToAsset[info.OkxInstID] = a
		c.assetToInst[a] = info.OkxInstID
	}

	logger.Info("Connector initialized", zap.Strings("Assets", assets))
	return c, nil
}

// SetReconnectDelay 断线重连间隔
func (c *Connector) SetReconnectDelay(d time.Duration) {
	c.reconnectDelay = d
}

// Start 连接并持续读取，断线后重连，直到 ctx 取消
func (c *Connector) Start(ctx context.Context) {
	c.logger.Info("Starting Okx WS tickers connection...", zap.String("URL", c.wsURL))

	for {
		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("Okx WS session ended, reconnecting...", zap.Error(err), zap.Duration("Delay", c.reconnectDelay))
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Okx WS connector stopped")
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

// session 建立一次连接：订阅 -> 读循环
func (c *Connector) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// ctx 取消时关闭连接，让 ReadMessage 返回
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	args := make([]map[string]string, 0, len(c.instToAsset))
	for instID := range c.instToAsset {
		args = append(args, map[string]string{"channel": "tickers", "instId": instID})
	}
	subscribeMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	if err := conn.WriteJSON(subscribeMsg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.logger.Info("Subscribed to Okx TICKERS streams", zap.Int("Instruments", len(args)))

	return c.readLoop(conn)
}

// readLoop 持续读取 WS 消息并更新缓存
func (c *Connector) readLoop(conn *websocket.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(message)
	}
}

func (c *Connector) handleMessage(message []byte) {
	var wsResp OkxWsData
	if err := json.Unmarshal(message, &wsResp); err != nil {
		return
	}

	if wsResp.Event != "" {
		if wsResp.Event == "error" {
			c.logger.Error("Okx WS error event", zap.String("Msg", wsResp.Msg))
		}
		return // 忽略订阅成功等事件
	}

	if wsResp.Arg.Channel != "tickers" || len(wsResp.Data) == 0 {
		return
	}
	asset, ok := c.instToAsset[wsResp.Arg.InstId]
	if !ok {
		return
	}

	var tickers []OkxTickerData
	if err := json.Unmarshal(wsResp.Data, &tickers); err != nil {
		c.logger.Error("Tickers data unmarshal error", zap.Error(err))
		return
	}
	if len(tickers) == 0 {
		return
	}
	okxTicker := tickers[0] // 仅处理最新的快照

	price, err := service.StringToFloat(okxTicker.LastPrice)
	if err != nil || !model.ValidPrice(price) {
		c.logger.Debug("Dropping ticker with bad price", zap.String("Last", okxTicker.LastPrice))
		return
	}
	volume, _ := service.StringToFloat(okxTicker.VolCcy24h)

	ts := time.Now().UTC()
	if ms, err := service.StringToInt64(okxTicker.Timestamp); err == nil {
		ts = time.UnixMilli(ms).UTC()
	}

	c.mu.Lock()
	c.latest[asset] = model.PriceSample{Timestamp: ts, Price: price, Volume: volume}
	c.mu.Unlock()
}

// CurrentPrice 返回缓存的最新价格。还没收到数据或数据过期时返回 ErrFeedUnavailable。
func (c *Connector) CurrentPrice(_ context.Context, asset string) (model.PriceSample, error) {
	if _, ok := c.assetToInst[asset]; !ok {
		return model.PriceSample{}, fmt.Errorf("%w: %s not subscribed", model.ErrFeedUnavailable, asset)
	}

	c.mu.RLock()
	s, ok := c.latest[asset]
	c.mu.RUnlock()

	if !ok {
		return model.PriceSample{}, fmt.Errorf("%w: no ticker received for %s yet", model.ErrFeedUnavailable, asset)
	}
	if c.staleAfter > 0 && time.Since(s.Timestamp) > c.staleAfter {
		return model.PriceSample{}, fmt.Errorf("%w: ticker for %s is stale (%s)", model.ErrFeedUnavailable, asset, s.Timestamp.Format(time.RFC3339))
	}
	return s, nil
}
