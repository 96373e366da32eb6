package model

import (
	"math"
	"time"
)

// UnlimitedVolume 用于没有成交量数据的样本 (回测)，保证成交量门槛永远满足
const UnlimitedVolume = math.MaxFloat64

// PriceSample 代表一次价格采样
type PriceSample struct {
	Timestamp time.Time
	Price     float64 // 报价货币计价 (USD)
	Volume    float64 // 24h 成交量 (USD)，回测中可能缺失
}

// ValidPrice 判断价格是否可以进入决策引擎
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// EventKind 定义了引擎事件流中的事件类型
type EventKind string

const (
	EventTick       EventKind = "TICK"       // 每个 tick 的组合估值
	EventBaseline   EventKind = "BASELINE"   // 基准价设定
	EventRSI        EventKind = "RSI"        // RSI 计算结果 (或等待更多数据)
	EventRule       EventKind = "RULE"       // 规则评估结果
	EventTrade      EventKind = "TRADE"      // 已执行的交易意图
	EventSkip       EventKind = "SKIP"       // 整个 tick 被跳过
	EventTerminated EventKind = "TERMINATED" // 引擎终止
)

// Event 是决策引擎对外发布的结构化事件
type Event struct {
	Kind      EventKind
	Instance  string
	Asset     string
	Timestamp time.Time
	Tick      int

	Price          float64
	PortfolioValue float64
	NetProfit      float64
	RSI            float64
	RSIReady       bool

	Rule    string       // 规则名: forced_exit, buy, sell, volume_gate
	Intent  *TradeIntent // 仅 TRADE 事件
	Message string
	Err     error
}
