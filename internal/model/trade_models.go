package model

import (
	"fmt"
	"time"
)

// ActionType 定义了交易意图的类型
type ActionType string

const (
	ActionBuy              ActionType = "BUY"                // RSI 超卖，部分买入
	ActionSell             ActionType = "SELL"               // RSI 超买，部分卖出
	ActionFullSellProfit   ActionType = "FULL_SELL_PROFIT"   // 达到止盈，全部卖出
	ActionFullSellStopLoss ActionType = "FULL_SELL_STOPLOSS" // 达到止损，全部卖出
)

// IsBuy 报价货币 -> 资产
func (a ActionType) IsBuy() bool {
	return a == ActionBuy
}

// IsForcedExit 是否为强制平仓
func (a ActionType) IsForcedExit() bool {
	return a == ActionFullSellProfit || a == ActionFullSellStopLoss
}

// Valid 判断是否为已知类型
func (a ActionType) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionFullSellProfit, ActionFullSellStopLoss:
		return true
	}
	return false
}

func (a ActionType) String() string {
	return string(a)
}

// TradeIntent 是决策引擎发出的交易意图，创建后不可修改
type TradeIntent struct {
	Action      ActionType
	AssetAmount float64 // 资产数量 (买入获得 / 卖出付出)
	QuoteAmount float64 // 报价货币数量 (买入付出 / 卖出获得)
	Price       float64
	Timestamp   time.Time
}

func (t TradeIntent) String() string {
	return fmt.Sprintf("INTENT [%s] %.6f @ %.2f (~%.2f USD)", t.Action, t.AssetAmount, t.Price, t.QuoteAmount)
}

// TradeRecord 是交易日志中的一行记录
type TradeRecord struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id"`
	Timestamp   time.Time  `json:"timestamp"`
	Wallet      string     `json:"wallet"`
	Action      ActionType `json:"action"`
	Coin        string     `json:"coin"`
	Amount      float64    `json:"amount"`
	QuoteAmount float64    `json:"quote_amount"`
	Price       float64    `json:"price"`
}

// NewTradeRecord 由交易意图构造日志记录
func NewTradeRecord(id, runID, wallet, coin string, intent TradeIntent) TradeRecord {
	return TradeRecord{
		ID:          id,
		RunID:       runID,
		Timestamp:   intent.Timestamp,
		Wallet:      wallet,
		Action:      intent.Action,
		Coin:        coin,
		Amount:      intent.AssetAmount,
		QuoteAmount: intent.QuoteAmount,
		Price:       intent.Price,
	}
}

// Summary 是一次运行结束时的汇总
type Summary struct {
	Instance     string
	Asset        string
	Ticks        int
	Trades       int
	HasPrice     bool
	LastPrice    float64
	Baseline     float64
	FinalValue   float64
	NetProfit    float64
	QuoteBalance float64
	AssetBalance float64
	Terminated   bool
	Reason       string
}

func (s Summary) String() string {
	if !s.HasPrice {
		return fmt.Sprintf("[%s] No trading data collected.", s.Instance)
	}
	return fmt.Sprintf("[%s] Final Portfolio Value: $%.2f | Final Net Profit: $%.2f | Final USDC Balance: $%.2f | Final %s Balance: %.6f (~$%.2f) | Ticks: %d | Trades: %d | Reason: %s",
		s.Instance, s.FinalValue, s.NetProfit, s.QuoteBalance, s.Asset, s.AssetBalance, s.AssetBalance*s.LastPrice, s.Ticks, s.Trades, s.Reason)
}
