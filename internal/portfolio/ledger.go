// Package portfolio 维护报价货币 + 单一资产的双余额账本
package portfolio

import (
	"fmt"
	"math"

	"rsi-swap-bot/internal/model"
)

// Balances 是账本的只读快照
type Balances struct {
	Quote          float64
	Asset          float64
	InitialCapital float64
}

// Ledger 持有两个余额。ApplyBuy / ApplySell 是仅有的修改入口，
// 每次修改完成后两个余额都不为负。
type Ledger struct {
	quote          float64
	asset          float64
	initialCapital float64
}

// NewLedger 以初始报价货币余额创建账本，资产余额为 0
func NewLedger(initialQuote float64) (*Ledger, error) {
	if !(initialQuote > 0) || math.IsInf(initialQuote, 0) {
		return nil, fmt.Errorf("initial quote balance must be positive, got %v", initialQuote)
	}
	return &Ledger{quote: initialQuote, initialCapital: initialQuote}, nil
}

func (l *Ledger) Quote() float64 {
	return l.quote
}

func (l *Ledger) Asset() float64 {
	return l.asset
}

func (l *Ledger) InitialCapital() float64 {
	return l.initialCapital
}

// MarkToMarket 组合市值 = 报价余额 + 资产余额 * 价格
func (l *Ledger) MarkToMarket(price float64) float64 {
	return l.quote + l.asset*price
}

// NetProfit 净利润 = 市值 - 初始资金
func (l *Ledger) NetProfit(price float64) float64 {
	return l.MarkToMarket(price) - l.initialCapital
}

// ApplyBuy 花费 quoteSpent 报价货币，获得 assetReceived 资产
func (l *Ledger) ApplyBuy(quoteSpent, assetReceived float64) error {
	if err := checkAmounts(quoteSpent, assetReceived); err != nil {
		return fmt.Errorf("apply buy: %w", err)
	}
	if quoteSpent > l.quote {
		return fmt.Errorf("apply buy: %w: spend %.8f, quote balance %.8f", model.ErrInsufficientFunds, quoteSpent, l.quote)
	}
	l.quote -= quoteSpent
	l.asset += assetReceived
	return nil
}

// ApplySell 付出 assetSpent 资产，获得 quoteReceived 报价货币
func (l *Ledger) ApplySell(assetSpent, quoteReceived float64) error {
	if err := checkAmounts(assetSpent, quoteReceived); err != nil {
		return fmt.Errorf("apply sell: %w", err)
	}
	if assetSpent > l.asset {
		return fmt.Errorf("apply sell: %w: spend %.8f, asset balance %.8f", model.ErrInsufficientFunds, assetSpent, l.asset)
	}
	l.asset -= assetSpent
	l.quote += quoteReceived
	return nil
}

// Snapshot 返回当前余额
func (l *Ledger) Snapshot() Balances {
	return Balances{Quote: l.quote, Asset: l.asset, InitialCapital: l.initialCapital}
}

func checkAmounts(spent, received float64) error {
	for _, v := range []float64{spent, received} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid amount %v", v)
		}
	}
	return nil
}
