package strategy

import (
	"fmt"
	"time"

	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/service"
)

// 规则名 (事件中的 Rule 字段)
const (
	RuleForcedExit = "forced_exit"
	RuleVolumeGate = "volume_gate"
	RuleBuy        = "buy"
	RuleSell       = "sell"
)

// SignalGenerator 根据配置阈值生成交易意图，本身无状态
type SignalGenerator struct {
	cfg service.BotConfig
}

// NewSignalGenerator 初始化信号生成器
func NewSignalGenerator(cfg service.BotConfig) *SignalGenerator {
	return &SignalGenerator{cfg: cfg}
}

// CheckExit 强制平仓规则。止盈先于止损检查，两者同时满足时止盈优先。
func (sg *SignalGenerator) CheckExit(asset, netProfit, price float64, ts time.Time) *model.TradeIntent {
	if asset <= 0 {
		return nil
	}

	var action model.ActionType
	switch {
	case netProfit >= sg.cfg.ProfitTake:
		action = model.ActionFullSellProfit
	case netProfit <= sg.cfg.ProfitStop:
		action = model.ActionFullSellStopLoss
	default:
		return nil
	}

	return &model.TradeIntent{
		Action:      action,
		AssetAmount: asset,
		QuoteAmount: asset * price,
		Price:       price,
		Timestamp:   ts,
	}
}

// VolumeOK 成交量门槛，不满足时本 tick 跳过买卖规则
func (sg *SignalGenerator) VolumeOK(volume float64) bool {
	return volume >= sg.cfg.MinVolumeForRSI
}

// CheckBuy RSI 超卖时用报价余额的固定比例买入。
// 没有意图时返回跳过原因 (RSI 未触发时原因为空)。
func (sg *SignalGenerator) CheckBuy(rsi, quote, price float64, ts time.Time) (*model.TradeIntent, string) {
	if rsi >= sg.cfg.RSIBuyThreshold {
		return nil, ""
	}
	if quote <= 0 {
		return nil, "no quote balance to invest"
	}

	invest := quote * sg.cfg.RebalanceFraction
	if invest < sg.cfg.MinTradeValue {
		return nil, fmt.Sprintf("buy skipped: invest %.4f below min trade value %.2f", invest, sg.cfg.MinTradeValue)
	}

	return &model.TradeIntent{
		Action:      model.ActionBuy,
		AssetAmount: invest / price,
		QuoteAmount: invest,
		Price:       price,
		Timestamp:   ts,
	}, ""
}

// CheckSell RSI 超买时卖出资产余额的固定比例
func (sg *SignalGenerator) CheckSell(rsi, asset, price float64, ts time.Time) (*model.TradeIntent, string) {
	if rsi <= sg.cfg.RSISellThreshold {
		return nil, ""
	}
	if asset <= 0 {
		return nil, "no asset balance to sell"
	}

	amount := asset * sg.cfg.RebalanceFraction
	value := amount * price
	if value < sg.cfg.MinTradeValue {
		return nil, fmt.Sprintf("sell skipped: value %.4f below min trade value %.2f", value, sg.cfg.MinTradeValue)
	}

	return &model.TradeIntent{
		Action:      model.ActionSell,
		AssetAmount: amount,
		QuoteAmount: value,
		Price:       price,
		Timestamp:   ts,
	}, ""
}
