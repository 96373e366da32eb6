package tradelog

import (
	"fmt"
	"time"

	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/portfolio"
	"rsi-swap-bot/pkg/id"
)

// ReplayPoint 是回放过程中某条记录之后的组合状态
type ReplayPoint struct {
	Timestamp time.Time
	Action    model.ActionType
	Price     float64
	Quote     float64
	Asset     float64
	Value     float64 // 以该记录价格计价的组合市值
}

// ReplayResult 是交易日志回放的结果
type ReplayResult struct {
	Final  portfolio.Balances
	Points []ReplayPoint
}

// Replay 按顺序把记录应用到一个新账本上，复现运行结束时的余额
func Replay(records []model.TradeRecord, initialQuote float64) (ReplayResult, error) {
	ledger, err := portfolio.NewLedger(initialQuote)
	if err != nil {
		return ReplayResult{}, err
	}

	res := ReplayResult{Points: make([]ReplayPoint, 0, len(records))}
	for i, rec := range records {
		quote := rec.QuoteAmount
		if quote == 0 {
			// 旧格式日志没有 quote_amount
			quote = rec.Amount * rec.Price
		}

		switch {
		case rec.Action.IsBuy():
			err = ledger.ApplyBuy(quote, rec.Amount)
		case rec.Action.Valid():
			err = ledger.ApplySell(rec.Amount, quote)
		default:
			err = fmt.Errorf("unknown action %q", rec.Action)
		}
		if err != nil {
			return ReplayResult{}, fmt.Errorf("replay record %d (%s): %w", i+1, rec.ID, err)
		}

		ts := rec.Timestamp
		if ts.IsZero() {
			// 缺少时间的记录用 ULID 中的时间
			if t, err := id.Time(rec.ID); err == nil {
				ts = t
			}
		}

		res.Points = append(res.Points, ReplayPoint{
			Timestamp: ts,
			Action:    rec.Action,
			Price:     rec.Price,
			Quote:     ledger.Quote(),
			Asset:     ledger.Asset(),
			Value:     ledger.MarkToMarket(rec.Price),
		})
	}

	res.Final = ledger.Snapshot()
	return res, nil
}
