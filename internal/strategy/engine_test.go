package strategy

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rsi-swap-bot/internal/executor"
	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/portfolio"
	"rsi-swap-bot/internal/service"
	"rsi-swap-bot/internal/tradelog"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) byKind(kind model.EventKind) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	engine *Engine
	ledger *portfolio.Ledger
	sim    *executor.SimulatorExecutor
	log    *tradelog.MemoryLog
	events *recorder
}

func newHarness(t *testing.T, cfg service.BotConfig, ledger *portfolio.Ledger) *harness {
	t.Helper()
	if ledger == nil {
		var err error
		ledger, err = portfolio.NewLedger(cfg.InitialBalance)
		require.NoError(t, err)
	}
	h := &harness{
		ledger: ledger,
		sim:    executor.NewSimulatorExecutor(nil),
		log:    tradelog.NewMemoryLog(),
		events: &recorder{},
	}
	e, err := NewEngine(cfg, ledger, Deps{
		Name:     "test",
		Wallet:   "0xwallet",
		RunID:    "run-1",
		Slippage: 1,
		Executor: h.sim,
		TradeLog: h.log,
		Sink:     h.events,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	h.engine = e
	return h
}

func sample(i int, price float64) model.PriceSample {
	return model.PriceSample{Timestamp: t0.Add(time.Duration(i) * time.Hour), Price: price, Volume: model.UnlimitedVolume}
}

func (h *harness) feed(t *testing.T, prices ...float64) []TickResult {
	t.Helper()
	out := make([]TickResult, 0, len(prices))
	for _, p := range prices {
		res, err := h.engine.Process(context.Background(), sample(h.engine.Snapshot().Ticks, p))
		require.NoError(t, err)
		out = append(out, res)
	}
	return out
}

func (h *harness) records(t *testing.T) []model.TradeRecord {
	t.Helper()
	recs, err := h.log.Records(context.Background())
	require.NoError(t, err)
	return recs
}

func decreasing(from, to float64) []float64 {
	var out []float64
	for p := from; p >= to; p-- {
		out = append(out, p)
	}
	return out
}

func TestDecreasingSeriesBuysOnceRSIReady(t *testing.T) {
	h := newHarness(t, service.DefaultBotConfig("ethereum"), nil)

	results := h.feed(t, decreasing(100, 86)...)
	require.Len(t, results, 15)

	for _, r := range results[:13] {
		assert.False(t, r.RSIReady)
		assert.Empty(t, r.Intents)
	}

	// 第 14 个样本窗口填满，RSI = 0
	r14 := results[13]
	require.True(t, r14.RSIReady)
	assert.Equal(t, 0.0, r14.RSI)
	require.Len(t, r14.Intents, 1)
	assert.Equal(t, model.ActionBuy, r14.Intents[0].Action)
	assert.Equal(t, 87.0, r14.Intents[0].Price)
	assert.Equal(t, 20.0, r14.Intents[0].QuoteAmount)

	r15 := results[14]
	require.Len(t, r15.Intents, 1)
	assert.Equal(t, 86.0, r15.Intents[0].Price)
	assert.Equal(t, 16.0, r15.Intents[0].QuoteAmount)

	assert.Equal(t, 64.0, h.ledger.Quote())
	assert.InDelta(t, 20.0/87.0+16.0/86.0, h.ledger.Asset(), 1e-12)

	recs := h.records(t)
	require.Len(t, recs, 2)
	assert.Equal(t, "ethereum", recs[0].Coin)
	assert.Equal(t, "0xwallet", recs[0].Wallet)
	assert.Equal(t, "run-1", recs[0].RunID)
	assert.Less(t, recs[0].ID, recs[1].ID)

	swaps := h.sim.Swaps()
	require.Len(t, swaps, 2)
	assert.Equal(t, executor.SwapRequest{From: "USDC_BASE", To: "WETH_BASE", Amount: 20, MaxSlippagePercent: 1}, swaps[0])
}

func TestBuyAtFirstOversoldTick(t *testing.T) {
	h := newHarness(t, service.DefaultBotConfig("ethereum"), nil)

	flat := make([]float64, 14)
	for i := range flat {
		flat[i] = 100
	}
	results := h.feed(t, flat...)

	// 平盘 RSI = 100，但没有资产可卖
	assert.Equal(t, 100.0, results[13].RSI)
	assert.Empty(t, results[13].Intents)

	r := h.feed(t, 86)[0]
	require.Len(t, r.Intents, 1)
	assert.Equal(t, model.ActionBuy, r.Intents[0].Action)
	assert.Equal(t, 80.0, h.ledger.Quote())
	assert.InDelta(t, 0.2326, h.ledger.Asset(), 1e-4)
	assert.Equal(t, 20.0/86.0, h.ledger.Asset())
}

func TestSellOnOverbought(t *testing.T) {
	cfg := service.DefaultBotConfig("degen-base")
	cfg.ProfitTake, cfg.ProfitStop = 1000, -1000

	ledger, err := portfolio.NewLedger(100)
	require.NoError(t, err)
	require.NoError(t, ledger.ApplyBuy(50, 1))

	h := newHarness(t, cfg, ledger)
	var rising []float64
	for p := 10.0; p <= 23; p++ {
		rising = append(rising, p)
	}
	results := h.feed(t, rising...)

	last := results[13]
	assert.Equal(t, 100.0, last.RSI)
	require.Len(t, last.Intents, 1)
	assert.Equal(t, model.ActionSell, last.Intents[0].Action)
	assert.InDelta(t, 0.2, last.Intents[0].AssetAmount, 1e-12)
	assert.InDelta(t, 4.6, last.Intents[0].QuoteAmount, 1e-12)
	assert.InDelta(t, 0.8, h.ledger.Asset(), 1e-12)
	assert.InDelta(t, 54.6, h.ledger.Quote(), 1e-12)

	swaps := h.sim.Swaps()
	require.Len(t, swaps, 1)
	assert.Equal(t, "DEGEN", swaps[0].From)
	assert.Equal(t, "USDC_BASE", swaps[0].To)
}

func TestProfitTakeTerminates(t *testing.T) {
	cfg := service.DefaultBotConfig("ethereum")
	ledger, err := portfolio.NewLedger(100)
	require.NoError(t, err)
	require.NoError(t, ledger.ApplyBuy(55, 1.5))

	h := newHarness(t, cfg, ledger)
	r := h.feed(t, 50)[0]

	require.Len(t, r.Intents, 1)
	assert.Equal(t, model.ActionFullSellProfit, r.Intents[0].Action)
	assert.Equal(t, 1.5, r.Intents[0].AssetAmount)
	assert.True(t, r.Terminated)
	assert.True(t, h.engine.Terminated())
	assert.Equal(t, 0.0, h.ledger.Asset())
	assert.Equal(t, 120.0, h.ledger.Quote())
	require.Len(t, h.records(t), 1)

	// 终止后的样本不再产生任何记录
	for i, p := range []float64{10, 500, 50} {
		res, err := h.engine.Process(context.Background(), sample(10+i, p))
		assert.ErrorIs(t, err, model.ErrTerminated)
		assert.True(t, res.Terminated)
	}
	assert.Len(t, h.records(t), 1)
	assert.Equal(t, 120.0, h.ledger.Quote())

	sum := h.engine.Summary()
	assert.True(t, sum.Terminated)
	assert.Equal(t, "FULL_SELL_PROFIT", sum.Reason)
	assert.Equal(t, 120.0, sum.FinalValue)
	assert.Equal(t, 20.0, sum.NetProfit)
	assert.Len(t, h.events.byKind(model.EventTerminated), 1)
}

func TestProfitTakeWinsTie(t *testing.T) {
	cfg := service.DefaultBotConfig("ethereum")
	cfg.ProfitTake, cfg.ProfitStop = 5, 5
	ledger, err := portfolio.NewLedger(100)
	require.NoError(t, err)
	require.NoError(t, ledger.ApplyBuy(50, 1))

	h := newHarness(t, cfg, ledger)
	r := h.feed(t, 55)[0]

	assert.Equal(t, 5.0, r.NetProfit)
	require.Len(t, r.Intents, 1)
	assert.Equal(t, model.ActionFullSellProfit, r.Intents[0].Action)
}

func TestFailedExitLeavesHistoryUntouched(t *testing.T) {
	ledger, err := portfolio.NewLedger(100)
	require.NoError(t, err)
	require.NoError(t, ledger.ApplyBuy(55, 1.5))

	h := newHarness(t, service.DefaultBotConfig("ethereum"), ledger)
	h.sim.FailNext(1, errors.New("rpc timeout"))

	_, err = h.engine.Process(context.Background(), sample(0, 50))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrExecutionFailed)
	assert.False(t, h.engine.Terminated())
	assert.Equal(t, 0, h.engine.ta.History().Len())
	assert.Equal(t, 1.5, h.ledger.Asset())
	assert.Empty(t, h.records(t))

	res, err := h.engine.Process(context.Background(), sample(1, 50))
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Equal(t, 1, h.engine.ta.History().Len())
	assert.Equal(t, 2, h.engine.Snapshot().Ticks)
	assert.Equal(t, 120.0, h.ledger.Quote())
}

func TestStopLossIgnoresVolumeGate(t *testing.T) {
	ledger, err := portfolio.NewLedger(100)
	require.NoError(t, err)
	require.NoError(t, ledger.ApplyBuy(50, 1))

	h := newHarness(t, service.DefaultBotConfig("aerodrome-finance"), ledger)
	res, err := h.engine.Process(context.Background(), model.PriceSample{Timestamp: t0, Price: 30, Volume: 0})
	require.NoError(t, err)

	require.Len(t, res.Intents, 1)
	assert.Equal(t, model.ActionFullSellStopLoss, res.Intents[0].Action)
	assert.Equal(t, 80.0, h.ledger.Quote())
	assert.True(t, h.engine.Terminated())
	assert.Equal(t, "AERO", h.sim.Swaps()[0].From)
}

func TestExitRequiresAssets(t *testing.T) {
	cfg := service.DefaultBotConfig("ethereum")
	cfg.ProfitStop = 0 // net profit 0 满足止损条件，但没有持仓
	h := newHarness(t, cfg, nil)

	h.feed(t, 100, 100)
	assert.False(t, h.engine.Terminated())
	assert.Empty(t, h.records(t))
}

func TestVolumeGateSkipsRSIRules(t *testing.T) {
	h := newHarness(t, service.DefaultBotConfig("ethereum"), nil)
	for i, p := range decreasing(100, 86) {
		_, err := h.engine.Process(context.Background(), model.PriceSample{Timestamp: t0.Add(time.Duration(i) * time.Hour), Price: p, Volume: 500_000})
		require.NoError(t, err)
	}
	assert.Empty(t, h.records(t))
	assert.Equal(t, 100.0, h.ledger.Quote())

	gated := 0
	for _, ev := range h.events.byKind(model.EventRule) {
		if ev.Rule == RuleVolumeGate {
			gated++
		}
	}
	assert.Equal(t, 15, gated)
}

func TestMinTradeValueSkip(t *testing.T) {
	cfg := service.DefaultBotConfig("ethereum")
	cfg.InitialBalance = 4
	h := newHarness(t, cfg, nil)

	h.feed(t, decreasing(100, 86)...)
	assert.Empty(t, h.records(t))
	assert.Equal(t, 4.0, h.ledger.Quote())

	var skipped bool
	for _, ev := range h.events.byKind(model.EventRule) {
		if ev.Rule == RuleBuy {
			skipped = true
			assert.Contains(t, ev.Message, "below min trade value")
		}
	}
	assert.True(t, skipped)
}

func TestInvalidPriceLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, service.DefaultBotConfig("ethereum"), nil)
	h.feed(t, 100, 99, 98)

	for _, p := range []float64{math.NaN(), 0, -5, math.Inf(1)} {
		_, err := h.engine.Process(context.Background(), sample(3, p))
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInvalidPrice)
		assert.True(t, model.IsTickRecoverable(err))
	}

	snap := h.engine.Snapshot()
	assert.Equal(t, 3, snap.Ticks)
	assert.Equal(t, 98.0, snap.LastPrice)
	assert.Equal(t, 3, h.engine.ta.History().Len())
	assert.Equal(t, portfolio.Balances{Quote: 100, InitialCapital: 100}, snap.Balances)
	assert.Len(t, h.events.byKind(model.EventSkip), 4)
}

func TestExecutionFailureDoesNotMutate(t *testing.T) {
	h := newHarness(t, service.DefaultBotConfig("ethereum"), nil)
	h.sim.FailNext(1, errors.New("nonce too low"))

	prices := decreasing(100, 86)
	h.feed(t, prices[:13]...)

	_, err := h.engine.Process(context.Background(), sample(13, prices[13]))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrExecutionFailed)
	assert.True(t, model.IsTickRecoverable(err))
	assert.Equal(t, 100.0, h.ledger.Quote())
	assert.Equal(t, 0.0, h.ledger.Asset())
	assert.Empty(t, h.records(t))

	r := h.feed(t, prices[14])[0]
	require.Len(t, r.Intents, 1)
	assert.Equal(t, 80.0, h.ledger.Quote())
	assert.Len(t, h.records(t), 1)
}

func TestTradeLogFailureIsFatal(t *testing.T) {
	h := newHarness(t, service.DefaultBotConfig("ethereum"), nil)
	h.log.FailAppend = errors.New("disk full")

	prices := decreasing(100, 86)
	h.feed(t, prices[:13]...)
	_, err := h.engine.Process(context.Background(), sample(13, prices[13]))
	require.Error(t, err)
	assert.False(t, model.IsTickRecoverable(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t, service.DefaultBotConfig("ethereum"), nil)
	h.feed(t, 100, 101)

	h.engine.Stop()
	h.engine.Stop()

	_, err := h.engine.Process(context.Background(), sample(2, 102))
	assert.ErrorIs(t, err, model.ErrTerminated)
	assert.Len(t, h.events.byKind(model.EventTerminated), 1)

	sum := h.engine.Summary()
	assert.Equal(t, "stopped", sum.Reason)
	assert.Equal(t, 101.0, sum.LastPrice)
	assert.Equal(t, 100.0, sum.Baseline)
	assert.Equal(t, 100.0, sum.FinalValue)
}

func TestBaselineSetOnce(t *testing.T) {
	h := newHarness(t, service.DefaultBotConfig("ethereum"), nil)
	h.feed(t, 42, 43, 44)

	snap := h.engine.Snapshot()
	assert.True(t, snap.HasBaseline)
	assert.Equal(t, 42.0, snap.Baseline)
	assert.Len(t, h.events.byKind(model.EventBaseline), 1)
}

func TestRandomWalkInvariantsAndReplay(t *testing.T) {
	cfg := service.DefaultBotConfig("ethereum")
	cfg.ProfitTake, cfg.ProfitStop = 1e9, -1e9
	h := newHarness(t, cfg, nil)

	rng := rand.New(rand.NewSource(42))
	price := 100.0
	for i := 0; i < 3000; i++ {
		price *= 1 + (rng.Float64()-0.5)*0.1
		_, err := h.engine.Process(context.Background(), sample(i, price))
		require.NoError(t, err)

		assert.GreaterOrEqual(t, h.ledger.Quote(), 0.0)
		assert.GreaterOrEqual(t, h.ledger.Asset(), 0.0)
		assert.LessOrEqual(t, h.engine.ta.History().Len(), cfg.RSIPeriod+1)
	}

	recs := h.records(t)
	require.NotEmpty(t, recs)

	replayed, err := tradelog.Replay(recs, cfg.InitialBalance)
	require.NoError(t, err)
	assert.Equal(t, h.ledger.Snapshot(), replayed.Final)
}

func TestNewEngineValidation(t *testing.T) {
	ledger, err := portfolio.NewLedger(100)
	require.NoError(t, err)
	deps := Deps{Executor: executor.NewSimulatorExecutor(nil), TradeLog: tradelog.NewMemoryLog()}

	_, err = NewEngine(service.DefaultBotConfig("dogecoin"), ledger, deps)
	assert.ErrorIs(t, err, model.ErrUnknownAsset)
	assert.ErrorContains(t, err, "known: aerodrome-finance, degen-base, ethereum, usdc")

	bad := service.DefaultBotConfig("ethereum")
	bad.RSIPeriod = 0
	_, err = NewEngine(bad, ledger, deps)
	assert.Error(t, err)

	_, err = NewEngine(service.DefaultBotConfig("ethereum"), ledger, Deps{TradeLog: tradelog.NewMemoryLog()})
	assert.ErrorContains(t, err, "executor")

	_, err = NewEngine(service.DefaultBotConfig("ethereum"), ledger, Deps{Executor: executor.NewSimulatorExecutor(nil)})
	assert.ErrorContains(t, err, "trade log")

	e, err := NewEngine(service.DefaultBotConfig("ethereum"), ledger, deps)
	require.NoError(t, err)
	assert.Equal(t, "ethereum", e.Name())
}

func TestZapSinkWritesTradeEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := service.DefaultBotConfig("ethereum")

	ledger, err := portfolio.NewLedger(100)
	require.NoError(t, err)
	e, err := NewEngine(cfg, ledger, Deps{
		Name:     "eth",
		Executor: executor.NewSimulatorExecutor(nil),
		TradeLog: tradelog.NewMemoryLog(),
		Sink:     MultiSink{NewZapSink(zap.New(core)), NopSink{}},
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)

	for i, p := range decreasing(100, 87) {
		_, err := e.Process(context.Background(), sample(i, p))
		require.NoError(t, err)
	}

	trades := logs.FilterMessage("Trade executed").All()
	require.Len(t, trades, 1)
	fields := trades[0].ContextMap()
	assert.Equal(t, "BUY", fields["Action"])
	assert.Equal(t, "eth", fields["Instance"])
	assert.Equal(t, 20.0, fields["QuoteAmount"])

	assert.Equal(t, 14, logs.FilterMessage("Tick").Len())
	assert.Equal(t, 1, logs.FilterMessage("Baseline price set").Len())
}
