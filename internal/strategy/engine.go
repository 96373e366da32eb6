package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rsi-swap-bot/internal/executor"
	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/portfolio"
	"rsi-swap-bot/internal/service"
	"rsi-swap-bot/internal/tradelog"
	"rsi-swap-bot/pkg/id"
	"rsi-swap-bot/pkg/ta"
)

// Deps 是引擎的外部协作者。Executor 和 TradeLog 必须提供。
type Deps struct {
	Name     string // 实例名，用于日志和事件
	Wallet   string
	RunID    string
	Slippage float64 // 最大滑点百分比

	Executor executor.Executor
	TradeLog tradelog.TradeLog
	Sink     EventSink
	Logger   *zap.Logger
}

// TickResult 是处理一个样本的结果
type TickResult struct {
	Tick           int
	Price          float64
	PortfolioValue float64
	NetProfit      float64
	RSI            float64
	RSIReady       bool
	Intents        []model.TradeIntent // 已执行并记账的意图
	Terminated     bool
}

// Snapshot 是引擎状态的只读副本
type Snapshot struct {
	Status      Status
	Reason      string
	Baseline    float64
	HasBaseline bool
	Holding     bool
	Balances    portfolio.Balances
	LastPrice   float64
	HasPrice    bool
	Ticks       int
	Trades      int
}

// Engine 是决策引擎：每个样本依次执行 强制平仓 -> 成交量门槛 -> 买入 -> 卖出。
// 实盘和回测共用同一个引擎，同样的价格序列产生同样的决策。
type Engine struct {
	cfg    service.BotConfig
	asset  model.AssetInfo
	ledger *portfolio.Ledger
	ta     *ta.TACalculator
	state  *StateMachine
	signal *SignalGenerator
	deps   Deps
	logger *zap.Logger

	mu        sync.Mutex // 串行化 Process
	ticks     int
	trades    int
	lastPrice float64
	hasPrice  bool
}

// NewEngine 创建引擎。ledger 由调用方持有，引擎是唯一的修改者。
func NewEngine(cfg service.BotConfig, ledger *portfolio.Ledger, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bot config: %w", err)
	}
	asset, err := model.LookupAsset(cfg.Asset)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if deps.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if deps.TradeLog == nil {
		return nil, errors.New("trade log is required")
	}
	if deps.Sink == nil {
		deps.Sink = NopSink{}
	}
	if deps.Name == "" {
		deps.Name = cfg.Asset
	}
	if deps.Logger == nil {
		deps.Logger = service.Logger
	}
	logger := deps.Logger.With(zap.String("Instance", deps.Name), zap.String("Asset", cfg.Asset))

	if cfg.MisconfiguredExits() {
		logger.Warn("Profit take is not above profit stop, profit take wins ties",
			zap.Float64("ProfitTake", cfg.ProfitTake), zap.Float64("ProfitStop", cfg.ProfitStop))
	}

	state := NewStateMachine()
	state.SetHolding(ledger.Asset() > 0)

	return &Engine{
		cfg:    cfg,
		asset:  asset,
		ledger: ledger,
		ta:     ta.NewTACalculator(cfg.RSIPeriod, logger),
		state:  state,
		signal: NewSignalGenerator(cfg),
		deps:   deps,
		logger: logger,
	}, nil
}

// Process 处理一个价格样本。
// 返回的错误中，ErrInvalidPrice / ErrExecutionFailed 只影响本 tick；
// 交易日志写入失败是致命错误。
func (e *Engine) Process(ctx context.Context, sample model.PriceSample) (TickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.IsTerminated() {
		return TickResult{Terminated: true}, model.ErrTerminated
	}

	price := sample.Price
	if !model.ValidPrice(price) {
		err := fmt.Errorf("%w: %v", model.ErrInvalidPrice, price)
		ev := e.event(model.EventSkip, sample.Timestamp, 0)
		ev.Price, ev.Err, ev.Message = price, err, "price rejected"
		e.publish(ev)
		return TickResult{Tick: e.ticks}, err
	}

	// 1. 基准价。价格窗口在强制平仓检查通过后才更新
	e.ticks++
	e.lastPrice, e.hasPrice = price, true
	if e.state.SetBaseline(price) {
		e.publish(e.event(model.EventBaseline, sample.Timestamp, price))
	}

	// 2. 组合估值
	res := TickResult{
		Tick:           e.ticks,
		Price:          price,
		PortfolioValue: e.ledger.MarkToMarket(price),
		NetProfit:      e.ledger.NetProfit(price),
	}
	e.publish(e.event(model.EventTick, sample.Timestamp, price))

	// 3/4. 强制平仓，不受成交量门槛影响。成交失败时价格窗口保持不变，下一个 tick 重新判断
	if intent := e.signal.CheckExit(e.ledger.Asset(), res.NetProfit, price, sample.Timestamp); intent != nil {
		if err := e.fill(ctx, *intent); err != nil {
			return res, err
		}
		e.ta.UpdatePrice(price)
		res.Intents = append(res.Intents, *intent)
		res.Terminated = true
		e.terminate(intent.Action.String(), sample.Timestamp, price)
		return res, nil
	}

	// 5. RSI
	e.ta.UpdatePrice(price)
	rsi, err := e.ta.GetRSI()
	res.RSI, res.RSIReady = rsi, err == nil
	rsiEv := e.event(model.EventRSI, sample.Timestamp, price)
	rsiEv.RSI, rsiEv.RSIReady = rsi, res.RSIReady
	if !res.RSIReady {
		rsiEv.Message = fmt.Sprintf("have %d of %d samples, need %d more",
			e.ta.History().Len(), e.cfg.RSIPeriod, e.ta.Missing())
	}
	e.publish(rsiEv)

	// 5a. 成交量门槛
	if !e.signal.VolumeOK(sample.Volume) {
		e.publishRule(RuleVolumeGate, sample.Timestamp, price,
			fmt.Sprintf("volume %.0f below %.0f, rsi rules skipped", sample.Volume, e.cfg.MinVolumeForRSI))
		return res, nil
	}
	if !res.RSIReady {
		return res, nil
	}

	var errs []error

	// 5b. 买入
	if intent, reason := e.signal.CheckBuy(rsi, e.ledger.Quote(), price, sample.Timestamp); intent != nil {
		if err := e.fill(ctx, *intent); err != nil {
			if !errors.Is(err, model.ErrExecutionFailed) {
				return res, err
			}
			errs = append(errs, err)
		} else {
			res.Intents = append(res.Intents, *intent)
		}
	} else if reason != "" {
		e.publishRule(RuleBuy, sample.Timestamp, price, reason)
	}

	// 5c. 卖出，基于买入之后的余额独立判断
	if intent, reason := e.signal.CheckSell(rsi, e.ledger.Asset(), price, sample.Timestamp); intent != nil {
		if err := e.fill(ctx, *intent); err != nil {
			if !errors.Is(err, model.ErrExecutionFailed) {
				return res, err
			}
			errs = append(errs, err)
		} else {
			res.Intents = append(res.Intents, *intent)
		}
	} else if reason != "" {
		e.publishRule(RuleSell, sample.Timestamp, price, reason)
	}

	res.PortfolioValue = e.ledger.MarkToMarket(price)
	res.NetProfit = e.ledger.NetProfit(price)
	return res, errors.Join(errs...)
}

// fill 执行兑换，确认成功后才记账，再写交易日志
func (e *Engine) fill(ctx context.Context, intent model.TradeIntent) error {
	req := executor.SwapRequest{MaxSlippagePercent: e.deps.Slippage}
	if intent.Action.IsBuy() {
		req.From, req.To, req.Amount = model.QuoteToken, e.asset.TokenSymbol, intent.QuoteAmount
	} else {
		req.From, req.To, req.Amount = e.asset.TokenSymbol, model.QuoteToken, intent.AssetAmount
	}

	conf, err := e.deps.Executor.ExecuteSwap(ctx, req)
	if err != nil {
		if !errors.Is(err, model.ErrExecutionFailed) {
			err = fmt.Errorf("%w: %w", model.ErrExecutionFailed, err)
		}
		ev := e.event(model.EventSkip, intent.Timestamp, intent.Price)
		ev.Rule, ev.Intent, ev.Err = ruleFor(intent.Action), &intent, err
		ev.Message = "swap failed, ledger untouched"
		e.publish(ev)
		return fmt.Errorf("%s: %w", intent.Action, err)
	}

	if intent.Action.IsBuy() {
		err = e.ledger.ApplyBuy(intent.QuoteAmount, intent.AssetAmount)
	} else {
		err = e.ledger.ApplySell(intent.AssetAmount, intent.QuoteAmount)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", intent.Action, err)
	}
	e.state.SetHolding(e.ledger.Asset() > 0)
	e.trades++

	rec := model.NewTradeRecord(id.NewAt(intent.Timestamp), e.deps.RunID, e.deps.Wallet, e.cfg.Asset, intent)
	if err := e.deps.TradeLog.Append(ctx, rec); err != nil {
		e.logger.Error("Failed to append trade record", zap.String("ID", rec.ID), zap.Error(err))
		return fmt.Errorf("append trade record: %w", err)
	}

	ev := e.event(model.EventTrade, intent.Timestamp, intent.Price)
	ev.Rule, ev.Intent, ev.Message = ruleFor(intent.Action), &intent, conf.TxHash
	e.publish(ev)
	return nil
}

// Stop 外部停止，等待正在处理的 tick 完成
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.terminate("stopped", time.Now(), e.lastPrice)
}

func (e *Engine) terminate(reason string, ts time.Time, price float64) {
	if !e.state.Terminate(reason) {
		return
	}
	ev := e.event(model.EventTerminated, ts, price)
	ev.Message = reason
	e.publish(ev)
}

// Terminated 引擎是否已进入终态
func (e *Engine) Terminated() bool {
	return e.state.IsTerminated()
}

// Snapshot 返回当前状态
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	baseline, hasBaseline := e.state.Baseline()
	return Snapshot{
		Status:      e.state.Status(),
		Reason:      e.state.Reason(),
		Baseline:    baseline,
		HasBaseline: hasBaseline,
		Holding:     e.state.Holding(),
		Balances:    e.ledger.Snapshot(),
		LastPrice:   e.lastPrice,
		HasPrice:    e.hasPrice,
		Ticks:       e.ticks,
		Trades:      e.trades,
	}
}

// Summary 用最后已知价格生成运行汇总
func (e *Engine) Summary() model.Summary {
	s := e.Snapshot()
	sum := model.Summary{
		Instance:     e.deps.Name,
		Asset:        e.cfg.Asset,
		Ticks:        s.Ticks,
		Trades:       s.Trades,
		HasPrice:     s.HasPrice,
		LastPrice:    s.LastPrice,
		Baseline:     s.Baseline,
		QuoteBalance: s.Balances.Quote,
		AssetBalance: s.Balances.Asset,
		Terminated:   s.Status == StatusTerminated,
		Reason:       s.Reason,
	}
	if s.HasPrice {
		sum.FinalValue = s.Balances.Quote + s.Balances.Asset*s.LastPrice
		sum.NetProfit = sum.FinalValue - s.Balances.InitialCapital
	}
	return sum
}

func (e *Engine) Config() service.BotConfig {
	return e.cfg
}

func (e *Engine) Name() string {
	return e.deps.Name
}

func (e *Engine) event(kind model.EventKind, ts time.Time, price float64) model.Event {
	return model.Event{
		Kind:           kind,
		Instance:       e.deps.Name,
		Asset:          e.cfg.Asset,
		Timestamp:      ts,
		Tick:           e.ticks,
		Price:          price,
		PortfolioValue: e.ledger.MarkToMarket(price),
		NetProfit:      e.ledger.NetProfit(price),
	}
}

func (e *Engine) publishRule(rule string, ts time.Time, price float64, msg string) {
	ev := e.event(model.EventRule, ts, price)
	ev.Rule, ev.Message = rule, msg
	e.publish(ev)
}

func (e *Engine) publish(ev model.Event) {
	e.deps.Sink.Publish(ev)
}

func ruleFor(a model.ActionType) string {
	switch {
	case a.IsForcedExit():
		return RuleForcedExit
	case a.IsBuy():
		return RuleBuy
	default:
		return RuleSell
	}
}
