package ta

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"rsi-swap-bot/internal/model"
)

// RSI 计算价格序列的相对强弱指数:
//
//	RSI = 100 - 100 / (1 + RS), RS = avg_gain / avg_loss
//
// avg_gain / avg_loss 是全部 N-1 个差值上的简单平均 (零值也计入)。
// avg_loss 为 0 时返回 100，平盘序列同样返回 100。
func RSI(prices []float64) (float64, error) {
	if len(prices) < 2 {
		return 0, fmt.Errorf("%w: rsi needs at least 2 prices, have %d", model.ErrInsufficientData, len(prices))
	}

	gains := make([]float64, len(prices)-1)
	losses := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		diff := prices[i] - prices[i-1]
		if diff >= 0 {
			gains[i-1] = diff
		} else {
			losses[i-1] = -diff
		}
	}

	avgGain := mean(gains)
	avgLoss := mean(losses)
	if avgLoss == 0 {
		return 100, nil
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

// mean 用整个序列长度作为 SMA 周期，取最后一个输出
func mean(values []float64) float64 {
	sma := talib.Sma(values, len(values))
	return sma[len(sma)-1]
}

// TACalculator 维护单个实例的价格窗口并计算 RSI
type TACalculator struct {
	history *PriceHistory
	period  int
	logger  *zap.Logger
}

// NewTACalculator 初始化指标计算器，窗口容量为 period+1
func NewTACalculator(period int, logger *zap.Logger) *TACalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TACalculator{
		history: NewPriceHistory(period + 1),
		period:  period,
		logger:  logger,
	}
}

// UpdatePrice 追加最新价格
func (tc *TACalculator) UpdatePrice(price float64) {
	tc.history.Push(price)
}

// GetRSI 用最近 period 个价格计算 RSI，数据不足时返回 ErrInsufficientData
func (tc *TACalculator) GetRSI() (float64, error) {
	window, err := tc.history.Window(tc.period)
	if err != nil {
		tc.logger.Debug("Not enough history for RSI",
			zap.Int("Have", tc.history.Len()), zap.Int("Need", tc.period))
		return 0, err
	}
	return RSI(window)
}

// Missing 返回距离 RSI 就绪还差的样本数
func (tc *TACalculator) Missing() int {
	if n := tc.period - tc.history.Len(); n > 0 {
		return n
	}
	return 0
}

// History 暴露价格窗口，引擎用它报告 RSI 预热进度
func (tc *TACalculator) History() *PriceHistory {
	return tc.history
}
