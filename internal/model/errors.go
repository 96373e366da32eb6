package model

import "errors"

var (
	// ErrInsufficientData 数据不足 (可恢复，等待更多样本)
	ErrInsufficientData = errors.New("insufficient data")
	// ErrFeedUnavailable 行情源不可用 (实盘跳过 tick，回测致命)
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrInvalidPrice 非法价格 (非正数、NaN、缺失)
	ErrInvalidPrice = errors.New("invalid price")
	// ErrExecutionFailed 执行器重试耗尽后仍失败
	ErrExecutionFailed = errors.New("execution failed")
	// ErrInsufficientFunds 启动前余额检查失败
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrTerminated 引擎已终止，不再处理样本
	ErrTerminated = errors.New("engine terminated")
	// ErrUnknownAsset 未知资产
	ErrUnknownAsset = errors.New("unknown asset")
)

// IsTickRecoverable 判断实盘模式下该错误是否只需跳过当前 tick
func IsTickRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrFeedUnavailable) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrExecutionFailed)
}
