package ta

import (
	"fmt"

	"rsi-swap-bot/internal/model"
)

// PriceHistory 是一个有界的价格滑动窗口 (FIFO)，按时间顺序保存最近的价格
type PriceHistory struct {
	prices   []float64
	capacity int
}

// NewPriceHistory 创建容量为 capacity 的价格窗口
func NewPriceHistory(capacity int) *PriceHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &PriceHistory{
		prices:   make([]float64, 0, capacity+1),
		capacity: capacity,
	}
}

// Push 追加一个价格，超过容量时淘汰最旧的一个
func (h *PriceHistory) Push(price float64) {
	h.prices = append(h.prices, price)
	if len(h.prices) > h.capacity {
		// 原地左移，避免底层数组无限增长
		copy(h.prices, h.prices[1:])
		h.prices = h.prices[:h.capacity]
	}
}

// Window 返回最近 n 个价格 (时间顺序)，数量不足时返回 ErrInsufficientData
func (h *PriceHistory) Window(n int) ([]float64, error) {
	if n <= 0 || n > len(h.prices) {
		return nil, fmt.Errorf("%w: want %d prices, have %d", model.ErrInsufficientData, n, len(h.prices))
	}
	out := make([]float64, n)
	copy(out, h.prices[len(h.prices)-n:])
	return out, nil
}

func (h *PriceHistory) Len() int {
	return len(h.prices)
}
