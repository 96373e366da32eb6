package tradelog

import (
	"context"
	"sync"

	"rsi-swap-bot/internal/model"
)

// MemoryLog 仅保存在内存中，用于回测 (不落盘) 和测试
type MemoryLog struct {
	mu      sync.Mutex
	records []model.TradeRecord

	// FailAppend 非空时 Append 返回该错误
	FailAppend error
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Append(_ context.Context, rec model.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		return m.FailAppend
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryLog) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

func (m *MemoryLog) Records(_ context.Context) ([]model.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TradeRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *MemoryLog) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MemoryLog) Close() error {
	return nil
}
