package strategy

import (
	"sync"
)

// 引擎状态
type Status string

const (
	StatusRunning    Status = "RUNNING"
	StatusTerminated Status = "TERMINATED" // 终态：强制平仓或外部停止
)

// StateMachine 保存引擎的生命周期状态。
// baseline 只在第一个样本时设定一次，仅用于报告。
type StateMachine struct {
	mu          sync.RWMutex
	status      Status
	baseline    float64
	hasBaseline bool
	holding     bool
	reason      string
}

// NewStateMachine 初始化状态机
func NewStateMachine() *StateMachine {
	return &StateMachine{status: StatusRunning}
}

// SetBaseline 设定基准价，已设定时忽略并返回 false
func (sm *StateMachine) SetBaseline(price float64) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.hasBaseline {
		return false
	}
	sm.baseline = price
	sm.hasBaseline = true
	return true
}

func (sm *StateMachine) Baseline() (float64, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.baseline, sm.hasBaseline
}

func (sm *StateMachine) SetHolding(holding bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.holding = holding
}

func (sm *StateMachine) Holding() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.holding
}

// Terminate 进入 TERMINATED，只有第一次调用生效
func (sm *StateMachine) Terminate(reason string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.status == StatusTerminated {
		return false
	}
	sm.status = StatusTerminated
	sm.reason = reason
	return true
}

func (sm *StateMachine) Status() Status {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.status
}

func (sm *StateMachine) IsTerminated() bool {
	return sm.Status() == StatusTerminated
}

// Reason 终止原因，运行中为空
func (sm *StateMachine) Reason() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.reason
}
