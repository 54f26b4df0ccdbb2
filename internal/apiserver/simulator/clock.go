package simulator

import "time"

// Clock 可注入的时钟抽象
//
// 测试通过假时钟确定性地触发 tick，而不依赖真实计时。
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker 周期信号
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// ============================================================================
// 真实时钟
// ============================================================================

// RealClock 基于 time.Ticker 的时钟
type RealClock struct{}

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Stop() {
	r.t.Stop()
}

var _ Clock = RealClock{}
