// Package simulator 可用数模拟器
//
// 在没有真实数据源的情况下模拟一条实时车位流：
//   - 每个心跳周期把连接状态置为已连接（装饰性心跳，没有真实连接）
//   - 每个扰动周期独立地以固定概率给每个车场的可用数加上 {-1, 0, +1}
//     的随机增量，并钳制到 [0, total]
//
// 所有写入都经过注册表，观察者（WebSocket 网关）因此能看到每次扰动。
package simulator

import (
	"context"
	"math/rand"
	"sync"

	"parking-admin/internal/apiserver/registry"
	"parking-admin/internal/config"
	"parking-admin/pkg/logging"
)

// Simulator 可用数模拟器
type Simulator struct {
	registry *registry.Registry
	cfg      config.SimulatorConfig
	clock    Clock
	rng      *rand.Rand
	logger   *logging.Logger

	mu        sync.RWMutex
	connected bool
}

// New 创建模拟器
//
// clock 和 rng 可为 nil，分别回退到真实时钟和随机种子
// （测试注入假时钟和固定种子获得确定性）。
func New(reg *registry.Registry, cfg config.SimulatorConfig, clock Clock, rng *rand.Rand, logger *logging.Logger) *Simulator {
	if clock == nil {
		clock = RealClock{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if logger == nil {
		logger = logging.Default("simulator")
	}
	return &Simulator{
		registry: reg,
		cfg:      cfg,
		clock:    clock,
		rng:      rng,
		logger:   logger,
	}
}

// Run 运行模拟器，阻塞直到 ctx 取消；ticker 在退出时停止
func (s *Simulator) Run(ctx context.Context) {
	heartbeat := s.clock.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	update := s.clock.NewTicker(s.cfg.UpdateInterval)
	defer update.Stop()

	s.logger.Info("Simulator started",
		"heartbeat_interval", s.cfg.HeartbeatInterval.String(),
		"update_interval", s.cfg.UpdateInterval.String(),
		"update_probability", s.cfg.UpdateProbability,
	)

	for {
		select {
		case <-ctx.Done():
			s.setConnected(false)
			s.logger.Info("Simulator stopped")
			return
		case <-heartbeat.C():
			s.setConnected(true)
		case <-update.C():
			s.Tick()
		}
	}
}

// Tick 执行一轮扰动（测试可直接调用）
func (s *Simulator) Tick() {
	spots := s.registry.List()
	updated := 0
	available := 0

	for _, spot := range spots {
		if s.rng.Float64() >= s.cfg.UpdateProbability {
			available += spot.Available
			continue
		}
		delta := s.rng.Intn(3) - 1 // -1, 0 或 +1
		// 增量在注册表写锁内应用，不回写整条快照，
		// 并发的管理员编辑不会被旧记录覆盖
		after, ok := s.registry.AdjustAvailable(spot.ID, delta)
		if !ok {
			continue
		}
		available += after
		updated++
	}

	availabilityTicks.Inc()
	spotsPerturbed.Add(float64(updated))
	availableTotal.Set(float64(available))
	s.logger.SimulatorTickLog(updated, len(spots))
}

// Connected 连接状态（装饰性心跳的结果）
func (s *Simulator) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Simulator) setConnected(v bool) {
	s.mu.Lock()
	changed := s.connected != v
	s.connected = v
	s.mu.Unlock()

	if v {
		connectivityGauge.Set(1)
	} else {
		connectivityGauge.Set(0)
	}
	if changed {
		s.logger.Debug("Connectivity changed", "connected", v)
	}
}
