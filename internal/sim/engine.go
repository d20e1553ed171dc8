package sim

import (
	"log/slog"
	"sync"
	"time"
)

// Engine drives a Simulation in real time: one step every Interval,
// each step advancing the world by TickMinutes of sim time.
type Engine struct {
	Sim         *Simulation
	TickMinutes int           // sim-minutes per step
	Speed       float64       // multiplier: 1.0 = real-time, 0 = paused
	Interval    time.Duration // base step interval
	Running     bool
	Steps       uint64 // monotonic step counter, never resets

	// Mu, when set, is held for the duration of each step. The HTTP
	// layer shares it to touch the simulation between steps.
	Mu *sync.Mutex

	// OnStep fires after each simulation step, on the engine goroutine.
	OnStep func(steps uint64)
}

// NewEngine wires an engine to a simulation with default pacing.
func NewEngine(s *Simulation, tickMinutes int, interval time.Duration) *Engine {
	if tickMinutes <= 0 {
		tickMinutes = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Engine{
		Sim:         s,
		TickMinutes: tickMinutes,
		Speed:       1.0,
		Interval:    interval,
	}
}

// Run starts the loop. Blocks until Stop is called.
func (e *Engine) Run() {
	e.Running = true
	slog.Info("engine started",
		"tick_minutes", e.TickMinutes,
		"interval", e.Interval.String(),
		"speed", e.Speed,
	)

	for e.Running {
		if e.Speed <= 0 {
			// Paused. Sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.Step()

		// Sleep out the remainder of the interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("engine stopped", "steps", e.Steps, "day", e.Sim.Clock.Day())
}

// Stop halts the loop after the current step.
func (e *Engine) Stop() {
	e.Running = false
}

// Step advances the simulation by one engine step.
func (e *Engine) Step() {
	if e.Mu != nil {
		e.Mu.Lock()
		defer e.Mu.Unlock()
	}
	e.Steps++
	e.Sim.Tick(e.TickMinutes)
	if e.OnStep != nil {
		e.OnStep(e.Steps)
	}
}
