package engine

import (
	"context"
	"errors"
	"time"

	"agentville.ai/internal/sim/world"
)

// Scheduler runs fn once after d.
type Scheduler interface {
	RunAfter(d time.Duration, fn func())
}

// TimerScheduler schedules on time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) RunAfter(d time.Duration, fn func()) { time.AfterFunc(d, fn) }

// Run starts the step loop. Steps reschedule themselves while the engine is
// running or inputs are backed up; a submitted command restarts an idle loop.
// The loop ends when ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.runMu.Lock()
	e.runCtx = ctx
	e.runMu.Unlock()
	e.kick(0)
}

func (e *Engine) kick(d time.Duration) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.runCtx == nil || e.runCtx.Err() != nil || e.scheduled {
		return
	}
	e.scheduled = true
	e.sched.RunAfter(d, e.runStep)
}

func (e *Engine) runStep() {
	e.runMu.Lock()
	ctx := e.runCtx
	e.scheduled = false
	e.runMu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	rep, err := e.Step(ctx)
	interval := time.Duration(e.cfg.StepIntervalMs) * time.Millisecond
	switch {
	case errors.Is(err, ErrEngineNotFound), errors.Is(err, world.ErrWorldNotFound):
		e.logger.Printf("engine %s stopped: %v", e.cfg.ID, err)
		return
	case err != nil:
		e.logger.Printf("engine %s step: %v", e.cfg.ID, err)
		e.kick(interval)
	case rep.Backlog:
		e.kick(0)
	case rep.Record.Running:
		e.kick(interval)
	}
}
