package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agentville.ai/internal/sim/inputs"
	"agentville.ai/internal/sim/world"
)

type StepReport struct {
	Record    Record
	Processed int
	Failed    int
	// Backlog is set when the batch was full and more inputs may be waiting.
	Backlog bool
}

// Step runs one engine step: apply pending inputs, tick the world when
// running, persist, and advance the engine record. Input results are written
// only after the world save, which also carries the applied-input watermark;
// inputs at or below it are never applied twice. A missing engine or world is
// fatal and leaves everything untouched.
func (e *Engine) Step(ctx context.Context) (StepReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadRecord(ctx)
	if err != nil {
		return StepReport{}, err
	}
	w, err := world.Load(ctx, e.docs, e.cfg.World)
	if err != nil {
		return StepReport{}, err
	}
	generation := rec.GenerationNumber

	batch, err := e.inputs.After(ctx, rec.ID, rec.ProcessedInputNumber, e.cfg.MaxInputsPerStep)
	if err != nil {
		return StepReport{}, fmt.Errorf("read inputs: %w", err)
	}

	now := rec.CurrentTime
	w.BeginStep(now)

	rep := StepReport{Backlog: len(batch) >= e.cfg.MaxInputsPerStep}
	var (
		results []world.AppliedResult
		replay  []world.AppliedResult
	)
	for _, in := range batch {
		rec.ProcessedInputNumber = in.Number
		if in.Number <= w.AppliedInput(rec.ID) {
			// Already in the stored world; only its result may be missing.
			replayRecordInput(&rec, in)
			if in.Result == nil {
				if raw, ok := w.AppliedResultFor(in.Number); ok {
					replay = append(replay, world.AppliedResult{Number: in.Number, Result: raw})
				}
			}
			continue
		}
		r := e.apply(w, &rec, in, now)
		raw, err := json.Marshal(r)
		if err != nil {
			return StepReport{}, fmt.Errorf("input %d result: %w", in.Number, err)
		}
		results = append(results, world.AppliedResult{Number: in.Number, Result: raw})
		rep.Processed++
		if r.Failed() {
			rep.Failed++
		}
	}
	if len(results) > 0 {
		w.MarkApplied(rec.ID, results[len(results)-1].Number, results)
	}

	if rec.Running {
		rec.CurrentTime += e.cfg.TickDurationMs
		w.BeginStep(rec.CurrentTime)
		w.Tick(rec.CurrentTime)
	}

	if err := w.Save(ctx); err != nil {
		return StepReport{}, fmt.Errorf("save world: %w", err)
	}
	for _, d := range append(replay, results...) {
		var r inputs.Result
		if err := json.Unmarshal(d.Result, &r); err != nil {
			return StepReport{}, fmt.Errorf("input %d result: %w", d.Number, err)
		}
		if err := e.inputs.SetResult(ctx, rec.ID, d.Number, r); err != nil && !errors.Is(err, inputs.ErrResultAlreadySet) {
			return StepReport{}, fmt.Errorf("input %d result: %w", d.Number, err)
		}
	}
	e.storeMemories(ctx, w, rec.CurrentTime)

	latest, err := e.loadRecord(ctx)
	if err != nil {
		return StepReport{}, err
	}
	if latest.GenerationNumber != generation {
		return StepReport{}, fmt.Errorf("%w: %d != %d", ErrStaleGeneration, latest.GenerationNumber, generation)
	}
	rec.GenerationNumber++
	rec.Steps++
	rec.LastStepTs = e.clock().UnixMilli()
	if err := e.putRecord(ctx, rec); err != nil {
		return StepReport{}, fmt.Errorf("save engine: %w", err)
	}
	rep.Record = rec

	e.publish(w, rec, rep)
	return rep, nil
}

// storeMemories embeds and stores what the world queued this step, then trims
// the owners' memory sets. Failures are logged; memories are not load-bearing.
func (e *Engine) storeMemories(ctx context.Context, w *world.World, now int64) {
	reqs := w.DrainMemoryRequests()
	owners := map[string]bool{}
	for _, req := range reqs {
		if _, err := e.memories.Create(ctx, req); err != nil {
			e.logger.Printf("memory for %s: %v", req.Owner, err)
			continue
		}
		owners[req.Owner] = true
	}
	for owner := range owners {
		if _, err := e.memories.Cleanup(ctx, owner, e.cfg.Memory.MaxPerAgent, e.cfg.Memory.MinImportanceToKeep, now); err != nil {
			e.logger.Printf("memory cleanup for %s: %v", owner, err)
		}
	}
}

func (e *Engine) publish(w *world.World, rec Record, rep StepReport) {
	v := w.View()
	e.viewMu.Lock()
	e.view = &v
	e.viewMu.Unlock()

	if e.stepLog != nil {
		err := e.stepLog.WriteStep(StepLogEntry{
			EngineID:  rec.ID,
			WorldID:   rec.WorldID,
			Step:      rec.Steps,
			Time:      rec.CurrentTime,
			Processed: rep.Processed,
			Failed:    rep.Failed,
			Watermark: rec.ProcessedInputNumber,
			Running:   rec.Running,
			Digest:    v.Digest,
		})
		if err != nil {
			e.logger.Printf("step log: %v", err)
		}
	}

	if e.snapSink != nil && e.cfg.SnapshotEverySteps > 0 && rec.Steps%e.cfg.SnapshotEverySteps == 0 {
		select {
		case e.snapSink <- w.ExportSnapshot(rec.ID, rec.Steps):
		default:
			e.logger.Printf("snapshot sink full; skipped step %d", rec.Steps)
		}
	}
}
