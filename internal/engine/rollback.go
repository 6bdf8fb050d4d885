package engine

import (
	"context"
	"time"

	"github.com/stratus-io/stratus/internal/ir"
	"github.com/stratus-io/stratus/internal/logging"
	"github.com/stratus-io/stratus/internal/provider"
	"github.com/stratus-io/stratus/internal/store"
)

// rollback tears down everything the current run created, in strict reverse
// creation order: later resources may hold references that block deletion
// of earlier ones. The sweep is best-effort: a failed teardown is recorded
// and the sweep continues to the next older resource. The aggregate
// leftover list is returned, never swallowed.
//
// Adopted resources existed before the run and are never deleted.
func (r *Runner) rollback(ctx context.Context, st *store.Store, rec *ir.Record) ([]string, error) {
	// Teardown proceeds even when the caller has cancelled: abandoning a
	// half-finished sweep is the dangling-resource outcome rollback exists
	// to prevent.
	base := context.WithoutCancel(ctx)

	entries := rec.Entries()
	var leftover []string
	var errs []error

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if entry.Outcome != ir.OutcomeCreated {
			continue
		}
		state, ok := st.Get(entry.Name)
		if !ok || state.ID == "" {
			continue
		}

		state.Status = ir.StatusRollingBack
		st.Put(entry.Name, state)
		r.emit(Event{Name: entry.Name, Kind: entry.Kind, Op: "delete", Status: "started"})
		start := time.Now()

		if err := r.deleteResource(base, state); err != nil {
			// Resource still exists: put it back to Created so the
			// leftover is visible in the persisted state.
			state.Status = ir.StatusCreated
			state.LastError = err.Error()
			st.Put(entry.Name, state)
			rec.Append(ir.RecordEntry{Name: entry.Name, Kind: entry.Kind, Outcome: ir.OutcomeDeleteFailed, ID: state.ID, Err: err.Error()})
			logging.Error("rollback teardown failed", "name", entry.Name, "kind", entry.Kind, "id", state.ID, "error", err)
			r.emit(Event{Name: entry.Name, Kind: entry.Kind, Op: "delete", Status: "failed", Duration: time.Since(start), Error: err})
			leftover = append(leftover, entry.Name)
			errs = append(errs, &ProviderError{Name: entry.Name, Kind: entry.Kind, Op: "delete", Err: err})
			continue
		}

		state.Status = ir.StatusRolledBack
		state.LastError = ""
		st.Put(entry.Name, state)
		rec.Append(ir.RecordEntry{Name: entry.Name, Kind: entry.Kind, Outcome: ir.OutcomeDeleted, ID: state.ID})
		logging.Info("rolled back resource", "name", entry.Name, "kind", entry.Kind, "id", state.ID)
		r.emit(Event{Name: entry.Name, Kind: entry.Kind, Op: "delete", Status: "deleted", Duration: time.Since(start)})
	}

	if len(leftover) > 0 {
		return leftover, &RollbackIncompleteError{Leftover: leftover, Errs: errs}
	}
	return nil, nil
}

// Destroy tears down a previously persisted run in reverse creation order.
// Like rollback it is a best-effort sweep; resources the snapshot marks as
// adopted are left alone.
func (r *Runner) Destroy(ctx context.Context, snap *ir.Snapshot) (*Result, error) {
	states := make(map[string]*ir.ResourceState, len(snap.Resources))
	order := make([]string, 0, len(snap.Resources))
	for _, rs := range snap.Resources {
		states[rs.Name] = rs.Clone()
		order = append(order, rs.Name)
	}

	// The snapshot's record drives the sweep. Snapshots from older runs
	// that carry no record fall back to reverse plan order.
	var targets []string
	seen := make(map[string]bool)
	if len(snap.Record) > 0 {
		for i := len(snap.Record) - 1; i >= 0; i-- {
			entry := snap.Record[i]
			if entry.Outcome == ir.OutcomeCreated && !seen[entry.Name] {
				seen[entry.Name] = true
				targets = append(targets, entry.Name)
			}
		}
	} else {
		for i := len(order) - 1; i >= 0; i-- {
			targets = append(targets, order[i])
		}
	}

	rec := ir.NewRecord()
	base := context.WithoutCancel(ctx)
	var leftover []string
	var errs []error

	for _, name := range targets {
		state, ok := states[name]
		if !ok || state.ID == "" || state.Adopted {
			continue
		}
		if state.Status != ir.StatusCreated {
			continue
		}

		state.Status = ir.StatusRollingBack
		r.emit(Event{Name: name, Kind: state.Kind, Op: "delete", Status: "started"})
		start := time.Now()

		if err := r.deleteResource(base, state); err != nil {
			state.Status = ir.StatusCreated
			state.LastError = err.Error()
			rec.Append(ir.RecordEntry{Name: name, Kind: state.Kind, Outcome: ir.OutcomeDeleteFailed, ID: state.ID, Err: err.Error()})
			logging.Error("destroy teardown failed", "name", name, "kind", state.Kind, "id", state.ID, "error", err)
			r.emit(Event{Name: name, Kind: state.Kind, Op: "delete", Status: "failed", Duration: time.Since(start), Error: err})
			leftover = append(leftover, name)
			errs = append(errs, &ProviderError{Name: name, Kind: state.Kind, Op: "delete", Err: err})
			continue
		}

		state.Status = ir.StatusRolledBack
		state.LastError = ""
		rec.Append(ir.RecordEntry{Name: name, Kind: state.Kind, Outcome: ir.OutcomeDeleted, ID: state.ID})
		logging.Info("destroyed resource", "name", name, "kind", state.Kind, "id", state.ID)
		r.emit(Event{Name: name, Kind: state.Kind, Op: "delete", Status: "deleted", Duration: time.Since(start)})
	}

	out := make([]*ir.ResourceState, 0, len(order))
	for _, name := range order {
		out = append(out, states[name])
	}

	res := &Result{States: out, Record: rec.Entries(), Leftover: leftover}
	if len(leftover) > 0 {
		res.Status = ir.RunAbortedIncomplete
		return res, &RollbackIncompleteError{Leftover: leftover, Errs: errs}
	}
	res.Status = ir.RunCompleted
	return res, nil
}

func (r *Runner) deleteResource(ctx context.Context, state *ir.ResourceState) error {
	cctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req := &provider.Request{
		Kind:   state.Kind,
		Name:   state.Name,
		ID:     state.ID,
		Params: state.Params,
		Attrs:  state.Attrs,
	}
	return RetryWithBackoff(cctx, r.opts.Retry, func() error {
		return r.prov.Delete(cctx, req)
	}, IsTransientError)
}
