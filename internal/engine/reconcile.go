package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stratus-io/stratus/internal/ir"
	"github.com/stratus-io/stratus/internal/logging"
	"github.com/stratus-io/stratus/internal/provider"
	"github.com/stratus-io/stratus/internal/store"
)

// Event represents a progress event during a run.
type Event struct {
	Name     string
	Kind     ir.Kind
	Op       string // "find", "create" or "delete"
	Status   string // "started", "adopted", "created", "deleted", "failed"
	Duration time.Duration
	Error    error
}

// Callback is called for each run event if set.
type Callback func(Event)

// Options configure a Runner.
type Options struct {
	// Parallelism bounds how many independent resources may be reconciled
	// at once. 1 (the default) reproduces strict sequential execution.
	Parallelism int

	// Timeout bounds each provider call, including availability waiters.
	Timeout time.Duration

	Retry    *RetryPolicy
	Callback Callback
}

// Runner reconciles a plan against a provider: find-or-create in dependency
// order, rollback in reverse creation order when anything fails.
type Runner struct {
	prov provider.Provider
	opts Options
}

func NewRunner(prov provider.Provider, opts Options) *Runner {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry == nil {
		opts.Retry = DefaultRetryPolicy()
	}
	return &Runner{prov: prov, opts: opts}
}

// Result is the outcome of a run: the terminal status, every tracked state
// in plan order, the audit trail, and, after a dirty rollback, the names
// that could not be torn down.
type Result struct {
	Status   ir.RunStatus
	States   []*ir.ResourceState
	Record   []ir.RecordEntry
	Leftover []string
}

// Run executes the plan. Every resource is resolved find-or-create in
// topological order; the first failure (or a caller cancellation) halts
// forward progress and unconditionally triggers a rollback of everything
// this run created. Rollback is not optional: partially provisioned
// network tiers left dangling are the failure mode this engine exists to
// prevent.
func (r *Runner) Run(ctx context.Context, p *ir.Plan) (*Result, error) {
	graph, err := BuildGraph(p)
	if err != nil {
		return nil, err
	}

	st := store.New(p)
	rec := ir.NewRecord()

	var forwardErr error
	if r.opts.Parallelism > 1 {
		forwardErr = r.runParallel(ctx, p, graph, st, rec)
	} else {
		forwardErr = r.runSequential(ctx, p, graph, st, rec)
	}
	if forwardErr == nil && ctx.Err() != nil {
		forwardErr = fmt.Errorf("run cancelled: %w", ctx.Err())
	}

	if forwardErr == nil {
		return &Result{
			Status: ir.RunCompleted,
			States: st.All(),
			Record: rec.Entries(),
		}, nil
	}

	logging.Warn("run failed, rolling back", "error", forwardErr)
	leftover, rbErr := r.rollback(ctx, st, rec)

	res := &Result{States: st.All(), Record: rec.Entries(), Leftover: leftover}
	if rbErr != nil {
		res.Status = ir.RunAbortedIncomplete
		return res, errors.Join(forwardErr, rbErr)
	}
	res.Status = ir.RunAborted
	return res, forwardErr
}

func (r *Runner) runSequential(ctx context.Context, p *ir.Plan, graph *Graph, st *store.Store, rec *ir.Record) error {
	for _, name := range graph.CreationOrder() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled: %w", err)
		}
		if err := r.reconcileNode(ctx, p.Resource(name), st, rec); err != nil {
			return err
		}
	}
	return nil
}

// runParallel dispatches independent resources to a bounded worker pool. A
// resource starts only after every dependency has been observed as
// completed; the first failure stops new starts but lets in-flight provider
// calls finish, so provider-side state is never abandoned mid-call.
func (r *Runner) runParallel(ctx context.Context, p *ir.Plan, graph *Graph, st *store.Store, rec *ir.Record) error {
	var (
		mu        sync.Mutex
		cond      = sync.NewCond(&mu)
		completed = make(map[string]bool)
		failed    = make(map[string]bool)
		firstErr  error
	)
	sem := make(chan struct{}, r.opts.Parallelism)

	var wg sync.WaitGroup
	for _, name := range graph.CreationOrder() {
		wg.Add(1)
		go func(res *ir.Resource) {
			defer wg.Done()

			mu.Lock()
			for {
				if firstErr != nil {
					mu.Unlock()
					return
				}
				depFailed := false
				ready := true
				for _, dep := range graph.Dependencies(res.Name) {
					if failed[dep] {
						depFailed = true
						break
					}
					if !completed[dep] {
						ready = false
						break
					}
				}
				if depFailed {
					failed[res.Name] = true
					mu.Unlock()
					cond.Broadcast()
					return
				}
				if ready {
					break
				}
				cond.Wait()
			}
			mu.Unlock()

			if err := ctx.Err(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("run cancelled: %w", err)
				}
				mu.Unlock()
				cond.Broadcast()
				return
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := r.reconcileNode(ctx, res, st, rec); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				failed[res.Name] = true
				mu.Unlock()
				cond.Broadcast()
				return
			}

			mu.Lock()
			completed[res.Name] = true
			mu.Unlock()
			cond.Broadcast()
		}(p.Resource(name))
	}

	wg.Wait()
	return firstErr
}

// reconcileNode performs find-or-create for a single resource and records
// the outcome. The store write happens before the function returns, so a
// dependent started afterwards always observes the resolved identifier.
func (r *Runner) reconcileNode(ctx context.Context, res *ir.Resource, st *store.Store, rec *ir.Record) error {
	state, _ := st.Get(res.Name)
	state.Status = ir.StatusCreating
	params, _ := ResolveRefs(res.Params, st.ResolvedID).(map[string]any)
	state.Params = params
	st.Put(res.Name, state)

	r.emit(Event{Name: res.Name, Kind: res.Kind, Op: "find", Status: "started"})
	start := time.Now()

	cctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req := &provider.Request{Kind: res.Kind, Name: res.Name, Params: params}

	var found *provider.Result
	err := RetryWithBackoff(cctx, r.opts.Retry, func() error {
		var findErr error
		found, findErr = r.prov.Find(cctx, req)
		return findErr
	}, IsTransientError)
	if err != nil {
		return r.failNode(res, state, st, rec, "find", start, err)
	}

	if found != nil {
		state.ID = found.ID
		state.Attrs = found.Attrs
		state.Adopted = true
		state.Status = ir.StatusCreated
		st.Put(res.Name, state)
		rec.Append(ir.RecordEntry{Name: res.Name, Kind: res.Kind, Outcome: ir.OutcomeAdopted, ID: found.ID})
		logging.Info("adopted existing resource", "name", res.Name, "kind", res.Kind, "id", found.ID)
		r.emit(Event{Name: res.Name, Kind: res.Kind, Op: "find", Status: "adopted", Duration: time.Since(start)})
		return nil
	}

	r.emit(Event{Name: res.Name, Kind: res.Kind, Op: "create", Status: "started"})

	var created *provider.Result
	err = RetryWithBackoff(cctx, r.opts.Retry, func() error {
		var createErr error
		created, createErr = r.prov.Create(cctx, req)
		return createErr
	}, IsTransientError)
	if err != nil {
		return r.failNode(res, state, st, rec, "create", start, err)
	}

	state.ID = created.ID
	state.Attrs = created.Attrs
	state.Status = ir.StatusCreated
	st.Put(res.Name, state)
	rec.Append(ir.RecordEntry{Name: res.Name, Kind: res.Kind, Outcome: ir.OutcomeCreated, ID: created.ID})
	logging.Info("created resource", "name", res.Name, "kind", res.Kind, "id", created.ID)
	r.emit(Event{Name: res.Name, Kind: res.Kind, Op: "create", Status: "created", Duration: time.Since(start)})
	return nil
}

func (r *Runner) failNode(res *ir.Resource, state *ir.ResourceState, st *store.Store, rec *ir.Record, op string, start time.Time, err error) error {
	perr := &ProviderError{Name: res.Name, Kind: res.Kind, Op: op, Err: err}
	state.Status = ir.StatusFailed
	state.LastError = perr.Error()
	st.Put(res.Name, state)
	rec.Append(ir.RecordEntry{Name: res.Name, Kind: res.Kind, Outcome: ir.OutcomeFailed, Err: perr.Error()})
	logging.Error("resource reconciliation failed", "name", res.Name, "kind", res.Kind, "op", op, "error", err)
	r.emit(Event{Name: res.Name, Kind: res.Kind, Op: op, Status: "failed", Duration: time.Since(start), Error: perr})
	return perr
}

func (r *Runner) emit(event Event) {
	if r.opts.Callback != nil {
		r.opts.Callback(event)
	}
}
