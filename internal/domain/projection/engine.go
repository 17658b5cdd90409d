package projection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/pkg/lock"
	"fraud-ledger/internal/pkg/metrics"
)

// Result summarizes one processing pass of a projection.
type Result struct {
	Projection string
	Applied    int
	Skipped    int
	Checkpoint int64
}

// Progressed reports whether the pass moved the checkpoint.
func (r Result) Progressed() bool {
	return r.Applied+r.Skipped > 0
}

// Engine drives registered projections over the event log. Each projection
// is advanced by at most one owner at a time, guarded by the Locker.
type Engine struct {
	events      EventSource
	uow         UnitOfWork
	locker      lock.Locker
	logger      *zap.Logger
	batchSize   int
	lockTimeout time.Duration
	gapTimeout  time.Duration
	now         func() time.Time

	mu          sync.RWMutex
	projections map[string]Projection
	order       []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize caps the number of events one ProcessNewEvents call
// consumes. Zero drains to the head of the log.
func WithBatchSize(n int) Option {
	return func(e *Engine) { e.batchSize = n }
}

// WithLockTimeout bounds how long a caller waits for projection ownership.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) { e.lockTimeout = d }
}

// WithGapTimeout sets how long a projection waits at a hole in the event
// ids before treating the missing ids as rolled back. A hole younger than
// d may still be filled by an append that has not committed yet.
func WithGapTimeout(d time.Duration) Option {
	return func(e *Engine) { e.gapTimeout = d }
}

// NewEngine creates a projection engine
func NewEngine(events EventSource, uow UnitOfWork, locker lock.Locker, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		events:      events,
		uow:         uow,
		locker:      locker,
		logger:      logger.Named("projection"),
		lockTimeout: 30 * time.Second,
		gapTimeout:  10 * time.Second,
		now:         time.Now,
		projections: make(map[string]Projection),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds projections in processing order. A projection's
// dependencies must already be registered.
func (e *Engine) Register(projections ...Projection) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range projections {
		name := p.Name()
		if _, exists := e.projections[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateProjection, name)
		}
		if d, ok := p.(Dependent); ok {
			for _, dep := range d.DependsOn() {
				if _, exists := e.projections[dep]; !exists {
					return fmt.Errorf("projection %s depends on unregistered %s: %w", name, dep, ErrUnknownProjection)
				}
			}
		}
		e.projections[name] = p
		e.order = append(e.order, name)
	}
	return nil
}

// Names returns the registered projection names in processing order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

// Checkpoint returns the last event id fully applied by name.
func (e *Engine) Checkpoint(ctx context.Context, name string) (int64, error) {
	if _, err := e.lookup(name); err != nil {
		return 0, err
	}
	return e.uow.Checkpoint(ctx, name)
}

// LowWatermark returns the smallest checkpoint among names, or among all
// registered projections when names is empty.
func (e *Engine) LowWatermark(ctx context.Context, names ...string) (int64, error) {
	if len(names) == 0 {
		names = e.Names()
	}
	var low int64 = -1
	for _, name := range names {
		cp, err := e.Checkpoint(ctx, name)
		if err != nil {
			return 0, err
		}
		if low < 0 || cp < low {
			low = cp
		}
	}
	if low < 0 {
		return 0, nil
	}
	return low, nil
}

// ProcessNewEvents applies every event appended since the checkpoint of
// name, after first bringing its dependencies up to date.
func (e *Engine) ProcessNewEvents(ctx context.Context, name string) (Result, error) {
	p, err := e.lookup(name)
	if err != nil {
		return Result{Projection: name}, err
	}
	if err := e.processDependencies(ctx, p); err != nil {
		return Result{Projection: name}, err
	}

	release, err := e.acquire(ctx, name)
	if err != nil {
		return Result{Projection: name}, err
	}
	defer release()

	return e.process(ctx, p)
}

// ProcessAll advances every projection in registration order. A halted
// projection does not stop the others; all failures are returned joined.
func (e *Engine) ProcessAll(ctx context.Context) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)
	for _, name := range e.Names() {
		res, err := e.ProcessNewEvents(ctx, name)
		results = append(results, res)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// RebuildProjection truncates the tables owned by name, resets its
// checkpoint to 0 and replays the whole log into it.
func (e *Engine) RebuildProjection(ctx context.Context, name string) (Result, error) {
	p, err := e.lookup(name)
	if err != nil {
		return Result{Projection: name}, err
	}
	if err := e.processDependencies(ctx, p); err != nil {
		return Result{Projection: name}, err
	}

	release, err := e.acquire(ctx, name)
	if err != nil {
		return Result{Projection: name}, err
	}
	defer release()

	if err := e.uow.Reset(ctx, name, p.Tables()); err != nil {
		return Result{Projection: name}, fmt.Errorf("reset projection %s: %w", name, err)
	}
	metrics.ProjectionCheckpoint.WithLabelValues(name).Set(0)
	e.logger.Info("projection reset", zap.String("projection", name), zap.Any("tables", p.Tables()))

	total := Result{Projection: name}
	for {
		res, err := e.process(ctx, p)
		total.Applied += res.Applied
		total.Skipped += res.Skipped
		total.Checkpoint = res.Checkpoint
		if err != nil {
			return total, err
		}
		if !res.Progressed() {
			break
		}
	}

	e.logger.Info("projection rebuilt",
		zap.String("projection", name),
		zap.Int("applied", total.Applied),
		zap.Int64("checkpoint", total.Checkpoint),
	)
	return total, nil
}

func (e *Engine) process(ctx context.Context, p Projection) (Result, error) {
	name := p.Name()
	res := Result{Projection: name}

	checkpoint, err := e.uow.Checkpoint(ctx, name)
	if err != nil {
		return res, fmt.Errorf("load checkpoint of %s: %w", name, err)
	}
	res.Checkpoint = checkpoint

	until, err := e.events.LatestID(ctx)
	if err != nil {
		return res, fmt.Errorf("projection %s: read log head: %w", name, err)
	}
	if d, ok := p.(Dependent); ok {
		watermark, err := e.LowWatermark(ctx, d.DependsOn()...)
		if err != nil {
			return res, err
		}
		until = min(until, watermark)
	}
	if until <= checkpoint {
		return res, nil
	}

	handles := make(map[event.Type]struct{}, len(p.Handles()))
	for _, t := range p.Handles() {
		handles[t] = struct{}{}
	}

	lastSeen := checkpoint
	// advance records events passed over since the last applied one
	advance := func() error {
		if lastSeen <= res.Checkpoint {
			return nil
		}
		if err := e.uow.SaveCheckpoint(ctx, name, lastSeen); err != nil {
			return fmt.Errorf("save checkpoint of %s: %w", name, err)
		}
		res.Checkpoint = lastSeen
		return nil
	}
	halt := func(evt event.Event, cause error) error {
		if err := advance(); err != nil {
			e.logger.Warn("failed to record skipped events before halting",
				zap.String("projection", name), zap.Error(err))
		}
		metrics.ProjectionCheckpoint.WithLabelValues(name).Set(float64(res.Checkpoint))
		return e.fail(p, evt, cause)
	}

	for evt, err := range e.events.LoadRange(ctx, checkpoint, until) {
		if err != nil {
			if serr := advance(); serr != nil {
				err = errors.Join(err, serr)
			}
			return res, fmt.Errorf("projection %s: load events after %d: %w", name, lastSeen, err)
		}
		if e.batchSize > 0 && res.Applied+res.Skipped >= e.batchSize {
			break
		}
		if evt.ID <= lastSeen {
			return res, halt(evt, violation("event %d delivered after %d", evt.ID, lastSeen))
		}
		if evt.ID != lastSeen+1 {
			if age := e.now().Sub(evt.RecordedAt); age < e.gapTimeout {
				e.logger.Debug("waiting for uncommitted events",
					zap.String("projection", name),
					zap.Int64("after", lastSeen),
					zap.Int64("next", evt.ID),
					zap.Duration("age", age),
				)
				break
			}
			e.logger.Warn("skipping event id gap",
				zap.String("projection", name),
				zap.Int64("from", lastSeen+1),
				zap.Int64("to", evt.ID-1),
			)
		}

		if _, ok := handles[evt.Type]; !ok {
			res.Skipped++
			lastSeen = evt.ID
			continue
		}

		applied, err := e.apply(ctx, p, evt)
		if err != nil {
			return res, halt(evt, err)
		}
		if applied {
			res.Applied++
			metrics.ProjectionEventsApplied.WithLabelValues(name).Inc()
		} else {
			res.Skipped++
		}
		lastSeen = evt.ID
		res.Checkpoint = evt.ID
	}

	if err := advance(); err != nil {
		return res, err
	}
	metrics.ProjectionCheckpoint.WithLabelValues(name).Set(float64(res.Checkpoint))

	if res.Progressed() {
		e.logger.Debug("projection advanced",
			zap.String("projection", name),
			zap.Int("applied", res.Applied),
			zap.Int("skipped", res.Skipped),
			zap.Int64("checkpoint", res.Checkpoint),
		)
	}
	return res, nil
}

func (e *Engine) apply(ctx context.Context, p Projection, evt event.Event) (bool, error) {
	if em, ok := p.(Emitter); ok {
		if err := em.Emit(ctx, evt); err != nil {
			return false, err
		}
		if err := e.uow.SaveCheckpoint(ctx, p.Name(), evt.ID); err != nil {
			return false, fmt.Errorf("save checkpoint after emit: %w", err)
		}
		return true, nil
	}
	return e.uow.Apply(ctx, p.Name(), evt.ID, func(ctx context.Context, rm readmodel.Store) error {
		return p.Apply(ctx, rm, evt)
	})
}

func (e *Engine) fail(p Projection, evt event.Event, err error) error {
	metrics.ProjectionFailures.WithLabelValues(p.Name()).Inc()

	fields := []zap.Field{
		zap.String("projection", p.Name()),
		zap.Int64("event_id", evt.ID),
		zap.String("event_type", string(evt.Type)),
		zap.String("aggregate_id", evt.AggregateID),
		zap.Error(err),
	}

	if errors.Is(err, ErrIntegrity) {
		e.logger.Error("projection halted on integrity violation", fields...)
		return &IntegrityError{
			Projection:    p.Name(),
			EventID:       evt.ID,
			EventType:     evt.Type,
			AggregateType: evt.AggregateType,
			AggregateID:   evt.AggregateID,
			Err:           err,
		}
	}

	e.logger.Error("projection halted", fields...)
	return fmt.Errorf("projection %s: apply event %d (%s %s): %w", p.Name(), evt.ID, evt.Type, evt.AggregateID, err)
}

func (e *Engine) processDependencies(ctx context.Context, p Projection) error {
	d, ok := p.(Dependent)
	if !ok {
		return nil
	}
	for _, dep := range d.DependsOn() {
		if _, err := e.ProcessNewEvents(ctx, dep); err != nil {
			return fmt.Errorf("dependency %s of %s: %w", dep, p.Name(), err)
		}
	}
	return nil
}

func (e *Engine) acquire(ctx context.Context, name string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()

	release, err := e.locker.Lock(lockCtx, "projection:"+name)
	if err != nil {
		return nil, fmt.Errorf("acquire projection %s: %w", name, err)
	}
	return release, nil
}

func (e *Engine) lookup(name string) (Projection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.projections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProjection, name)
	}
	return p, nil
}
