package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/domain/projection"
)

// Pipeline runs the two processing stages over the event log: projection
// advancement, then scoring of completed transactions up to the point every
// read model has reached.
type Pipeline struct {
	engine  *projection.Engine
	scoring *fraud.Service
	logger  *zap.Logger
}

// New creates a new pipeline
func New(engine *projection.Engine, scoring *fraud.Service, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		engine:  engine,
		scoring: scoring,
		logger:  logger.Named("pipeline"),
	}
}

// Engine returns the projection engine driven by the pipeline
func (p *Pipeline) Engine() *projection.Engine {
	return p.engine
}

// Advance drives every registered projection to the head of the log.
func (p *Pipeline) Advance(ctx context.Context) error {
	_, err := p.engine.ProcessAll(ctx)
	return err
}

// Run advances the projections, scores every transaction completed at or
// below the read-model low watermark and projects the flags raised while
// scoring. A halted projection does not stop scoring of what the others
// already reached; its error is returned once the pass is over.
func (p *Pipeline) Run(ctx context.Context) (fraud.StageResult, error) {
	var errs []error

	if err := p.Advance(ctx); err != nil {
		p.logger.Warn("projection pass incomplete", zap.Error(err))
		errs = append(errs, err)
	}

	upTo, err := p.engine.LowWatermark(ctx, p.readModelProjections()...)
	if err != nil {
		return fraud.StageResult{}, errors.Join(append(errs, fmt.Errorf("read model watermark: %w", err))...)
	}

	res, err := p.scoring.ProcessCompletedTransactions(ctx, upTo)
	if err != nil {
		return res, errors.Join(append(errs, err)...)
	}

	if res.Flagged > 0 {
		if err := p.Advance(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if res.Scored > 0 {
		p.logger.Debug("pipeline pass complete",
			zap.Int("scored", res.Scored),
			zap.Int("flagged", res.Flagged),
			zap.Int64("checkpoint", res.Checkpoint),
		)
	}
	return res, errors.Join(errs...)
}

// readModelProjections lists the projections whose tables scoring reads
func (p *Pipeline) readModelProjections() []string {
	var names []string
	for _, name := range p.engine.Names() {
		if name == projection.FraudAlertProjectionName {
			continue
		}
		names = append(names, name)
	}
	return names
}
