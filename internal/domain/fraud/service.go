package fraud

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/pkg/lock"
	"fraud-ledger/internal/pkg/metrics"
)

// ScoringConsumerName is the checkpoint name of the scoring stage.
const ScoringConsumerName = "FraudScoring"

// Dependencies wires a Service.
type Dependencies struct {
	Events      event.Store
	ReadModels  readmodel.Store
	Extractor   FeatureExtractor
	Models      ModelProvider
	Rules       RuleEvaluator
	Scores      ScoreRepository
	Checkpoints CheckpointStore
	Locker      lock.Locker
	Logger      *zap.Logger

	// Optional
	Clock              func() time.Time
	RescoreConcurrency int
	LockTimeout        time.Duration
}

// Service scores completed transactions against the anomaly model and the
// rule overlay, raising FraudFlagRaised facts for flagged ones.
type Service struct {
	events      event.Store
	readModels  readmodel.Store
	extractor   FeatureExtractor
	models      ModelProvider
	rules       RuleEvaluator
	scores      ScoreRepository
	checkpoints CheckpointStore
	locker      lock.Locker
	logger      *zap.Logger

	now                func() time.Time
	rescoreConcurrency int
	lockTimeout        time.Duration
}

// NewService creates a new fraud scoring service
func NewService(deps Dependencies) *Service {
	s := &Service{
		events:             deps.Events,
		readModels:         deps.ReadModels,
		extractor:          deps.Extractor,
		models:             deps.Models,
		rules:              deps.Rules,
		scores:             deps.Scores,
		checkpoints:        deps.Checkpoints,
		locker:             deps.Locker,
		logger:             deps.Logger.Named("scoring"),
		now:                deps.Clock,
		rescoreConcurrency: deps.RescoreConcurrency,
		lockTimeout:        deps.LockTimeout,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.rescoreConcurrency <= 0 {
		s.rescoreConcurrency = 4
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = 30 * time.Second
	}
	return s
}

// ScoreTransaction builds the feature vector of a completed transaction,
// evaluates the model and the rule overlay, raises a FraudFlagRaised event
// when the transaction becomes flagged and persists the score row.
func (s *Service) ScoreTransaction(ctx context.Context, transactionID string) (*Score, error) {
	start := time.Now()

	features, txn, err := s.extractor.Extract(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("extract features of %s: %w", transactionID, err)
	}

	results := s.rules.Evaluate(features)
	score := &Score{
		TransactionID:   transactionID,
		AccountID:       txn.AccountID,
		RuleProbability: round4(RuleProbability(results)),
		ModelVersion:    RulesOnlyVersion,
		Features:        *features,
		Reasons:         ReasonCodes(results),
		ScoredAt:        s.now(),
	}
	for _, r := range score.Reasons {
		metrics.RuleHits.WithLabelValues(string(r)).Inc()
	}

	mode := "model"
	detector, err := s.models.Current(ctx)
	switch {
	case errors.Is(err, ErrScoringUnavailable):
		mode = RulesOnlyVersion
		score.FraudProbability = score.RuleProbability
		s.logger.Debug("no fitted model, scoring with rule overlay only", zap.String("transaction_id", transactionID))
	case err != nil:
		return nil, fmt.Errorf("load anomaly model: %w", err)
	default:
		pred, err := detector.Predict(features.Vector())
		if err != nil {
			return nil, fmt.Errorf("predict %s with model %s: %w", transactionID, detector.Version(), err)
		}
		score.ModelVersion = detector.Version()
		score.AnomalyScore = round4(pred.AnomalyScore)
		score.IsFraud = pred.IsFraud
		score.FraudProbability = round4(pred.Probability)
	}
	score.Flagged = score.IsFraud || len(score.Reasons) > 0

	if score.Flagged {
		if err := s.raiseFlag(ctx, txn, score); err != nil {
			return nil, err
		}
	}

	if err := s.scores.Upsert(ctx, score); err != nil {
		return nil, fmt.Errorf("persist score of %s: %w", transactionID, err)
	}

	verdict := "clear"
	if score.Flagged {
		verdict = "flagged"
	}
	metrics.TransactionsScored.WithLabelValues(mode, verdict).Inc()
	metrics.ScoringDuration.Observe(float64(time.Since(start).Milliseconds()))

	s.logger.Info("transaction scored",
		zap.String("transaction_id", transactionID),
		zap.String("account_id", txn.AccountID),
		zap.Float64("fraud_probability", score.FraudProbability),
		zap.Bool("is_fraud", score.IsFraud),
		zap.Bool("flagged", score.Flagged),
		zap.Strings("reasons", score.ReasonStrings()),
		zap.String("model_version", score.ModelVersion),
	)
	return score, nil
}

// raiseFlag appends FraudFlagRaised unless the previous verdict was already
// flagged. A flag already present in the stream for the same model version
// with no score row means an earlier attempt appended but did not persist
// its score, and is not raised again.
func (s *Service) raiseFlag(ctx context.Context, txn *readmodel.Transaction, score *Score) error {
	prev, err := s.scores.Get(ctx, txn.TransactionID)
	switch {
	case err == nil && prev.Flagged:
		return nil
	case err != nil && !errors.Is(err, ErrScoreNotFound):
		return fmt.Errorf("load previous score of %s: %w", txn.TransactionID, err)
	}

	version := 0
	var lastFlag *event.FraudFlagRaised
	for evt, err := range s.events.LoadStream(ctx, event.AggregateTransaction, txn.TransactionID) {
		if err != nil {
			return fmt.Errorf("load stream of %s: %w", txn.TransactionID, err)
		}
		version = evt.Version
		if p, ok := evt.Payload.(event.FraudFlagRaised); ok {
			lastFlag = &p
		}
	}
	if prev == nil && lastFlag != nil && lastFlag.ModelVersion == score.ModelVersion {
		return nil
	}

	flag := event.New(txn.TransactionID, event.FraudFlagRaised{
		TransactionID: txn.TransactionID,
		AccountID:     txn.AccountID,
		Probability:   score.FraudProbability,
		Reasons:       score.ReasonStrings(),
		ModelVersion:  score.ModelVersion,
		AutoBlocked:   false,
	}, event.Metadata{
		DeviceID:  txn.DeviceID,
		IPAddress: txn.IPAddress,
		Latitude:  txn.Latitude,
		Longitude: txn.Longitude,
	}, s.now())

	if _, err := s.events.Append(ctx, flag, version); err != nil {
		return fmt.Errorf("raise fraud flag for %s: %w", txn.TransactionID, err)
	}
	metrics.FraudFlagsRaised.Inc()
	return nil
}

// StageResult summarizes one pass of the scoring stage.
type StageResult struct {
	Scored     int
	Flagged    int
	Checkpoint int64
}

// ProcessCompletedTransactions scores every TransactionCompleted event after
// the scoring checkpoint and at or below upTo, the point the read models
// have reached. Re-running after a failure is safe.
func (s *Service) ProcessCompletedTransactions(ctx context.Context, upTo int64) (StageResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return StageResult{}, err
	}
	defer release()

	checkpoint, err := s.checkpoints.Checkpoint(ctx, ScoringConsumerName)
	if err != nil {
		return StageResult{}, fmt.Errorf("load scoring checkpoint: %w", err)
	}
	res := StageResult{Checkpoint: checkpoint}
	if upTo <= checkpoint {
		return res, nil
	}

	for evt, err := range s.events.LoadRange(ctx, checkpoint, upTo, event.TypeTransactionCompleted) {
		if err != nil {
			return res, fmt.Errorf("load completed transactions after %d: %w", res.Checkpoint, err)
		}
		score, err := s.ScoreTransaction(ctx, evt.AggregateID)
		if err != nil {
			s.logger.Error("scoring stage halted",
				zap.Int64("event_id", evt.ID),
				zap.String("transaction_id", evt.AggregateID),
				zap.Error(err),
			)
			return res, fmt.Errorf("score transaction %s (event %d): %w", evt.AggregateID, evt.ID, err)
		}
		res.Scored++
		if score.Flagged {
			res.Flagged++
		}
		if err := s.checkpoints.SaveCheckpoint(ctx, ScoringConsumerName, evt.ID); err != nil {
			return res, fmt.Errorf("save scoring checkpoint: %w", err)
		}
		res.Checkpoint = evt.ID
	}

	if err := s.checkpoints.SaveCheckpoint(ctx, ScoringConsumerName, upTo); err != nil {
		return res, fmt.Errorf("save scoring checkpoint: %w", err)
	}
	res.Checkpoint = upTo
	return res, nil
}

// RescoreSummary summarizes a batch re-score.
type RescoreSummary struct {
	Total          int
	Flagged        int
	NewlyFlagged   int
	VerdictChanged int
	ModelVersions  map[string]int
}

// Rescore re-runs the pipeline over every completed transaction with the
// current model, overwriting score rows. Flags are only raised for
// transactions whose verdict changed to flagged.
func (s *Service) Rescore(ctx context.Context) (*RescoreSummary, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ids, err := s.readModels.ListScorableTransactionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scorable transactions: %w", err)
	}

	summary := &RescoreSummary{ModelVersions: map[string]int{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rescoreConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			prev, err := s.scores.Get(gctx, id)
			if err != nil && !errors.Is(err, ErrScoreNotFound) {
				return fmt.Errorf("load previous score of %s: %w", id, err)
			}
			score, err := s.ScoreTransaction(gctx, id)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Total++
			summary.ModelVersions[score.ModelVersion]++
			if score.Flagged {
				summary.Flagged++
			}
			if prev != nil && prev.Flagged != score.Flagged {
				summary.VerdictChanged++
			}
			if score.Flagged && (prev == nil || !prev.Flagged) {
				summary.NewlyFlagged++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, fmt.Errorf("rescore: %w", err)
	}

	s.logger.Info("rescore complete",
		zap.Int("total", summary.Total),
		zap.Int("flagged", summary.Flagged),
		zap.Int("newly_flagged", summary.NewlyFlagged),
		zap.Int("verdict_changed", summary.VerdictChanged),
	)
	return summary, nil
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	release, err := s.locker.Lock(lockCtx, "scoring:"+ScoringConsumerName)
	if err != nil {
		return nil, fmt.Errorf("acquire scoring stage: %w", err)
	}
	return release, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
