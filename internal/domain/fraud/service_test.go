package fraud

import (
	"context"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/pkg/lock"
)

type memEvents struct {
	mu     sync.Mutex
	events []event.Event
}

func (m *memEvents) Append(_ context.Context, evt event.Event, expected int) (event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	head := 0
	for _, e := range m.events {
		if e.AggregateType == evt.AggregateType && e.AggregateID == evt.AggregateID {
			head = e.Version
		}
	}
	if head != expected {
		return event.Event{}, &event.ConcurrencyConflictError{
			AggregateType: evt.AggregateType, AggregateID: evt.AggregateID, Expected: expected, Actual: head,
		}
	}
	evt.ID = int64(len(m.events) + 1)
	evt.Version = head + 1
	m.events = append(m.events, evt)
	return evt, nil
}

func (m *memEvents) snapshot() []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

func (m *memEvents) filter(keep func(event.Event) bool) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		for _, e := range m.snapshot() {
			if keep(e) && !yield(e, nil) {
				return
			}
		}
	}
}

func (m *memEvents) LoadStream(_ context.Context, at event.AggregateType, id string) iter.Seq2[event.Event, error] {
	return m.filter(func(e event.Event) bool { return e.AggregateType == at && e.AggregateID == id })
}

func (m *memEvents) LoadSince(ctx context.Context, after int64, types ...event.Type) iter.Seq2[event.Event, error] {
	return m.LoadRange(ctx, after, int64(len(m.snapshot())), types...)
}

func (m *memEvents) LoadRange(_ context.Context, after, until int64, types ...event.Type) iter.Seq2[event.Event, error] {
	return m.filter(func(e event.Event) bool {
		return e.ID > after && e.ID <= until && (len(types) == 0 || slices.Contains(types, e.Type))
	})
}

func (m *memEvents) StreamVersion(_ context.Context, at event.AggregateType, id string) (int, error) {
	v := 0
	for _, e := range m.snapshot() {
		if e.AggregateType == at && e.AggregateID == id {
			v = e.Version
		}
	}
	return v, nil
}

func (m *memEvents) LatestID(context.Context) (int64, error) {
	return int64(len(m.snapshot())), nil
}

func (m *memEvents) flags() []event.FraudFlagRaised {
	var out []event.FraudFlagRaised
	for _, e := range m.snapshot() {
		if p, ok := e.Payload.(event.FraudFlagRaised); ok {
			out = append(out, p)
		}
	}
	return out
}

type fixedExtractor struct {
	features map[string]*Features
}

func (f *fixedExtractor) Extract(_ context.Context, id string) (*Features, *readmodel.Transaction, error) {
	feat, ok := f.features[id]
	if !ok {
		return nil, nil, readmodel.ErrNotFound
	}
	copied := *feat
	return &copied, &readmodel.Transaction{
		TransactionID: id,
		AccountID:     "acct_1",
		Amount:        decimal.NewFromFloat(feat.Amount),
		DeviceID:      "dev_1",
		IPAddress:     "10.0.0.1",
		Latitude:      event.Float(40.7),
		Longitude:     event.Float(-74.0),
	}, nil
}

type memScores struct {
	mu   sync.Mutex
	rows map[string]*Score
}

func (m *memScores) Get(_ context.Context, id string) (*Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, ErrScoreNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *memScores) Upsert(_ context.Context, s *Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.rows[s.TransactionID] = &copied
	return nil
}

func (m *memScores) ListFlagged(context.Context, int) ([]*Score, error) { return nil, nil }

type memCheckpoints struct {
	positions map[string]int64
}

func (m *memCheckpoints) Checkpoint(_ context.Context, name string) (int64, error) {
	return m.positions[name], nil
}

func (m *memCheckpoints) SaveCheckpoint(_ context.Context, name string, id int64) error {
	if id > m.positions[name] {
		m.positions[name] = id
	}
	return nil
}

type stubDetector struct {
	version string
	fraud   map[float64]bool
}

func (d *stubDetector) Version() string { return d.version }

func (d *stubDetector) Predict(v []float64) (Prediction, error) {
	if len(v) != FeatureCount {
		return Prediction{}, ErrFeatureVectorSize
	}
	if d.fraud[v[0]] {
		return Prediction{AnomalyScore: 0.71, Probability: 0.83, IsFraud: true}, nil
	}
	return Prediction{AnomalyScore: 0.42, Probability: 0.21}, nil
}

type switchableModels struct {
	detector Detector
}

func (s *switchableModels) Current(context.Context) (Detector, error) {
	if s.detector == nil {
		return nil, ErrScoringUnavailable
	}
	return s.detector, nil
}

// amountRules fires unusual_amount above a fixed amount.
type amountRules struct{ over float64 }

func (r amountRules) Evaluate(f *Features) []RuleResult {
	if f.Amount > r.over {
		return []RuleResult{{Reason: ReasonUnusualAmount, Weight: 0.35}}
	}
	return nil
}

type scorableIDs struct {
	readmodel.Store
	ids []string
}

func (s *scorableIDs) ListScorableTransactionIDs(context.Context) ([]string, error) {
	return s.ids, nil
}

type fixture struct {
	svc    *Service
	events *memEvents
	scores *memScores
	models *switchableModels
	cps    *memCheckpoints
}

func newFixture(t *testing.T, features map[string]*Features) *fixture {
	t.Helper()
	ids := make([]string, 0, len(features))
	for id := range features {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fx := &fixture{
		events: &memEvents{},
		scores: &memScores{rows: map[string]*Score{}},
		models: &switchableModels{},
		cps:    &memCheckpoints{positions: map[string]int64{}},
	}
	fx.svc = NewService(Dependencies{
		Events:      fx.events,
		ReadModels:  &scorableIDs{ids: ids},
		Extractor:   &fixedExtractor{features: features},
		Models:      fx.models,
		Rules:       amountRules{over: 300},
		Scores:      fx.scores,
		Checkpoints: fx.cps,
		Locker:      lock.NewLocal(),
		Logger:      zaptest.NewLogger(t),
		Clock:       func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	return fx
}

func completed(t *testing.T, fx *fixture, id string, amount float64) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	_, err := fx.events.Append(ctx, event.New(id, event.TransactionInitiated{
		AccountID: "acct_1", Amount: decimal.NewFromFloat(amount), Currency: "USD",
	}, event.Metadata{}, at), 0)
	require.NoError(t, err)
	_, err = fx.events.Append(ctx, event.New(id, event.TransactionCompleted{
		AccountID: "acct_1", Amount: decimal.NewFromFloat(amount), CompletedAt: at,
	}, event.Metadata{}, at), 1)
	require.NoError(t, err)
}

func TestScoreTransaction_RulesOnlyFallback(t *testing.T) {
	fx := newFixture(t, map[string]*Features{
		"txn_big":   {Amount: 500},
		"txn_small": {Amount: 40},
	})
	completed(t, fx, "txn_big", 500)
	completed(t, fx, "txn_small", 40)
	ctx := context.Background()

	big, err := fx.svc.ScoreTransaction(ctx, "txn_big")
	require.NoError(t, err)
	assert.Equal(t, RulesOnlyVersion, big.ModelVersion)
	assert.True(t, big.Flagged)
	assert.False(t, big.IsFraud)
	assert.Equal(t, []Reason{ReasonUnusualAmount}, big.Reasons)
	assert.InDelta(t, 0.35, big.FraudProbability, 1e-9)

	small, err := fx.svc.ScoreTransaction(ctx, "txn_small")
	require.NoError(t, err)
	assert.False(t, small.Flagged)
	assert.Zero(t, small.FraudProbability)

	flags := fx.events.flags()
	require.Len(t, flags, 1)
	assert.Equal(t, "txn_big", flags[0].TransactionID)
	assert.Equal(t, []string{"unusual_amount"}, flags[0].Reasons)
	assert.Equal(t, RulesOnlyVersion, flags[0].ModelVersion)
	assert.False(t, flags[0].AutoBlocked)
}

func TestScoreTransaction_FlagCarriesTransactionContext(t *testing.T) {
	fx := newFixture(t, map[string]*Features{"txn_1": {Amount: 900}})
	completed(t, fx, "txn_1", 900)

	_, err := fx.svc.ScoreTransaction(context.Background(), "txn_1")
	require.NoError(t, err)

	evts := fx.events.snapshot()
	last := evts[len(evts)-1]
	assert.Equal(t, event.TypeFraudFlagRaised, last.Type)
	assert.Equal(t, 3, last.Version)
	assert.Equal(t, "dev_1", last.Metadata.DeviceID)
	assert.Equal(t, "10.0.0.1", last.Metadata.IPAddress)
	require.True(t, last.Metadata.HasLocation())
	assert.InDelta(t, 40.7, *last.Metadata.Latitude, 1e-9)
}

func TestScoreTransaction_IdempotentRaise(t *testing.T) {
	fx := newFixture(t, map[string]*Features{"txn_1": {Amount: 900}})
	completed(t, fx, "txn_1", 900)
	ctx := context.Background()

	for range 3 {
		_, err := fx.svc.ScoreTransaction(ctx, "txn_1")
		require.NoError(t, err)
	}
	assert.Len(t, fx.events.flags(), 1)
}

func TestScoreTransaction_ModelVerdict(t *testing.T) {
	fx := newFixture(t, map[string]*Features{"txn_1": {Amount: 120}})
	completed(t, fx, "txn_1", 120)
	fx.models.detector = &stubDetector{version: "if_20260501T000000Z", fraud: map[float64]bool{120: true}}

	score, err := fx.svc.ScoreTransaction(context.Background(), "txn_1")
	require.NoError(t, err)

	assert.True(t, score.IsFraud)
	assert.True(t, score.Flagged)
	assert.Empty(t, score.Reasons)
	assert.Equal(t, "if_20260501T000000Z", score.ModelVersion)
	assert.InDelta(t, 0.83, score.FraudProbability, 1e-9)
	assert.InDelta(t, 0.71, score.AnomalyScore, 1e-9)
	assert.Len(t, fx.events.flags(), 1)
}

func TestScoreTransaction_RecoversFromUnpersistedScore(t *testing.T) {
	fx := newFixture(t, map[string]*Features{"txn_1": {Amount: 900}})
	completed(t, fx, "txn_1", 900)
	ctx := context.Background()

	_, err := fx.svc.ScoreTransaction(ctx, "txn_1")
	require.NoError(t, err)
	// simulate a crash between append and score persistence
	delete(fx.scores.rows, "txn_1")

	_, err = fx.svc.ScoreTransaction(ctx, "txn_1")
	require.NoError(t, err)
	assert.Len(t, fx.events.flags(), 1)
}

func TestScoreTransaction_UnknownTransaction(t *testing.T) {
	fx := newFixture(t, map[string]*Features{})

	_, err := fx.svc.ScoreTransaction(context.Background(), "txn_missing")
	assert.ErrorIs(t, err, readmodel.ErrNotFound)
}

func TestProcessCompletedTransactions(t *testing.T) {
	fx := newFixture(t, map[string]*Features{
		"txn_a": {Amount: 20},
		"txn_b": {Amount: 700},
	})
	completed(t, fx, "txn_a", 20)
	completed(t, fx, "txn_b", 700)
	ctx := context.Background()

	// only the first pair is visible to the read models
	res, err := fx.svc.ProcessCompletedTransactions(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scored)
	assert.Zero(t, res.Flagged)
	assert.Equal(t, int64(2), res.Checkpoint)

	res, err = fx.svc.ProcessCompletedTransactions(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scored)
	assert.Equal(t, 1, res.Flagged)
	assert.Equal(t, int64(4), fx.cps.positions[ScoringConsumerName])

	// nothing new
	res, err = fx.svc.ProcessCompletedTransactions(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, res.Scored)
	assert.Len(t, fx.events.flags(), 1)
}

func TestRescore_RaisesOnlyForChangedVerdicts(t *testing.T) {
	features := map[string]*Features{
		"txn_a": {Amount: 20},
		"txn_b": {Amount: 700},
		"txn_c": {Amount: 55},
	}
	fx := newFixture(t, features)
	for id, f := range features {
		completed(t, fx, id, f.Amount)
	}
	ctx := context.Background()

	first, err := fx.svc.Rescore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 1, first.Flagged)
	assert.Equal(t, 3, first.ModelVersions[RulesOnlyVersion])
	require.Len(t, fx.events.flags(), 1)

	// a new model now considers txn_c anomalous
	fx.models.detector = &stubDetector{version: "if_v2", fraud: map[float64]bool{55: true}}
	second, err := fx.svc.Rescore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Total)
	assert.Equal(t, 2, second.Flagged)
	assert.Equal(t, 1, second.NewlyFlagged)
	assert.Equal(t, 1, second.VerdictChanged)
	assert.Equal(t, 3, second.ModelVersions["if_v2"])

	flags := fx.events.flags()
	require.Len(t, flags, 2)
	assert.Equal(t, "txn_c", flags[1].TransactionID)
	assert.Equal(t, "if_v2", flags[1].ModelVersion)

	row, err := fx.scores.Get(ctx, "txn_a")
	require.NoError(t, err)
	assert.Equal(t, "if_v2", row.ModelVersion)
}
