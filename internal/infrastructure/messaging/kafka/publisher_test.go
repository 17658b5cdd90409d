package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fraud-ledger/internal/domain/projection"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestAlertPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := newAlertPublisher(w, "fraud-alerts", zaptest.NewLogger(t))

	alert := projection.Alert{
		EventID:       42,
		TransactionID: "txn_1",
		AccountID:     "acct_1",
		Probability:   0.72,
		Reasons:       []string{"unusual_amount", "suspicious_timing"},
		ModelVersion:  "rules-only",
		RaisedAt:      time.Date(2026, 5, 1, 4, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), alert))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "txn_1", string(msg.Key))

	var got projection.Alert
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, alert, got)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_id", Value: []byte("42")})
}

func TestAlertPublisher_PropagatesWriteFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker unavailable")}
	p := newAlertPublisher(w, "fraud-alerts", zaptest.NewLogger(t))

	err := p.Publish(context.Background(), projection.Alert{TransactionID: "txn_1"})
	assert.ErrorContains(t, err, "broker unavailable")
}
