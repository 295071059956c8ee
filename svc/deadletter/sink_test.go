package deadletter_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/broker"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/svc/deadletter"
)

func TestSink_Deposit(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := broker.NewMemoryBroker("email")
	sink := deadletter.New(b, deadletter.WithClock(func() time.Time { return now }))

	payload := json.RawMessage(`{"request_id":"n1","channel":"email"}`)
	err := sink.Deposit(context.Background(), notification.DeadLetterRecord{
		MessageID:     "n1",
		Channel:       notification.ChannelEmail,
		Payload:       payload,
		FailureReason: deadletter.ReasonMaxRetries,
		LastError:     "smtp timeout",
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)

	dead := b.Pending(broker.QueueDeadLetter)
	require.Len(t, dead, 1)
	assert.Equal(t, "n1", dead[0].ID)
	assert.Equal(t, deadletter.ReasonMaxRetries, dead[0].Headers[deadletter.HeaderFailureReason])
	assert.Equal(t, "corr-1", dead[0].Headers[broker.HeaderCorrelationID])

	var rec notification.DeadLetterRecord
	require.NoError(t, json.Unmarshal(dead[0].Body, &rec))
	assert.Equal(t, "Max retries exceeded", rec.FailureReason)
	assert.Equal(t, "smtp timeout", rec.LastError)
	assert.JSONEq(t, string(payload), string(rec.Payload))
	assert.True(t, rec.FailedAt.Equal(now))
}

func TestSink_DepositNonJSONPayload(t *testing.T) {
	t.Parallel()

	b := broker.NewMemoryBroker()
	sink := deadletter.New(b)

	require.NoError(t, sink.Deposit(context.Background(), notification.DeadLetterRecord{
		MessageID:     "m1",
		Payload:       json.RawMessage("not json"),
		FailureReason: deadletter.ReasonRenderFailed,
	}))

	dead := b.Pending(broker.QueueDeadLetter)
	require.Len(t, dead, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(dead[0].Body, &rec))
	assert.Equal(t, "not json", rec["payload"])
}

func TestSink_PublishFailure(t *testing.T) {
	t.Parallel()

	b := broker.NewMemoryBroker()
	boom := errors.New("channel closed")
	b.SetPublishError(boom)

	err := deadletter.New(b).Deposit(context.Background(), notification.DeadLetterRecord{MessageID: "m1", Payload: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, boom)
}
