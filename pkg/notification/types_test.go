package notification_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/notification"
)

func TestParseChannel(t *testing.T) {
	t.Parallel()

	c, err := notification.ParseChannel(" Email ")
	require.NoError(t, err)
	assert.Equal(t, notification.ChannelEmail, c)

	_, err = notification.ParseChannel("sms")
	assert.ErrorIs(t, err, notification.ErrInvalidChannel)
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	valid := notification.Request{
		RequestID:    "req-1",
		UserID:       "42",
		Channel:      notification.ChannelPush,
		TemplateCode: "welcome",
	}
	assert.NoError(t, valid.Validate())

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()
		err := notification.Request{}.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, notification.ErrInvalidRequest)
		assert.Contains(t, err.Error(), "request_id is required")
		assert.Contains(t, err.Error(), "template_code is required")
	})

	t.Run("priority out of range", func(t *testing.T) {
		t.Parallel()
		r := valid
		r.Priority = 11
		assert.ErrorIs(t, r.Validate(), notification.ErrInvalidRequest)
	})
}

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	req := notification.Request{
		RequestID:    "req-1",
		UserID:       "42",
		Channel:      notification.ChannelEmail,
		TemplateCode: "welcome",
		Variables:    map[string]any{"name": "Ann"},
	}
	data, err := req.Marshal()
	require.NoError(t, err)

	got, err := notification.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "Ann", got.Variables["name"])

	for name, payload := range map[string]string{
		"not json":        "{oops",
		"no request id":   `{"channel":"email"}`,
		"unknown channel": `{"request_id":"x","channel":"sms"}`,
	} {
		_, err := notification.Unmarshal([]byte(payload))
		assert.ErrorIs(t, err, notification.ErrMalformedPayload, name)
	}
}

func TestStatusRecord_Transitions(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rec := notification.NewStatusRecord(notification.Request{RequestID: "r", Channel: notification.ChannelEmail}, created)
	assert.Equal(t, notification.StatusQueued, rec.Status)
	assert.False(t, rec.Status.Terminal())

	later := created.Add(time.Minute)
	rec.MarkSent(later)
	assert.Equal(t, notification.StatusSent, rec.Status)
	require.NotNil(t, rec.DeliveredAt)
	assert.Equal(t, later, *rec.DeliveredAt)
	assert.Equal(t, created, rec.CreatedAt)

	rec.MarkFailed(later, 3, "boom")
	assert.Equal(t, notification.StatusFailed, rec.Status)
	assert.Equal(t, 3, rec.RetryCount)
	assert.Equal(t, "boom", rec.ErrorMessage)
}

func TestKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "notification:status:abc", notification.StatusKey("abc"))
	assert.Equal(t, "notification:processed:abc", notification.ProcessedKey("abc"))
	assert.Equal(t, "rate_limit:user:7", notification.RateLimitKey("7"))
}
