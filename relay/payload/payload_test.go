package payload

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("success - zoom event", func(t *testing.T) {
		raw := []byte(`{"event":"meeting.started","event_ts":1700000000000,"payload":{"account_id":"abc","object":{"id":"42"}}}`)

		event, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "meeting.started", event.Name)
		assert.Equal(t, raw, event.Raw)
		assert.Equal(t, "abc", event.Payload()["account_id"])
	})

	t.Run("success - raw bytes kept verbatim", func(t *testing.T) {
		raw := []byte("{ \"event\" : \"x\",\n  \"payload\": {} }")

		event, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, event.Raw)
		assert.Equal(t, json.RawMessage(raw), event.JSON())
	})

	t.Run("success - object without event field", func(t *testing.T) {
		event, err := Parse([]byte(`{"foo":"bar"}`))
		require.NoError(t, err)
		assert.Empty(t, event.Name)
		assert.Nil(t, event.Payload())
	})

	t.Run("error - empty body", func(t *testing.T) {
		_, err := Parse([]byte("  "))
		assert.ErrorIs(t, err, ErrEmptyBody)
	})

	t.Run("error - invalid JSON", func(t *testing.T) {
		_, err := Parse([]byte(`{invalid json}`))
		assert.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("error - null", func(t *testing.T) {
		_, err := Parse([]byte(`null`))
		assert.ErrorIs(t, err, ErrNotObject)
	})

	t.Run("error - array", func(t *testing.T) {
		_, err := Parse([]byte(`[{"event":"x"}]`))
		assert.ErrorIs(t, err, ErrNotObject)
	})

	t.Run("error - string", func(t *testing.T) {
		_, err := Parse([]byte(`"meeting.started"`))
		assert.ErrorIs(t, err, ErrNotObject)
	})
}

func TestDeliveryFromHeader(t *testing.T) {
	t.Run("first attempt", func(t *testing.T) {
		h := http.Header{}
		h.Set(TrackingIDHeader, "track-1")

		d := DeliveryFromHeader(h)
		assert.Equal(t, "track-1", d.TrackingID)
		assert.Equal(t, 0, d.RetryNum)
		assert.False(t, d.Retried())
	})

	t.Run("retried delivery", func(t *testing.T) {
		h := http.Header{}
		h.Set(RetryNumHeader, "2")

		d := DeliveryFromHeader(h)
		assert.Equal(t, 2, d.RetryNum)
		assert.True(t, d.Retried())
		assert.Nil(t, d.TrackingIDPtr())
	})

	t.Run("malformed retry number", func(t *testing.T) {
		h := http.Header{}
		h.Set(RetryNumHeader, "two")

		assert.Equal(t, 0, DeliveryFromHeader(h).RetryNum)
	})
}

func TestTask(t *testing.T) {
	receivedAt := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	event, err := Parse([]byte(`{"event":"recording.completed","payload":{"object":{"id":"7"}}}`))
	require.NoError(t, err)

	t.Run("JSON contract", func(t *testing.T) {
		task := NewTask(event, Delivery{TrackingID: "trk", RetryNum: 1}, "req-1", receivedAt)

		data, err := task.Bytes()
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "trk", decoded["trackingId"])
		assert.Equal(t, "req-1", decoded["requestId"])
		assert.Equal(t, "2024-05-01T09:30:00Z", decoded["receivedAt"])
		assert.Equal(t, "recording.completed", decoded["webhookData"].(map[string]any)["event"])
	})

	t.Run("null tracking ID", func(t *testing.T) {
		task := NewTask(event, Delivery{}, "req-2", receivedAt)

		data, err := task.Bytes()
		require.NoError(t, err)
		assert.Contains(t, string(data), `"trackingId":null`)
		assert.Empty(t, task.Tracking())
	})

	t.Run("parse from queue body", func(t *testing.T) {
		raw := []byte(`{"webhookData":{"event":"meeting.ended"},"trackingId":"t","receivedAt":"2024-05-01T09:30:00.5Z","requestId":"r"}`)

		task, err := ParseTask(raw)
		require.NoError(t, err)
		assert.Equal(t, "meeting.ended", task.EventName())
		assert.Equal(t, "t", task.Tracking())
		assert.Equal(t, "r", task.RequestID)
		assert.Equal(t, 500*time.Millisecond, time.Duration(task.ReceivedAt.Nanosecond()))
	})

	t.Run("error - invalid JSON", func(t *testing.T) {
		_, err := ParseTask([]byte(`nope`))
		assert.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("error - missing webhookData", func(t *testing.T) {
		_, err := ParseTask([]byte(`{"requestId":"r","webhookData":null}`))
		assert.ErrorIs(t, err, ErrMissingWebhookData)
	})
}

func TestFailureNotice(t *testing.T) {
	source := []byte(`{"webhookData":{"event":"meeting.started"},"trackingId":null,"receivedAt":"2024-05-01T09:30:00Z","requestId":"req-9"}`)

	t.Run("round trip through queue callback body", func(t *testing.T) {
		notice := NewFailureNotice("msg_1", "https://relay.example.com/process", source, 500, []byte(`{"error":"boom"}`), 3, 3)

		data, err := json.Marshal(notice)
		require.NoError(t, err)

		parsed, err := ParseFailureNotice(data)
		require.NoError(t, err)
		assert.Equal(t, "msg_1", parsed.SourceMessageID)
		assert.Equal(t, 500, parsed.Status)
		assert.Equal(t, `{"error":"boom"}`, parsed.ResponseBody())

		task, err := parsed.Task()
		require.NoError(t, err)
		assert.Equal(t, "req-9", task.RequestID)
		assert.Equal(t, "meeting.started", task.EventName())
	})

	t.Run("qstash shaped body", func(t *testing.T) {
		raw := `{"status":502,"body":"` + base64.StdEncoding.EncodeToString([]byte("bad gateway")) +
			`","retried":3,"maxRetries":3,"sourceMessageId":"msg_x","url":"https://r/process","sourceBody":"` +
			base64.StdEncoding.EncodeToString(source) + `"}`

		parsed, err := ParseFailureNotice([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "bad gateway", parsed.ResponseBody())
		assert.Equal(t, 3, parsed.Retried)
	})

	t.Run("error - no source body", func(t *testing.T) {
		_, err := FailureNotice{}.Task()
		assert.Error(t, err)
	})
}
