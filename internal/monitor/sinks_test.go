package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/richxcame/threatwatch/internal/prediction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEscalation() *Escalation {
	return &Escalation{
		ID:         "esc-1",
		DetectedAt: fixedNow,
		Location:   &nairobi,
		Predictions: []prediction.ThreatPrediction{
			threat(prediction.ThreatMpesaScam, 0.8),
		},
	}
}

func TestRedisSink_Publish(t *testing.T) {
	client, mock := redismock.NewClientMock()
	e := testEscalation()
	payload, err := json.Marshal(e)
	require.NoError(t, err)

	mock.ExpectPublish("threatwatch:escalations", payload).SetVal(1)

	err = NewRedisSink(client, "threatwatch:escalations").Publish(context.Background(), e)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSink_PublishError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	e := testEscalation()
	payload, _ := json.Marshal(e)

	mock.ExpectPublish("escalations", payload).SetErr(errors.New("connection refused"))

	err := NewRedisSink(client, "escalations").Publish(context.Background(), e)

	assert.ErrorContains(t, err, "failed to publish escalation to redis")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeNATS struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeNATS) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func TestNATSSink_Publish(t *testing.T) {
	conn := &fakeNATS{}
	e := testEscalation()

	err := NewNATSSink(conn, "threatwatch.escalations").Publish(context.Background(), e)

	require.NoError(t, err)
	assert.Equal(t, "threatwatch.escalations", conn.subject)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.data, &decoded))
	assert.Equal(t, "esc-1", decoded["id"])
	first := decoded["predictions"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "CRITICAL", first["risk_level"])
}

func TestNATSSink_PublishError(t *testing.T) {
	conn := &fakeNATS{err: errors.New("nats: connection closed")}

	err := NewNATSSink(conn, "s").Publish(context.Background(), testEscalation())

	assert.ErrorContains(t, err, "failed to publish escalation to nats")
}

func TestMultiSink_DeliversToAll(t *testing.T) {
	ok := &fakeNATS{}
	failing := &fakeNATS{err: errors.New("down")}
	sinks := MultiSink{
		NewNATSSink(failing, "a"),
		NewLogSink(zap.NewNop()),
		NewNATSSink(ok, "b"),
	}

	err := sinks.Publish(context.Background(), testEscalation())

	assert.ErrorContains(t, err, "down")
	assert.Equal(t, "a", failing.subject)
	assert.Equal(t, "b", ok.subject)
}

func TestMultiSink_Empty(t *testing.T) {
	assert.NoError(t, MultiSink{}.Publish(context.Background(), testEscalation()))
}

type fakeBroadcaster struct {
	msgType string
	data    interface{}
	err     error
}

func (f *fakeBroadcaster) SendToAll(msgType string, data interface{}) error {
	f.msgType = msgType
	f.data = data
	return f.err
}

func TestBroadcastSink_Publish(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr string
	}{
		{name: "delivered"},
		{name: "queue full", err: errors.New("websocket: broadcast queue full"), wantErr: "failed to broadcast escalation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := &fakeBroadcaster{err: tt.err}
			e := testEscalation()

			err := NewBroadcastSink(hub).Publish(context.Background(), e)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, EscalationEvent, hub.msgType)
			assert.Same(t, e, hub.data)
		})
	}
}
