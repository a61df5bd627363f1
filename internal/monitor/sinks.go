package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LogSink writes escalations to the log
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log sink
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Publish logs one line per escalated prediction
func (s *LogSink) Publish(ctx context.Context, e *Escalation) error {
	for _, p := range e.Predictions {
		s.logger.Warn("Threat escalation",
			zap.String("escalation_id", e.ID),
			zap.String("threat_type", string(p.ThreatType)),
			zap.Float64("probability", p.Probability),
			zap.Stringer("risk_level", p.RiskLevel),
			zap.String("time_window", string(p.TimeWindow)),
			zap.String("scope", string(p.GeographicScope)),
		)
	}
	return nil
}

// RedisSink publishes escalations as JSON on a Redis channel
type RedisSink struct {
	client  redis.Cmdable
	channel string
}

// NewRedisSink creates a Redis pub/sub sink
func NewRedisSink(client redis.Cmdable, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Publish sends the escalation to the channel
func (s *RedisSink) Publish(ctx context.Context, e *Escalation) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish escalation to redis: %w", err)
	}
	return nil
}

// NATSPublisher is the subset of *nats.Conn used by NATSSink
type NATSPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes escalations as JSON on a NATS subject
type NATSSink struct {
	conn    NATSPublisher
	subject string
}

// NewNATSSink creates a NATS sink
func NewNATSSink(conn NATSPublisher, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

// Publish sends the escalation to the subject
func (s *NATSSink) Publish(ctx context.Context, e *Escalation) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation: %w", err)
	}
	if err := s.conn.Publish(s.subject, payload); err != nil {
		return fmt.Errorf("failed to publish escalation to nats: %w", err)
	}
	return nil
}

// EscalationEvent is the message type pushed to live subscribers
const EscalationEvent = "threat.escalation"

// Broadcaster pushes typed events to live subscribers
type Broadcaster interface {
	SendToAll(msgType string, data interface{}) error
}

// BroadcastSink streams escalations to connected clients
type BroadcastSink struct {
	hub Broadcaster
}

// NewBroadcastSink creates a broadcast sink
func NewBroadcastSink(hub Broadcaster) *BroadcastSink {
	return &BroadcastSink{hub: hub}
}

// Publish queues the escalation for every subscriber
func (s *BroadcastSink) Publish(ctx context.Context, e *Escalation) error {
	if err := s.hub.SendToAll(EscalationEvent, e); err != nil {
		return fmt.Errorf("failed to broadcast escalation: %w", err)
	}
	return nil
}

// MultiSink fans an escalation out to every sink
type MultiSink []Sink

// Publish delivers to all sinks and joins their errors
func (m MultiSink) Publish(ctx context.Context, e *Escalation) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
