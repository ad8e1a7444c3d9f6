// Package events publishes pipeline lifecycle events to NATS.
// Eventing is optional: with no URL configured the pipeline runs
// without a publisher, and publish failures are logged, never
// propagated to the operation that produced the event.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects carrying pipeline events.
const (
	SubjectLogIngested         = "resolvd.log.ingested"
	SubjectResolutionCompleted = "resolvd.resolution.completed"
)

// LogIngestedEvent describes one committed log entry. EventID and
// OccurredAt are stamped by the publisher.
type LogIngestedEvent struct {
	EventID     string    `json:"event_id"`
	LogID       uint      `json:"log_id"`
	ServiceName string    `json:"service_name"`
	ErrorLevel  string    `json:"error_level"`
	EmbeddingID string    `json:"embedding_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ResolutionCompletedEvent describes one finished resolution run.
// LogID is zero and ResolutionID nil for ad-hoc text resolutions.
type ResolutionCompletedEvent struct {
	EventID      string    `json:"event_id"`
	LogID        uint      `json:"log_id"`
	ResolutionID *uint     `json:"resolution_id,omitempty"`
	Confidence   float64   `json:"confidence"`
	SimilarLogs  int       `json:"similar_logs"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher emits pipeline events. Implementations absorb publish
// failures so the pipeline never fails on eventing.
type Publisher interface {
	LogIngested(event LogIngestedEvent)
	ResolutionCompleted(event ResolutionCompletedEvent)
	Close()
}

// Config parameterizes the NATS publisher.
type Config struct {
	// URL is the NATS server address. Empty disables eventing; callers
	// skip constructing a publisher entirely.
	URL string
}

// NATSPublisher publishes events over a core NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to NATS with retry-on-failed-connect and
// capped reconnects.
func NewNATSPublisher(cfg Config, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}

	conn, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}

	logger.Info("event publisher connected", zap.String("url", cfg.URL))
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

// LogIngested publishes a log.ingested event, stamping the event id
// and timestamp.
func (p *NATSPublisher) LogIngested(event LogIngestedEvent) {
	event.EventID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	p.publish(SubjectLogIngested, event)
}

// ResolutionCompleted publishes a resolution.completed event, stamping
// the event id and timestamp.
func (p *NATSPublisher) ResolutionCompleted(event ResolutionCompletedEvent) {
	event.EventID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	p.publish(SubjectResolutionCompleted, event)
}

// publish marshals and sends one event. Failures are logged, never
// returned.
func (p *NATSPublisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("failed to encode event",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return
	}

	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("event published", zap.String("subject", subject))
}

// Close flushes buffered events and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Flush(); err != nil {
		p.logger.Warn("failed to flush events", zap.Error(err))
	}
	p.conn.Close()
}
