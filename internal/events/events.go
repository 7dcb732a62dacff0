// Package events publishes pipeline and moderation notifications.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/jonathan/jobstage/internal/apperr"
)

const (
	SubjectStaged   = "postings.staged"
	SubjectImported = "postings.imported"
	SubjectRejected = "postings.rejected"
)

// Publisher sends a JSON payload on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// Config configures the NATS publisher.
type Config struct {
	URL         string
	ConnTimeout time.Duration
	Name        string
}

type natsPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSPublisher connects to NATS.
func NewNATSPublisher(cfg Config, logger *zap.Logger) (Publisher, error) {
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = 10 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "jobstage"
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, apperr.Unavailable("connecting to NATS", err)
	}

	return &natsPublisher{conn: conn, logger: logger}, nil
}

func (p *natsPublisher) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperr.Internal("marshaling event", err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("subject", subject),
			zap.Error(err))
		return apperr.Unavailable("publishing to NATS", err)
	}

	p.logger.Debug("published event",
		zap.String("subject", subject),
		zap.Int("size", len(data)))
	return nil
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

func (Nop) Close() {}

// Message is a published event as seen by a Recorder.
type Message struct {
	Subject string
	Data    []byte
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Subject: subject, Data: data})
	return nil
}

func (r *Recorder) Close() {}

// Messages returns a copy of the recorded events.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Subjects returns the subjects of the recorded events in order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Subject
	}
	return out
}
