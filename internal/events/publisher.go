package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "pkgbuilder.builds"

// Publisher delivers build events.
type Publisher interface {
	Publish(ctx context.Context, event BuildEvent) error
	Close() error
}

// NoopPublisher drops every event (default when no NATS URL is configured).
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, BuildEvent) error { return nil }
func (NoopPublisher) Close() error                              { return nil }

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes events on <subject>.<type>.
type NATSPublisher struct {
	conn    conn
	subject string
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}
	nc, err := nats.Connect(url,
		nats.Name("pkgbuilder"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS publisher connected", logfields.URL(url), slog.String("subject", subject))
	return newPublisher(nc, subject), nil
}

func newPublisher(c conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: c, subject: subject}
}

// Subject returns the subject an event of type t is published on.
func (p *NATSPublisher) Subject(t Type) string {
	return p.subject + "." + string(t)
}

// Publish sends event and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, event BuildEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}

	slog.Debug("Published build event",
		logfields.BuildID(event.BuildID),
		logfields.Package(event.Package),
		slog.String("type", string(event.Type)))
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
