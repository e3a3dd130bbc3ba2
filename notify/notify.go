// Package notify announces published snapshots on a NATS subject.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/orphasnap/snapshot"
)

// Publisher is the subset of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Event is the JSON payload published after a snapshot.
type Event struct {
	RunID       string                  `json:"run_id"`
	Version     string                  `json:"version"`
	Date        string                  `json:"date"`
	GeneratedAt time.Time               `json:"generated_at"`
	Files       []snapshot.ManifestFile `json:"files"`
	// Objects are mirror keys, when the snapshot was uploaded.
	Objects []string `json:"objects,omitempty"`
}

// DefaultFlushTimeout bounds the flush when the caller's context has no deadline.
const DefaultFlushTimeout = 10 * time.Second

// Notifier publishes snapshot events.
type Notifier struct {
	pub          Publisher
	subject      string
	flushTimeout time.Duration
	logger       *slog.Logger
}

// NewNotifier creates a notifier on subject.
func NewNotifier(pub Publisher, subject string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pub: pub, subject: subject, flushTimeout: DefaultFlushTimeout, logger: logger}
}

// WithFlushTimeout sets the flush bound used when ctx carries no deadline.
func (n *Notifier) WithFlushTimeout(d time.Duration) *Notifier {
	if d > 0 {
		n.flushTimeout = d
	}
	return n
}

// Published sends the event for m and waits for the server to acknowledge
// the flush, bounded by ctx.
func (n *Notifier) Published(ctx context.Context, m *snapshot.Manifest, objects []string) error {
	data, err := json.Marshal(Event{
		RunID:       m.RunID,
		Version:     m.Version,
		Date:        m.Date,
		GeneratedAt: m.GeneratedAt,
		Files:       m.Files,
		Objects:     objects,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	// nats requires a deadline on the flush context.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.flushTimeout)
		defer cancel()
	}
	if err := n.pub.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", n.subject, err)
	}

	n.logger.Info("Published snapshot event", "subject", n.subject, "version", m.Version)
	return nil
}

// Connect dials a NATS server with a client name and bounded reconnects.
func Connect(url string, timeout time.Duration) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("orphasnap"),
		nats.Timeout(timeout),
		nats.MaxReconnects(2),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}
