package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const natsFlushTimeout = 5 * time.Second

// natsPublisher is the slice of *nats.Conn the sink uses.
type natsPublisher interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
}

// NATSSink publishes each draft as JSON on a subject. A downstream CMS
// consumer owns persistence.
type NATSSink struct {
	conn    natsPublisher
	nc      *nats.Conn
	subject string
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats sink requires sink.subject")
	}
	nc, err := nats.Connect(url, nats.Name("briefdoc"), nats.Timeout(3*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSSink{conn: nc, nc: nc, subject: subject}, nil
}

func (s *NATSSink) CreateDocument(ctx context.Context, doc Document) (DocumentHandle, error) {
	doc = prepare(doc)
	data, err := json.Marshal(doc)
	if err != nil {
		return DocumentHandle{}, fmt.Errorf("marshal document: %w", err)
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return DocumentHandle{}, fmt.Errorf("publish document: %w", err)
	}

	timeout := natsFlushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return DocumentHandle{}, fmt.Errorf("flush NATS: %w", context.DeadlineExceeded)
	}
	if err := s.conn.FlushTimeout(timeout); err != nil {
		return DocumentHandle{}, fmt.Errorf("flush NATS: %w", err)
	}
	return DocumentHandle{ID: doc.ID, Location: "nats:" + s.subject}, nil
}

func (s *NATSSink) Close() {
	if s.nc != nil {
		_ = s.nc.Drain()
	}
}
