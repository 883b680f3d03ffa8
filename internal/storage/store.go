package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a generated document.
type Status string

// StatusDraft is the only state this service creates: documents are never published here.
const StatusDraft Status = "draft"

// Document is the generated title plus HTML body handed to a sink.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	HTMLBody  string    `json:"html_body"`
	Status    Status    `json:"status"`
	Brief     string    `json:"brief,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentHandle identifies a document after the sink accepted it.
type DocumentHandle struct {
	ID       string `json:"id"`
	Location string `json:"location"`
}

// Sink persists a finished document. It is called once per generation.
type Sink interface {
	CreateDocument(ctx context.Context, doc Document) (DocumentHandle, error)
}

// prepare fills the fields every sink needs and forces the draft status.
func prepare(doc Document) Document {
	if strings.TrimSpace(doc.ID) == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Status = StatusDraft
	return doc
}
