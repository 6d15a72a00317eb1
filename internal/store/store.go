// Package store persists workflow, document and chat records behind narrow
// interfaces. The engine itself never writes here; the HTTP layer does.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("store: not found")

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	// StatusPartial means text extraction succeeded but vector writes did
	// not; the extracted text is retained.
	StatusPartial DocumentStatus = "partial"
	StatusFailed  DocumentStatus = "failed"
)

type Document struct {
	ID               string         `json:"id"`
	Filename         string         `json:"filename"`
	OriginalFilename string         `json:"original_filename"`
	FilePath         string         `json:"file_path"`
	FileSize         int64          `json:"file_size"`
	ContentType      string         `json:"content_type"`
	ExtractedText    string         `json:"-"`
	Status           DocumentStatus `json:"embedding_status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Graph       json.RawMessage `json:"workflow_data"`
	DocumentIDs []string        `json:"document_ids"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ChatSession struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Name       string    `json:"session_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"session_id"`
	Message       string         `json:"message"`
	Response      string         `json:"response,omitempty"`
	MessageType   string         `json:"message_type"`
	ExecutionData map[string]any `json:"execution_data,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Store holds workflow and document records.
type Store interface {
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, id string) error

	SaveWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context) ([]*Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	LinkDocument(ctx context.Context, workflowID, documentID string) error
	UnlinkDocument(ctx context.Context, workflowID, documentID string) error
}

// ChatStore holds chat sessions and their messages.
type ChatStore interface {
	CreateSession(ctx context.Context, session *ChatSession) error
	GetSession(ctx context.Context, id string) (*ChatSession, error)
	AppendMessage(ctx context.Context, msg *ChatMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]*ChatMessage, error)
}
