package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store and ChatStore.
type Memory struct {
	mu        sync.RWMutex
	documents map[string]*Document
	workflows map[string]*Workflow
	sessions  map[string]*ChatSession
	messages  map[string][]*ChatMessage
}

var (
	_ Store     = (*Memory)(nil)
	_ ChatStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		documents: make(map[string]*Document),
		workflows: make(map[string]*Workflow),
		sessions:  make(map[string]*ChatSession),
		messages:  make(map[string][]*ChatMessage),
	}
}

func (m *Memory) SaveDocument(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}
	copied := *doc
	m.documents[doc.ID] = &copied
	return nil
}

func (m *Memory) GetDocument(_ context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *Memory) ListDocuments(_ context.Context) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Document, 0, len(m.documents))
	for _, doc := range m.documents {
		copied := *doc
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[id]; !ok {
		return ErrNotFound
	}
	delete(m.documents, id)
	for _, wf := range m.workflows {
		wf.DocumentIDs = remove(wf.DocumentIDs, id)
	}
	return nil
}

func (m *Memory) SaveWorkflow(_ context.Context, wf *Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf.UpdatedAt = time.Now()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = wf.UpdatedAt
	}
	copied := *wf
	copied.DocumentIDs = append([]string(nil), wf.DocumentIDs...)
	m.workflows[wf.ID] = &copied
	return nil
}

func (m *Memory) GetWorkflow(_ context.Context, id string) (*Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *wf
	copied.DocumentIDs = append([]string(nil), wf.DocumentIDs...)
	return &copied, nil
}

func (m *Memory) ListWorkflows(_ context.Context) ([]*Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		copied := *wf
		copied.DocumentIDs = append([]string(nil), wf.DocumentIDs...)
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteWorkflow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(m.workflows, id)
	return nil
}

func (m *Memory) LinkDocument(_ context.Context, workflowID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[workflowID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.documents[documentID]; !ok {
		return ErrNotFound
	}
	for _, id := range wf.DocumentIDs {
		if id == documentID {
			return nil
		}
	}
	wf.DocumentIDs = append(wf.DocumentIDs, documentID)
	return nil
}

func (m *Memory) UnlinkDocument(_ context.Context, workflowID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[workflowID]
	if !ok {
		return ErrNotFound
	}
	wf.DocumentIDs = remove(wf.DocumentIDs, documentID)
	return nil
}

func (m *Memory) CreateSession(_ context.Context, session *ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg *ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[msg.SessionID]; !ok {
		return ErrNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	copied := *msg
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &copied)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, sessionID string) ([]*ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[sessionID]
	out := make([]*ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		copied := *msg
		out = append(out, &copied)
	}
	return out, nil
}

func remove(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
