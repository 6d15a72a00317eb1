package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/flowstack-ai/flowstack/internal/ingestion"
	"github.com/flowstack-ai/flowstack/internal/retrieval"
	"github.com/flowstack-ai/flowstack/internal/store"
	"github.com/flowstack-ai/flowstack/internal/workflow"
)

const maxUploadBytes = 50 << 20

type createWorkflowRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	WorkflowData json.RawMessage `json:"workflow_data"`
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := workflow.ParseGraph(req.WorkflowData); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wf := &store.Workflow{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Graph:       req.WorkflowData,
		IsActive:    true,
	}
	if err := s.store.SaveWorkflow(r.Context(), wf); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.store.ListWorkflows(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, workflows)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.store.GetWorkflow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteWorkflow(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type executeRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.store.GetWorkflow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	graph, err := workflow.ParseGraph(wf.Graph)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result, err := s.executor.Execute(r.Context(), workflow.Request{
		Graph:       graph,
		Query:       req.Query,
		DocumentIDs: wf.DocumentIDs,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLinkDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.store.LinkDocument(r.Context(), vars["id"], vars["docID"]); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlinkDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.store.UnlinkDocument(r.Context(), vars["id"], vars["docID"]); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	docID := uuid.New().String()
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	path := filepath.Join(s.uploadDir, docID+filepath.Ext(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	size, err := io.Copy(dst, file)
	dst.Close()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	doc := &store.Document{
		ID:               docID,
		Filename:         filepath.Base(path),
		OriginalFilename: header.Filename,
		FilePath:         path,
		FileSize:         size,
		ContentType:      header.Header.Get("Content-Type"),
		Status:           store.StatusPending,
	}
	if err := s.store.SaveDocument(r.Context(), doc); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Extraction and embedding run in the background; the record's status
	// tracks progress.
	go s.processDocument(doc.ID)

	writeJSON(w, http.StatusAccepted, doc)
}

// processDocument extracts text and ingests it into the vector index. A
// failed index write after successful extraction leaves the document partial:
// the text is kept, only embeddings are missing.
func (s *Server) processDocument(docID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		log.Printf("server: process document %s: %v", docID, err)
		return
	}

	doc.Status = store.StatusProcessing
	_ = s.store.SaveDocument(ctx, doc)

	text, err := ingestion.ExtractText(doc.FilePath)
	if err != nil {
		log.Printf("server: extract %s: %v", docID, err)
		doc.Status = store.StatusFailed
		_ = s.store.SaveDocument(ctx, doc)
		return
	}
	doc.ExtractedText = text
	_ = s.store.SaveDocument(ctx, doc)

	err = s.retrieval.Ingest(ctx, retrieval.IngestRequest{
		DocumentID: doc.ID,
		Filename:   doc.OriginalFilename,
		Text:       text,
	})
	switch {
	case err == nil:
		doc.Status = store.StatusCompleted
	case errors.Is(err, retrieval.ErrIndexWrite):
		log.Printf("server: index write for %s: %v", docID, err)
		doc.Status = store.StatusPartial
	default:
		log.Printf("server: ingest %s: %v", docID, err)
		doc.Status = store.StatusFailed
	}
	_ = s.store.SaveDocument(ctx, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleReprocessDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	go s.processDocument(doc.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reprocessing"})
}

type createSessionRequest struct {
	WorkflowID  string `json:"workflow_id"`
	SessionName string `json:"session_name"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.store.GetWorkflow(r.Context(), req.WorkflowID); err != nil {
		writeStoreError(w, err)
		return
	}
	if req.SessionName == "" {
		req.SessionName = "New Chat"
	}
	session := &store.ChatSession{
		ID:         uuid.New().String(),
		WorkflowID: req.WorkflowID,
		Name:       req.SessionName,
	}
	if err := s.chat.CreateSession(r.Context(), session); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type postMessageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	session, err := s.chat.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wf, err := s.store.GetWorkflow(r.Context(), session.WorkflowID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	graph, err := workflow.ParseGraph(wf.Graph)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	_ = s.chat.AppendMessage(r.Context(), &store.ChatMessage{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		Message:     req.Message,
		MessageType: "user",
	})

	result, err := s.executor.Execute(r.Context(), workflow.Request{
		Graph:       graph,
		Query:       req.Message,
		DocumentIDs: wf.DocumentIDs,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	reply := &store.ChatMessage{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		Message:     req.Message,
		Response:    result.Response,
		MessageType: "assistant",
		ExecutionData: map[string]any{
			"run_id":         result.RunID,
			"execution_time": result.ExecutionTime,
			"execution_log":  result.ExecutionLog,
		},
	}
	if err := s.chat.AppendMessage(r.Context(), reply); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chat.ListMessages(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
