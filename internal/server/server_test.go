package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstack-ai/flowstack/internal/config"
	"github.com/flowstack-ai/flowstack/internal/providers"
	"github.com/flowstack-ai/flowstack/internal/retrieval"
	"github.com/flowstack-ai/flowstack/internal/store"
	"github.com/flowstack-ai/flowstack/internal/vectorstore"
	"github.com/flowstack-ai/flowstack/internal/workflow"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, req providers.GenerationRequest) (*providers.GenerationResult, error) {
	return &providers.GenerationResult{Text: "echo: " + req.Prompt, Model: req.Model}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()

	cfg := config.RetrievalConfig{
		ChunkSize:           1000,
		ChunkOverlap:        200,
		EmbedBatchSize:      10,
		SearchLimit:         5,
		SimilarityThreshold: 0.7,
		SearchTimeout:       time.Second,
		SearchConcurrency:   2,
	}
	rs := retrieval.New(stubEmbedder{}, vectorstore.NewMemory(), cfg)

	records := store.NewMemory()
	executor := workflow.NewExecutor(workflow.Dependencies{
		Searcher:     rs,
		Generator:    echoGenerator{},
		Retrieval:    cfg,
		DefaultModel: "test-model",
	})

	srv := httptest.NewServer(New(records, records, rs, executor, t.TempDir()).Handler())
	t.Cleanup(srv.Close)
	return srv, records
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

const passthroughGraph = `{
	"nodes": [
		{"id": "q", "type": "user-query", "data": {"config": {}}},
		{"id": "out", "type": "output", "data": {"config": {}}}
	],
	"edges": [{"source": "q", "target": "out"}]
}`

func createWorkflow(t *testing.T, baseURL string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/api/workflows", map[string]any{
		"name":          "test workflow",
		"workflow_data": json.RawMessage(passthroughGraph),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	wf := decode[store.Workflow](t, resp)
	require.NotEmpty(t, wf.ID)
	return wf.ID
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestWorkflowCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createWorkflow(t, srv.URL)

	resp, err := http.Get(srv.URL + "/api/workflows/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	wf := decode[store.Workflow](t, resp)
	assert.Equal(t, "test workflow", wf.Name)
	assert.True(t, wf.IsActive)

	resp, err = http.Get(srv.URL + "/api/workflows")
	require.NoError(t, err)
	list := decode[[]store.Workflow](t, resp)
	require.Len(t, list, 1)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/workflows/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/workflows/" + id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateWorkflowValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	testCases := []struct {
		name string
		body map[string]any
	}{
		{"missing_name", map[string]any{"workflow_data": json.RawMessage(passthroughGraph)}},
		{"empty_graph", map[string]any{"name": "x", "workflow_data": json.RawMessage(`{"nodes": []}`)}},
		{"dangling_edge", map[string]any{"name": "x", "workflow_data": json.RawMessage(`{
			"nodes": [{"id": "a", "type": "user-query", "data": {"config": {}}}],
			"edges": [{"source": "a", "target": "ghost"}]
		}`)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/workflows", tc.body)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestExecuteWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createWorkflow(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/workflows/"+id+"/execute", map[string]string{"query": "ping"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[workflow.Result](t, resp)
	assert.Equal(t, "ping", result.Response)
	assert.NotEmpty(t, result.RunID)

	components := make([]string, 0, len(result.ExecutionLog))
	for _, step := range result.ExecutionLog {
		components = append(components, step.Component)
	}
	if diff := cmp.Diff([]string{"user-query", "output"}, components); diff != "" {
		t.Errorf("execution log components mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteWorkflowNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/workflows/nope/execute", map[string]string{"query": "x"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func uploadDocument(t *testing.T, baseURL, filename, content string) store.Document {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(baseURL+"/api/documents", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	return decode[store.Document](t, resp)
}

func TestDocumentUploadAndProcessing(t *testing.T) {
	srv, records := newTestServer(t)

	doc := uploadDocument(t, srv.URL, "notes.txt", "flowstack processes documents into chunks.")
	assert.Equal(t, "notes.txt", doc.OriginalFilename)

	require.Eventually(t, func() bool {
		got, err := records.GetDocument(context.Background(), doc.ID)
		return err == nil && got.Status == store.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond, "document never reached completed status")
}

func TestDocumentUploadEmptyFails(t *testing.T) {
	srv, records := newTestServer(t)

	doc := uploadDocument(t, srv.URL, "empty.txt", "   ")
	require.Eventually(t, func() bool {
		got, err := records.GetDocument(context.Background(), doc.ID)
		return err == nil && got.Status == store.StatusFailed
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDocumentLinking(t *testing.T) {
	srv, _ := newTestServer(t)
	wfID := createWorkflow(t, srv.URL)
	doc := uploadDocument(t, srv.URL, "a.txt", "content")

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/workflows/%s/documents/%s", srv.URL, wfID, doc.ID), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err := http.Get(srv.URL + "/api/workflows/" + wfID)
	require.NoError(t, err)
	wf := decode[store.Workflow](t, got)
	assert.Equal(t, []string{doc.ID}, wf.DocumentIDs)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/workflows/%s/documents/%s", srv.URL, wfID, doc.ID), nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestChatFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	wfID := createWorkflow(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/chat/sessions", map[string]string{"workflow_id": wfID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decode[store.ChatSession](t, resp)
	assert.Equal(t, "New Chat", session.Name)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/chat/sessions/"+session.ID+"/messages", map[string]string{"message": "hello there"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decode[store.ChatMessage](t, resp)
	assert.Equal(t, "assistant", reply.MessageType)
	assert.Equal(t, "hello there", reply.Response)
	assert.NotEmpty(t, reply.ExecutionData["run_id"])

	listResp, err := http.Get(srv.URL + "/api/chat/sessions/" + session.ID + "/messages")
	require.NoError(t, err)
	msgs := decode[[]store.ChatMessage](t, listResp)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].MessageType)
	assert.Equal(t, "assistant", msgs[1].MessageType)
}

func TestChatSessionUnknownWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/chat/sessions", map[string]string{"workflow_id": "nope"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
