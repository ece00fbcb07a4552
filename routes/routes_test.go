package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pdf-chat-service/internal/queue"
	"pdf-chat-service/models"
	"pdf-chat-service/services"
	"pdf-chat-service/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDocuments struct {
	uploadErr   error
	validateErr error
	listErr     error
	deleteErr   error
	docs        []models.Document
	uploaded    []string
	deleted     []string
}

func (f *fakeDocuments) Validate(filename string, data []byte) error { return f.validateErr }

func (f *fakeDocuments) NewDocumentID() string { return "doc-async" }

func (f *fakeDocuments) Upload(ctx context.Context, filename string, data []byte) (*models.UploadResult, error) {
	f.uploaded = append(f.uploaded, filename)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &models.UploadResult{DocumentID: "doc-1", Filename: filename, ChunkCount: 4}, nil
}

func (f *fakeDocuments) ListDocuments(ctx context.Context) ([]models.Document, error) {
	return f.docs, f.listErr
}

func (f *fakeDocuments) DeleteDocument(ctx context.Context, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return f.deleteErr
}

type fakeEnqueuer struct {
	err      error
	payloads []queue.IngestPayload
}

func (f *fakeEnqueuer) EnqueueIngest(ctx context.Context, p queue.IngestPayload) (string, error) {
	f.payloads = append(f.payloads, p)
	return p.DocumentID, f.err
}

type fakeChat struct {
	resp *models.ChatResponse
	err  error
	req  models.ChatRequest
}

func (f *fakeChat) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	f.req = req
	return f.resp, f.err
}

func newTestRouter(docs *fakeDocuments, enqueuer queue.Enqueuer, chat *fakeChat) *gin.Engine {
	return NewRouter(RouterOptions{
		CORSOrigins: []string{"*"},
		MaxFileSize: 1024,
		PDF:         docs,
		Chat:        chat,
		Enqueuer:    enqueuer,
	})
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postFile(t *testing.T, router *gin.Engine, path, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var resp utils.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeDocuments{}, nil, &fakeChat{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","message":"Server is running"}`, w.Body.String())
}

func TestUpload_Success(t *testing.T) {
	docs := &fakeDocuments{}
	router := newTestRouter(docs, nil, &fakeChat{})

	w := postFile(t, router, "/api/pdf/upload", "file", "report.pdf", []byte("%PDF-1.4 body"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, "report.pdf", resp.Filename)
	assert.Equal(t, 4, resp.ChunkCount)
	assert.Equal(t, "PDF uploaded and processed successfully!", resp.Message)
	assert.Equal(t, []string{"report.pdf"}, docs.uploaded)
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		content   []byte
		uploadErr error
		wantCode  int
		wantError string
	}{
		{"missing file", "document", []byte("%PDF"), nil, http.StatusBadRequest, "bad_request"},
		{"oversized file", "file", bytes.Repeat([]byte("x"), 2048), nil, http.StatusRequestEntityTooLarge, "request_too_large"},
		{"not a pdf", "file", []byte("hello"), fmt.Errorf("%w: missing PDF header", services.ErrInvalidInput), http.StatusBadRequest, "bad_request"},
		{"too large per service", "file", []byte("%PDF"), services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "request_too_large"},
		{"embedding failure", "file", []byte("%PDF"), fmt.Errorf("%w: %w", services.ErrEmbedding, errors.New("503")), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeDocuments{uploadErr: tt.uploadErr}, nil, &fakeChat{})
			w := postFile(t, router, "/api/pdf/upload", tt.field, "a.pdf", tt.content)

			require.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w).ErrorCode)
		})
	}
}

func TestUpload_InternalErrorHidesCause(t *testing.T) {
	router := newTestRouter(&fakeDocuments{uploadErr: fmt.Errorf("%w: %w", services.ErrVectorStore, errors.New("mongo: secret-host unreachable"))}, nil, &fakeChat{})
	w := postFile(t, router, "/api/pdf/upload", "file", "a.pdf", []byte("%PDF"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-host")
	assert.Equal(t, "Failed to upload and process PDF", decodeError(t, w).Message)
}

func TestUploadAsync(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		enqueuer := &fakeEnqueuer{}
		router := newTestRouter(&fakeDocuments{}, enqueuer, &fakeChat{})
		w := postFile(t, router, "/api/pdf/upload/async", "file", "a.pdf", []byte("%PDF-1.7"))

		require.Equal(t, http.StatusAccepted, w.Code)
		var resp models.AsyncUploadResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "doc-async", resp.DocumentID)
		assert.Equal(t, "doc-async", resp.TaskID)
		assert.Equal(t, models.StatusQueued, resp.Status)
		require.Len(t, enqueuer.payloads, 1)
		assert.Equal(t, []byte("%PDF-1.7"), enqueuer.payloads[0].Data)
		assert.Equal(t, w.Header().Get("X-Request-ID"), enqueuer.payloads[0].RequestID)
	})

	t.Run("not configured", func(t *testing.T) {
		router := newTestRouter(&fakeDocuments{}, nil, &fakeChat{})
		w := postFile(t, router, "/api/pdf/upload/async", "file", "a.pdf", []byte("%PDF"))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("rejected before queueing", func(t *testing.T) {
		enqueuer := &fakeEnqueuer{}
		docs := &fakeDocuments{validateErr: fmt.Errorf("%w: bad name", services.ErrInvalidInput)}
		router := newTestRouter(docs, enqueuer, &fakeChat{})
		w := postFile(t, router, "/api/pdf/upload/async", "file", "a.exe", []byte("MZ"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, enqueuer.payloads)
	})

	t.Run("queue down", func(t *testing.T) {
		router := newTestRouter(&fakeDocuments{}, &fakeEnqueuer{err: errors.New("redis down")}, &fakeChat{})
		w := postFile(t, router, "/api/pdf/upload/async", "file", "a.pdf", []byte("%PDF"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestListDocuments(t *testing.T) {
	uploaded := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	docs := &fakeDocuments{docs: []models.Document{{ID: "doc-1", Filename: "a.pdf", UploadedAt: uploaded}}}
	router := newTestRouter(docs, nil, &fakeChat{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pdf/documents", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Documents []models.Document `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "doc-1", resp.Documents[0].ID)
	assert.True(t, uploaded.Equal(resp.Documents[0].UploadedAt))

	router = newTestRouter(&fakeDocuments{listErr: services.ErrVectorStore}, nil, &fakeChat{})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pdf/documents", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDeleteDocument(t *testing.T) {
	docs := &fakeDocuments{}
	router := newTestRouter(docs, nil, &fakeChat{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/pdf/doc-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Document deleted successfully"}`, w.Body.String())
	assert.Equal(t, []string{"doc-1"}, docs.deleted)

	router = newTestRouter(&fakeDocuments{deleteErr: services.ErrVectorStore}, nil, &fakeChat{})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/pdf/doc-1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func postChat(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChat(t *testing.T) {
	chat := &fakeChat{resp: &models.ChatResponse{Response: "42", Sources: []string{"chunk a", "chunk b"}}}
	router := newTestRouter(&fakeDocuments{}, nil, chat)

	w := postChat(router, `{"message":"what?","documentId":"doc-1","conversationHistory":[{"role":"user","content":"hi","timestamp":"2024-01-01T00:00:00Z"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"42","sources":["chunk a","chunk b"]}`, w.Body.String())
	assert.Equal(t, "doc-1", chat.req.DocumentID)
	require.Len(t, chat.req.ConversationHistory, 1)
	assert.Equal(t, "hi", chat.req.ConversationHistory[0].Content)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"missing document", `{"message":"what?"}`, nil, http.StatusBadRequest},
		{"malformed json", `{"message":`, nil, http.StatusBadRequest},
		{"blank message", `{"message":"  ","documentId":"doc-1"}`, fmt.Errorf("%w: message is required", services.ErrInvalidInput), http.StatusBadRequest},
		{"generation failure", `{"message":"q","documentId":"doc-1"}`, fmt.Errorf("%w: %w", services.ErrChatGeneration, errors.New("timeout")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeDocuments{}, nil, &fakeChat{err: tt.err})
			w := postChat(router, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
