package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-notes-platform/internal/config"
	"study-notes-platform/models"
	"study-notes-platform/utils"
)

type fakeService struct {
	ingested   []byte
	ingestName string
	ingestErr  error

	generateResp *models.GenerateResponse
	generateErr  error
	appendMode   bool
	generateReq  models.GenerateRequest

	fragments []string
	streamErr error

	jobs map[string]*models.Job
}

func (f *fakeService) Ingest(_ context.Context, data []byte, fileName, _ string) (*models.IngestResponse, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	f.ingested = data
	f.ingestName = fileName
	return &models.IngestResponse{JobID: "job-1", DocumentID: "doc-1", Status: "waiting"}, nil
}

func (f *fakeService) IngestHTML(ctx context.Context, req models.HTMLIngestRequest) (*models.IngestResponse, error) {
	if req.HTML == "" && req.URL == "" {
		return nil, utils.ErrInvalidRequest
	}
	return f.Ingest(ctx, []byte(req.HTML), "pasted.html", "text/html")
}

func (f *fakeService) JobStatus(_ context.Context, id string) (*models.Job, error) {
	if job, ok := f.jobs[id]; ok {
		return job, nil
	}
	return nil, utils.ErrJobNotFound
}

func (f *fakeService) GetDocument(_ context.Context, id string) (*models.Document, error) {
	if id != "doc-1" {
		return nil, utils.ErrDocumentNotFound
	}
	return &models.Document{ID: id, FileName: "bio.pdf"}, nil
}

func (f *fakeService) ListDocuments(_ context.Context, limit int) ([]models.DocumentSummary, error) {
	return make([]models.DocumentSummary, min(limit, 2)), nil
}

func (f *fakeService) DeleteDocument(ctx context.Context, id string) error {
	_, err := f.GetDocument(ctx, id)
	return err
}

func (f *fakeService) ResolveScope(_ context.Context, _ string, scope models.Scope) (string, error) {
	if scope.Kind == "chapters" {
		return "", utils.ErrInvalidScope
	}
	return "scoped", nil
}

func (f *fakeService) Generate(_ context.Context, _ string, _ models.ContentType, req models.GenerateRequest, appendMode bool) (*models.GenerateResponse, error) {
	f.appendMode = appendMode
	f.generateReq = req
	return f.generateResp, f.generateErr
}

func (f *fakeService) StoredContent(_ context.Context, id string, _ models.ContentType) (json.RawMessage, error) {
	if id != "doc-1" {
		return nil, utils.ErrDocumentNotFound
	}
	return json.RawMessage(`{"summary":"stored"}`), nil
}

func (f *fakeService) Chat(_ context.Context, id string, req models.ChatRequest) (*models.ChatResponse, error) {
	return &models.ChatResponse{DocumentID: id, Answer: "answer to " + req.Query}, nil
}

func (f *fakeService) ChatStream(_ context.Context, id string, _ models.ChatRequest) (iter.Seq2[string, error], []models.Source, error) {
	if id != "doc-1" {
		return nil, nil, utils.ErrDocumentNotFound
	}
	seq := func(yield func(string, error) bool) {
		for _, frag := range f.fragments {
			if !yield(frag, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield("", f.streamErr)
		}
	}
	return seq, []models.Source{{PageIndex: 0, Score: 0.9}}, nil
}

func (f *fakeService) Merge(oldRaw, newRaw json.RawMessage, _ models.ContentType) (any, error) {
	if !json.Valid(oldRaw) {
		return nil, utils.ErrInvalidRequest
	}
	return []any{string(oldRaw), string(newRaw)}, nil
}

func newRouter(svc DocumentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupDocumentRoutes(r, &config.Config{MaxFileSize: 1 << 10}, svc)
	return r
}

func do(r http.Handler, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(s string) *bytes.Buffer { return bytes.NewBufferString(s) }

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func multipartFile(t *testing.T, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	body, ct := multipartFile(t, "notes.txt", []byte("hello"))
	w := do(r, http.MethodPost, "/documents", body, ct)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "job-1", decode(t, w)["jobId"])
	assert.Equal(t, []byte("hello"), svc.ingested)
	assert.Equal(t, "notes.txt", svc.ingestName)

	body, ct = multipartFile(t, "big.txt", bytes.Repeat([]byte("x"), 4<<10))
	w = do(r, http.MethodPost, "/documents", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = do(r, http.MethodPost, "/documents", jsonBody(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.ingestErr = utils.ErrUnsupportedFileType
	body, ct = multipartFile(t, "old.doc", []byte("x"))
	w = do(r, http.MethodPost, "/documents", body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "unsupported_file_type", decode(t, w)["error_code"])
}

func TestHTMLIngest(t *testing.T) {
	r := newRouter(&fakeService{})
	w := do(r, http.MethodPost, "/documents/html", jsonBody(`{"html":"<p>x</p>"}`), "application/json")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(r, http.MethodPost, "/documents/html", jsonBody(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode(t, w)["error_code"])
}

func TestJobStatus(t *testing.T) {
	svc := &fakeService{jobs: map[string]*models.Job{
		"job-1": {ID: "job-1", State: models.JobFailed, Progress: 50, FailureReason: "extraction failed: pdf"},
	}}
	r := newRouter(svc)

	w := do(r, http.MethodGet, "/jobs/job-1", jsonBody(""), "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "failed", got["state"])
	assert.Equal(t, float64(50), got["progress"])
	assert.Equal(t, "extraction failed: pdf", got["failureReason"])

	w = do(r, http.MethodGet, "/jobs/nope", jsonBody(""), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentReads(t *testing.T) {
	r := newRouter(&fakeService{})

	w := do(r, http.MethodGet, "/documents/doc-1", jsonBody(""), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "doc-1", decode(t, w)["documentId"])

	w = do(r, http.MethodGet, "/documents?limit=500", jsonBody(""), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(defaultListLimit), decode(t, w)["limit"])

	w = do(r, http.MethodDelete, "/documents/doc-1", jsonBody(""), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodDelete, "/documents/doc-2", jsonBody(""), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/documents/doc-1/content/Summary", jsonBody(""), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"summary": "stored"}, decode(t, w)["data"])
}

func TestResolveScopeRoute(t *testing.T) {
	r := newRouter(&fakeService{})
	w := do(r, http.MethodPost, "/documents/doc-1/scope", jsonBody(`{"scope":{"type":"pages","pages":[1]}}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scoped", decode(t, w)["text"])

	w = do(r, http.MethodPost, "/documents/doc-1/scope", jsonBody(`{"scope":{"type":"chapters"}}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_scope", decode(t, w)["error_code"])
}

func TestGenerateRoute(t *testing.T) {
	svc := &fakeService{generateResp: &models.GenerateResponse{DocumentID: "doc-1", ContentType: models.ContentQuiz, Data: map[string]any{"questions": []any{}}}}
	r := newRouter(svc)

	w := do(r, http.MethodPost, "/documents/doc-1/generate/quiz?mode=append", jsonBody(`{"settings":{"questions":3}}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.appendMode)
	assert.JSONEq(t, `{"questions":3}`, string(svc.generateReq.Settings))

	w = do(r, http.MethodPost, "/documents/doc-1/generate/quiz", jsonBody(""), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.appendMode)

	w = do(r, http.MethodPost, "/documents/doc-1/generate/poem", jsonBody(""), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.generateResp = &models.GenerateResponse{Raw: "not json"}
	svc.generateErr = utils.ErrGenerationParseFailed
	w = do(r, http.MethodPost, "/documents/doc-1/generate/quiz", jsonBody(""), "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	got := decode(t, w)
	assert.Equal(t, "could not understand AI response", got["message"])
	assert.Equal(t, map[string]any{"raw": "not json"}, got["details"])

	svc.generateResp = nil
	svc.generateErr = errors.Join(utils.ErrGenerationUpstreamFailed, errors.New("quota"))
	w = do(r, http.MethodPost, "/documents/doc-1/generate/quiz", jsonBody(""), "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestChatRoute(t *testing.T) {
	r := newRouter(&fakeService{})
	w := do(r, http.MethodPost, "/documents/doc-1/chat", jsonBody(`{"query":"why?"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "answer to why?", decode(t, w)["answer"])

	w = do(r, http.MethodPost, "/documents/doc-1/chat", jsonBody(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatStreamEvents(t *testing.T) {
	svc := &fakeService{fragments: []string{"Plants ", "use light."}}
	r := newRouter(svc)

	w := do(r, http.MethodGet, "/documents/doc-1/chat/stream?q=light", jsonBody(""), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"), w.Header().Get("Content-Type"))
	body := w.Body.String()
	first := strings.Index(body, `{"text":"Plants "}`)
	second := strings.Index(body, `{"text":"use light."}`)
	done := strings.Index(body, "event:done")
	require.True(t, first >= 0 && second > first && done > second, body)
	assert.Equal(t, 2, strings.Count(body, "event:message"))
	assert.NotContains(t, body, "event:error")

	svc.streamErr = utils.ErrGenerationUpstreamFailed
	w = do(r, http.MethodGet, "/documents/doc-1/chat/stream?q=light", jsonBody(""), "")
	body = w.Body.String()
	assert.Contains(t, body, "event:error")
	assert.NotContains(t, body, "event:done")

	w = do(r, http.MethodGet, "/documents/doc-2/chat/stream?q=light", jsonBody(""), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/documents/doc-1/chat/stream", jsonBody(""), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMergeRoute(t *testing.T) {
	r := newRouter(&fakeService{})
	w := do(r, http.MethodPost, "/merge/flashcards", jsonBody(`{"old":[1],"new":[2]}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"[1]", "[2]"}, decode(t, w)["data"])

	w = do(r, http.MethodPost, "/merge/unknown", jsonBody(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
