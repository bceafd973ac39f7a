package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragledger/internal/config"
	"ragledger/internal/models"
	"ragledger/internal/rag"
)

const testFileID = "3f2b8c1e-9d4a-4b6f-8e2a-1c5d7e9f0a1b"

type fakeUploader struct {
	filename string
	body     []byte
	err      error
}

func (f *fakeUploader) Upload(_ context.Context, filename string, body []byte) (*rag.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.filename, f.body = filename, body
	return &rag.UploadResult{FileID: testFileID, Filename: filename}, nil
}

type fakeIngester struct {
	n   int
	err error
}

func (f fakeIngester) Ingest(context.Context, string) (int, error) { return f.n, f.err }

type fakeQuerier struct {
	topK   int
	filter models.Filter
	err    error
	panic  bool
}

func (f *fakeQuerier) Query(_ context.Context, query string, topK int, filter models.Filter) (*models.Answer, error) {
	if f.panic {
		panic("boom")
	}
	f.topK, f.filter = topK, filter
	if f.err != nil {
		return nil, f.err
	}
	return &models.Answer{
		Answer: "The closing balance was 1,204.10.",
		Sources: []models.Source{{
			Filename:        "statement.pdf",
			Page:            mo.Some(2),
			ChunkID:         testFileID + "_3",
			SimilarityScore: 0.91,
			Content:         "Closing balance 1,204.10",
			Metadata:        models.SourceMetadata{FileID: testFileID, Type: "pdf"},
		}},
		Query: query,
	}, nil
}

type fakeHealth map[string]string

func (f fakeHealth) Check(context.Context) map[string]string { return f }

func newTestServer(svc Services) http.Handler {
	cfg := config.Default().Server
	cfg.MaxUploadBytes = 1 << 10
	return NewServer(cfg, svc, zerolog.Nop()).Handler()
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(path string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(Services{Health: fakeHealth{"openai": "healthy", "pinecone": "unhealthy", "s3": "healthy"}})

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RAGLedger API", body["message"])
	assert.Equal(t, "1.0.0", body["version"])

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]any{"openai": "healthy", "pinecone": "unhealthy", "s3": "healthy"}, body["services"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		filename   string
		content    []byte
		err        error
		wantStatus int
		wantDetail string
	}{
		{name: "pdf", field: "file", filename: "statement.pdf", content: []byte("%PDF-1.4"), wantStatus: http.StatusOK},
		{name: "missing file", wantStatus: http.StatusBadRequest, wantDetail: "File is required"},
		{
			name: "unsupported", field: "file", filename: "notes.txt", content: []byte("x"),
			err: fmt.Errorf("%w: \".txt\"", models.ErrUnsupportedFileType), wantStatus: http.StatusBadRequest,
			wantDetail: "Only PDF and CSV files are supported",
		},
		{
			name: "too large", field: "file", filename: "big.csv", content: bytes.Repeat([]byte("a"), 4<<10),
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name: "store failure", field: "file", filename: "a.csv", content: []byte("h\n1\n"),
			err: fmt.Errorf("access denied"), wantStatus: http.StatusInternalServerError, wantDetail: "Upload failed: access denied",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUploader{err: tt.err}
			h := newTestServer(Services{Uploader: up})

			rec, body := do(t, h, multipartRequest(t, tt.field, tt.filename, tt.content))
			require.Equal(t, tt.wantStatus, rec.Code, body)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "File uploaded successfully", body["message"])
				assert.Equal(t, testFileID, body["file_id"])
				assert.Equal(t, tt.filename, body["filename"])
				assert.Equal(t, tt.content, up.body)
			}
		})
	}
}

func TestIngest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		ingester   fakeIngester
		wantStatus int
		wantDetail string
	}{
		{name: "ok", body: `{"file_id":"` + testFileID + `"}`, ingester: fakeIngester{n: 7}, wantStatus: http.StatusOK},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "not a uuid", body: `{"file_id":"../../etc"}`, wantStatus: http.StatusBadRequest},
		{
			name: "unknown file", body: `{"file_id":"` + testFileID + `"}`,
			ingester: fakeIngester{err: fmt.Errorf("%w: file %s", models.ErrNotFound, testFileID)}, wantStatus: http.StatusNotFound,
		},
		{
			name: "embedding down", body: `{"file_id":"` + testFileID + `"}`,
			ingester: fakeIngester{err: fmt.Errorf("%w: rate limited", models.ErrEmbedding)}, wantStatus: http.StatusInternalServerError,
			wantDetail: "Ingestion failed: embedding error: rate limited",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(Services{Ingester: tt.ingester})
			rec, body := do(t, h, jsonRequest("/ingest", tt.body))
			require.Equal(t, tt.wantStatus, rec.Code, body)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "Document ingested successfully", body["message"])
				assert.EqualValues(t, 7, body["chunks_processed"])
			}
		})
	}
}

func TestQuery(t *testing.T) {
	q := &fakeQuerier{}
	h := newTestServer(Services{Querier: q})

	rec, body := do(t, h, jsonRequest("/query", `{"query":"What was the closing balance?"}`))
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, models.DefaultTopK, q.topK)
	assert.Equal(t, "What was the closing balance?", body["query"])

	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	src := sources[0].(map[string]any)
	assert.EqualValues(t, 2, src["page"])
	assert.InDelta(t, 0.91, src["similarity_score"], 1e-6)
	assert.Equal(t, map[string]any{"file_id": testFileID, "type": "pdf"}, src["metadata"])

	rec, _ = do(t, h, jsonRequest("/query", `{"query":"q","top_k":3,"filter":{"file_id":"`+testFileID+`"}}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, q.topK)
	assert.Equal(t, models.Filter{"file_id": testFileID}, q.filter)
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{name: "top_k", err: models.ErrInvalidTopK, wantStatus: http.StatusBadRequest, wantDetail: models.ErrInvalidTopK.Error()},
		{name: "empty", err: models.ErrInvalidQuery, wantStatus: http.StatusBadRequest, wantDetail: models.ErrInvalidQuery.Error()},
		{
			name: "filter key", err: fmt.Errorf("%w: unsupported key %q", models.ErrInvalidFilter, "owner"), wantStatus: http.StatusBadRequest,
			wantDetail: `invalid filter: unsupported key "owner"`,
		},
		{
			name: "index down", err: fmt.Errorf("%w: timeout", models.ErrIndex), wantStatus: http.StatusInternalServerError,
			wantDetail: "Query failed: index error: timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(Services{Querier: &fakeQuerier{err: tt.err}})
			rec, body := do(t, h, jsonRequest("/query", `{"query":"q","top_k":50}`))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDetail, body["detail"])
		})
	}
}

func TestPanicRecovered(t *testing.T) {
	h := newTestServer(Services{Querier: &fakeQuerier{panic: true}})
	rec, body := do(t, h, jsonRequest("/query", `{"query":"q"}`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["detail"])
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(Services{})
	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", body["detail"])
}
