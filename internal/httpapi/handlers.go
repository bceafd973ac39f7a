package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"ragledger/internal/health"
	"ragledger/internal/helper"
	"ragledger/internal/models"
)

const multipartMemory = 32 << 20

type errorResponse struct {
	Detail string `json:"detail"`
}

type uploadResponse struct {
	Message  string `json:"message"`
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

type ingestRequest struct {
	FileID string `json:"file_id"`
}

type ingestResponse struct {
	Message         string `json:"message"`
	ChunksProcessed int    `json:"chunks_processed"`
}

type queryRequest struct {
	Query  string        `json:"query"`
	TopK   *int          `json:"top_k"`
	Filter models.Filter `json:"filter,omitempty"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

type rootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// statusFor maps an operation error to a response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case models.IsInputError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{Message: "RAGLedger API", Version: models.APIVersion})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{}
	if s.svc.Health != nil {
		services = s.svc.Health.Check(r.Context())
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: health.Healthy, Version: models.APIVersion, Services: services})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		if r.ContentLength > s.cfg.MaxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "Filename is required")
		return
	}

	body, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	res, err := s.svc.Uploader.Upload(r.Context(), header.Filename, body)
	if err != nil {
		if errors.Is(err, models.ErrUnsupportedFileType) {
			writeError(w, http.StatusBadRequest, "Only PDF and CSV files are supported")
			return
		}
		hlog.FromRequest(r).Error().Err(err).Str("filename", header.Filename).Msg("Error uploading file")
		writeError(w, http.StatusInternalServerError, "Upload failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:  "File uploaded successfully",
		FileID:   res.FileID,
		Filename: res.Filename,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !helper.IsUUID(req.FileID) {
		writeError(w, http.StatusBadRequest, models.ErrInvalidFileID.Error())
		return
	}

	n, err := s.svc.Ingester.Ingest(r.Context(), req.FileID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("file_id", req.FileID).Msg("Error ingesting document")
		writeError(w, statusFor(err), "Ingestion failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{Message: "Document ingested successfully", ChunksProcessed: n})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	topK := models.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	ans, err := s.svc.Querier.Query(r.Context(), req.Query, topK, req.Filter)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			writeError(w, status, err.Error())
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("Error querying documents")
		writeError(w, status, "Query failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ans)
}
