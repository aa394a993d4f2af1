// Package server exposes the upload engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-chunkstore/coordinator"
	"github.com/bitrise-io/go-chunkstore/identity"
	"github.com/bitrise-io/go-chunkstore/resume"
	"github.com/bitrise-io/go-chunkstore/uploaderr"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// formOverhead is allowed on top of the chunk size for the multipart envelope and text fields.
	formOverhead = 64 * 1024
	// multipart parts above this size are spooled to disk by the form parser.
	maxFormMemory = 8 * 1024 * 1024

	fieldHash  = "md5"
	fieldExt   = "ext"
	fieldIndex = "index"
	fieldTotal = "total"
	fieldFile  = "file"
)

// Receiver accepts chunk and whole-file uploads, and drops unfinished ones.
type Receiver interface {
	ReceiveChunk(ctx context.Context, id identity.Identity, index, total int, payload io.Reader) (coordinator.Result, error)
	ReceiveWhole(ctx context.Context, id identity.Identity, payload io.Reader) (coordinator.Result, error)
	Abandon(ctx context.Context, id identity.Identity) error
}

// Checker reports upload progress.
type Checker interface {
	Check(ctx context.Context, id identity.Identity) (resume.Status, error)
}

// Artifacts serves assembled files.
type Artifacts interface {
	OpenArtifact(ctx context.Context, id identity.Identity) (io.ReadCloser, int64, error)
}

// CheckResponse is the body of POST /checkFile. Exactly one field is set.
type CheckResponse struct {
	URL          string `json:"url,omitempty"`
	UploadedList []int  `json:"uploadedList,omitempty"`
}

type identityRequest struct {
	MD5 string `json:"md5"`
	Ext string `json:"ext"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server ...
type Server struct {
	receiver     Receiver
	checker      Checker
	artifacts    Artifacts
	maxChunkSize int64
	logger       log.Logger
}

// New ...
func New(receiver Receiver, checker Checker, artifacts Artifacts, maxChunkSize int64, logger log.Logger) *Server {
	return &Server{
		receiver:     receiver,
		checker:      checker,
		artifacts:    artifacts,
		maxChunkSize: maxChunkSize,
		logger:       logger,
	}
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/chunkUpload", s.handleChunkUpload)
	r.Post("/checkFile", s.handleCheckFile)
	r.Post("/upload", s.handleUpload)
	r.Post("/abandon", s.handleAbandon)
	r.With(gzip).Get("/files/*", s.handleFile)
	r.With(gzip).Head("/files/*", s.handleFile)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func (s *Server) handleChunkUpload(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer s.cleanup(r, form)

	id, err := identity.Derive(formValue(form, fieldHash), formValue(form, fieldExt))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := intField(form, fieldTotal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	index, err := intField(form, fieldIndex)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload, err := s.openFile(form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer payload.Close()

	result, err := s.receiver.ReceiveChunk(r.Context(), id, index, total, payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeText(w, result.Artifact)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer s.cleanup(r, form)

	id, err := identity.Derive(formValue(form, fieldHash), formValue(form, fieldExt))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload, err := s.openFile(form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer payload.Close()

	result, err := s.receiver.ReceiveWhole(r.Context(), id, payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeText(w, result.Artifact)
}

func (s *Server) handleCheckFile(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIdentity(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status, err := s.checker.Check(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if status.Complete {
		writeJSON(w, http.StatusOK, CheckResponse{URL: status.Artifact})
		return
	}
	// uploadedList is always present for an unfinished upload, even when empty.
	writeJSON(w, http.StatusOK, struct {
		UploadedList []int `json:"uploadedList"`
	}{UploadedList: status.Received})
}

// handleAbandon drops the stored chunks and the recorded total of an unfinished upload, so
// the client can restart it with a different chunk count. An assembled artifact is kept.
func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIdentity(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.receiver.Abandon(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if strings.Contains(name, "/") {
		s.writeError(w, r, uploaderr.ErrNotFound)
		return
	}
	id, err := identity.ParseArtifactName(name)
	if err != nil {
		s.writeError(w, r, uploaderr.ErrNotFound)
		return
	}

	content, size, err := s.artifacts.OpenArtifact(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() {
		if err := content.Close(); err != nil {
			s.logger.Warnf("Failed to close artifact %s: %s", name, err)
		}
	}()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	// local artifacts are seekable, which enables range requests
	if seeker, ok := content.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, seeker)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, content); err != nil {
		s.logger.Warnf("[%s] Failed to send artifact %s: %s", middleware.GetReqID(r.Context()), name, err)
	}
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxChunkSize+formOverhead)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, errPayloadTooLarge
		}
		return nil, uploaderr.NewValidationError("form", "%s", err)
	}
	return r.MultipartForm, nil
}

func (s *Server) openFile(form *multipart.Form) (multipart.File, error) {
	files := form.File[fieldFile]
	if len(files) == 0 {
		return nil, uploaderr.NewValidationError(fieldFile, "is required")
	}
	header := files[0]
	if header.Size > s.maxChunkSize {
		return nil, errPayloadTooLarge
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open form file: %w", err)
	}
	return f, nil
}

func (s *Server) cleanup(r *http.Request, form *multipart.Form) {
	if err := form.RemoveAll(); err != nil {
		s.logger.Warnf("[%s] Failed to remove form files: %s", middleware.GetReqID(r.Context()), err)
	}
}

// decodeIdentity reads md5 and ext from a JSON, multipart or urlencoded body.
func decodeIdentity(w http.ResponseWriter, r *http.Request) (identity.Identity, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req identityRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, formOverhead)).Decode(&req); err != nil {
			return identity.Identity{}, uploaderr.NewValidationError("body", "%s", err)
		}
		return identity.Derive(req.MD5, req.Ext)
	}

	r.Body = http.MaxBytesReader(w, r.Body, formOverhead)
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(formOverhead); err != nil {
			return identity.Identity{}, uploaderr.NewValidationError("form", "%s", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return identity.Identity{}, uploaderr.NewValidationError("form", "%s", err)
	}
	return identity.Derive(r.FormValue(fieldHash), r.FormValue(fieldExt))
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func intField(form *multipart.Form, key string) (int, error) {
	raw := strings.TrimSpace(formValue(form, key))
	if raw == "" {
		return 0, uploaderr.NewValidationError(key, "is required")
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, uploaderr.NewValidationError(key, "%q is not an integer", raw)
	}
	return value, nil
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
