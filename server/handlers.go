package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/pkg/pipeline"
)

type documentResponse struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Pages     int       `json:"pages"`
	Sections  int       `json:"sections"`
	Chunks    int       `json:"chunks"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

func newDocumentResponse(h *pipeline.Handle) documentResponse {
	resp := documentResponse{
		ID:        h.ID,
		Source:    h.Source,
		Pages:     h.Pages,
		Sections:  len(h.Sections),
		CreatedAt: h.CreatedAt,
	}
	if h.Index != nil {
		resp.Chunks = h.Index.Len()
		resp.Model = h.Index.Model()
	}
	return resp
}

type indexRequest struct {
	URL string `json:"url"`
}

type queryRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
}

// queryResponse carries the evidence even when generation failed.
type queryResponse struct {
	*models.Result
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type sectionResponse struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// handleIndex accepts either a multipart upload in the "file" field or a JSON
// body naming a remote document.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var (
		source string
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		source, err = s.saveUpload(w, r)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer os.RemoveAll(filepath.Dir(source))
	} else {
		var req indexRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			jsonError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if !isRemote(req.URL) {
			jsonError(w, "url must be an http(s) address", http.StatusBadRequest)
			return
		}
		source = req.URL
	}

	h, err := s.pipeline.IndexDocument(r.Context(), source)
	if err != nil {
		s.log.Warn("index failed", "source", source, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDocumentResponse(h))
}

// saveUpload writes the uploaded file into a fresh temp directory and returns
// its path. The caller removes the directory.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", fmt.Errorf("invalid upload: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", errors.New("missing file field")
	}
	defer file.Close()

	dir, err := os.MkdirTemp("", "paperqa-upload-")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, sanitizeFilename(header.Filename))
	out, err := os.Create(path)
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return path, nil
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	handles := s.pipeline.Library().List()
	docs := make([]documentResponse, 0, len(handles))
	for _, h := range handles {
		docs = append(docs, newDocumentResponse(h))
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	if !s.pipeline.Library().Evict(chi.URLParam(r, "docID")) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	out := make([]sectionResponse, 0, len(h.Sections))
	for _, sec := range h.Sections {
		out = append(out, sectionResponse{Heading: sec.Heading, Body: sec.Body})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.Overview(h))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req queryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.QueryTimeout)
	defer cancel()

	result, err := s.pipeline.Query(ctx, h, req.Question, req.K)
	if err != nil {
		if result == nil {
			writeError(w, err)
			return
		}
		body := newErrorBody(err)
		writeJSON(w, statusFor(err), queryResponse{
			Result:    result,
			Error:     body.Error,
			Kind:      body.Kind,
			Retryable: body.Retryable,
		})
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Result: result})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*pipeline.Handle, bool) {
	h, ok := s.pipeline.Library().Get(chi.URLParam(r, "docID"))
	if !ok {
		jsonError(w, "document not found", http.StatusNotFound)
		return nil, false
	}
	return h, true
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		name = "upload"
	}
	return name
}

func isRemote(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
