package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/zombor/auditly/internal/archive"
	"github.com/zombor/auditly/internal/catalog"
	"github.com/zombor/auditly/internal/comparison"
	"github.com/zombor/auditly/internal/metadata"
	"github.com/zombor/auditly/internal/result"
	"github.com/zombor/auditly/internal/upload"
	"github.com/zombor/auditly/internal/workflow"
)

const (
	// Phone photos can be large
	maxUploadSize = 50 << 20
	maxBodySize   = 1 << 20
)

var (
	errInvalidBody  = errors.New("invalid request body")
	errFileTooLarge = errors.New("file is too large, maximum size is 50MB")
)

// returnView is what every return endpoint answers with
type returnView struct {
	ID       string                 `json:"id"`
	State    workflow.State         `json:"state"`
	Progress []workflow.Stage       `json:"progress"`
	Uploads  map[string]upload.Info `json:"uploads"`
	Result   []result.Section       `json:"result"`
}

type errorResponse struct {
	Error  string          `json:"error"`
	Errors metadata.Errors `json:"errors,omitempty"`
	Return *returnView     `json:"return,omitempty"`
}

type returnHandler func(w http.ResponseWriter, r *http.Request, id string, c *workflow.Controller)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Error: message})
}

// statusFor maps workflow, upload and comparison errors to HTTP statuses
func statusFor(err error) int {
	var verr *workflow.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, upload.ErrNoFileSelected),
		errors.Is(err, upload.ErrUnsupportedImage),
		errors.Is(err, workflow.ErrNoCategory),
		errors.Is(err, workflow.ErrItemNotInCategory),
		errors.Is(err, workflow.ErrUnknownField),
		errors.Is(err, errInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, workflow.ErrWrongStep),
		errors.Is(err, upload.ErrUploadInProgress),
		errors.Is(err, comparison.ErrOutOfOrderUpload):
		return http.StatusConflict
	case errors.Is(err, comparison.ErrUploadFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func newReturnView(id string, c *workflow.Controller) *returnView {
	state := c.State()
	view := &returnView{
		ID:       id,
		State:    state,
		Progress: workflow.Progress(state.Step),
		Uploads:  make(map[string]upload.Info),
		Result:   state.Result.Sections(),
	}
	for _, step := range []workflow.Step{workflow.StepUploadFront, workflow.StepUploadBack} {
		if info, ok := c.Upload(step); ok {
			view.Uploads[string(info.ComparisonType)] = info
		}
	}
	return view
}

// respond writes the return after an operation, or the error with the return attached
func respond(w http.ResponseWriter, id string, c *workflow.Controller, op string, err error) {
	view := newReturnView(id, c)
	if err == nil {
		writeJSON(w, http.StatusOK, view)
		return
	}

	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Return operation failed", "return_id", id, "operation", op, "error", err)
	} else {
		slog.Warn("Return operation rejected", "return_id", id, "operation", op, "error", err)
	}

	resp := errorResponse{Error: err.Error(), Return: view}
	var verr *workflow.ValidationError
	if errors.As(err, &verr) {
		resp.Errors = verr.Errors
	}
	writeJSON(w, code, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	return nil
}

// readUploadFile returns the multipart "file" field, or nil when the request carries none
func readUploadFile(w http.ResponseWriter, r *http.Request) (*upload.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errFileTooLarge
		}
		return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
	}

	f, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	return &upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// withReturn resolves the {id} path value to its controller
func (s *Server) withReturn(next returnHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		c, ok := s.sessions.get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "Return not found")
			return
		}
		next(w, r, id, c)
	}
}

// archiveCompletion records a finished return in the archive
func (s *Server) archiveCompletion(id string) workflow.CompletionHook {
	return func(c workflow.Completion) {
		record, err := s.archive.Archive(c)
		if err != nil {
			slog.Error("Failed to archive return", "return_id", id, "error", err)
			return
		}
		slog.Info("Return completed", "return_id", id, "archive_id", record.ID, "item", record.Item)
	}
}

// handleListCategories returns the categories matching the optional q parameter
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.SearchCategories(s.catalog.Categories, r.URL.Query().Get("q")))
}

// handleListItems returns the items of a category matching the optional q parameter
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items := s.catalog.Items
	if category := r.URL.Query().Get("category"); category != "" {
		items = s.catalog.ItemsIn(category)
	}
	writeJSON(w, http.StatusOK, catalog.Search(items, r.URL.Query().Get("q")))
}

// handleStartReturn creates a return session at the first step
func (s *Server) handleStartReturn(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	opts := []workflow.Option{workflow.WithUploadOptions(s.uploadOpts)}
	if s.archive != nil {
		opts = append(opts, workflow.WithCompletionHook(s.archiveCompletion(id)))
	}
	c := workflow.NewController(s.catalog, s.client, opts...)
	s.sessions.put(id, c)

	slog.Info("Return started", "return_id", id, "active_returns", s.sessions.count())
	writeJSON(w, http.StatusCreated, newReturnView(id, c))
}

func (s *Server) handleGetReturn(w http.ResponseWriter, r *http.Request, id string, c *workflow.Controller) {
	writeJSON(w, http.StatusOK, newReturnView(id, c))
}

func (s *Server) handleSelectCategory(w http.ResponseWriter, r *http.Request, id string, c *workflow.Controller) {
	var req struct {
		Category string `json:"category"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respond(w, id, c, "select_category", err)
		return
	}
	_, err := c.SelectCategory(req.Category)
	respond(w, id, c, "select_category", err)
}

func (s *Server) handleSelectItem(w http.ResponseWriter, r *http.Request, id string, c *workflow.Controller) {
	var req struct {
		Item string `json:"item"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respond(w, id, c, "select_item", err)
		return
	}
	_, err := c.SelectItem(req.Item)
	respond(w, id, c, "select_item", err)
}

// handleSelectFile renders the preview of a chosen photograph without sending it
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request, id string, c *workflow.Controller) {
	step, ok := workflow.StepForSide(r.PathValue("side"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown side")
		return
	}

	f, err := readUploadFile(w, r)
	if err != nil {
		respond(w, id, c, "select_file", err)
		return
	}

	info, err := c.SelectFile(step, f)
	if err != nil {
		respond(w, id, c, "select_file", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleSubmitUpload sends the photograph for a side. The file part is
// optional when one was already selected through the preview endpoint.
func (s *Server) handleSubmitUpload(w http.ResponseWriter, r *http.Request, id string, c *workflow.Controller) {
	step, ok := workflow.StepForSide(r.PathValue("side"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown side")
		return
	}

	f, err := readUploadFile(w, r)
	if err != nil {
		respond(w, id, c, "submit_upload", err)
		return
	}

	_, err = c.SubmitUpload(r.Context(), step, f)
	respond(w, id, c, "submit_upload", err)
}

func (s *Server) handleSubmitMetadata(w http.ResponseWriter, r *http.Request, id string, c *workflow.Controller) {
	var fields metadata.Fields
	if err := decodeBody(w, r, &fields); err != nil {
		respond(w, id, c, "submit_metadata", err)
		return
	}
	_, err := c.SubmitMetadata(fields)
	respond(w, id, c, "submit_metadata", err)
}

func (s *Server) handleFocusField(w http.ResponseWriter, r *http.Request, id string, c *workflow.Controller) {
	_, err := c.FocusField(r.PathValue("field"))
	respond(w, id, c, "focus_field", err)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request, id string, c *workflow.Controller) {
	_, err := c.AcknowledgeImages()
	respond(w, id, c, "acknowledge_images", err)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request, id string, c *workflow.Controller) {
	_, err := c.Restart()
	respond(w, id, c, "restart", err)
}

// handleListArchivedReturns returns completed returns, newest first
func (s *Server) handleListArchivedReturns(w http.ResponseWriter, r *http.Request) {
	records, err := s.archive.ListReturns()
	if err != nil {
		slog.Error("Error listing returns", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Ensure we always return an array, not nil
	if records == nil {
		records = []*archive.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetArchivedReturn returns one completed return with its result sections
func (s *Server) handleGetArchivedReturn(w http.ResponseWriter, r *http.Request) {
	record, err := s.archive.GetReturn(r.PathValue("id"))
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Return not found")
		return
	}
	if err != nil {
		slog.Error("Error getting return", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*archive.Record
		Sections []result.Section `json:"sections"`
	}{record, record.Result.Sections()})
}

// handleDeleteArchivedReturn removes a completed return and its photographs
func (s *Server) handleDeleteArchivedReturn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.archive.DeleteReturn(id)
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Return not found")
		return
	}
	if err != nil {
		slog.Error("Error deleting return", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error deleting return")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetArchivedPhoto serves a stored photograph
func (s *Server) handleGetArchivedPhoto(w http.ResponseWriter, r *http.Request) {
	id, side := r.PathValue("id"), r.PathValue("side")
	data, contentType, err := s.archive.GetPhoto(id, side)
	if err != nil {
		if !errors.Is(err, archive.ErrNotFound) {
			slog.Error("Error getting photo", "id", id, "side", side, "error", err)
		}
		writeError(w, http.StatusNotFound, "Photo not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
