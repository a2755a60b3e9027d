package form

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"medtech-planner/internal/domain"
	"medtech-planner/internal/http-server/handler/form/dto"
	"medtech-planner/internal/repository/result"
	form_uc "medtech-planner/internal/usecase/form"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/zlog"
)

const (
	maxMemory = 32 << 20
)

//go:embed templates/index.html
var templatesFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type phaseOption struct {
	Value       string
	Label       string
	Description string
	Checked     bool
}

type pageData struct {
	State        domain.State
	Phases       []phaseOption
	Notice       string
	PreviewURL   template.URL
	ProcessedURL template.URL
}

type FormHandler struct {
	controller    formController
	results       resultStore
	validate      *validator.Validate
	logger        *zlog.Zerolog
	maxUploadSize int64
}

func NewFormHandler(controller formController, results resultStore, logger *zlog.Zerolog, maxUploadSize int64) *FormHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = domain.DefaultMaxUploadSize
	}
	return &FormHandler{
		controller:    controller,
		results:       results,
		validate:      validator.New(),
		logger:        logger,
		maxUploadSize: maxUploadSize,
	}
}

func (h *FormHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.respondPage(w, http.StatusOK, "")
}

func (h *FormHandler) State(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, dto.NewStateResponse(h.controller.Snapshot()))
}

func (h *FormHandler) SelectFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.Warn().Int64("limit", maxErr.Limit).Msg("Upload too large")
			h.fail(w, r, http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error(), nil)
			return
		}
		h.logger.Warn().Err(err).Msg("Failed to parse multipart form")
		h.fail(w, r, http.StatusBadRequest, "Invalid request format", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.logger.Warn().Err(err).Msg("File not found in request")
		h.fail(w, r, http.StatusBadRequest, ErrFileRequired.Error(), nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", header.Filename).Msg("Failed to read file")
		h.fail(w, r, http.StatusInternalServerError, "Failed to read file", err)
		return
	}

	img := domain.SelectedImage{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}

	if err := h.controller.SelectFile(img); err != nil {
		h.logger.Error().Err(err).Str("filename", header.Filename).Msg("Failed to select file")
		h.fail(w, r, http.StatusInternalServerError, "Failed to select file", err)
		return
	}

	if err := h.controller.WaitPreview(r.Context()); err != nil {
		h.logger.Warn().Err(err).Str("filename", header.Filename).Msg("Preview not ready")
	}

	h.done(w, r, http.StatusOK)
}

func (h *FormHandler) SelectPhase(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid request format", nil)
		return
	}

	req := dto.PhaseRequest{
		Phase: r.PostForm.Get("phase"),
	}
	if err := h.validate.Struct(req); err != nil {
		h.logger.Warn().Str("phase", req.Phase).Msg("Invalid phase")
		h.fail(w, r, http.StatusBadRequest, ErrInvalidPhase.Error(), nil)
		return
	}

	phase, err := domain.ParsePhase(req.Phase)
	if err == nil {
		err = h.controller.SelectPhase(phase)
	}
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, ErrInvalidPhase.Error(), nil)
		return
	}

	h.done(w, r, http.StatusOK)
}

func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid request format", nil)
		return
	}

	req := dto.SubmitRequest{
		Phase: r.PostForm.Get("phase"),
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, http.StatusBadRequest, ErrInvalidPhase.Error(), nil)
		return
	}

	if req.Phase != "" {
		phase, err := domain.ParsePhase(req.Phase)
		if err == nil {
			err = h.controller.SelectPhase(phase)
		}
		if err != nil {
			h.fail(w, r, http.StatusBadRequest, ErrInvalidPhase.Error(), nil)
			return
		}
	}

	// The exchange outlives a client that navigates away.
	ctx := context.WithoutCancel(r.Context())

	if err := h.controller.Submit(ctx); err != nil {
		h.handleSubmitError(w, r, err)
		return
	}

	h.done(w, r, http.StatusOK)
}

func (h *FormHandler) Result(w http.ResponseWriter, r *http.Request) {
	req := dto.ResultRequest{
		Key: chi.URLParam(r, "key"),
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusNotFound, ErrResultMissing.Error(), nil)
		return
	}

	blob, err := h.results.Get(r.Context(), req.Key)
	if err != nil {
		if errors.Is(err, result.ErrBlobNotFound) {
			h.respondError(w, http.StatusNotFound, ErrResultMissing.Error(), nil)
			return
		}
		h.logger.Error().Err(err).Str("key", req.Key).Msg("Failed to load processed image")
		h.respondError(w, http.StatusInternalServerError, "Failed to load processed image", err)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := io.Copy(w, bytes.NewReader(blob.Data)); err != nil {
		h.logger.Error().Err(err).Str("key", req.Key).Msg("Failed to stream processed image")
	}
}

func (h *FormHandler) handleSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, form_uc.ErrNoImageSelected):
		h.done(w, r, http.StatusBadRequest)
	case errors.Is(err, form_uc.ErrSubmitInProgress):
		h.fail(w, r, http.StatusConflict, "Image is already being processed", nil)
	default:
		// The controller already holds the user-facing message.
		h.done(w, r, http.StatusBadGateway)
	}
}

// done finishes a state-changing request: JSON callers get the new state,
// browsers are redirected to the page on success or shown it on failure.
func (h *FormHandler) done(w http.ResponseWriter, r *http.Request, status int) {
	if wantsJSON(r) {
		h.respondJSON(w, status, dto.NewStateResponse(h.controller.Snapshot()))
		return
	}
	if status == http.StatusOK {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.respondPage(w, status, "")
}

func (h *FormHandler) fail(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if wantsJSON(r) {
		h.respondError(w, status, message, err)
		return
	}
	h.respondPage(w, status, message)
}

func (h *FormHandler) respondPage(w http.ResponseWriter, status int, notice string) {
	st := h.controller.Snapshot()

	data := pageData{
		State:      st,
		Notice:     notice,
		PreviewURL: safeImageURL(st.Preview.DataURL),
	}
	if st.Processed != nil {
		data.ProcessedURL = safeImageURL(st.Processed.URL)
	}
	for _, p := range domain.Phases {
		data.Phases = append(data.Phases, phaseOption{
			Value:       p.String(),
			Label:       p.Label(),
			Description: p.Description(),
			Checked:     p == st.Phase,
		})
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *FormHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *FormHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	response := dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}

	if err != nil {
		response.Details = err.Error()
	}

	h.respondJSON(w, status, response)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// safeImageURL lets html/template emit references the app produced itself.
func safeImageURL(s string) template.URL {
	switch {
	case strings.HasPrefix(s, "data:image/"),
		strings.HasPrefix(s, domain.ResultsPathPrefix),
		strings.HasPrefix(s, "https://"),
		strings.HasPrefix(s, "http://"):
		return template.URL(s)
	default:
		return ""
	}
}
