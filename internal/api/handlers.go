package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"danesh/internal/postprocess"
	"danesh/internal/rag/loaders"
	"danesh/internal/rag/schema"
	"danesh/internal/router"
	"danesh/internal/space"
	"danesh/internal/translate"
	"danesh/pkg/logger"
)

// Handler bundles the handler functions for every API endpoint.
type Handler struct {
	manager  *space.Manager
	builder  *space.Builder
	searcher *space.Searcher
	router   *router.Router
	gate     *translate.Gate
	loaders  *loaders.Registry
	log      *logger.Logger
}

// NewHandler creates a Handler over the assembled service components.
func NewHandler(manager *space.Manager, builder *space.Builder, searcher *space.Searcher, r *router.Router, gate *translate.Gate, reg *loaders.Registry, log *logger.Logger) *Handler {
	return &Handler{
		manager:  manager,
		builder:  builder,
		searcher: searcher,
		router:   r,
		gate:     gate,
		loaders:  reg,
		log:      log,
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, space.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, space.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, space.ErrInvalidName), errors.Is(err, loaders.ErrUnsupportedFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// --- Query Handlers ---

// QueryRequest is the JSON body of a routed query.
type QueryRequest struct {
	Space       string   `json:"space"`
	Prompt      string   `json:"prompt" binding:"required"`
	Type        string   `json:"type"`  // "text" (default), "image" or "translate"
	Model       string   `json:"model"` // optional backend role hint, e.g. "code"
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"maxTokens"`
}

func (req *QueryRequest) genParams() schema.GenParams {
	params := schema.DefaultGenParams()
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		params.MaxTokens = *req.MaxTokens
	}
	return params
}

// Query runs the full pipeline: translation gate in, routing, response
// post-processing, translation gate out. The response body is always
// well-formed; backend failures surface as sentinel text, not errors.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inputType := req.Type
	if inputType == "" {
		inputType = router.InputText
	}

	q := router.Query{
		Space:     req.Space,
		Prompt:    req.Prompt,
		InputType: inputType,
		ModelHint: req.Model,
		Params:    req.genParams(),
	}

	// Translation requests are terminal: no retrieval, no gates.
	if inputType == router.InputTranslate {
		res := h.router.Route(c.Request.Context(), q)
		c.JSON(http.StatusOK, gin.H{"response": res.Response, "backend": res.Backend.String()})
		return
	}

	ctx := c.Request.Context()
	q.Prompt = h.gate.Input(ctx, req.Prompt)
	res := h.router.Route(ctx, q)
	answer := postprocess.Process(res.Response)
	answer = h.gate.Output(ctx, answer, req.Prompt)

	c.JSON(http.StatusOK, gin.H{
		"response":  answer,
		"backend":   res.Backend.String(),
		"truncated": res.Truncated,
	})
}

// QueryWithMedia retrieves chunks plus the media extracted from the same
// source documents.
func (h *Handler) QueryWithMedia(c *gin.Context) {
	name := c.Param("space")
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	result, err := h.searcher.RetrieveWithMedia(c.Request.Context(), name, query, h.topK(c))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Search returns the raw top-k chunks for a query, without generation.
func (h *Handler) Search(c *gin.Context) {
	name := c.Param("space")
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	results, err := h.searcher.Search(c.Request.Context(), name, query, h.topK(c))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) topK(c *gin.Context) int {
	if raw := c.Query("k"); raw != "" {
		if k, err := strconv.Atoi(raw); err == nil && k > 0 {
			return k
		}
	}
	return 5
}

// --- Space Handlers ---

// CreateSpaceRequest is the JSON body for creating a space.
type CreateSpaceRequest struct {
	Name     string         `json:"name" binding:"required"`
	Settings space.Settings `json:"settings"`
}

// CreateSpace provisions a new space directory tree.
func (h *Handler) CreateSpace(c *gin.Context) {
	var req CreateSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.manager.Create(req.Name, req.Settings); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": req.Name})
}

// ListSpaces returns every known space and its settings.
func (h *Handler) ListSpaces(c *gin.Context) {
	infos, err := h.manager.List()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"spaces": infos})
}

// UpdateSpace merges the request body into the space settings.
func (h *Handler) UpdateSpace(c *gin.Context) {
	var updates space.Settings
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.manager.Update(c.Param("space"), updates); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteSpace removes a space and everything under it.
func (h *Handler) DeleteSpace(c *gin.Context) {
	if err := h.manager.Delete(c.Param("space")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// --- Document Handlers ---

// UploadDocuments stores a batch of uploaded files in the space's docs
// directory and schedules a single out-of-band index rebuild. Rejected files
// are reported per file and do not block accepted ones; a batch with no
// accepted file schedules nothing.
func (h *Handler) UploadDocuments(c *gin.Context) {
	name := c.Param("space")

	docsDir, err := h.manager.DocsDir(name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if !h.manager.Exists(name) {
		err := fmt.Errorf("%w: %s", space.ErrNotFound, name)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := append(form.File["files"], form.File["file"]...)
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files in multipart form"})
		return
	}

	var saved []string
	rejected := map[string]string{}
	for _, file := range files {
		filename := filepath.Base(file.Filename)
		if err := h.saveUpload(docsDir, filename, file); err != nil {
			rejected[filename] = err.Error()
			continue
		}
		saved = append(saved, filename)
	}

	if len(saved) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no acceptable files", "rejected": rejected})
		return
	}
	if err := h.builder.ScheduleBuild(name); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled", "saved": saved, "rejected": rejected})
}

// saveUpload validates one multipart file and writes it under docsDir.
func (h *Handler) saveUpload(docsDir, filename string, file *multipart.FileHeader) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !h.loaders.Supported(ext) {
		return fmt.Errorf("unsupported document format: %s", ext)
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}

	// Sniff the content type so a binary masquerading under a text
	// extension is rejected before it reaches the loaders.
	detected := mimetype.Detect(data)
	if ext == ".ppt" && (detected.Is("application/vnd.ms-powerpoint") || detected.Is("application/x-ole-storage")) {
		return errors.New("legacy binary .ppt is not supported, convert to .pptx")
	}
	if !contentMatchesExt(detected, ext) {
		return fmt.Errorf("file content does not match extension %s", ext)
	}

	return os.WriteFile(filepath.Join(docsDir, filename), data, 0o644)
}

// contentMatchesExt checks the sniffed MIME type against the claimed
// extension. Text formats sniff inconsistently across platforms, so only
// the binary container formats are enforced strictly.
func contentMatchesExt(detected *mimetype.MIME, ext string) bool {
	switch ext {
	case ".pdf":
		return detected.Is("application/pdf")
	case ".docx":
		return detected.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document") ||
			detected.Is("application/zip")
	case ".pptx", ".ppt":
		// Only the OOXML package form is loadable; legacy binary
		// presentations are rejected above with a clearer message.
		return detected.Is("application/vnd.openxmlformats-officedocument.presentationml.presentation") ||
			detected.Is("application/zip")
	default:
		// txt, md, csv, html: anything in the text family passes.
		for m := detected; m != nil; m = m.Parent() {
			if m.Is("text/plain") {
				return true
			}
		}
		return detected.Is("text/html") || detected.Is("text/csv") || detected.Is("text/markdown")
	}
}

// ServeFile serves a document or media sidecar from a space's docs tree,
// rejecting any path that would escape it.
func (h *Handler) ServeFile(c *gin.Context) {
	name := c.Param("space")
	rel := c.Param("path")

	docsDir, err := h.manager.DocsDir(name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	full := filepath.Join(docsDir, filepath.Clean("/"+rel))
	if !strings.HasPrefix(full, docsDir+string(filepath.Separator)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}
	if _, err := os.Stat(full); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.File(full)
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
