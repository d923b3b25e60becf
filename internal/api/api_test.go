package api

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"danesh/internal/config"
	"danesh/internal/llm"
	"danesh/internal/rag/loaders"
	"danesh/internal/rag/schema"
	"danesh/internal/rag/splitters"
	"danesh/internal/router"
	"danesh/internal/space"
	"danesh/internal/translate"
	"danesh/pkg/logger"
)

// hashEmbedder maps text to a deterministic trigram-count vector so uploads
// can be retrieved by overlapping queries without a live embedding backend.
type hashEmbedder struct{}

const hashDim = 64

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, hashDim)
	runes := []rune(strings.ToLower(text))
	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		h.Write([]byte(string(runes[i : i+3])))
		v[h.Sum32()%hashDim]++
	}
	if len(runes) < 3 {
		v[0] = 1
	}
	return v, nil
}

func (e hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type echoLLM struct {
	reply string
}

func (e *echoLLM) Generate(context.Context, string, string, schema.GenParams) (string, error) {
	return e.reply, nil
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Spaces.Root = t.TempDir()
	cfg.Router.Mode = config.RouterModeCombined
	log := logger.New("api-test")

	manager, err := space.NewManager(cfg, log)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	reg := loaders.NewRegistry(log)
	splitter := splitters.NewCharSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	embedder := hashEmbedder{}
	builder := space.NewBuilder(manager, reg, splitter, embedder, log)
	searcher := space.NewSearcher(manager, embedder, log)

	backends := llm.NewRegistryWith(map[llm.Kind]llm.LLM{
		llm.KindGeneral:      &echoLLM{reply: "general answer"},
		llm.KindCode:         &echoLLM{reply: "code answer"},
		llm.KindVision:       &echoLLM{reply: "vision answer"},
		llm.KindTranslateP2E: &echoLLM{reply: "translated to english"},
		llm.KindTranslateE2P: &echoLLM{reply: "ترجمه"},
	})
	rtr := router.New(searcher, backends, cfg, log)
	gate, err := translate.NewGate(backends, log)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	h := NewHandler(manager, builder, searcher, rtr, gate, reg, log)
	return SetupRouter(h, []string{"http://localhost:3000"})
}

func do(t *testing.T, engine *gin.Engine, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
	}
	return do(t, engine, method, path, body, "application/json")
}

func uploadFile(t *testing.T, engine *gin.Engine, spaceName, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()
	return do(t, engine, http.MethodPost, "/api/v1/spaces/"+spaceName+"/documents", buf.Bytes(), mw.FormDataContentType())
}

func TestHealthz(t *testing.T) {
	engine := newTestServer(t)
	rec := do(t, engine, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestSpaceLifecycle(t *testing.T) {
	engine := newTestServer(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/spaces", gin.H{"name": "research"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/spaces", gin.H{"name": "research"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodPatch, "/api/v1/spaces/research", gin.H{"enabled": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	rec = do(t, engine, http.MethodGet, "/api/v1/spaces", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed struct {
		Spaces []space.Info `json:"spaces"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Spaces) != 1 || listed.Spaces[0].Name != "research" || !listed.Spaces[0].Enabled {
		t.Fatalf("unexpected listing: %+v", listed.Spaces)
	}

	rec = do(t, engine, http.MethodDelete, "/api/v1/spaces/research", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = do(t, engine, http.MethodDelete, "/api/v1/spaces/research", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestCreateSpaceRejectsInvalidName(t *testing.T) {
	engine := newTestServer(t)
	rec := doJSON(t, engine, http.MethodPost, "/api/v1/spaces", gin.H{"name": "../evil"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	engine := newTestServer(t)
	doJSON(t, engine, http.MethodPost, "/api/v1/spaces", gin.H{"name": "docs"})

	rec := uploadFile(t, engine, "docs", "binary.exe", []byte{0x4d, 0x5a, 0x00})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadRejectsMismatchedContent(t *testing.T) {
	engine := newTestServer(t)
	doJSON(t, engine, http.MethodPost, "/api/v1/spaces", gin.H{"name": "docs"})

	// Plain text claiming to be a PDF must not reach the loaders.
	rec := uploadFile(t, engine, "docs", "paper.pdf", []byte("just plain text"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadToMissingSpaceReturnsNotFound(t *testing.T) {
	engine := newTestServer(t)

	rec := uploadFile(t, engine, "nowhere", "notes.txt", []byte("plain text content"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUploadRejectsLegacyPresentation(t *testing.T) {
	engine := newTestServer(t)
	doJSON(t, engine, http.MethodPost, "/api/v1/spaces", gin.H{"name": "docs"})

	// OLE compound file header, the pre-OOXML PowerPoint container.
	ole := append([]byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}, make([]byte, 512)...)
	rec := uploadFile(t, engine, "docs", "deck.ppt", ole)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pptx") {
		t.Fatalf("body = %s, want conversion hint", rec.Body.String())
	}
}

func TestUploadBatchReportsPerFileRejections(t *testing.T) {
	engine := newTestServer(t)
	doJSON(t, engine, http.MethodPost, "/api/v1/spaces", gin.H{"name": "batch"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	good, _ := mw.CreateFormFile("files", "readme.md")
	good.Write([]byte("# Notes\nplain markdown content"))
	bad, _ := mw.CreateFormFile("files", "tool.exe")
	bad.Write([]byte{0x4d, 0x5a, 0x00})
	mw.Close()

	rec := do(t, engine, http.MethodPost, "/api/v1/spaces/batch/documents", buf.Bytes(), mw.FormDataContentType())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Status   string            `json:"status"`
		Saved    []string          `json:"saved"`
		Rejected map[string]string `json:"rejected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "scheduled" || len(body.Saved) != 1 || body.Saved[0] != "readme.md" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if _, ok := body.Rejected["tool.exe"]; !ok {
		t.Fatalf("exe not rejected: %+v", body.Rejected)
	}
}

func TestUploadBuildsAndAnswersQueries(t *testing.T) {
	engine := newTestServer(t)
	doJSON(t, engine, http.MethodPost, "/api/v1/spaces", gin.H{"name": "kb"})

	content := []byte("The merge procedure combines two sorted sequences into one sorted sequence.")
	rec := uploadFile(t, engine, "kb", "notes.txt", content)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d body=%s", rec.Code, rec.Body.String())
	}
	var scheduled struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &scheduled); err != nil || scheduled.Status != "scheduled" {
		t.Fatalf("upload body = %s", rec.Body.String())
	}

	// The index build runs out of band; poll retrieval until it lands.
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = do(t, engine, http.MethodGet, "/api/v1/spaces/kb/search?q=sorted+sequences", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("search status = %d", rec.Code)
		}
		var searched struct {
			Results []schema.SearchResult `json:"results"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &searched); err != nil {
			t.Fatalf("decode search: %v", err)
		}
		if len(searched.Results) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("index build did not complete in time")
		}
		time.Sleep(50 * time.Millisecond)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/query", gin.H{
		"space":  "kb",
		"prompt": "how does the merge procedure work",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d body=%s", rec.Code, rec.Body.String())
	}
	var answer struct {
		Response string `json:"response"`
		Backend  string `json:"backend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode query: %v", err)
	}
	if answer.Response != "general answer" {
		t.Fatalf("response = %q", answer.Response)
	}
	if answer.Backend != "general" {
		t.Fatalf("backend = %q", answer.Backend)
	}

	// The uploaded document is served back from the docs tree.
	rec = do(t, engine, http.MethodGet, "/api/v1/spaces/kb/files/notes.txt", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("file status = %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Fatalf("served file differs from upload")
	}
}

func TestQueryWithoutDocsReturnsNotFoundSentinel(t *testing.T) {
	engine := newTestServer(t)
	doJSON(t, engine, http.MethodPost, "/api/v1/spaces", gin.H{"name": "empty"})

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/query", gin.H{
		"space":  "empty",
		"prompt": "anything at all",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d", rec.Code)
	}
	var answer struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(answer.Response, "No related docs") {
		t.Fatalf("response = %q, want not-found sentinel", answer.Response)
	}
}

func TestTranslateQueryBypassesRetrieval(t *testing.T) {
	engine := newTestServer(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/query", gin.H{
		"prompt": "سلام دنیا",
		"type":   "translate",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var answer struct {
		Response string `json:"response"`
		Backend  string `json:"backend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if answer.Backend != "translate_p2e" {
		t.Fatalf("backend = %q", answer.Backend)
	}
	if answer.Response != "translated to english" {
		t.Fatalf("response = %q", answer.Response)
	}
}

func TestCORSPreflight(t *testing.T) {
	engine := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/query", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q for unlisted origin", got)
	}
}
