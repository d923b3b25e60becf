package router

import (
	"context"
	"fmt"
	"strings"

	"danesh/internal/config"
	"danesh/internal/llm"
	"danesh/internal/rag/extract"
	"danesh/internal/rag/schema"
	"danesh/internal/translate"
	"danesh/pkg/logger"
)

// Input types accepted at the query boundary.
const (
	InputText      = "text"
	InputImage     = "image"
	InputTranslate = "translate"
)

// Sentinel responses. Backend and retrieval failures are converted into
// these fixed payloads so the HTTP boundary always gets a well-formed
// response; they are never raised as errors.
const (
	SentinelNoDocs      = "[NotFound ❌] No related docs in Knowledge Stack."
	SentinelNoAlgorithm = "[NotFound] No algorithm found."
	SentinelGenFailed   = "[GenerationError ❌] The model backend failed to produce a response."
	truncationNotice    = "\nContext too large; showing first part only."
	nextAlgoSuggestion  = "\nDo you want the next algorithm?"
	contextSeparator    = "\n---\n"
	completeDirective   = "complete"
)

// codeKeywords trigger the code backend when they appear in a prompt.
var codeKeywords = []string{"code", "function", "script", "pseudo", "algorithm"}

// Retriever is the slice of the space layer the router needs.
type Retriever interface {
	Search(ctx context.Context, space, query string, k int) ([]schema.SearchResult, error)
}

// Query is one routed request. Queries are transient and never persisted.
// ModelHint optionally names a backend role directly, overriding keyword
// selection.
type Query struct {
	Space     string
	Prompt    string
	InputType string
	ModelHint string
	Params    schema.GenParams
}

// Result is the routed outcome. Response is always well-formed, possibly a
// sentinel.
type Result struct {
	Response  string
	Backend   llm.Kind
	Truncated bool
}

// Router selects a generation backend for each query, assembles retrieval
// context with overflow handling, and shields callers from backend
// failures.
type Router struct {
	retriever Retriever
	backends  *llm.Registry
	topK      int
	maxWords  int
	combined  bool
	log       *logger.Logger
}

// New creates a Router from configuration.
func New(retriever Retriever, backends *llm.Registry, cfg *config.AppConfig, log *logger.Logger) *Router {
	return &Router{
		retriever: retriever,
		backends:  backends,
		topK:      cfg.Retrieval.TopK,
		maxWords:  cfg.Retrieval.MaxContextWords,
		combined:  cfg.Router.Mode == config.RouterModeCombined,
		log:       log,
	}
}

// Route runs the decision machine for one query.
func (r *Router) Route(ctx context.Context, q Query) Result {
	// Translation requests bypass retrieval entirely.
	if q.InputType == InputTranslate {
		return r.translateDirect(ctx, q)
	}

	results, err := r.retriever.Search(ctx, q.Space, q.Prompt, r.topK)
	if err != nil {
		r.log.WithError(err).WithSpace(q.Space).Error("retrieval failed")
		return Result{Response: SentinelGenFailed}
	}
	if len(results) == 0 {
		return Result{Response: SentinelNoDocs}
	}

	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(q.Prompt)), completeDirective) {
		return r.routeComplete(ctx, q, results)
	}

	kind := r.selectKind(q.InputType, q.ModelHint, q.Prompt)
	response, ok := r.invoke(ctx, kind, q.Prompt, results, q.Params)
	if !ok {
		return Result{Response: SentinelGenFailed, Backend: kind}
	}
	return Result{Response: response, Backend: kind}
}

// routeComplete handles the "complete" directive: pick the first algorithm
// mentioned in the assembled context and ask for a step-by-step
// explanation. An oversized context falls back to the first retrieved chunk
// with a truncation notice on the answer.
func (r *Router) routeComplete(ctx context.Context, q Query, results []schema.SearchResult) Result {
	contextText := joinChunks(results)
	algos := extract.Algorithms(contextText)
	if len(algos) == 0 {
		return Result{Response: SentinelNoAlgorithm}
	}

	derived := fmt.Sprintf("Explain %s step by step", algos[0])
	kind := r.selectKind(q.InputType, q.ModelHint, derived)

	truncated := len(strings.Fields(contextText)) > r.maxWords
	var response string
	var ok bool
	if truncated {
		// Overflow-safe variant: one call over the single surviving chunk.
		response, ok = r.generate(ctx, kind, derived, results[0].Chunk.Text, q.Params)
	} else {
		response, ok = r.invoke(ctx, kind, derived, results, q.Params)
	}
	if !ok {
		return Result{Response: SentinelGenFailed, Backend: kind, Truncated: truncated}
	}

	if truncated {
		response += truncationNotice
	}
	response += nextAlgoSuggestion
	return Result{Response: response, Backend: kind, Truncated: truncated}
}

// translateDirect delegates the prompt to the translation backend matching
// its script.
func (r *Router) translateDirect(ctx context.Context, q Query) Result {
	kind := llm.KindTranslateE2P
	if translate.IsPersian(q.Prompt) {
		kind = llm.KindTranslateP2E
	}
	response, ok := r.generate(ctx, kind, q.Prompt, "", q.Params)
	if !ok {
		return Result{Response: SentinelGenFailed, Backend: kind}
	}
	return Result{Response: response, Backend: kind}
}

// selectKind picks a backend by priority: an explicit model hint wins, then
// image input, then code-intent keywords, then the general backend.
func (r *Router) selectKind(inputType, hint, prompt string) llm.Kind {
	if kind, ok := llm.ParseKind(hint); ok {
		return kind
	}
	if inputType == InputImage {
		return llm.KindVision
	}
	lower := strings.ToLower(prompt)
	for _, kw := range codeKeywords {
		if strings.Contains(lower, kw) {
			return llm.KindCode
		}
	}
	return llm.KindGeneral
}

// invoke runs the configured invocation mode: one backend call over the
// combined context, or one call per retrieved chunk with the outputs
// joined.
func (r *Router) invoke(ctx context.Context, kind llm.Kind, prompt string, results []schema.SearchResult, params schema.GenParams) (string, bool) {
	if r.combined {
		return r.generate(ctx, kind, prompt, joinChunks(results), params)
	}

	var answers []string
	for _, res := range results {
		answer, ok := r.generate(ctx, kind, prompt, res.Chunk.Text, params)
		if !ok {
			return "", false
		}
		answers = append(answers, answer)
	}
	return strings.Join(answers, contextSeparator), true
}

// generate performs a single backend call. Failures are not retried; they
// are logged and reported to the caller as not-ok.
func (r *Router) generate(ctx context.Context, kind llm.Kind, prompt, contextText string, params schema.GenParams) (string, bool) {
	backend, err := r.backends.Backend(kind)
	if err != nil {
		r.log.WithError(err).Error("no backend for routed kind")
		return "", false
	}
	out, err := backend.Generate(ctx, prompt, contextText, params)
	if err != nil {
		r.log.WithError(err).WithField("backend", kind.String()).Error("generation failed")
		return "", false
	}
	return out, true
}

func joinChunks(results []schema.SearchResult) string {
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Chunk.Text
	}
	return strings.Join(texts, contextSeparator)
}
