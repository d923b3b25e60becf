package llm

import (
	"context"
	"fmt"

	"danesh/internal/config"
	"danesh/internal/rag/schema"
)

// LLM is the interface for a generation backend. Implementations frame the
// prompt and retrieval context for their underlying model; failures are
// returned as errors and converted to sentinel payloads at the boundary.
type LLM interface {
	Generate(ctx context.Context, prompt, context string, params schema.GenParams) (string, error)
}

// Kind identifies a generation backend role. The set is closed: adding a
// backend means extending this enum and the registry construction, not
// string-matching at call sites.
type Kind int

const (
	KindGeneral Kind = iota
	KindCode
	KindVision
	KindTranslateP2E
	KindTranslateE2P
)

// String implements fmt.Stringer for logging.
func (k Kind) String() string {
	switch k {
	case KindGeneral:
		return "general"
	case KindCode:
		return "code"
	case KindVision:
		return "vision"
	case KindTranslateP2E:
		return "translate_p2e"
	case KindTranslateE2P:
		return "translate_e2p"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a backend role name onto its Kind. Used for the optional
// model hint on queries; unknown names report false.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "general":
		return KindGeneral, true
	case "code":
		return KindCode, true
	case "vision":
		return KindVision, true
	case "translate_p2e":
		return KindTranslateP2E, true
	case "translate_e2p":
		return KindTranslateE2P, true
	default:
		return 0, false
	}
}

// Registry is the dispatch table mapping backend roles to clients. It is
// built once at startup.
type Registry struct {
	backends map[Kind]LLM
}

// NewRegistry builds the dispatch table from configuration, one
// Ollama-backed client per role.
func NewRegistry(cfg *config.AppConfig) (*Registry, error) {
	roles := []struct {
		kind  Kind
		model string
		frame frameFunc
	}{
		{KindGeneral, cfg.Models.General, frameGeneral},
		{KindCode, cfg.Models.Code, frameCode},
		{KindVision, cfg.Models.Vision, frameVision},
		{KindTranslateP2E, cfg.Models.TranslateP2E, frameRaw},
		{KindTranslateE2P, cfg.Models.TranslateE2P, frameRaw},
	}

	backends := make(map[Kind]LLM, len(roles))
	for _, role := range roles {
		client, err := NewOllama(role.model, cfg.Ollama.BaseURL, role.frame)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s backend: %w", role.kind, err)
		}
		backends[role.kind] = client
	}

	return &Registry{backends: backends}, nil
}

// NewRegistryWith builds a registry from pre-constructed backends; used by
// tests and by callers that swap in non-Ollama implementations.
func NewRegistryWith(backends map[Kind]LLM) *Registry {
	return &Registry{backends: backends}
}

// Backend returns the client for a role.
func (r *Registry) Backend(kind Kind) (LLM, error) {
	b, ok := r.backends[kind]
	if !ok {
		return nil, fmt.Errorf("no backend registered for %s", kind)
	}
	return b, nil
}
