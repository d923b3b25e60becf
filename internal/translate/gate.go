package translate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"danesh/internal/llm"
	"danesh/internal/rag/schema"
	"danesh/pkg/logger"
)

// codeFenceRe matches fenced code blocks, which must survive translation
// byte for byte.
var codeFenceRe = regexp.MustCompile("(?s)```.*?```")

// Gate decides whether text crosses the translation boundary. Detection is a
// script heuristic, not a language-ID model: any character in the Persian
// Unicode block anywhere in the text is the sole signal.
type Gate struct {
	p2e llm.LLM
	e2p llm.LLM
	log *logger.Logger
}

// NewGate wires the gate to the two translation backends from the registry.
func NewGate(reg *llm.Registry, log *logger.Logger) (*Gate, error) {
	p2e, err := reg.Backend(llm.KindTranslateP2E)
	if err != nil {
		return nil, err
	}
	e2p, err := reg.Backend(llm.KindTranslateE2P)
	if err != nil {
		return nil, err
	}
	return &Gate{p2e: p2e, e2p: e2p, log: log}, nil
}

// IsPersian reports whether text contains any character in U+0600..U+06FF.
func IsPersian(text string) bool {
	for _, r := range text {
		if r >= 0x0600 && r <= 0x06FF {
			return true
		}
	}
	return false
}

// Input translates a Persian prompt to English; other text passes through
// unchanged. A backend failure degrades to pass-through.
func (g *Gate) Input(ctx context.Context, text string) string {
	if !IsPersian(text) {
		return text
	}
	return g.translate(ctx, g.p2e, text)
}

// Output translates the generated answer back to Persian when the original
// prompt was Persian. The decision depends only on the original prompt's
// script, never on the generated text's script.
func (g *Gate) Output(ctx context.Context, text, original string) string {
	if !IsPersian(original) {
		return text
	}
	return g.translate(ctx, g.e2p, text)
}

// translate sends text through a translation backend, shielding fenced code
// blocks: they are extracted before the call and reinserted verbatim after,
// since translation models are not guaranteed to preserve code fidelity.
func (g *Gate) translate(ctx context.Context, backend llm.LLM, text string) string {
	blocks := codeFenceRe.FindAllString(text, -1)
	masked := text
	for i, block := range blocks {
		masked = strings.Replace(masked, block, fencePlaceholder(i), 1)
	}

	out, err := backend.Generate(ctx, masked, "", schema.DefaultGenParams())
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			g.log.WithError(err).Warn("translation failed, passing text through untranslated")
		}
		return text
	}

	for i, block := range blocks {
		placeholder := fencePlaceholder(i)
		if strings.Contains(out, placeholder) {
			out = strings.Replace(out, placeholder, block, 1)
		} else {
			// The model ate the placeholder; reattach the code so it is not lost.
			out += "\n" + block
		}
	}
	return out
}

func fencePlaceholder(i int) string {
	return fmt.Sprintf("⟦CODE%d⟧", i)
}
