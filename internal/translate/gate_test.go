package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"danesh/internal/llm"
	"danesh/internal/rag/schema"
	"danesh/pkg/logger"
)

// recordingBackend counts invocations and applies a fixed transform.
type recordingBackend struct {
	calls  int
	prefix string
	fail   bool
}

func (b *recordingBackend) Generate(_ context.Context, prompt, _ string, _ schema.GenParams) (string, error) {
	b.calls++
	if b.fail {
		return "", errors.New("model offline")
	}
	return b.prefix + prompt, nil
}

func newTestGate(t *testing.T, p2e, e2p llm.LLM) *Gate {
	t.Helper()
	reg := llm.NewRegistryWith(map[llm.Kind]llm.LLM{
		llm.KindTranslateP2E: p2e,
		llm.KindTranslateE2P: e2p,
	})
	gate, err := NewGate(reg, logger.New("translate-test"))
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	return gate
}

func TestInputGatesOnScript(t *testing.T) {
	p2e := &recordingBackend{prefix: "EN:"}
	gate := newTestGate(t, p2e, &recordingBackend{})

	if got := gate.Input(context.Background(), "سلام"); got != "EN:سلام" {
		t.Errorf("Persian input not translated: %q", got)
	}
	if p2e.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", p2e.calls)
	}

	if got := gate.Input(context.Background(), "hello"); got != "hello" {
		t.Errorf("English input must pass through, got %q", got)
	}
	if p2e.calls != 1 {
		t.Errorf("English input must not invoke translation, calls = %d", p2e.calls)
	}
}

func TestOutputDependsOnOriginalScriptOnly(t *testing.T) {
	e2p := &recordingBackend{prefix: "FA:"}
	gate := newTestGate(t, &recordingBackend{}, e2p)
	ctx := context.Background()

	// English original: the answer stays untouched whatever its script.
	if got := gate.Output(ctx, "answer with سلام inside", "hello"); got != "answer with سلام inside" {
		t.Errorf("output translated despite English original: %q", got)
	}
	if e2p.calls != 0 {
		t.Errorf("unexpected backend call for English original")
	}

	// Persian original: the (English) answer is translated regardless.
	if got := gate.Output(ctx, "plain english answer", "چطور؟"); got != "FA:plain english answer" {
		t.Errorf("output not translated for Persian original: %q", got)
	}
}

func TestTranslatePreservesCodeFences(t *testing.T) {
	e2p := &recordingBackend{prefix: ""}
	gate := newTestGate(t, &recordingBackend{}, e2p)

	code := "```go\nfmt.Println(\"hi\")\n```"
	text := "explanation before\n" + code + "\nexplanation after"

	got := gate.Output(context.Background(), text, "سلام")
	if !strings.Contains(got, code) {
		t.Errorf("code fence not preserved verbatim:\n%s", got)
	}
	if strings.Contains(got, "CODE0") {
		t.Errorf("placeholder leaked into output:\n%s", got)
	}
}

func TestTranslateFailureDegradesToPassThrough(t *testing.T) {
	gate := newTestGate(t, &recordingBackend{fail: true}, &recordingBackend{})
	if got := gate.Input(context.Background(), "سلام"); got != "سلام" {
		t.Errorf("failed translation must pass original through, got %q", got)
	}
}
