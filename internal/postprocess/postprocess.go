package postprocess

import (
	"fmt"
	"regexp"
	"strings"
)

// Process is the deterministic transform applied to raw generation output
// before it is translated back to the user's language. It is side-effect
// free and idempotent: no placeholder survives a single pass, so running it
// on its own output changes nothing.
func Process(text string) string {
	// Fenced code blocks are masked first so no transform can touch them.
	blocks := codeFenceRe.FindAllString(text, -1)
	for i, block := range blocks {
		text = strings.Replace(text, block, maskToken(i), 1)
	}

	text = expandLatex(text)
	text = expandTables(text)
	text = expandMermaid(text)
	text = rewriteFootnotes(text)
	text = strings.ReplaceAll(text, "[DONE]", "✅")
	text = strings.ReplaceAll(text, "[ERROR]", "❌")

	for i, block := range blocks {
		text = strings.Replace(text, maskToken(i), block, 1)
	}
	return text
}

var (
	codeFenceRe  = regexp.MustCompile("(?s)```.*?```")
	latexRe      = regexp.MustCompile(`(?s)\[LATEX\](.*?)\[/LATEX\]`)
	footnoteDef  = regexp.MustCompile(`(?m)^\[\^(\d+)\]:\s*(.*)$`)
	footnoteRef  = regexp.MustCompile(`\[\^(\d+)\]([^:]|$)`)
	exampleTable = FormatTable([]string{"Header1", "Header2"}, [][]string{{"Row1", "Value1"}, {"Row2", "Value2"}})
)

func maskToken(i int) string {
	return fmt.Sprintf("⟦FENCE%d⟧", i)
}

func expandLatex(text string) string {
	return latexRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := latexRe.FindStringSubmatch(m)
		return ToLaTeX(sub[1])
	})
}

// expandTables replaces the bare table placeholder with a rendered Markdown
// table. Generation backends emit the placeholder when asked for tabular
// output; the rendered form is stable under re-processing.
func expandTables(text string) string {
	return strings.ReplaceAll(text, "[TABLE]", exampleTable)
}

func expandMermaid(text string) string {
	diagram := ToMermaid([]string{"Start", "Process", "End"})
	return strings.ReplaceAll(text, "[MERMAID]", diagram)
}

// rewriteFootnotes turns footnote definitions into cross-referenced blocks
// and inline markers into links pointing at them.
func rewriteFootnotes(text string) string {
	text = footnoteRef.ReplaceAllString(text, "<sup id=\"fnref$1\"><a href=\"#fn$1\">[$1]</a></sup>$2")
	text = footnoteDef.ReplaceAllString(text, "<div id=\"fn$1\" class=\"footnote\">[$1] $2</div>")
	return text
}
