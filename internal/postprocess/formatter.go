package postprocess

import (
	"fmt"
	"strings"
)

// FormatTable renders headers and rows as a Markdown pipe table.
func FormatTable(headers []string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	sb.WriteString("| " + strings.Join(repeat("---", len(headers)), " | ") + " |\n")
	for i, row := range rows {
		sb.WriteString("| " + strings.Join(row, " | ") + " |")
		if i < len(rows)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// ToMermaid renders a linear sequence of steps as a mermaid flowchart fence.
func ToMermaid(steps []string) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\nflowchart TD\n")
	for i := 0; i < len(steps)-1; i++ {
		sb.WriteString(fmt.Sprintf("  A%d[%q] --> A%d[%q]\n", i, steps[i], i+1, steps[i+1]))
	}
	sb.WriteString("```")
	return sb.String()
}

// ToLaTeX wraps an expression in display-math delimiters.
func ToLaTeX(expr string) string {
	return fmt.Sprintf("$$ %s $$", strings.TrimSpace(expr))
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
