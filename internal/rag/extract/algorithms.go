package extract

import (
	"regexp"
	"sort"
	"strings"
)

// The patterns are applied independently and their matches unioned, so a name
// mentioned in any of the recognised forms is picked up.
var algorithmPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Algorithm:\s*(\w+)`),
	regexp.MustCompile(`(?i)(\w+)\s+algorithm`),
	regexp.MustCompile(`(?i)(?:procedure|method)\s+(\w+)`),
}

// Algorithms scans text for named-procedure mentions and returns the
// deduplicated set of names. Matching is case-insensitive and never fails;
// text with no mentions yields an empty slice. The result is sorted so that
// repeated extraction over the same text is byte-stable.
func Algorithms(text string) []string {
	seen := make(map[string]struct{})
	for _, p := range algorithmPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if len(m) < 2 {
				continue
			}
			name := strings.TrimSpace(m[1])
			if name == "" {
				continue
			}
			seen[name] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
