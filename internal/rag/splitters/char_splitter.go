package splitters

// CharSplitter splits text into fixed-size rune spans with a configured
// overlap between consecutive chunks. Splitting is purely positional, so the
// same text always yields the same chunk boundaries.
type CharSplitter struct {
	Size    int
	Overlap int
}

// NewCharSplitter creates a CharSplitter, falling back to the 1000/200
// defaults for non-positive or inconsistent values.
func NewCharSplitter(size, overlap int) *CharSplitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 200
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &CharSplitter{Size: size, Overlap: overlap}
}

// Split cuts text into overlapping chunks. Non-empty input always produces at
// least one chunk and never an empty one; empty input produces none.
func (s *CharSplitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.Size - s.Overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
