package retrieval

import "strings"

// Chunk splits text into overlapping segments of at most chunkSize
// characters. Within each window it prefers to cut at the last sentence
// terminator or paragraph break found past the window's midpoint, so chunks
// tend to end on sentence boundaries instead of mid-word. Consecutive chunks
// overlap by up to overlap characters. Chunks are trimmed and never empty.
// Sizes count runes, not bytes, so multi-byte text is never cut mid-rune.
func Chunk(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	runes := []rune(text)

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			if piece := strings.TrimSpace(string(runes[start:])); piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}

		window := runes[start:end]
		next := end - overlap
		piece := window
		if split := boundary(window); split > chunkSize/2 {
			piece = window[:split+1]
			next = start + split + 1 - overlap
		}

		// The pointer must always move forward; a boundary inside the
		// overlap region would otherwise loop forever.
		if next <= start {
			next = start + 1
		}

		if trimmed := strings.TrimSpace(string(piece)); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		start = next
	}
	return chunks
}

// boundary returns the index of the last sentence terminator or the start of
// the last paragraph break in the window, or -1.
func boundary(window []rune) int {
	lastPeriod, lastBreak := -1, -1
	for i, r := range window {
		switch r {
		case '.':
			lastPeriod = i
		case '\n':
			if i > 0 && window[i-1] == '\n' {
				lastBreak = i - 1
			}
		}
	}
	if lastBreak > lastPeriod {
		return lastBreak
	}
	return lastPeriod
}
