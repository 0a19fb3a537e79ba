package knowledge

import "strings"

// maxChunkRunes bounds a single chunk when the text carries no sentence
// boundaries at all (logs, minified output). Sentence-delimited text is
// never cut mid-sentence.
const maxChunkRunes = 1000

// Normalize prepares raw content for chunking: line breaks collapse to
// single spaces and runs of whitespace shrink to one space. Identical input
// always normalizes identically, which keeps chunk boundaries reproducible.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// SplitSentences splits normalized text into sentence chunks. A sentence
// ends at '.', '!' or '?' followed by a space or end of input; the
// terminator stays with its sentence. Sentence-less text falls back to
// fixed windows of maxChunkRunes.
//
// The policy is deterministic: the same input yields the same chunks.
func SplitSentences(text string) []string {
	var chunks []string
	runes := []rune(text)

	start := 0
	for i := 0; i < len(runes); i++ {
		atTerminator := runes[i] == '.' || runes[i] == '!' || runes[i] == '?'
		atBoundary := atTerminator && (i+1 == len(runes) || runes[i+1] == ' ')

		if atBoundary || i-start+1 >= maxChunkRunes {
			chunk := strings.TrimSpace(string(runes[start : i+1]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			start = i + 1
		}
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

// ChunkContent normalizes and splits raw content in one step.
func ChunkContent(raw string) []string {
	return SplitSentences(Normalize(raw))
}
