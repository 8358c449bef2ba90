package summarizer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is a conservative character budget per model call.
const DefaultChunkSize = 6000

// sentenceJoiner re-joins sentences inside a chunk. The original terminator
// ("!" or "?") is not preserved.
const sentenceJoiner = ". "

// Terminators may be followed by any Unicode space, including NBSP and the
// byte order mark.
var sentenceTerminator = regexp.MustCompile(`[.!?]+[\s\p{Z}\x{FEFF}]+`)

// Chunk splits text into ordered chunks of at most maxSize characters, cutting
// on sentence boundaries. Text that already fits is returned unchanged as a
// single chunk. A sentence longer than maxSize becomes its own oversized chunk.
func Chunk(text string, maxSize int) []string {
	if maxSize <= 0 || utf8.RuneCountInString(text) <= maxSize {
		return []string{text}
	}

	var (
		chunks     []string
		current    strings.Builder
		currentLen int
	)

	for _, sentence := range sentenceTerminator.Split(text, -1) {
		sentenceLen := utf8.RuneCountInString(sentence)

		appendLen := sentenceLen
		if current.Len() > 0 {
			appendLen += len(sentenceJoiner)
		}

		if currentLen+appendLen > maxSize && current.Len() > 0 {
			chunks = appendChunk(chunks, current.String())
			current.Reset()
			current.WriteString(sentence)
			currentLen = sentenceLen
			continue
		}

		if current.Len() > 0 {
			current.WriteString(sentenceJoiner)
		}
		current.WriteString(sentence)
		currentLen += appendLen
	}

	if current.Len() > 0 {
		chunks = appendChunk(chunks, current.String())
	}

	return chunks
}

func appendChunk(chunks []string, chunk string) []string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return chunks
	}
	return append(chunks, chunk)
}
