// Package chunking splits file content into overlapping windows for
// indexing. Splitting is deterministic: the same (content, params)
// always yields the same chunk sequence, which keeps document ids
// stable across re-indexing runs.
package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// BytesPerToken approximates one model token as four bytes of UTF-8.
const BytesPerToken = 4

// Params configures chunking. Budgets are expressed in approximate
// tokens.
type Params struct {
	MaxTokens     int
	OverlapTokens int
	MinTokens     int
}

// DefaultParams returns the indexing defaults: ~800-token windows with
// 100 tokens of overlap, dropping fragments under 12 tokens.
func DefaultParams() Params {
	return Params{
		MaxTokens:     800,
		OverlapTokens: 100,
		MinTokens:     12,
	}
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return (len(text) + BytesPerToken - 1) / BytesPerToken
}

// Chunk is one window of the original content.
type Chunk struct {
	content    string
	index      int
	offset     int
	startLine  int
	endLine    int
	tokenCount int
}

// Content returns the chunk text.
func (c Chunk) Content() string { return c.content }

// Index returns the zero-based chunk index within the file.
func (c Chunk) Index() int { return c.index }

// Offset returns the byte offset of the chunk in the original content.
func (c Chunk) Offset() int { return c.offset }

// StartLine returns the 1-based line where the chunk begins.
func (c Chunk) StartLine() int { return c.startLine }

// EndLine returns the 1-based line where the chunk ends.
func (c Chunk) EndLine() int { return c.endLine }

// TokenCount returns the approximate token count of the chunk.
func (c Chunk) TokenCount() int { return c.tokenCount }

// Split chunks content into windows of at most MaxTokens, preferring
// line boundaries, then whitespace boundaries within oversized lines,
// then rune boundaries within oversized words. Consecutive windows
// share OverlapTokens of trailing context.
func Split(content string, params Params) ([]Chunk, error) {
	if params.MaxTokens <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", params.MaxTokens)
	}
	if params.OverlapTokens >= params.MaxTokens {
		return nil, fmt.Errorf("overlap (%d) must be less than size (%d)", params.OverlapTokens, params.MaxTokens)
	}
	if content == "" {
		return nil, nil
	}

	size := params.MaxTokens * BytesPerToken
	overlap := params.OverlapTokens * BytesPerToken
	minBytes := params.MinTokens * BytesPerToken

	lines := splitKeepingNewlines(content)
	var chunks []Chunk
	var acc []string
	accBytes := 0
	offset := 0

	emit := func(text string, at int) {
		if len(text) >= minBytes {
			chunks = append(chunks, Chunk{content: text, offset: at})
		}
	}

	for _, line := range lines {
		if len(line) > size {
			// Flush accumulated lines before the oversized one.
			if accBytes > 0 {
				text := strings.Join(acc, "")
				emit(text, offset)
				offset += len(text)
				acc, accBytes = nil, 0
			}
			for _, p := range splitOversizedLine(line, size, overlap) {
				emit(p.content, offset+p.offset)
			}
			offset += len(line)
			continue
		}

		if accBytes+len(line) > size && accBytes > 0 {
			text := strings.Join(acc, "")
			emit(text, offset)
			offset += len(text)

			// Carry trailing lines into the next window as overlap.
			acc, accBytes = carryOverlap(acc, overlap)
			offset -= accBytes
		}

		acc = append(acc, line)
		accBytes += len(line)
	}

	if accBytes > 0 {
		emit(strings.Join(acc, ""), offset)
	}

	assignLineRanges(content, chunks)
	for i := range chunks {
		chunks[i].index = i
		chunks[i].tokenCount = EstimateTokens(chunks[i].content)
	}
	return chunks, nil
}

// splitKeepingNewlines splits content into lines with the trailing \n
// attached, so rejoining reproduces the input byte for byte.
func splitKeepingNewlines(content string) []string {
	var lines []string
	for len(content) > 0 {
		idx := strings.IndexByte(content, '\n')
		if idx < 0 {
			lines = append(lines, content)
			break
		}
		lines = append(lines, content[:idx+1])
		content = content[idx+1:]
	}
	return lines
}

// carryOverlap walks backward through lines and returns the trailing
// lines whose total byte count fits the overlap budget.
func carryOverlap(lines []string, overlap int) ([]string, int) {
	if overlap == 0 {
		return nil, 0
	}
	total := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		if total+len(lines[i]) > overlap {
			break
		}
		total += len(lines[i])
		start = i
	}
	if start == len(lines) {
		return nil, 0
	}
	carried := make([]string, len(lines)-start)
	copy(carried, lines[start:])
	return carried, total
}

// piece is a sub-line fragment with a byte offset relative to the line.
type piece struct {
	content string
	offset  int
}

func splitOversizedLine(line string, size, overlap int) []piece {
	words := splitKeepingWhitespace(line)
	if len(words) <= 1 {
		return splitAtRuneBoundaries(line, size, overlap)
	}
	return packWords(words, size, overlap)
}

// splitKeepingWhitespace splits at whitespace boundaries with the
// whitespace attached to the preceding word.
func splitKeepingWhitespace(s string) []string {
	var words []string
	start := 0
	prevSpace := false
	for i, r := range s {
		space := r == ' ' || r == '\t'
		if prevSpace && !space && i > start {
			words = append(words, s[start:i])
			start = i
		}
		prevSpace = space
	}
	if start < len(s) {
		words = append(words, s[start:])
	}
	return words
}

// packWords accumulates words into pieces of at most size bytes,
// delegating oversized words to rune-level splitting.
func packWords(words []string, size, overlap int) []piece {
	var result []piece
	var acc []string
	accBytes := 0
	offset := 0

	flush := func() {
		text := strings.Join(acc, "")
		result = append(result, piece{content: text, offset: offset})
		offset += len(text)
		acc, accBytes = nil, 0
	}

	for _, word := range words {
		if len(word) > size {
			if accBytes > 0 {
				flush()
			}
			for _, p := range splitAtRuneBoundaries(word, size, overlap) {
				result = append(result, piece{content: p.content, offset: offset + p.offset})
			}
			offset += len(word)
			continue
		}
		if accBytes+len(word) > size && accBytes > 0 {
			flush()
		}
		acc = append(acc, word)
		accBytes += len(word)
	}
	if accBytes > 0 {
		flush()
	}
	return result
}

// splitAtRuneBoundaries windows content into size-byte pieces stepping
// by size-overlap, never cutting through a rune.
func splitAtRuneBoundaries(content string, size, overlap int) []piece {
	step := size - overlap
	var result []piece
	start := 0
	for start < len(content) {
		if start > 0 && len(content)-start <= overlap {
			// The tail is already covered by the previous piece.
			break
		}
		end := start + size
		if end >= len(content) {
			end = len(content)
		} else {
			end = alignToRune(content, end)
		}
		result = append(result, piece{content: content[start:end], offset: start})
		if end == len(content) {
			break
		}
		next := alignToRune(content, start+step)
		if next <= start {
			_, n := utf8.DecodeRuneInString(content[start:])
			next = start + n
		}
		start = next
	}
	return result
}

// alignToRune moves offset back to the nearest rune start.
func alignToRune(s string, offset int) int {
	for offset > 0 && offset < len(s) && !utf8.RuneStart(s[offset]) {
		offset--
	}
	return offset
}

// assignLineRanges computes 1-based line ranges from byte offsets using
// a newline position index, so lookups are independent of chunk order.
func assignLineRanges(content string, chunks []Chunk) {
	var newlines []int
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			newlines = append(newlines, i)
		}
	}

	for i := range chunks {
		chunks[i].startLine = lineAt(newlines, chunks[i].offset)

		end := chunks[i].startLine + strings.Count(chunks[i].content, "\n")
		if n := len(chunks[i].content); n > 0 && chunks[i].content[n-1] == '\n' {
			end--
		}
		chunks[i].endLine = end
	}
}

// lineAt returns the 1-based line number at a byte offset via binary
// search over newline positions.
func lineAt(newlines []int, offset int) int {
	lo, hi := 0, len(newlines)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if newlines[mid] < offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo + 1
}
