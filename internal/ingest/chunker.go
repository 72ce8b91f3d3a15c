package ingest

import (
	"strings"
)

// Chunking defaults, in characters. Overlap carries trailing words from one
// chunk into the next so a sentence boundary never strands context.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 150
)

// Chunker splits text into overlapping retrieval units
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker with the given target size and overlap.
// Non-positive values fall back to the defaults.
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap <= 0 {
		overlap = DefaultOverlap
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk splits text at sentence boundaries into chunks of roughly chunkSize
// characters. When a chunk fills up, the last words covering about overlap
// characters are repeated at the start of the next chunk. Text without
// sentence punctuation is treated as one sentence.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)

	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		if current.Len()+len(sentence) > c.chunkSize && current.Len() > 0 {
			chunk := strings.TrimSpace(current.String())
			chunks = append(chunks, chunk)

			current.Reset()
			if carry := c.overlapTail(chunk); carry != "" {
				current.WriteString(carry)
				current.WriteString(" ")
			}
		}
		current.WriteString(sentence)
	}

	if tail := strings.TrimSpace(current.String()); tail != "" {
		chunks = append(chunks, tail)
	}

	return chunks
}

// overlapTail returns the trailing words of a chunk that should carry over,
// proportional to the overlap/chunkSize ratio
func (c *Chunker) overlapTail(chunk string) string {
	words := strings.Split(chunk, " ")
	carry := len(words) * c.overlap / c.chunkSize
	if carry <= 0 {
		return ""
	}
	if carry > len(words) {
		carry = len(words)
	}
	return strings.Join(words[len(words)-carry:], " ")
}

// splitSentences cuts text after runs of sentence-ending punctuation.
// Returns the whole text as a single element if no terminator is found.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	i := 0

	for i < len(text) {
		if isTerminator(text[i]) {
			for i < len(text) && isTerminator(text[i]) {
				i++
			}
			sentences = append(sentences, text[start:i])
			start = i
			continue
		}
		i++
	}

	if start < len(text) {
		if rest := text[start:]; strings.TrimSpace(rest) != "" {
			sentences = append(sentences, rest)
		}
	}

	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// TranscriptSegment is one timed span of an audio transcription
type TranscriptSegment struct {
	Text  string
	Start float64 // seconds
	End   float64
}

// TranscriptChunk is a chunk of transcript text with its covered time range
type TranscriptChunk struct {
	Text  string
	Start float64
	End   float64
}

// DefaultChunkDuration is the target transcript chunk length in seconds
const DefaultChunkDuration = 40.0

// ChunkTranscript groups timed segments into chunks of roughly chunkDuration
// seconds, carrying the last two segments into the next chunk as overlap.
func ChunkTranscript(segments []TranscriptSegment, chunkDuration float64) []TranscriptChunk {
	if chunkDuration <= 0 {
		chunkDuration = DefaultChunkDuration
	}

	var chunks []TranscriptChunk
	var current []TranscriptSegment
	var startTime, duration float64

	for _, segment := range segments {
		segDuration := segment.End - segment.Start

		if duration+segDuration > chunkDuration && len(current) > 0 {
			chunks = append(chunks, buildTranscriptChunk(current, startTime))

			carry := 2
			if carry > len(current) {
				carry = len(current)
			}
			kept := make([]TranscriptSegment, carry, carry+1)
			copy(kept, current[len(current)-carry:])
			current = append(kept, segment)
			startTime = current[0].Start
			duration = segment.End - startTime
			continue
		}

		if len(current) == 0 {
			startTime = segment.Start
		}
		current = append(current, segment)
		duration = segment.End - startTime
	}

	if len(current) > 0 {
		chunks = append(chunks, buildTranscriptChunk(current, startTime))
	}

	return chunks
}

func buildTranscriptChunk(segments []TranscriptSegment, startTime float64) TranscriptChunk {
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	return TranscriptChunk{
		Text:  strings.Join(texts, " "),
		Start: startTime,
		End:   segments[len(segments)-1].End,
	}
}
