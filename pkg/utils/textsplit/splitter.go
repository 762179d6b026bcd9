// Package textsplit cuts documents into overlapping chunks for embedding.
package textsplit

import (
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
)

const (
	DefaultChunkSize    = 200
	DefaultChunkOverlap = 50
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits text recursively on a list of separators until every piece
// fits in ChunkSize characters, then merges neighbours back up to ChunkSize
// with ChunkOverlap characters shared between consecutive chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

type Option func(*Splitter)

func WithChunkSize(n int) Option {
	return func(s *Splitter) {
		s.chunkSize = n
	}
}

func WithChunkOverlap(n int) Option {
	return func(s *Splitter) {
		s.chunkOverlap = n
	}
}

func WithSeparators(seps ...string) Option {
	return func(s *Splitter) {
		s.separators = seps
	}
}

func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		separators:   DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.chunkSize <= 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "chunk size must be positive", goerr.V("chunk_size", s.chunkSize))
	}
	if s.chunkOverlap < 0 || s.chunkOverlap >= s.chunkSize {
		return nil, goerr.Wrap(model.ErrInvalidInput, "chunk overlap must be in [0, chunk size)",
			goerr.V("chunk_size", s.chunkSize),
			goerr.V("chunk_overlap", s.chunkOverlap))
	}
	if len(s.separators) == 0 {
		s.separators = DefaultSeparators
	}

	return s, nil
}

// Split returns the chunks of text in document order. Blank chunks are dropped.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator present in text; the rest are used for oversized pieces
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var (
		chunks []string
		good   []string
	)
	for _, piece := range splitOn(text, separator) {
		if length(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}

		if len(good) > 0 {
			chunks = append(chunks, s.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good, separator)...)
	}

	return chunks
}

// merge joins small pieces into chunks of at most chunkSize, carrying up to
// chunkOverlap characters of the previous chunk into the next one
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := length(separator)

	var (
		chunks  []string
		current []string
		total   int
	)

	joinedLen := func(next int) int {
		if len(current) > 0 {
			return total + next + sepLen
		}
		return total + next
	}

	for _, piece := range pieces {
		l := length(piece)

		if joinedLen(l) > s.chunkSize {
			if len(current) > 0 {
				if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
					chunks = append(chunks, chunk)
				}

				for total > s.chunkOverlap || (total > 0 && joinedLen(l) > s.chunkSize) {
					drop := length(current[0])
					if len(current) > 1 {
						drop += sepLen
					}
					total -= drop
					current = current[1:]
				}
			}
		}

		current = append(current, piece)
		total += l
		if len(current) > 1 {
			total += sepLen
		}
	}

	if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func splitOn(text, separator string) []string {
	var pieces []string
	if separator == "" {
		pieces = make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		pieces = strings.Split(text, separator)
	}

	out := pieces[:0]
	for _, p := range pieces {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
