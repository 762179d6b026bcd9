package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
)

// Exchanger is the single-call contract a Session builds on
type Exchanger interface {
	Exchange(ctx context.Context, prompt string, history model.History, docs []string) (string, error)
}

// Session keeps an in-memory history across Exchange calls
type Session struct {
	exchanger Exchanger
	history   model.History

	window          int
	maxHistoryBytes int
}

type Option func(*Session)

// WithWindow sends only the most recent k turns to the model. 0 sends all.
func WithWindow(k int) Option {
	return func(s *Session) {
		s.window = k
	}
}

// WithMaxHistoryBytes summarizes older turns once the history grows beyond n bytes. 0 disables it.
func WithMaxHistoryBytes(n int) Option {
	return func(s *Session) {
		s.maxHistoryBytes = n
	}
}

// WithHistory starts the session from existing turns
func WithHistory(h model.History) Option {
	return func(s *Session) {
		s.history = h
	}
}

func New(exchanger Exchanger, opts ...Option) (*Session, error) {
	if exchanger == nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "exchanger is required")
	}

	s := &Session{exchanger: exchanger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// History returns the turns recorded so far
func (s *Session) History() model.History {
	return s.history
}

// Send exchanges message with the model and records the turn on success.
// On failure the history is left as it was.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	history := s.history

	if s.maxHistoryBytes > 0 && history.Bytes() > s.maxHistoryBytes {
		compressed, err := compressHistory(ctx, s.exchanger, history)
		switch {
		case errors.Is(err, errNothingToCompress):
			logging.From(ctx).Warn("history exceeds the limit but cannot be compressed further",
				"turns", len(history),
				"bytes", history.Bytes(),
				"limit", s.maxHistoryBytes,
			)
		case err != nil:
			return "", goerr.Wrap(err, "failed to compress history", goerr.V("bytes", history.Bytes()))
		default:
			logging.From(ctx).Info("conversation history compressed",
				"before_turns", len(history),
				"after_turns", len(compressed),
				"before_bytes", history.Bytes(),
				"after_bytes", compressed.Bytes(),
			)
			history = compressed
		}
	}

	start := time.Now()
	resp, err := s.exchanger.Exchange(ctx, message, history.Last(s.window), nil)
	if err != nil {
		return "", err
	}
	logging.From(ctx).Debug("turn completed", "index", len(history), "elapsed", time.Since(start))

	s.history = history.Append(message, resp)
	return resp, nil
}

// Reset drops all turns
func (s *Session) Reset() {
	s.history = nil
}
