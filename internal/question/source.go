// Package question supplies odd-one-out questions from a generative
// provider chained in front of a curated fallback bank.
package question

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/oddlab/oddyssey/internal/model"
)

var (
	// ErrExhausted means no question is available from any source for
	// the theme. Fatal to the session.
	ErrExhausted = errors.New("exhausted questions for the selected theme")
	// ErrMalformed means sanitization left a question without an odd
	// option. Callers treat it as "source unavailable".
	ErrMalformed = errors.New("question missing odd one out option")
)

// Request describes one question fetch. The exclusion sets let sources
// avoid repeating content already shown in the session.
type Request struct {
	ThemeID             string
	ThemeLabel          string
	Difficulty          model.Difficulty
	ExcludedQuestionIDs map[string]struct{}
	ExcludedOptionTexts map[string]struct{}
}

// Generator produces a question from an external generative provider.
// A nil question with nil error means nothing was produced; both cases
// send the caller to the fallback bank.
type Generator interface {
	Generate(ctx context.Context, req Request) (*model.Question, error)
}

// Picker draws a question from the curated fallback bank, or nil when
// the theme pool is exhausted.
type Picker interface {
	Pick(req Request) (*model.Question, error)
}

// Source chains the generative provider before the fallback bank.
type Source struct {
	gen  Generator
	bank Picker
}

// NewSource builds a Source. gen may be nil to run fallback-only.
func NewSource(gen Generator, bank Picker) *Source {
	return &Source{gen: gen, bank: bank}
}

// Fetch returns one sanitized question for the request, trying the
// generative provider first. Generative failures of any kind engage
// the fallback; a fallback miss or malformed fallback question is
// ErrExhausted.
func (s *Source) Fetch(ctx context.Context, req Request) (*model.Question, error) {
	if s.gen != nil {
		q, err := s.gen.Generate(ctx, req)
		switch {
		case err != nil:
			slog.Warn("question generation failed, falling back to curated bank", "theme", req.ThemeID, "error", err)
		case q != nil:
			sanitized, err := Sanitize(q)
			if err != nil {
				slog.Warn("generated question rejected by sanitization", "theme", req.ThemeID, "question", q.ID, "error", err)
			} else {
				return sanitized, nil
			}
		}
	}

	fallback, err := s.bank.Pick(req)
	if err != nil {
		return nil, err
	}
	if fallback == nil {
		return nil, ErrExhausted
	}
	sanitized, err := Sanitize(fallback)
	if err != nil {
		// The curated pool produced a question whose odd option was a
		// duplicate-text drop; nothing further to fall back to.
		slog.Error("fallback question rejected by sanitization", "question", fallback.ID, "error", err)
		return nil, ErrExhausted
	}
	return sanitized, nil
}

// Normalize is the option-text normalization used for uniqueness
// tracking and duplicate detection.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Sanitize drops options with duplicate normalized text (keeping the
// first occurrence) and re-derives the odd option id. Returns
// ErrMalformed when no surviving option is flagged odd.
func Sanitize(q *model.Question) (*model.Question, error) {
	seen := make(map[string]struct{}, len(q.Options))
	options := make([]model.Option, 0, len(q.Options))
	for _, opt := range q.Options {
		key := Normalize(opt.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		options = append(options, opt)
	}

	oddID := ""
	for _, opt := range options {
		if opt.IsOddOneOut {
			oddID = opt.ID
			break
		}
	}
	if oddID == "" {
		return nil, ErrMalformed
	}

	out := *q
	out.Options = options
	out.OddOptionID = oddID
	return &out, nil
}
