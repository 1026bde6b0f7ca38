package question

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/oddlab/oddyssey/internal/model"
)

// BankStore is the persisted curated question pool.
type BankStore interface {
	BankQuestionsByTheme(themeID string) ([]model.BankQuestion, error)
}

// Bank draws fallback questions from the curated pool, honoring the
// session's seen-question exclusions.
type Bank struct {
	store BankStore
	now   func() time.Time
	intn  func(n int) int
}

// BankOption configures a Bank.
type BankOption func(*Bank)

// WithBankClock overrides the timestamp source.
func WithBankClock(now func() time.Time) BankOption {
	return func(b *Bank) { b.now = now }
}

// WithBankRand overrides the random selection source.
func WithBankRand(intn func(n int) int) BankOption {
	return func(b *Bank) { b.intn = intn }
}

// NewBank builds a Bank over the given store.
func NewBank(store BankStore, opts ...BankOption) *Bank {
	b := &Bank{
		store: store,
		now:   time.Now,
		intn:  rand.Intn,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Pick selects an unseen bank question for the theme at the requested
// difficulty, widening to any difficulty in the theme when the exact
// pool is exhausted. Returns nil when the whole theme pool is seen.
func (b *Bank) Pick(req Request) (*model.Question, error) {
	all, err := b.store.BankQuestionsByTheme(req.ThemeID)
	if err != nil {
		return nil, fmt.Errorf("load bank questions: %w", err)
	}

	var exact, unseen []model.BankQuestion
	for _, bq := range all {
		if _, ok := req.ExcludedQuestionIDs[bq.ID]; ok {
			continue
		}
		unseen = append(unseen, bq)
		if bq.Difficulty == req.Difficulty {
			exact = append(exact, bq)
		}
	}

	pool := exact
	if len(pool) == 0 {
		pool = unseen
	}
	if len(pool) == 0 {
		return nil, nil
	}

	selected := pool[b.intn(len(pool))]
	return b.build(selected), nil
}

// build turns a raw bank question into a playable Question with
// stable per-question option ids.
func (b *Bank) build(bq model.BankQuestion) *model.Question {
	options := make([]model.Option, len(bq.Options))
	oddID := ""
	for i, opt := range bq.Options {
		id := fmt.Sprintf("%s-option-%d", bq.ID, i)
		options[i] = model.Option{ID: id, Text: opt.Text, IsOddOneOut: opt.IsOddOneOut}
		if opt.IsOddOneOut {
			oddID = id
		}
	}

	return &model.Question{
		ID:          bq.ID,
		Seed:        uuid.NewString(),
		Prompt:      bq.Prompt,
		ThemeID:     bq.ThemeID,
		Difficulty:  bq.Difficulty,
		Options:     options,
		OddOptionID: oddID,
		Source:      model.SourceFallback,
		GeneratedAt: b.now(),
	}
}
