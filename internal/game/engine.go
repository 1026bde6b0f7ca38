// Package game implements the session engine: the state machine that
// owns all mutable state for one play-through, from countdown and
// scoring to power cards and question sequencing.
package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oddlab/oddyssey/internal/model"
	"github.com/oddlab/oddyssey/internal/question"
	"github.com/oddlab/oddyssey/internal/theme"
)

const (
	// DefaultDuration is the countdown length in seconds.
	DefaultDuration = 60

	incorrectPenaltySeconds = 3
	skipPenaltySeconds      = 1
)

// ErrUnknownTheme is returned by Start for theme ids not in the
// playable catalog.
var ErrUnknownTheme = errors.New("unknown theme")

// Fetcher supplies the next question for a session.
type Fetcher interface {
	Fetch(ctx context.Context, req question.Request) (*model.Question, error)
}

// FinishHook receives the final snapshot and question history when a
// session finishes. Called on its own goroutine.
type FinishHook func(snap model.GameSnapshot, questions []model.PlayedQuestion)

// Engine drives one game session at a time. All state is guarded by a
// single mutex; the countdown ticks from a background goroutine.
type Engine struct {
	fetcher    Fetcher
	now        func() time.Time
	intn       func(n int) int
	duration   int
	tickEvery  time.Duration
	finishHook FinishHook

	mu         sync.Mutex
	status     model.GameStatus
	sessionID  string
	theme      *model.Theme
	remaining  int
	score      int
	current    *model.Question
	played     []model.PlayedQuestion
	startedAt  time.Time
	finishedAt time.Time
	cards      map[model.PowerCardType]*model.PowerCard
	modifiers  model.ActiveModifiers
	seenIDs    map[string]struct{}
	seenTexts  map[string]struct{}
	cardsUsed  map[model.PowerCardType]struct{}
	loading    bool
	lastErr    error
	timerStop  chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand overrides the random source used by remove-wrong.
func WithRand(intn func(n int) int) Option {
	return func(e *Engine) { e.intn = intn }
}

// WithDuration overrides the countdown length in seconds.
func WithDuration(seconds int) Option {
	return func(e *Engine) { e.duration = seconds }
}

// WithTickInterval sets the countdown cadence. Zero disables the
// background ticker; tests then drive the clock through Tick.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tickEvery = d }
}

// WithFinishHook registers a callback invoked once per finished session.
func WithFinishHook(hook FinishHook) Option {
	return func(e *Engine) { e.finishHook = hook }
}

// New creates an idle engine.
func New(fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:   fetcher,
		now:       time.Now,
		intn:      rand.Intn,
		duration:  DefaultDuration,
		tickEvery: time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.mu.Lock()
	e.resetLocked()
	e.mu.Unlock()
	return e
}

// Start begins a new session on the given theme, discarding any prior
// session. The countdown starts only once the first question arrives;
// a failed first fetch leaves the session in the error state.
func (e *Engine) Start(ctx context.Context, themeID string) error {
	t := theme.Lookup(themeID)
	if t == nil {
		return ErrUnknownTheme
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
	e.status = model.StatusLoading
	e.sessionID = uuid.NewString()
	e.theme = t
	e.startedAt = e.now()

	sid := e.sessionID
	e.fetchNextLocked(ctx)
	if e.sessionID != sid {
		// Another Start raced in while the first fetch was in flight;
		// this session was abandoned.
		return nil
	}
	if e.status == model.StatusError {
		return e.lastErr
	}

	e.status = model.StatusRunning
	e.startTimerLocked()
	return nil
}

// Reset returns the engine to idle, synchronously stopping any timer.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

// Tick advances the countdown by one second. Only meaningful while
// running; the transition to finished fires exactly once even against
// repeated zero ticks.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != model.StatusRunning {
		return
	}
	if e.remaining <= 0 {
		e.remaining = 0
		e.finishLocked()
		return
	}
	e.remaining--
	if e.remaining == 0 {
		e.finishLocked()
	}
}

// Answer evaluates the chosen option against the current question.
// A no-op unless the session is running with a question on screen and
// no fetch outstanding.
func (e *Engine) Answer(ctx context.Context, optionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != model.StatusRunning || e.current == nil || e.loading {
		return
	}

	q := *e.current
	correct := optionID == q.OddOptionID

	if correct {
		if e.modifiers.DoubleScore {
			e.score += 2
		} else {
			e.score++
		}
	} else if !e.modifiers.KeepTime {
		e.remaining = max0(e.remaining - incorrectPenaltySeconds)
	}

	outcome := model.OutcomeIncorrect
	if correct {
		outcome = model.OutcomeCorrect
	}
	e.played = append(e.played, model.PlayedQuestion{
		Question:           q,
		ChosenOptionID:     optionID,
		Outcome:            outcome,
		AnsweredAt:         e.now(),
		TimeRemainingAfter: e.remaining,
		PowerCardsUsed:     e.usedCardsLocked(),
	})
	e.resetModifiersLocked()

	if e.remaining == 0 {
		e.finishLocked()
		return
	}
	e.fetchNextLocked(ctx)
}

// Skip records the current question as skipped at a fixed one-second
// penalty. Same guards as Answer.
func (e *Engine) Skip(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != model.StatusRunning || e.current == nil || e.loading {
		return
	}

	e.remaining = max0(e.remaining - skipPenaltySeconds)
	e.played = append(e.played, model.PlayedQuestion{
		Question:           *e.current,
		Outcome:            model.OutcomeSkipped,
		AnsweredAt:         e.now(),
		TimeRemainingAfter: e.remaining,
		PowerCardsUsed:     e.usedCardsLocked(),
	})
	e.resetModifiersLocked()

	if e.remaining == 0 {
		e.finishLocked()
		return
	}
	e.fetchNextLocked(ctx)
}

// UsePowerCard applies a power card to the current question. Each card
// has a single use per session; unknown card types and exhausted cards
// are silent no-ops.
func (e *Engine) UsePowerCard(ctx context.Context, cardType model.PowerCardType) {
	e.mu.Lock()
	defer e.mu.Unlock()

	card, ok := e.cards[cardType]
	if !ok {
		return
	}
	if card.Remaining <= 0 || e.current == nil || e.status != model.StatusRunning {
		return
	}

	switch cardType {
	case model.CardSwap:
		// A swap issued while a fetch is outstanding is dropped, not
		// queued; the card is not consumed.
		if e.loading {
			return
		}
		card.Remaining--
		e.fetchNextLocked(ctx)
	case model.CardRemoveWrong:
		if len(e.current.Options) <= 3 {
			return
		}
		var wrong []model.Option
		for _, opt := range e.current.Options {
			if !opt.IsOddOneOut {
				wrong = append(wrong, opt)
			}
		}
		if len(wrong) == 0 {
			return
		}
		target := wrong[e.intn(len(wrong))]
		kept := make([]model.Option, 0, len(e.current.Options)-1)
		for _, opt := range e.current.Options {
			if opt.ID != target.ID {
				kept = append(kept, opt)
			}
		}
		e.current.Options = kept
		card.Remaining--
		card.Active = true
		e.cardsUsed[cardType] = struct{}{}
	case model.CardDoubleScore:
		card.Remaining--
		card.Active = true
		e.modifiers.DoubleScore = true
		e.cardsUsed[cardType] = struct{}{}
	case model.CardKeepTime:
		card.Remaining--
		card.Active = true
		e.modifiers.KeepTime = true
		e.cardsUsed[cardType] = struct{}{}
	}
}

// Finish ends the session early. Idempotent; terminal states stay put.
func (e *Engine) Finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != model.StatusRunning && e.status != model.StatusLoading {
		return
	}
	e.finishLocked()
}

// Snapshot returns a read-only copy of the session state.
func (e *Engine) Snapshot() model.GameSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// History returns a copy of the played-question records.
func (e *Engine) History() []model.PlayedQuestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.PlayedQuestion(nil), e.played...)
}

// fetchNextLocked pulls the next question from the fetcher. Called
// with the lock held; the lock is released for the duration of the
// provider call and results from abandoned sessions are discarded by
// session id. A fetch failure is fatal to the session.
func (e *Engine) fetchNextLocked(ctx context.Context) {
	if e.loading || e.status == model.StatusFinished {
		return
	}
	e.loading = true
	e.cardsUsed = make(map[model.PowerCardType]struct{})

	sid := e.sessionID
	req := question.Request{
		ThemeID:             e.theme.ID,
		ThemeLabel:          e.theme.Label,
		Difficulty:          theme.DifficultyFor(e.theme, len(e.played)),
		ExcludedQuestionIDs: cloneSet(e.seenIDs),
		ExcludedOptionTexts: cloneSet(e.seenTexts),
	}

	e.mu.Unlock()
	q, err := e.fetcher.Fetch(ctx, req)
	e.mu.Lock()

	if e.sessionID != sid {
		// Stale result from a session that was reset mid-fetch.
		return
	}
	if e.status == model.StatusFinished {
		// The session finished while the fetch was in flight; the
		// result no longer matters and must not disturb the terminal
		// state.
		e.loading = false
		return
	}
	e.loading = false
	if err != nil {
		e.lastErr = err
		e.status = model.StatusError
		e.stopTimerLocked()
		return
	}

	e.current = q
	e.seenIDs[q.ID] = struct{}{}
	for _, opt := range q.Options {
		e.seenTexts[question.Normalize(opt.Text)] = struct{}{}
	}
}

func (e *Engine) finishLocked() {
	if e.status == model.StatusFinished {
		return
	}
	e.status = model.StatusFinished
	e.finishedAt = e.now()
	e.stopTimerLocked()

	if e.finishHook != nil {
		snap := e.snapshotLocked()
		questions := append([]model.PlayedQuestion(nil), e.played...)
		go e.finishHook(snap, questions)
	}
}

func (e *Engine) resetLocked() {
	e.stopTimerLocked()
	e.status = model.StatusIdle
	e.sessionID = ""
	e.theme = nil
	e.remaining = e.duration
	e.score = 0
	e.current = nil
	e.played = nil
	e.startedAt = time.Time{}
	e.finishedAt = time.Time{}
	e.cards = make(map[model.PowerCardType]*model.PowerCard, len(model.PowerCardTypes))
	for _, t := range model.PowerCardTypes {
		e.cards[t] = &model.PowerCard{Type: t, Remaining: 1}
	}
	e.modifiers = model.ActiveModifiers{}
	e.seenIDs = make(map[string]struct{})
	e.seenTexts = make(map[string]struct{})
	e.cardsUsed = make(map[model.PowerCardType]struct{})
	e.loading = false
	e.lastErr = nil
}

func (e *Engine) resetModifiersLocked() {
	e.modifiers = model.ActiveModifiers{}
	for _, card := range e.cards {
		card.Active = false
	}
	e.cardsUsed = make(map[model.PowerCardType]struct{})
}

// startTimerLocked launches the countdown goroutine, always cancelling
// any prior timer first so at most one is live per session.
func (e *Engine) startTimerLocked() {
	e.stopTimerLocked()
	if e.tickEvery <= 0 {
		return
	}
	stop := make(chan struct{})
	e.timerStop = stop
	go func() {
		ticker := time.NewTicker(e.tickEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.Tick()
			}
		}
	}()
}

func (e *Engine) stopTimerLocked() {
	if e.timerStop != nil {
		close(e.timerStop)
		e.timerStop = nil
	}
}

func (e *Engine) usedCardsLocked() []model.PowerCardType {
	if len(e.cardsUsed) == 0 {
		return nil
	}
	out := make([]model.PowerCardType, 0, len(e.cardsUsed))
	for _, t := range model.PowerCardTypes {
		if _, ok := e.cardsUsed[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (e *Engine) snapshotLocked() model.GameSnapshot {
	snap := model.GameSnapshot{
		SessionID:       e.sessionID,
		Status:          e.status,
		RemainingTime:   e.remaining,
		Score:           e.score,
		TotalQuestions:  len(e.played),
		StartedAt:       e.startedAt,
		ActiveModifiers: e.modifiers,
		PowerCards:      make(map[model.PowerCardType]model.PowerCard, len(e.cards)),
	}
	if e.theme != nil {
		snap.ThemeID = e.theme.ID
		snap.ThemeLabel = e.theme.Label
	}
	if e.current != nil {
		q := *e.current
		q.Options = append([]model.Option(nil), e.current.Options...)
		snap.CurrentQuestion = &q
	}
	if !e.finishedAt.IsZero() {
		t := e.finishedAt
		snap.FinishedAt = &t
	}
	for t, card := range e.cards {
		snap.PowerCards[t] = *card
	}
	if e.lastErr != nil {
		snap.LastError = e.lastErr.Error()
	}
	return snap
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
