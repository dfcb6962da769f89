package engine

import (
	"sync"
	"time"

	"memorludo/internal/models"
)

// Finisher receives the outcome of a round exactly once, on the transition
// into Won or Lost.
type Finisher func(models.RoundOutcome)

// Config controls a Round's timing behavior. With UseTimers set, the round
// drives its own one-second ticks and schedules the resolution window itself;
// without it the caller invokes Tick and ResolveNow directly, which is how
// the tests drive the state machine deterministically.
type Config struct {
	ResolveDelay time.Duration
	UseTimers    bool
	OnFinish     Finisher
}

// Round owns the flip state, match resolution, countdown and win/loss
// determination for a single playthrough. All methods are safe for
// concurrent use; invalid calls are silent no-ops.
type Round struct {
	cfg Config

	mu            sync.Mutex
	cards         []models.Card
	flipped       []int
	matchedCount  int
	timeLimit     int
	timeRemaining int
	status        models.RoundStatus
	difficulty    models.Difficulty
	pairCount     int
	resolving     bool
	finished      bool

	// gen invalidates pending resolution callbacks and ticker loops from a
	// previous life of this round. Bumped on every Start, finish and Teardown.
	gen  uint64
	stop chan struct{}
}

func New(cfg Config) *Round {
	if cfg.ResolveDelay <= 0 {
		cfg.ResolveDelay = 800 * time.Millisecond
	}
	return &Round{cfg: cfg, status: models.StatusIdle}
}

// Start resets the round onto a fresh deck and begins the countdown.
func (r *Round) Start(difficulty models.Difficulty, cards []models.Card, timeLimitSeconds int) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	if r.stop != nil {
		close(r.stop)
	}
	r.stop = make(chan struct{})
	stop := r.stop

	r.cards = cards
	r.flipped = nil
	r.matchedCount = 0
	r.timeLimit = timeLimitSeconds
	r.timeRemaining = timeLimitSeconds
	r.status = models.StatusRunning
	r.difficulty = difficulty
	r.pairCount = len(cards) / 2
	r.resolving = false
	r.finished = false
	r.mu.Unlock()

	if r.cfg.UseTimers {
		go r.runTicker(gen, stop)
	}
}

func (r *Round) runTicker(gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !r.tickGen(gen) {
				return
			}
		}
	}
}

// tickGen applies one tick on behalf of the ticker goroutine and reports
// whether the loop should keep running.
func (r *Round) tickGen(gen uint64) bool {
	r.mu.Lock()
	if gen != r.gen || r.status.Terminal() {
		r.mu.Unlock()
		return false
	}
	fire := r.tickLocked()
	r.mu.Unlock()
	r.fire(fire)
	return fire == nil
}

// Tick decrements the countdown by one second. It no-ops unless the round
// is running; reaching zero loses the round.
func (r *Round) Tick() {
	r.mu.Lock()
	fire := r.tickLocked()
	r.mu.Unlock()
	r.fire(fire)
}

func (r *Round) tickLocked() *models.RoundOutcome {
	if r.status != models.StatusRunning {
		return nil
	}
	r.timeRemaining--
	if r.timeRemaining > 0 {
		return nil
	}
	r.timeRemaining = 0
	return r.finishLocked(false)
}

// Flip reveals the card at index. It silently ignores the call unless the
// round is running, no resolution is pending, fewer than two cards are up,
// and the card is neither flipped nor matched already.
func (r *Round) Flip(index int) {
	r.mu.Lock()
	if r.status != models.StatusRunning || r.resolving ||
		index < 0 || index >= len(r.cards) ||
		r.cards[index].IsFlipped || r.cards[index].IsMatched ||
		len(r.flipped) >= 2 {
		r.mu.Unlock()
		return
	}

	r.cards[index].IsFlipped = true
	r.flipped = append(r.flipped, index)
	if len(r.flipped) < 2 {
		r.mu.Unlock()
		return
	}

	r.resolving = true
	gen := r.gen
	r.mu.Unlock()

	if r.cfg.UseTimers {
		time.AfterFunc(r.cfg.ResolveDelay, func() { r.resolve(gen) })
	}
}

// ResolveNow applies the pending flip comparison immediately. Used by tests
// and as the scheduled callback target.
func (r *Round) ResolveNow() {
	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()
	r.resolve(gen)
}

func (r *Round) resolve(gen uint64) {
	r.mu.Lock()
	if gen != r.gen || !r.resolving || len(r.flipped) != 2 {
		r.mu.Unlock()
		return
	}

	first, second := r.flipped[0], r.flipped[1]
	if r.cards[first].PairKey == r.cards[second].PairKey {
		r.cards[first].IsMatched = true
		r.cards[second].IsMatched = true
		r.matchedCount += 2
	} else {
		r.cards[first].IsFlipped = false
		r.cards[second].IsFlipped = false
	}
	r.flipped = nil
	r.resolving = false

	var fire *models.RoundOutcome
	if r.matchedCount == len(r.cards) && len(r.cards) > 0 {
		fire = r.finishLocked(true)
	}
	r.mu.Unlock()
	r.fire(fire)
}

// Pause suspends ticking and flipping. Resume undoes an explicit pause.
func (r *Round) Pause() {
	r.mu.Lock()
	if r.status == models.StatusRunning {
		r.status = models.StatusPaused
	}
	r.mu.Unlock()
}

func (r *Round) Resume() {
	r.mu.Lock()
	if r.status == models.StatusPaused {
		r.status = models.StatusRunning
	}
	r.mu.Unlock()
}

// VisibilityChange pauses the round when the page is hidden. Becoming
// visible again never auto-resumes.
func (r *Round) VisibilityChange(hidden bool) {
	if hidden {
		r.Pause()
	}
}

// Abandon finishes an unfinished round as a loss. Safe to call redundantly;
// only the first call produces an outcome.
func (r *Round) Abandon() {
	r.mu.Lock()
	var fire *models.RoundOutcome
	if !r.status.Terminal() && r.status != models.StatusIdle {
		fire = r.finishLocked(false)
	}
	r.mu.Unlock()
	r.fire(fire)
}

// Teardown cancels pending resolution callbacks and the ticker so nothing
// can mutate a subsequently reset round. It does not score anything.
func (r *Round) Teardown() {
	r.mu.Lock()
	r.gen++
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.resolving = false
	r.mu.Unlock()
}

// finishLocked transitions into Won or Lost exactly once per round.
func (r *Round) finishLocked(won bool) *models.RoundOutcome {
	if r.finished {
		return nil
	}
	r.finished = true
	r.gen++
	r.resolving = false
	if won {
		r.status = models.StatusWon
	} else {
		r.status = models.StatusLost
	}
	return &models.RoundOutcome{
		IsWin:            won,
		Difficulty:       r.difficulty,
		TimeSpentSeconds: r.timeLimit - r.timeRemaining,
	}
}

func (r *Round) fire(outcome *models.RoundOutcome) {
	if outcome != nil && r.cfg.OnFinish != nil {
		r.cfg.OnFinish(*outcome)
	}
}

// Status returns the current lifecycle state.
func (r *Round) Status() models.RoundStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Snapshot copies the round into its renderable form.
func (r *Round) Snapshot() models.RoundState {
	r.mu.Lock()
	defer r.mu.Unlock()

	cards := make([]models.Card, len(r.cards))
	copy(cards, r.cards)

	flipped := make([]int, len(r.flipped))
	copy(flipped, r.flipped)

	matched := make([]int, 0, r.matchedCount)
	for i := range r.cards {
		if r.cards[i].IsMatched {
			matched = append(matched, i)
		}
	}

	return models.RoundState{
		Cards:          cards,
		FlippedIndices: flipped,
		MatchedIndices: matched,
		TimeRemaining:  r.timeRemaining,
		Status:         r.status,
		Difficulty:     r.difficulty,
		PairCount:      r.pairCount,
		Resolving:      r.resolving,
	}
}
