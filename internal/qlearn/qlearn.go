// Package qlearn implements tabular Q-learning over integer state and
// action spaces. It is a self-contained utility: nothing in the
// distillation pipeline calls it, and it calls nothing back.
//
// A Learner is not safe for concurrent use.
package qlearn

import (
	"fmt"
	"math/rand"
)

// Default hyperparameters, applied unless overridden with options.
const (
	DefaultLearningRate = 0.1
	DefaultDiscount     = 0.95
	DefaultEpsilon      = 0.1
)

// Learner holds a dense Q-table plus the hyperparameters that drive
// action selection and value updates.
type Learner struct {
	stateCount  int
	actionCount int

	learningRate float64
	discount     float64
	epsilon      float64

	table [][]float64
	rng   *rand.Rand
}

// Option adjusts a Learner at construction time.
type Option func(*Learner)

// WithLearningRate sets the step size for value updates. Non-positive
// rates are ignored.
func WithLearningRate(alpha float64) Option {
	return func(l *Learner) {
		if alpha > 0 {
			l.learningRate = alpha
		}
	}
}

// WithDiscount sets the future-reward discount factor. Negative values
// are ignored.
func WithDiscount(gamma float64) Option {
	return func(l *Learner) {
		if gamma >= 0 {
			l.discount = gamma
		}
	}
}

// WithEpsilon sets the exploration probability for Action. Values
// outside [0, 1] are ignored.
func WithEpsilon(epsilon float64) Option {
	return func(l *Learner) {
		if epsilon >= 0 && epsilon <= 1 {
			l.epsilon = epsilon
		}
	}
}

// WithRand supplies the random source used by the epsilon-greedy policy.
// Tests pass a seeded source for reproducible action sequences.
func WithRand(rng *rand.Rand) Option {
	return func(l *Learner) {
		if rng != nil {
			l.rng = rng
		}
	}
}

// New builds a Learner with a zeroed stateCount x actionCount Q-table.
func New(stateCount, actionCount int, opts ...Option) (*Learner, error) {
	if stateCount <= 0 {
		return nil, fmt.Errorf("state count must be positive, got %d", stateCount)
	}
	if actionCount <= 0 {
		return nil, fmt.Errorf("action count must be positive, got %d", actionCount)
	}

	table := make([][]float64, stateCount)
	for i := range table {
		table[i] = make([]float64, actionCount)
	}

	l := &Learner{
		stateCount:   stateCount,
		actionCount:  actionCount,
		learningRate: DefaultLearningRate,
		discount:     DefaultDiscount,
		epsilon:      DefaultEpsilon,
		table:        table,
		rng:          rand.New(rand.NewSource(rand.Int63())),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Action picks an action for state with the epsilon-greedy policy: with
// probability epsilon a uniformly random action, otherwise the action
// with the highest learned value (lowest index on ties).
func (l *Learner) Action(state int) (int, error) {
	if err := l.checkState(state); err != nil {
		return 0, err
	}

	if l.rng.Float64() < l.epsilon {
		return l.rng.Intn(l.actionCount), nil
	}

	best := 0
	row := l.table[state]
	for a := 1; a < l.actionCount; a++ {
		if row[a] > row[best] {
			best = a
		}
	}
	return best, nil
}

// Update applies one Bellman update for the observed transition:
//
//	Q(s,a) += alpha * (reward + gamma * max_a' Q(next,a') - Q(s,a))
func (l *Learner) Update(state, action int, reward float64, next int) error {
	if err := l.checkState(state); err != nil {
		return err
	}
	if action < 0 || action >= l.actionCount {
		return fmt.Errorf("action %d out of range [0,%d)", action, l.actionCount)
	}
	if err := l.checkState(next); err != nil {
		return fmt.Errorf("next %w", err)
	}

	current := l.table[state][action]
	maxNext := l.table[next][0]
	for _, q := range l.table[next][1:] {
		if q > maxNext {
			maxNext = q
		}
	}
	l.table[state][action] = current + l.learningRate*(reward+l.discount*maxNext-current)
	return nil
}

// BatchUpdate applies Update to each aligned transition. All four slices
// must have the same length.
func (l *Learner) BatchUpdate(states, actions []int, rewards []float64, nexts []int) error {
	n := len(states)
	if len(actions) != n || len(rewards) != n || len(nexts) != n {
		return fmt.Errorf("batch slices must have equal lengths: states=%d actions=%d rewards=%d nexts=%d",
			len(states), len(actions), len(rewards), len(nexts))
	}

	for i := 0; i < n; i++ {
		if err := l.Update(states[i], actions[i], rewards[i], nexts[i]); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return nil
}

// OptimalPath walks from start toward end following the current policy,
// using the deterministic transition next = (state + action) mod
// stateCount. The walk stops on reaching end or after maxSteps moves,
// whichever comes first, and returns every visited state starting with
// start.
func (l *Learner) OptimalPath(start, end, maxSteps int) ([]int, error) {
	if err := l.checkState(start); err != nil {
		return nil, fmt.Errorf("start %w", err)
	}
	if err := l.checkState(end); err != nil {
		return nil, fmt.Errorf("end %w", err)
	}

	path := []int{start}
	current := start
	for step := 0; step < maxSteps; step++ {
		if current == end {
			break
		}
		action, err := l.Action(current)
		if err != nil {
			return nil, err
		}
		current = (current + action) % l.stateCount
		path = append(path, current)
	}
	return path, nil
}

// Values returns a copy of the Q-table row for state.
func (l *Learner) Values(state int) ([]float64, error) {
	if err := l.checkState(state); err != nil {
		return nil, err
	}
	out := make([]float64, l.actionCount)
	copy(out, l.table[state])
	return out, nil
}

// States returns the number of states in the table.
func (l *Learner) States() int { return l.stateCount }

// Actions returns the number of actions per state.
func (l *Learner) Actions() int { return l.actionCount }

func (l *Learner) checkState(state int) error {
	if state < 0 || state >= l.stateCount {
		return fmt.Errorf("state %d out of range [0,%d)", state, l.stateCount)
	}
	return nil
}
