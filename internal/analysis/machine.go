package analysis

// attemptState is a state of the per-batch attempt loop.
type attemptState int

const (
	stateAttempting attemptState = iota
	stateSucceeded
	stateExhausted
)

func (s attemptState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateSucceeded:
		return "succeeded"
	case stateExhausted:
		return "exhausted"
	default:
		return "invalid"
	}
}

// attemptMachine bounds the attempt loop of one batch. It starts in
// Attempting with limit attempts remaining and reaches Succeeded on the
// first successful request or Exhausted once remaining hits zero. Both
// terminal states are absorbing.
type attemptMachine struct {
	state     attemptState
	attempt   int
	remaining int
	model     string
	raw       string
	errs      []error
}

func newAttemptMachine(limit int) *attemptMachine {
	m := &attemptMachine{state: stateAttempting, remaining: limit}
	if limit < 1 {
		m.state = stateExhausted
	}
	return m
}

// record applies the outcome of one attempt against model.
func (m *attemptMachine) record(model, raw string, err error) {
	if m.state != stateAttempting {
		return
	}

	m.attempt++
	m.remaining--
	if err == nil {
		m.state = stateSucceeded
		m.model = model
		m.raw = raw
		return
	}
	if m.remaining <= 0 {
		m.state = stateExhausted
	}
}

// abandon ends the loop early, e.g. when the run is canceled mid-backoff.
func (m *attemptMachine) abandon() {
	if m.state == stateAttempting {
		m.state = stateExhausted
	}
}
