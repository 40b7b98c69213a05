package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elevare/server/internal/model"
)

// State is the state of a generation machine.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateSuccess    State = "success"
	StateFailure    State = "failure"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns whether the state ends an attempt.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Snapshot is a point-in-time view of a machine.
type Snapshot struct {
	UserID     string            `json:"-"`
	Feature    model.FeatureType `json:"feature"`
	State      State             `json:"state"`
	Result     *Result           `json:"result,omitempty"`
	ErrorCode  string            `json:"error_code,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
}

// Machine sequences idle -> generating -> success|failure for one feature
// instance. At most one generation is in flight at a time.
type Machine struct {
	userID  string
	feature model.FeatureType
	notify  func(Snapshot)
	now     func() time.Time

	mu         sync.Mutex
	state      State
	result     *Result
	errCode    string
	errMsg     string
	cancel     context.CancelFunc
	startedAt  time.Time
	finishedAt time.Time
}

// NewMachine creates an idle machine. notify may be nil.
func NewMachine(userID string, feature model.FeatureType, notify func(Snapshot)) *Machine {
	return &Machine{
		userID:  userID,
		feature: feature,
		notify:  notify,
		now:     time.Now,
		state:   StateIdle,
	}
}

// Start enters generating, clearing the previous result or error. The
// returned context is cancelled by Cancel or when the attempt ends.
func (m *Machine) Start(ctx context.Context) (context.Context, error) {
	m.mu.Lock()
	if m.state == StateGenerating {
		m.mu.Unlock()
		return nil, ErrGenerationInProgress
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.state = StateGenerating
	m.result = nil
	m.errCode = ""
	m.errMsg = ""
	m.cancel = cancel
	m.startedAt = m.now()
	m.finishedAt = time.Time{}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	return runCtx, nil
}

// Complete moves generating -> success and stores the result.
func (m *Machine) Complete(result *Result) error {
	m.mu.Lock()
	if m.state != StateGenerating {
		m.mu.Unlock()
		return ErrNotGenerating
	}

	m.state = StateSuccess
	m.result = result
	m.finish()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	return nil
}

// Fail moves generating -> failure and stores a user-readable message.
func (m *Machine) Fail(err error) error {
	m.mu.Lock()
	if m.state != StateGenerating {
		m.mu.Unlock()
		return ErrNotGenerating
	}

	m.state = StateFailure
	m.errCode, m.errMsg = Classify(err)
	m.finish()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	return nil
}

// Cancel aborts the in-flight attempt. The attempt then fails with a
// cancellation error. Returns false when nothing was in flight.
func (m *Machine) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateGenerating || m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Run executes fn as one attempt: Start, fn, then Complete or Fail.
// Panics inside fn become failures.
func (m *Machine) Run(ctx context.Context, fn func(ctx context.Context) (*Result, error)) (result *Result, err error) {
	runCtx, err := m.Start(ctx)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("generation panicked: %v", r)
			_ = m.Fail(err)
		}
	}()

	result, err = fn(runCtx)
	if err != nil {
		_ = m.Fail(err)
		return nil, err
	}

	_ = m.Complete(result)
	return result, nil
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) finish() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.finishedAt = m.now()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		UserID:     m.userID,
		Feature:    m.feature,
		State:      m.state,
		Result:     m.result,
		ErrorCode:  m.errCode,
		Error:      m.errMsg,
		StartedAt:  m.startedAt,
		FinishedAt: m.finishedAt,
	}
}

func (m *Machine) emit(snap Snapshot) {
	if m.notify != nil {
		m.notify(snap)
	}
}
