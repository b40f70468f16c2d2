package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"ms-checkin/internal/authz"
	"ms-checkin/internal/models"
	"ms-checkin/internal/redemption"
)

type State string

const (
	StateIdle           State = "idle"
	StateEntering       State = "entering"
	StateDetecting      State = "detecting"
	StateCandidateFound State = "candidate_found"
	StateSubmitting     State = "submitting"
	StateResult         State = "result"
)

type Mode string

const (
	ModeNone   Mode = ""
	ModeManual Mode = "manual"
	ModeCamera Mode = "camera"
)

// ErrNotAuthorized is returned when the operator lacks the scan capability
// for camera mode. Manual entry is gated elsewhere.
var ErrNotAuthorized = errors.New("operator not authorized for camera scanning")

// Redeemer is the redemption service as seen from the device.
type Redeemer interface {
	Redeem(ctx context.Context, attempt redemption.Attempt) (redemption.Outcome, error)
}

// Notifier is the operator-facing feedback sink.
type Notifier interface {
	Success(message string)
	Failure(message string)
}

// Result is what the machine holds in the result state. Retryable is set
// only for transient submission failures; every other outcome is terminal
// for the attempt.
type Result struct {
	Outcome   *redemption.Outcome
	Err       error
	Retryable bool
}

// Machine is the device-side scan state machine. All transitions go through
// the mutex; the detection task runs on its own goroutine and re-enters via
// handleDetection.
type Machine struct {
	EventID  string
	Operator models.Operator

	gate     authz.Gate
	redeemer Redeemer
	notifier Notifier
	source   FrameSource
	interval time.Duration

	mu           sync.Mutex
	state        State
	mode         Mode
	cancelDetect context.CancelFunc
	detectDone   chan struct{}
	lastAttempt  *redemption.Attempt
	last         *Result
}

func NewMachine(eventID string, operator models.Operator, gate authz.Gate, redeemer Redeemer, notifier Notifier, source FrameSource, interval time.Duration) *Machine {
	return &Machine{
		EventID:  eventID,
		Operator: operator,
		gate:     gate,
		redeemer: redeemer,
		notifier: notifier,
		source:   source,
		interval: interval,
		state:    StateIdle,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Machine) LastResult() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// StartManual switches to manual code entry, cancelling any running
// detection task.
func (m *Machine) StartManual() {
	m.mu.Lock()
	m.stopDetectionLocked()
	m.mode = ModeManual
	m.state = StateEntering
	m.last = nil
	m.mu.Unlock()
}

// SubmitCode submits a hand-typed code.
func (m *Machine) SubmitCode(ctx context.Context, code string) {
	attempt := redemption.Attempt{
		Code:       code,
		EventID:    m.EventID,
		OperatorID: m.Operator.ID,
	}
	m.submit(ctx, attempt)
}

// StartCamera switches to camera mode and starts the detection task. The
// task is cancelled on the first detection, on a mode switch, on Reset, and
// on Close; whichever comes first, exactly once.
func (m *Machine) StartCamera(ctx context.Context) error {
	if !m.gate.CanScan(m.Operator, m.EventID) {
		return ErrNotAuthorized
	}
	if m.source == nil {
		m.notifier.Failure("Scanning is not supported on this device.")
		return ErrUnsupported
	}

	m.mu.Lock()
	m.stopDetectionLocked()
	m.mode = ModeCamera
	m.state = StateDetecting
	m.last = nil

	detectCtx, cancel := context.WithCancel(ctx)
	m.cancelDetect = cancel
	done := make(chan struct{})
	m.detectDone = done
	m.mu.Unlock()

	detector := NewDetector(m.source, m.interval)
	go func() {
		defer close(done)
		payload, err := detector.Run(detectCtx)
		cancel()
		m.handleDetection(ctx, payload, err)
	}()

	return nil
}

func (m *Machine) handleDetection(ctx context.Context, raw string, err error) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		m.mu.Lock()
		m.last = &Result{Err: err}
		m.state = StateResult
		m.mu.Unlock()

		switch {
		case errors.Is(err, ErrUnsupported):
			m.notifier.Failure("Scanning is not supported on this device.")
		case errors.Is(err, ErrDevice):
			m.notifier.Failure("Camera unavailable. Check permissions and try again.")
		default:
			m.notifier.Failure("Scanning failed. Reset and try again.")
		}
		return
	}

	m.mu.Lock()
	m.state = StateCandidateFound
	m.mu.Unlock()

	payload := ParsePayload(raw)
	attempt := redemption.Attempt{
		Code:       payload.Code,
		Token:      payload.Token,
		EventID:    m.EventID,
		OperatorID: m.Operator.ID,
	}
	m.submit(ctx, attempt)
}

func (m *Machine) submit(ctx context.Context, attempt redemption.Attempt) {
	m.mu.Lock()
	m.state = StateSubmitting
	m.lastAttempt = &attempt
	m.mu.Unlock()

	outcome, err := m.redeemer.Redeem(ctx, attempt)

	m.mu.Lock()
	if err != nil {
		// Transient failure: the outcome of the attempt is unknown. The
		// operator may retry the same input; a success that did land comes
		// back as already_used, which is the safe report.
		m.last = &Result{Err: err, Retryable: true}
	} else {
		m.last = &Result{Outcome: &outcome}
	}
	m.state = StateResult
	m.mu.Unlock()

	if err != nil {
		m.notifier.Failure("Network error. You may retry the same scan.")
		return
	}
	if outcome.Success {
		m.notifier.Success(outcome.Message)
	} else {
		m.notifier.Failure(outcome.Message)
	}
}

// Retry re-submits the last attempt. Only transient failures are retryable.
func (m *Machine) Retry(ctx context.Context) bool {
	m.mu.Lock()
	if m.last == nil || !m.last.Retryable || m.lastAttempt == nil {
		m.mu.Unlock()
		return false
	}
	attempt := *m.lastAttempt
	m.mu.Unlock()

	m.submit(ctx, attempt)
	return true
}

// Reset acknowledges the displayed result and returns to idle. The
// redemption already happened (or terminally failed) inside Redeem; reset
// never mutates the store.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.stopDetectionLocked()
	m.state = StateIdle
	m.mode = ModeNone
	m.last = nil
	m.lastAttempt = nil
	m.mu.Unlock()
}

// Close tears the machine down, cancelling any detection task.
func (m *Machine) Close() {
	m.mu.Lock()
	done := m.detectDone
	m.stopDetectionLocked()
	m.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (m *Machine) stopDetectionLocked() {
	if m.cancelDetect != nil {
		m.cancelDetect()
		m.cancelDetect = nil
	}
}
