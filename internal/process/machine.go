package process

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/textlens/internal/event"
	"github.com/HerbHall/textlens/pkg/llm"
)

// TopicState is the event bus topic carrying State snapshots.
const TopicState = "process.state"

// ErrInvalidTransition is returned when an event is not valid in the
// current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// Input is one processing request.
type Input struct {
	Text       string `json:"selected_text"`
	TemplateID int64  `json:"template_id,omitempty"`
}

// Machine is the processing state machine: Idle, Loading, Streaming,
// Success, Error. At most one run is in flight; starting a new one cancels
// the previous run first, and updates from a superseded run are dropped.
//
// Subscribers and bus handlers are called while the machine serializes
// publication, so they must not call ProcessText, Cancel, ClearError or
// Retry synchronously. State is always safe to call.
type Machine struct {
	runner Runner
	bus    event.Publisher // may be nil
	logger *zap.Logger

	pubMu sync.Mutex // serializes transitions with their publication

	mu      sync.Mutex
	state   State
	seq     uint64
	current *run
	last    *Input // for Retry
	subs    map[uint64]chan State
	nextSub uint64
}

type run struct {
	id      string
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

// NewMachine creates a Machine in the Idle state. bus may be nil.
func NewMachine(runner Runner, bus event.Publisher, logger *zap.Logger) *Machine {
	return &Machine{
		runner: runner,
		bus:    bus,
		logger: logger,
		state:  idle(),
		subs:   make(map[uint64]chan State),
	}
}

// State returns the current snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a channel that receives every state change, plus the
// current state immediately. The channel holds one value; a slow reader
// sees the latest state rather than every intermediate one. Call the
// returned function to unsubscribe; the channel is then closed.
func (m *Machine) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.pubMu.Lock()
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.state
	m.mu.Unlock()
	m.pubMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.pubMu.Lock()
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
			m.pubMu.Unlock()
		})
	}
}

// ProcessText starts a run for in and returns its ID. Valid from every
// state; an in-flight run is canceled first. ctx bounds the run itself
// (use context.Background for a run that outlives the caller).
func (m *Machine) ProcessText(ctx context.Context, in Input) string {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	return m.processTextLocked(ctx, in)
}

// processTextLocked starts a run. The caller holds pubMu.
func (m *Machine) processTextLocked(ctx context.Context, in Input) string {
	m.mu.Lock()
	prev := m.current
	if prev != nil {
		prev.cancel()
		m.logger.Debug("superseding in-flight run", zap.String("run_id", prev.id))
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:      uuid.NewString(),
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	m.current = r
	saved := in
	m.last = &saved
	snap := m.setLocked(r.id, loading())
	m.mu.Unlock()

	if prev != nil {
		observeRun(outcomeCanceled, "", prev.started)
	}
	m.publish(snap)

	m.logger.Info("processing started",
		zap.String("run_id", r.id),
		zap.Int("selected_len", len(in.Text)),
		zap.Int64("template_id", in.TemplateID),
	)
	go m.execute(runCtx, r, in)
	return r.id
}

// Cancel aborts the in-flight run and returns to Idle. Valid from Loading
// or Streaming; the partial result is discarded.
func (m *Machine) Cancel() error {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	r := m.current
	if r == nil || !m.state.Status.Active() {
		status := m.state.Status
		m.mu.Unlock()
		return transitionError("cancel", status)
	}
	r.cancel()
	m.current = nil
	snap := m.setLocked("", idle())
	m.mu.Unlock()

	observeRun(outcomeCanceled, "", r.started)
	m.logger.Info("processing canceled", zap.String("run_id", r.id))
	m.publish(snap)
	return nil
}

// ClearError returns to Idle. Valid only from Error.
func (m *Machine) ClearError() error {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	if m.state.Status != StatusError {
		status := m.state.Status
		m.mu.Unlock()
		return transitionError("clear error", status)
	}
	snap := m.setLocked("", idle())
	m.mu.Unlock()

	m.publish(snap)
	return nil
}

// Retry re-runs the last input. Valid only from Error.
func (m *Machine) Retry(ctx context.Context) (string, error) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	status := m.state.Status
	last := m.last
	m.mu.Unlock()

	if status != StatusError || last == nil {
		return "", transitionError("retry", status)
	}
	return m.processTextLocked(ctx, *last), nil
}

// Wait blocks until the current run, if any, finishes or ctx is done, and
// returns the state at that point.
func (m *Machine) Wait(ctx context.Context) (State, error) {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()

	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return m.State(), ctx.Err()
		}
	}
	return m.State(), nil
}

// Shutdown cancels any in-flight run and waits for it to stop.
func (m *Machine) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r == nil {
		return nil
	}
	if err := m.Cancel(); err != nil && !errors.Is(err, ErrInvalidTransition) {
		return err
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Machine) execute(ctx context.Context, r *run, in Input) {
	defer close(r.done)
	defer r.cancel()

	var (
		acc       strings.Builder
		fragments int
	)
	for frag, err := range m.runner.Run(ctx, in.Text, in.TemplateID) {
		if err != nil {
			m.fail(ctx, r, err, fragments)
			return
		}
		if fragments == 0 {
			firstFragmentSeconds.Observe(time.Since(r.started).Seconds())
		}
		fragments++
		fragmentsTotal.Inc()
		acc.WriteString(frag)
		if !m.transition(r, streaming(acc.String(), frag)) {
			return
		}
	}

	if ctx.Err() != nil {
		m.abandon(r)
		return
	}
	if m.transition(r, success(acc.String())) {
		observeRun(outcomeSuccess, "", r.started)
		m.logger.Info("processing finished",
			zap.String("run_id", r.id),
			zap.Int("fragments", fragments),
			zap.Int("result_len", acc.Len()),
			zap.Duration("duration", time.Since(r.started)),
		)
	}
}

func (m *Machine) fail(ctx context.Context, r *run, err error, fragments int) {
	if ctx.Err() != nil || llm.IsCanceled(err) {
		m.abandon(r)
		return
	}
	if m.transition(r, failed(err)) {
		kind := llm.KindOf(err)
		observeRun(outcomeError, kind, r.started)
		m.logger.Warn("processing failed",
			zap.String("run_id", r.id),
			zap.String("error_kind", kind),
			zap.Int("fragments", fragments),
			zap.Duration("duration", time.Since(r.started)),
			zap.Error(err),
		)
	}
}

// abandon returns to Idle after a run stopped because its context ended.
// It is a no-op when Cancel or a newer run already moved on.
func (m *Machine) abandon(r *run) {
	if m.transition(r, idle()) {
		observeRun(outcomeCanceled, "", r.started)
		m.logger.Info("processing abandoned: context ended", zap.String("run_id", r.id))
	}
}

// transition applies s if r is still the current run. Terminal states end
// the run. It reports whether s was applied.
func (m *Machine) transition(r *run, s State) bool {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	if m.current != r {
		m.mu.Unlock()
		return false
	}
	if !s.Status.Active() {
		m.current = nil
	}
	snap := m.setLocked(r.id, s)
	m.mu.Unlock()

	m.publish(snap)
	return true
}

// setLocked stamps and stores s. m.mu must be held.
func (m *Machine) setLocked(runID string, s State) State {
	m.seq++
	s.Seq = m.seq
	s.RunID = runID
	m.state = s
	return s
}

// publish fans s out to subscribers and the bus. m.pubMu must be held.
func (m *Machine) publish(s State) {
	m.mu.Lock()
	for _, ch := range m.subs {
		// Keep only the newest value.
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
	m.mu.Unlock()

	if m.bus != nil {
		_ = m.bus.Publish(context.Background(), event.Event{
			Topic:     TopicState,
			Source:    "process",
			Timestamp: time.Now(),
			Payload:   s,
		})
	}
}

func transitionError(op string, from Status) error {
	return &TransitionError{Op: op, From: from}
}

// TransitionError reports an event that is not valid in the current state.
type TransitionError struct {
	Op   string
	From Status
}

func (e *TransitionError) Error() string {
	return "cannot " + e.Op + " while " + string(e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
