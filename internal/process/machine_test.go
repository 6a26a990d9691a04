package process

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/internal/event"
	"github.com/HerbHall/textlens/pkg/llm"
)

// fakeRun is one Run call the test drives by hand.
type fakeRun struct {
	in    Input
	ctx   context.Context
	frags chan string // close to finish successfully
	errc  chan error
}

type fakeRunner struct {
	runs chan *fakeRun
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{runs: make(chan *fakeRun, 8)}
}

func (f *fakeRunner) Run(ctx context.Context, selected string, templateID int64) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		fr := &fakeRun{
			in:    Input{Text: selected, TemplateID: templateID},
			ctx:   ctx,
			frags: make(chan string),
			errc:  make(chan error, 1),
		}
		f.runs <- fr
		for {
			select {
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			case frag, ok := <-fr.frags:
				if !ok {
					return
				}
				if !yield(frag, nil) {
					return
				}
			case err := <-fr.errc:
				yield("", err)
				return
			}
		}
	}
}

func (f *fakeRunner) next(t *testing.T) *fakeRun {
	t.Helper()
	select {
	case fr := <-f.runs:
		return fr
	case <-time.After(2 * time.Second):
		t.Fatal("runner was not invoked")
		return nil
	}
}

// recorder captures every published state in order.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func newRecorder(bus *event.Bus) *recorder {
	r := &recorder{}
	bus.Subscribe(TopicState, func(_ context.Context, e event.Event) {
		r.mu.Lock()
		r.states = append(r.states, e.Payload.(State))
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recorder) statuses() []Status {
	var out []Status
	for _, s := range r.snapshot() {
		out = append(out, s.Status)
	}
	return out
}

func newTestMachine(t *testing.T) (*Machine, *fakeRunner, *recorder) {
	t.Helper()
	runner := newFakeRunner()
	bus := event.NewBus(zap.NewNop())
	rec := newRecorder(bus)
	m := NewMachine(runner, bus, zap.NewNop())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m, runner, rec
}

func waitStatus(t *testing.T, m *Machine, want Status) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := m.State(); s.Status == want {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", m.State().Status, want)
	return State{}
}

func wait(t *testing.T, m *Machine) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := m.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return s
}

func equalStatuses(a, b []Status) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMachine_InitialState(t *testing.T) {
	m, _, _ := newTestMachine(t)
	if s := m.State(); s.Status != StatusIdle {
		t.Errorf("initial status = %s, want idle", s.Status)
	}
}

func TestMachine_StreamsToSuccess(t *testing.T) {
	m, runner, rec := newTestMachine(t)

	id := m.ProcessText(context.Background(), Input{Text: "bonjour", TemplateID: 3})
	if s := m.State(); s.Status != StatusLoading || s.RunID != id {
		t.Fatalf("after ProcessText: %+v, want loading for %s", s, id)
	}

	fr := runner.next(t)
	if fr.in.Text != "bonjour" || fr.in.TemplateID != 3 {
		t.Errorf("runner input = %+v", fr.in)
	}
	fr.frags <- "Hel"
	fr.frags <- "lo"
	close(fr.frags)

	final := wait(t, m)
	if final.Status != StatusSuccess || final.Text != "Hello" {
		t.Fatalf("final = %+v, want success Hello", final)
	}

	want := []Status{StatusLoading, StatusStreaming, StatusStreaming, StatusSuccess}
	if got := rec.statuses(); !equalStatuses(got, want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	states := rec.snapshot()
	if states[1].Text != "Hel" || states[1].LastFragment != "Hel" {
		t.Errorf("first streaming = %+v", states[1])
	}
	if states[2].Text != "Hello" || states[2].LastFragment != "lo" {
		t.Errorf("second streaming = %+v", states[2])
	}
	for i := 1; i < len(states); i++ {
		if states[i].Seq <= states[i-1].Seq {
			t.Errorf("seq not increasing at %d: %d <= %d", i, states[i].Seq, states[i-1].Seq)
		}
	}
}

func TestMachine_EmptyCompletionIsSuccess(t *testing.T) {
	m, runner, rec := newTestMachine(t)

	m.ProcessText(context.Background(), Input{Text: "x"})
	close(runner.next(t).frags)

	final := wait(t, m)
	if final.Status != StatusSuccess || final.Text != "" {
		t.Fatalf("final = %+v, want empty success", final)
	}
	if got, want := rec.statuses(), []Status{StatusLoading, StatusSuccess}; !equalStatuses(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
}

func TestMachine_Errors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		afterFrag bool
		reason    string
		kind      string
		retryable bool
	}{
		{
			name:   "configuration",
			err:    llm.NewConfigurationError("api_key", "provider \"p\" requires an API key"),
			reason: "Configuration error: provider \"p\" requires an API key",
			kind:   "configuration",
		},
		{
			name:   "api",
			err:    llm.NewAPIError(401, `{"error":"bad key"}`),
			reason: `API request failed: 401 - {"error":"bad key"}`,
			kind:   "api",
		},
		{
			name:      "network mid-stream",
			err:       &llm.NetworkError{Kind: llm.KindCustom, Err: errors.New("connection reset")},
			afterFrag: true,
			reason:    "Network error: connection reset",
			kind:      "network",
			retryable: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, runner, rec := newTestMachine(t)
			m.ProcessText(context.Background(), Input{Text: "x"})
			fr := runner.next(t)
			if tt.afterFrag {
				fr.frags <- "partial"
			}
			fr.errc <- tt.err

			final := wait(t, m)
			if final.Status != StatusError {
				t.Fatalf("final = %+v, want error", final)
			}
			if final.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", final.Reason, tt.reason)
			}
			if final.ErrorKind != tt.kind || final.Retryable != tt.retryable {
				t.Errorf("kind/retryable = %s/%v, want %s/%v", final.ErrorKind, final.Retryable, tt.kind, tt.retryable)
			}
			if !errors.Is(final.Err, tt.err) {
				t.Errorf("Err = %v, want %v", final.Err, tt.err)
			}
			if final.Text != "" {
				t.Errorf("error state carries text %q", final.Text)
			}
			statuses := rec.statuses()
			if statuses[len(statuses)-1] != StatusError {
				t.Errorf("statuses = %v", statuses)
			}
		})
	}
}

func TestMachine_CancelMidStream(t *testing.T) {
	m, runner, rec := newTestMachine(t)

	m.ProcessText(context.Background(), Input{Text: "x"})
	fr := runner.next(t)
	fr.frags <- "partial"
	waitStatus(t, m, StatusStreaming)

	if err := m.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if s := m.State(); s.Status != StatusIdle || s.Text != "" {
		t.Fatalf("after Cancel: %+v, want plain idle", s)
	}

	select {
	case <-fr.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run context was not canceled")
	}

	// The aborted run must not publish anything after Idle.
	time.Sleep(20 * time.Millisecond)
	want := []Status{StatusLoading, StatusStreaming, StatusIdle}
	if got := rec.statuses(); !equalStatuses(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
}

func TestMachine_CancelWhileLoading(t *testing.T) {
	m, runner, _ := newTestMachine(t)
	m.ProcessText(context.Background(), Input{Text: "x"})
	fr := runner.next(t)

	if err := m.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	<-fr.ctx.Done()
	if s := m.State(); s.Status != StatusIdle {
		t.Errorf("status = %s, want idle", s.Status)
	}
}

func TestMachine_InvalidTransitions(t *testing.T) {
	m, runner, _ := newTestMachine(t)

	if err := m.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Cancel from idle = %v, want ErrInvalidTransition", err)
	}
	if err := m.ClearError(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ClearError from idle = %v, want ErrInvalidTransition", err)
	}
	if _, err := m.Retry(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Retry from idle = %v, want ErrInvalidTransition", err)
	}

	m.ProcessText(context.Background(), Input{Text: "x"})
	close(runner.next(t).frags)
	wait(t, m)

	var te *TransitionError
	if err := m.Cancel(); !errors.As(err, &te) || te.From != StatusSuccess {
		t.Errorf("Cancel from success = %v", err)
	}
	if err := m.ClearError(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ClearError from success = %v", err)
	}
}

func TestMachine_NewRunCancelsPrevious(t *testing.T) {
	m, runner, rec := newTestMachine(t)

	first := m.ProcessText(context.Background(), Input{Text: "one"})
	fr1 := runner.next(t)
	fr1.frags <- "old"
	waitStatus(t, m, StatusStreaming)

	second := m.ProcessText(context.Background(), Input{Text: "two"})
	if first == second {
		t.Fatal("run IDs must differ")
	}
	select {
	case <-fr1.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("first run was not canceled")
	}

	fr2 := runner.next(t)
	fr2.frags <- "new"
	close(fr2.frags)

	final := wait(t, m)
	if final.Status != StatusSuccess || final.Text != "new" || final.RunID != second {
		t.Fatalf("final = %+v, want success new from second run", final)
	}

	seenSecond := false
	for _, s := range rec.snapshot() {
		if s.RunID == second {
			seenSecond = true
		} else if seenSecond && s.RunID == first {
			t.Errorf("state from superseded run published after new run started: %+v", s)
		}
	}
}

func TestMachine_ClearError(t *testing.T) {
	m, runner, _ := newTestMachine(t)
	m.ProcessText(context.Background(), Input{Text: "x"})
	runner.next(t).errc <- errors.New("boom")
	wait(t, m)

	if err := m.ClearError(); err != nil {
		t.Fatalf("ClearError: %v", err)
	}
	if s := m.State(); s.Status != StatusIdle || s.Reason != "" {
		t.Errorf("after ClearError: %+v", s)
	}
}

func TestMachine_Retry(t *testing.T) {
	m, runner, _ := newTestMachine(t)
	m.ProcessText(context.Background(), Input{Text: "again", TemplateID: 2})
	runner.next(t).errc <- &llm.NetworkError{Kind: llm.KindOllama, Err: errors.New("refused")}
	if s := wait(t, m); !s.Retryable {
		t.Fatalf("state = %+v, want retryable error", s)
	}

	id, err := m.Retry(context.Background())
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	fr := runner.next(t)
	if fr.in.Text != "again" || fr.in.TemplateID != 2 {
		t.Errorf("retry input = %+v", fr.in)
	}
	fr.frags <- "ok"
	close(fr.frags)

	final := wait(t, m)
	if final.Status != StatusSuccess || final.RunID != id {
		t.Errorf("final = %+v", final)
	}
}

func TestMachine_RetryRacesClearError(t *testing.T) {
	m, runner, _ := newTestMachine(t)
	fail := func() {
		runner.next(t).errc <- errors.New("boom")
		if s := wait(t, m); s.Status != StatusError {
			t.Fatalf("state = %+v, want error", s)
		}
	}
	m.ProcessText(context.Background(), Input{Text: "x"})
	fail()

	for i := 0; i < 50; i++ {
		var (
			wg                 sync.WaitGroup
			retryErr, clearErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, retryErr = m.Retry(context.Background())
		}()
		go func() {
			defer wg.Done()
			clearErr = m.ClearError()
		}()
		wg.Wait()

		switch {
		case retryErr == nil && clearErr == nil:
			t.Fatalf("iteration %d: both Retry and ClearError left Error", i)
		case retryErr != nil && clearErr != nil:
			t.Fatalf("iteration %d: neither succeeded: %v / %v", i, retryErr, clearErr)
		case retryErr == nil:
			if !errors.Is(clearErr, ErrInvalidTransition) {
				t.Fatalf("ClearError = %v, want ErrInvalidTransition", clearErr)
			}
		default:
			if !errors.Is(retryErr, ErrInvalidTransition) {
				t.Fatalf("Retry = %v, want ErrInvalidTransition", retryErr)
			}
			m.ProcessText(context.Background(), Input{Text: "x"})
		}
		fail()
	}
}

func TestMachine_ParentContextEnds(t *testing.T) {
	m, runner, _ := newTestMachine(t)
	ctx, cancel := context.WithCancel(context.Background())

	m.ProcessText(ctx, Input{Text: "x"})
	fr := runner.next(t)
	fr.frags <- "a"
	waitStatus(t, m, StatusStreaming)
	cancel()

	waitStatus(t, m, StatusIdle)
	if s := wait(t, m); s.Status != StatusIdle {
		t.Errorf("after parent cancel: %+v", s)
	}
}

func TestMachine_Subscribe(t *testing.T) {
	m, runner, _ := newTestMachine(t)

	ch, unsubscribe := m.Subscribe()
	if s := <-ch; s.Status != StatusIdle {
		t.Fatalf("initial snapshot = %s, want idle", s.Status)
	}

	m.ProcessText(context.Background(), Input{Text: "x"})
	fr := runner.next(t)
	fr.frags <- "a"
	fr.frags <- "b"
	close(fr.frags)
	wait(t, m)

	// Last write wins: the buffered value is the terminal state.
	select {
	case s := <-ch:
		if s.Status != StatusSuccess || s.Text != "ab" {
			t.Errorf("latest = %+v, want success ab", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no state delivered")
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("channel not closed after unsubscribe")
	}
}
