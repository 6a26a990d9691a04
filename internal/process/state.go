package process

import (
	"github.com/HerbHall/textlens/pkg/llm"
)

// Status is the phase of the processing state machine.
type Status string

// Machine statuses.
const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusStreaming Status = "streaming"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Active reports whether a pipeline run is in flight.
func (s Status) Active() bool {
	return s == StatusLoading || s == StatusStreaming
}

// State is an immutable snapshot of the machine. Which fields are set
// depends on Status:
//
//	streaming: Text is everything received so far, LastFragment the newest piece
//	success:   Text is the full result
//	error:     Reason is the user-facing message, Err the underlying error
type State struct {
	Status       Status `json:"status"`
	RunID        string `json:"run_id,omitempty"`
	Seq          uint64 `json:"seq"`
	Text         string `json:"text,omitempty"`
	LastFragment string `json:"last_fragment,omitempty"`
	Reason       string `json:"reason,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	Retryable    bool   `json:"retryable,omitempty"`

	Err error `json:"-"`
}

func idle() State {
	return State{Status: StatusIdle}
}

func loading() State {
	return State{Status: StatusLoading}
}

func streaming(text, last string) State {
	return State{Status: StatusStreaming, Text: text, LastFragment: last}
}

func success(text string) State {
	return State{Status: StatusSuccess, Text: text}
}

func failed(err error) State {
	return State{
		Status:    StatusError,
		Reason:    llm.UserMessage(err),
		ErrorKind: llm.KindOf(err),
		Retryable: llm.IsRetryable(err),
		Err:       err,
	}
}
