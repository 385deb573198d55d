package domain

import "strings"

// InteractionStatus is the state of one user session's verification flow.
type InteractionStatus string

const (
	StatusIdle      InteractionStatus = "idle"
	StatusAnalyzing InteractionStatus = "analyzing"
	StatusCompleted InteractionStatus = "completed"
	StatusError     InteractionStatus = "error"
)

// InteractionState is everything a display surface needs to render a
// session. Result is only set in StatusCompleted and ErrorMessage only in
// StatusError; entering one of those states clears the other slot.
type InteractionState struct {
	Status       InteractionStatus   `json:"currentState"`
	InputText    string              `json:"inputText"`
	Result       *VerificationResult `json:"result,omitempty"`
	ErrorMessage string              `json:"errorMessage,omitempty"`

	// Generation increases on every accepted submit and on every clear.
	// A completion is applied only if it carries the current generation,
	// so a verification that outlives a clear cannot overwrite newer state.
	Generation uint64 `json:"generation"`
}

// NewInteractionState returns the initial idle state.
func NewInteractionState() InteractionState {
	return InteractionState{Status: StatusIdle}
}

// CanSubmit reports whether a Submit event would be accepted.
func (s InteractionState) CanSubmit() bool {
	return s.Status != StatusAnalyzing && strings.TrimSpace(s.InputText) != ""
}

// Event is an input to Transition.
type Event interface{ isEvent() }

// SetInput replaces the held input text without changing the status.
type SetInput struct{ Text string }

// Submit starts a verification of the held input text.
type Submit struct{}

// Succeeded reports a successful verification started at Generation.
type Succeeded struct {
	Generation uint64
	Result     *VerificationResult
}

// Failed reports a failed verification started at Generation.
type Failed struct {
	Generation uint64
	Message    string
}

// Clear resets the session to idle with empty input.
type Clear struct{}

func (SetInput) isEvent()  {}
func (Submit) isEvent()    {}
func (Succeeded) isEvent() {}
func (Failed) isEvent()    {}
func (Clear) isEvent()     {}

// Transition applies event to state and returns the next state together
// with whether the event was accepted. Rejected events return state
// unchanged. Transition has no side effects.
func Transition(state InteractionState, event Event) (InteractionState, bool) {
	switch ev := event.(type) {
	case SetInput:
		state.InputText = ev.Text
		return state, true

	case Submit:
		if !state.CanSubmit() {
			return state, false
		}
		state.Status = StatusAnalyzing
		state.Result = nil
		state.ErrorMessage = ""
		state.Generation++
		return state, true

	case Succeeded:
		if state.Status != StatusAnalyzing || ev.Generation != state.Generation || ev.Result == nil {
			return state, false
		}
		state.Status = StatusCompleted
		state.Result = ev.Result
		state.ErrorMessage = ""
		return state, true

	case Failed:
		if state.Status != StatusAnalyzing || ev.Generation != state.Generation {
			return state, false
		}
		msg := ev.Message
		if msg == "" {
			msg = DefaultErrorMessage
		}
		state.Status = StatusError
		state.ErrorMessage = msg
		state.Result = nil
		return state, true

	case Clear:
		return InteractionState{
			Status:     StatusIdle,
			Generation: state.Generation + 1,
		}, true

	default:
		return state, false
	}
}
