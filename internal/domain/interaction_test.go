package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *VerificationResult {
	return &VerificationResult{
		OriginalText: "The Eiffel Tower is in Rome.",
		OverallScore: 20,
		Claims: []ClaimAnalysis{{
			ID:          ClaimID(0),
			Text:        "The Eiffel Tower is in Rome.",
			Status:      StatusHallucination,
			Explanation: "It is in Paris.",
			Confidence:  0.95,
		}},
		Sources: []GroundingSource{},
	}
}

// analyzingState returns a state that has just accepted a submit.
func analyzingState(t *testing.T) InteractionState {
	t.Helper()
	s, ok := Transition(NewInteractionState(), SetInput{Text: "The Eiffel Tower is in Rome."})
	require.True(t, ok)
	s, ok = Transition(s, Submit{})
	require.True(t, ok)
	require.Equal(t, StatusAnalyzing, s.Status)
	return s
}

func TestTransition_SetInputKeepsStatus(t *testing.T) {
	for _, status := range []InteractionStatus{StatusIdle, StatusAnalyzing, StatusCompleted, StatusError} {
		t.Run(string(status), func(t *testing.T) {
			s := InteractionState{Status: status, Generation: 3}
			next, ok := Transition(s, SetInput{Text: "hello"})

			assert.True(t, ok)
			assert.Equal(t, status, next.Status)
			assert.Equal(t, "hello", next.InputText)
			assert.Equal(t, uint64(3), next.Generation)
		})
	}
}

func TestTransition_Submit(t *testing.T) {
	tests := []struct {
		name     string
		state    InteractionState
		accepted bool
	}{
		{
			name:     "idle with text",
			state:    InteractionState{Status: StatusIdle, InputText: "claim"},
			accepted: true,
		},
		{
			name:     "idle with whitespace only",
			state:    InteractionState{Status: StatusIdle, InputText: " \n\t "},
			accepted: false,
		},
		{
			name:     "idle with empty text",
			state:    InteractionState{Status: StatusIdle},
			accepted: false,
		},
		{
			name:     "completed resubmits",
			state:    InteractionState{Status: StatusCompleted, InputText: "claim", Result: sampleResult()},
			accepted: true,
		},
		{
			name:     "error resubmits",
			state:    InteractionState{Status: StatusError, InputText: "claim", ErrorMessage: "boom"},
			accepted: true,
		},
		{
			name:     "analyzing rejects",
			state:    InteractionState{Status: StatusAnalyzing, InputText: "claim", Generation: 7},
			accepted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := Transition(tt.state, Submit{})
			assert.Equal(t, tt.accepted, ok)

			if !tt.accepted {
				assert.Equal(t, tt.state, next, "rejected submit must not change state")
				return
			}
			assert.Equal(t, StatusAnalyzing, next.Status)
			assert.Nil(t, next.Result)
			assert.Empty(t, next.ErrorMessage)
			assert.Equal(t, tt.state.Generation+1, next.Generation)
			assert.Equal(t, tt.state.InputText, next.InputText)
		})
	}
}

func TestTransition_SucceededStoresResult(t *testing.T) {
	s := analyzingState(t)
	result := sampleResult()

	next, ok := Transition(s, Succeeded{Generation: s.Generation, Result: result})

	require.True(t, ok)
	assert.Equal(t, StatusCompleted, next.Status)
	assert.Same(t, result, next.Result)
	assert.Empty(t, next.ErrorMessage)
	assert.Equal(t, "claim-0", next.Result.Claims[0].ID)
}

func TestTransition_FailedStoresMessage(t *testing.T) {
	s := analyzingState(t)

	next, ok := Transition(s, Failed{Generation: s.Generation, Message: "network down"})

	require.True(t, ok)
	assert.Equal(t, StatusError, next.Status)
	assert.Equal(t, "network down", next.ErrorMessage)
	assert.Nil(t, next.Result)
}

func TestTransition_FailedWithoutMessageUsesFallback(t *testing.T) {
	s := analyzingState(t)

	next, ok := Transition(s, Failed{Generation: s.Generation})

	require.True(t, ok)
	assert.Equal(t, DefaultErrorMessage, next.ErrorMessage)
}

func TestTransition_StaleCompletionIgnored(t *testing.T) {
	s := analyzingState(t)
	startedAt := s.Generation

	cleared, ok := Transition(s, Clear{})
	require.True(t, ok)

	next, ok := Transition(cleared, Succeeded{Generation: startedAt, Result: sampleResult()})
	assert.False(t, ok)
	assert.Equal(t, cleared, next)

	next, ok = Transition(cleared, Failed{Generation: startedAt, Message: "late"})
	assert.False(t, ok)
	assert.Equal(t, cleared, next)
}

func TestTransition_CompletionFromOlderSubmitIgnored(t *testing.T) {
	s := analyzingState(t)
	first := s.Generation

	s, ok := Transition(s, Failed{Generation: first, Message: "boom"})
	require.True(t, ok)
	s, ok = Transition(s, Submit{})
	require.True(t, ok)

	next, ok := Transition(s, Succeeded{Generation: first, Result: sampleResult()})
	assert.False(t, ok)
	assert.Equal(t, StatusAnalyzing, next.Status)
}

func TestTransition_SucceededWithNilResultRejected(t *testing.T) {
	s := analyzingState(t)

	next, ok := Transition(s, Succeeded{Generation: s.Generation})

	assert.False(t, ok)
	assert.Equal(t, StatusAnalyzing, next.Status)
}

func TestTransition_ClearFromAnyState(t *testing.T) {
	states := []InteractionState{
		NewInteractionState(),
		{Status: StatusIdle, InputText: "draft"},
		{Status: StatusAnalyzing, InputText: "claim", Generation: 1},
		{Status: StatusCompleted, InputText: "claim", Result: sampleResult(), Generation: 1},
		{Status: StatusError, InputText: "claim", ErrorMessage: "boom", Generation: 2},
	}

	for _, s := range states {
		t.Run(string(s.Status), func(t *testing.T) {
			next, ok := Transition(s, Clear{})

			require.True(t, ok)
			assert.Equal(t, StatusIdle, next.Status)
			assert.Empty(t, next.InputText)
			assert.Nil(t, next.Result)
			assert.Empty(t, next.ErrorMessage)
			assert.Greater(t, next.Generation, s.Generation)
		})
	}
}

// TestTransition_ResultAndErrorExclusive drives every event sequence up to a
// fixed depth and checks the payload slots after each step.
func TestTransition_ResultAndErrorExclusive(t *testing.T) {
	events := func(s InteractionState) []Event {
		return []Event{
			SetInput{Text: "claim"},
			SetInput{Text: "   "},
			Submit{},
			Succeeded{Generation: s.Generation, Result: sampleResult()},
			Failed{Generation: s.Generation, Message: "boom"},
			Succeeded{Generation: s.Generation - 1, Result: sampleResult()},
			Clear{},
		}
	}

	var walk func(s InteractionState, depth int)
	walk = func(s InteractionState, depth int) {
		if s.Result != nil && s.ErrorMessage != "" {
			t.Fatalf("state holds result and error: %+v", s)
		}
		switch s.Status {
		case StatusIdle, StatusAnalyzing:
			if s.Result != nil || s.ErrorMessage != "" {
				t.Fatalf("%s state holds a payload: %+v", s.Status, s)
			}
		case StatusCompleted:
			if s.Result == nil {
				t.Fatalf("completed state without result: %+v", s)
			}
		case StatusError:
			if s.ErrorMessage == "" {
				t.Fatalf("error state without message: %+v", s)
			}
		}
		if depth == 0 {
			return
		}
		for _, ev := range events(s) {
			next, _ := Transition(s, ev)
			walk(next, depth-1)
		}
	}

	walk(NewInteractionState(), 5)
}

func TestInteractionState_CanSubmit(t *testing.T) {
	assert.False(t, NewInteractionState().CanSubmit())
	assert.True(t, InteractionState{Status: StatusIdle, InputText: "x"}.CanSubmit())
	assert.False(t, InteractionState{Status: StatusAnalyzing, InputText: "x"}.CanSubmit())
}
