package entities

import "fmt"

// Phase is the top-level UI state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseFailure
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseFailure:
		return "failure"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = PhaseIdle
	case "loading":
		*p = PhaseLoading
	case "success":
		*p = PhaseSuccess
	case "failure":
		*p = PhaseFailure
	default:
		return fmt.Errorf("unknown phase: %q", text)
	}
	return nil
}

// UIState holds at most one of result, error message or loading.
// Values are only produced by the transition functions below.
type UIState struct {
	phase  Phase
	result *PredictionResult
	errMsg string
}

func IdleState() UIState {
	return UIState{phase: PhaseIdle}
}

func LoadingState() UIState {
	return UIState{phase: PhaseLoading}
}

func SuccessState(result *PredictionResult) UIState {
	return UIState{phase: PhaseSuccess, result: result}
}

func FailureState(message string) UIState {
	return UIState{phase: PhaseFailure, errMsg: message}
}

func (s UIState) Phase() Phase {
	return s.phase
}

func (s UIState) Result() *PredictionResult {
	return s.result
}

func (s UIState) Error() string {
	return s.errMsg
}

func (s UIState) IsLoading() bool {
	return s.phase == PhaseLoading
}

// Consistent reports whether at most one of {result, error, loading} is active.
func (s UIState) Consistent() bool {
	active := 0
	if s.result != nil {
		active++
	}
	if s.errMsg != "" {
		active++
	}
	if s.phase == PhaseLoading {
		active++
	}
	switch s.phase {
	case PhaseIdle:
		return active == 0
	case PhaseSuccess:
		return active == 1 && s.result != nil
	case PhaseFailure:
		return active == 1 && s.errMsg != ""
	default:
		return active == 1
	}
}
