package flow

import "time"

// CycleKind identifies the prompt-cycle state. At most one prompt cycle is
// in flight at any time.
type CycleKind int

const (
	// CycleIdle means no recent prompt.
	CycleIdle CycleKind = iota

	// CycleAwaitingResponse means a filler was just spoken and the
	// controller is waiting to see whether new speech follows.
	CycleAwaitingResponse

	// CycleLockedUntilSpeech means a follow-up was issued with no
	// response; no further prompts until speech resumes.
	CycleLockedUntilSpeech
)

func (k CycleKind) String() string {
	switch k {
	case CycleAwaitingResponse:
		return "awaiting_response"
	case CycleLockedUntilSpeech:
		return "locked_until_speech"
	default:
		return "idle"
	}
}

// Cycle is the tagged prompt-cycle state. IssuedAt, Deadline and
// SpeechAtIssue are meaningful only when Kind is CycleAwaitingResponse.
type Cycle struct {
	Kind          CycleKind
	IssuedAt      time.Time
	Deadline      time.Time
	SpeechAtIssue time.Time
}
