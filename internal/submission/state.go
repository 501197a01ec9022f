package submission

// Phase is the position of a form in the submission lifecycle.
type Phase int

const (
	Idle Phase = iota
	Pending
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// State is a snapshot of the submission machine. At most one of Result and Error
// is non-empty, and only in the matching phase.
type State struct {
	Phase  Phase
	Result string
	Error  string
}

// Loading reports whether a request is outstanding.
func (s State) Loading() bool { return s.Phase == Pending }

func pending() State { return State{Phase: Pending} }

func succeeded(msg string) State { return State{Phase: Succeeded, Result: msg} }

func failed(msg string) State { return State{Phase: Failed, Error: msg} }
