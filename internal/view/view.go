package view

import "github.com/example/fare-finder/internal/submission"

const (
	LabelIdle    = "Predict NYC Fare"
	LabelPending = "Predicting..."
)

// View is what the page shows for a submission state.
type View struct {
	Phase          string `json:"phase"`
	SubmitDisabled bool   `json:"submit_disabled"`
	SubmitLabel    string `json:"submit_label"`
	Result         string `json:"result,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Project derives the view from a state. It never looks at anything else.
func Project(s submission.State) View {
	v := View{Phase: s.Phase.String(), SubmitLabel: LabelIdle}
	switch s.Phase {
	case submission.Pending:
		v.SubmitDisabled = true
		v.SubmitLabel = LabelPending
	case submission.Succeeded:
		v.Result = s.Result
	case submission.Failed:
		v.Error = s.Error
	}
	return v
}

func (v View) ShowResult() bool { return v.Result != "" }

func (v View) ShowError() bool { return v.Error != "" }
