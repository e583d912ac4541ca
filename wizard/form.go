// Package wizard implements the three-step registration wizard: per-step
// validation, the step state machine, and draft persistence across reloads.
package wizard

// Step is a 1-based wizard step.
type Step int

const (
	StepLeader  Step = 1
	StepTeam    Step = 2
	StepPayment Step = 3

	firstStep = StepLeader
	lastStep  = StepPayment
)

type Member struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Form is the full wizard form. Members always holds TeamSize-1 entries;
// Screenshot is the encoded payment-proof artifact, empty until uploaded.
type Form struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	TeamName   string   `json:"teamName"`
	TeamSize   int      `json:"teamSize"`
	Members    []Member `json:"members"`
	Screenshot string   `json:"screenshot"`
}

// NewForm returns the empty form the wizard starts with: team of two, one
// blank member row.
func NewForm() Form {
	return Form{
		TeamSize: 2,
		Members:  []Member{{}},
	}
}

// ResizeMembers resets the member list to match a new team size. Entered
// member data is discarded, matching the reference behavior of the size
// selector.
func (f *Form) ResizeMembers(teamSize int) {
	f.TeamSize = teamSize
	f.Members = make([]Member, teamSize-1)
}
