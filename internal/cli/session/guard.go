package session

import "fmt"

// Action is what a guard decided to do
type Action int

const (
	ShowSpinner Action = iota
	RedirectSignIn
	RedirectDashboard
	Render
)

func (a Action) String() string {
	switch a {
	case ShowSpinner:
		return "show-spinner"
	case RedirectSignIn:
		return "redirect-signin"
	case RedirectDashboard:
		return "redirect-dashboard"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Redirect targets
const (
	SignInTarget    = "/signin"
	DashboardTarget = "/dashboard"
)

// Decision is a guard's verdict. Redirects replace history so the guarded
// page cannot be reached again with "back".
type Decision struct {
	Action  Action
	Target  string
	Replace bool
}

// Guard admits any signed-in user
func Guard(s State) Decision {
	switch s.Kind() {
	case KindLoading:
		return Decision{Action: ShowSpinner}
	case KindAnonymous:
		return Decision{Action: RedirectSignIn, Target: SignInTarget, Replace: true}
	case KindAuthenticated:
		return Decision{Action: Render}
	default:
		panic(fmt.Sprintf("session: unhandled state kind %d", s.Kind()))
	}
}

// AdminGuard admits only signed-in admins; other users go to the dashboard
func AdminGuard(s State) Decision {
	d := Guard(s)
	if d.Action != Render {
		return d
	}
	if p, _ := s.Profile(); !p.IsAdmin() {
		return Decision{Action: RedirectDashboard, Target: DashboardTarget, Replace: true}
	}
	return d
}
