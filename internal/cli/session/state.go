package session

// Kind discriminates the session state
type Kind int

// Session state kinds
const (
	KindLoading Kind = iota
	KindAnonymous
	KindAuthenticated
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindAnonymous:
		return "anonymous"
	case KindAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is one of Loading, Anonymous or Authenticated(profile).
// The zero value is Loading.
type State struct {
	kind    Kind
	profile *Profile
}

// Loading is the state before the stored session has been resolved
func Loading() State { return State{kind: KindLoading} }

// Anonymous is the signed-out state
func Anonymous() State { return State{kind: KindAnonymous} }

// Authenticated returns the signed-in state for p
func Authenticated(p Profile) State {
	return State{kind: KindAuthenticated, profile: &p}
}

// Kind reports which of the three states s is
func (s State) Kind() Kind { return s.kind }

// Profile returns the signed-in user; ok is false unless the state is Authenticated
func (s State) Profile() (Profile, bool) {
	if s.kind != KindAuthenticated || s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}
