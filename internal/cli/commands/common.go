package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/investly/investly/internal/cli/client"
	"github.com/investly/investly/internal/cli/session"
)

// Env carries what commands need besides the session manager
type Env struct {
	API       *client.Client
	ServerURL string
	// Ready is closed once the startup session lookup has returned
	Ready <-chan struct{}
}

type envKey struct{}

// WithEnv attaches env to ctx
func WithEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

func envFrom(cmd *cobra.Command) (*Env, error) {
	env, ok := cmd.Context().Value(envKey{}).(*Env)
	if !ok || env == nil {
		return nil, fmt.Errorf("no server configured. Run 'investly init --server URL' first")
	}
	return env, nil
}

// redirectCommands maps guard targets to the command the user should run
var redirectCommands = map[string]string{
	session.SignInTarget:    "investly login",
	session.DashboardTarget: "investly portfolio",
}

// RedirectError is returned when a guard sends the user elsewhere
type RedirectError struct {
	Target string
	Reason string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%s. Run '%s' instead", e.Reason, redirectCommands[e.Target])
}

// awaitSession prints a loading line while the startup lookup is pending
func awaitSession(cmd *cobra.Command, env *Env, m *session.Manager) session.State {
	state := m.State()
	if state.Kind() != session.KindLoading || env.Ready == nil {
		return state
	}

	out := cmd.ErrOrStderr()
	fmt.Fprint(out, "⠋ Loading session...")
	select {
	case <-env.Ready:
	case <-cmd.Context().Done():
	}
	fmt.Fprint(out, "\r\033[K")
	return m.State()
}

func guardWith(cmd *cobra.Command, guard func(session.State) session.Decision) (session.Profile, error) {
	env, err := envFrom(cmd)
	if err != nil {
		return session.Profile{}, err
	}
	m := session.FromContext(cmd.Context())
	state := awaitSession(cmd, env, m)

	decision := guard(state)
	switch decision.Action {
	case session.Render:
		profile, _ := state.Profile()
		return profile, nil
	case session.RedirectSignIn:
		return session.Profile{}, &RedirectError{Target: decision.Target, Reason: "You are not signed in"}
	case session.RedirectDashboard:
		return session.Profile{}, &RedirectError{Target: decision.Target, Reason: "This command requires an admin account"}
	case session.ShowSpinner:
		return session.Profile{}, errors.New("session is still loading")
	default:
		return session.Profile{}, fmt.Errorf("unexpected guard decision %s", decision.Action)
	}
}

// requireUser runs the generic guard
func requireUser(cmd *cobra.Command) (session.Profile, error) {
	return guardWith(cmd, session.Guard)
}

// requireAdmin runs the admin guard
func requireAdmin(cmd *cobra.Command) (session.Profile, error) {
	return guardWith(cmd, session.AdminGuard)
}

// readPassword prompts on a terminal; piped input must use flags or env vars
func readPassword(cmd *cobra.Command, hint string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("password is required in non-interactive mode (%s)", hint)
	}

	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout()) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

// parseAmount converts a dollar amount such as "250" or "99.95" to cents
func parseAmount(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return 0, fmt.Errorf("amount is required")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("amount must be positive")
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("invalid amount %q: use at most two decimals", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || dollars < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if dollars > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("amount %q is too large", s)
	}
	cents, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	total := dollars*100 + int64(cents)
	if total <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	return total, nil
}

func printProfile(out io.Writer, p session.Profile) {
	fmt.Fprintf(out, "  [%s] %s <%s>\n", p.Avatar, p.Name, p.Email)
	if p.IsAdmin() {
		fmt.Fprintln(out, "  Role: Admin")
	}
	if !p.IsEmailVerified {
		fmt.Fprintln(out, "  Email not verified yet: check your inbox or run 'investly verify --resend'")
	}
}
