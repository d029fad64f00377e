package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/investly/investly/internal/cli/auth"
	"github.com/investly/investly/internal/cli/client"
)

// fakeAPI answers from fields; if gate (signinGate) is set, Me (Signin) blocks until it is closed
type fakeAPI struct {
	meCalls     atomic.Int32
	signinCalls atomic.Int32

	user    *client.User
	meErr   error
	gate    chan struct{}
	entered chan struct{}

	authResp      *client.AuthResponse
	signinErr     error
	signinGate    chan struct{}
	signinEntered chan struct{}
}

func (f *fakeAPI) Me(ctx context.Context) (*client.User, error) {
	f.meCalls.Add(1)
	if f.entered != nil {
		close(f.entered)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.user, nil
}

func (f *fakeAPI) Signin(ctx context.Context, email, password string) (*client.AuthResponse, error) {
	f.signinCalls.Add(1)
	if f.signinEntered != nil {
		close(f.signinEntered)
	}
	if f.signinGate != nil {
		select {
		case <-f.signinGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.signinErr != nil {
		return nil, f.signinErr
	}
	return f.authResp, nil
}

func (f *fakeAPI) Signup(ctx context.Context, name, email, password string) (*client.AuthResponse, error) {
	if f.signinErr != nil {
		return nil, f.signinErr
	}
	resp := *f.authResp
	resp.User.Name = name
	resp.User.Email = email
	return &resp, nil
}

// failingStore lets individual operations fail
type failingStore struct {
	auth.MemoryStore
	saveErr error
}

func (s *failingStore) Save(token string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(token)
}

func storeWith(t *testing.T, token string) *auth.MemoryStore {
	t.Helper()
	store := &auth.MemoryStore{}
	if token != "" {
		require.NoError(t, store.Save(token))
	}
	return store
}

func hasToken(store auth.TokenStore) bool {
	_, err := store.Load()
	return err == nil
}

func TestNewManager_StartsLoading(t *testing.T) {
	m := NewManager(storeWith(t, ""), &fakeAPI{})
	assert.Equal(t, KindLoading, m.State().Kind())
}

func TestInit_NoToken(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(storeWith(t, ""), api)

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, KindAnonymous, m.State().Kind())
	assert.Zero(t, api.meCalls.Load(), "no token must not hit the API")
}

func TestInit_ValidToken(t *testing.T) {
	api := &fakeAPI{user: &client.User{ID: "u1", Name: "Jane Doe", Email: "jane@example.com", Role: "USER", Active: true}}
	store := storeWith(t, "tok")
	m := NewManager(store, api)

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, int32(1), api.meCalls.Load())

	state := m.State()
	require.Equal(t, KindAuthenticated, state.Kind())
	profile, ok := state.Profile()
	require.True(t, ok)
	assert.Equal(t, "JD", profile.Avatar)
	assert.Equal(t, RoleUser, profile.Role)
	assert.True(t, hasToken(store))
}

func TestInit_FailureEvictsToken(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unauthorized", &client.APIError{Status: http.StatusUnauthorized, Message: "Invalid or expired token"}},
		{"server error", &client.APIError{Status: http.StatusInternalServerError, Message: "boom"}},
		{"transport", errors.New("dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{meErr: tt.err}
			store := storeWith(t, "tok")
			m := NewManager(store, api)

			require.NoError(t, m.Init(context.Background()), "startup failures are silent")
			assert.Equal(t, int32(1), api.meCalls.Load())
			assert.Equal(t, KindAnonymous, m.State().Kind())
			assert.False(t, hasToken(store))
		})
	}
}

func TestInit_KeepTokenOnTransportError(t *testing.T) {
	store := storeWith(t, "tok")
	m := NewManager(store, &fakeAPI{meErr: errors.New("dial tcp: i/o timeout")}, KeepTokenOnTransportError())

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, KindAnonymous, m.State().Kind())
	assert.True(t, hasToken(store), "network failure keeps the token")

	store2 := storeWith(t, "tok")
	m2 := NewManager(store2, &fakeAPI{meErr: &client.APIError{Status: http.StatusForbidden, Message: "Account is deactivated"}}, KeepTokenOnTransportError())
	require.NoError(t, m2.Init(context.Background()))
	assert.False(t, hasToken(store2), "rejected token is still evicted")
}

func TestLogin(t *testing.T) {
	api := &fakeAPI{authResp: &client.AuthResponse{
		Token: "new-token",
		User:  client.User{ID: "u2", Name: "John Smith", Email: "john@example.com", Role: "ADMIN"},
	}}
	store := storeWith(t, "")
	m := NewManager(store, api)
	require.NoError(t, m.Init(context.Background()))

	profile, err := m.Login(context.Background(), "john@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "JS", profile.Avatar)
	assert.True(t, profile.IsAdmin())

	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new-token", token)

	current, ok := m.State().Profile()
	require.True(t, ok)
	assert.Equal(t, profile, current)
}

func TestLogin_FailureLeavesStateUnchanged(t *testing.T) {
	loginErr := &client.APIError{Status: http.StatusUnauthorized, Message: "Invalid email or password"}
	api := &fakeAPI{signinErr: loginErr}
	store := storeWith(t, "")
	m := NewManager(store, api)
	require.NoError(t, m.Init(context.Background()))

	_, err := m.Login(context.Background(), "x@example.com", "wrong")
	assert.Same(t, loginErr, err, "errors propagate to the caller as-is")
	assert.Equal(t, KindAnonymous, m.State().Kind())
	assert.False(t, hasToken(store))
}

func TestLogin_SaveFailure(t *testing.T) {
	api := &fakeAPI{authResp: &client.AuthResponse{Token: "t", User: client.User{Name: "A B"}}}
	store := &failingStore{saveErr: errors.New("disk full")}
	m := NewManager(store, api)
	require.NoError(t, m.Init(context.Background()))

	_, err := m.Login(context.Background(), "a@b.c", "password123")
	require.Error(t, err)
	assert.Equal(t, KindAnonymous, m.State().Kind(), "no profile without a persisted token")
}

func TestSignup(t *testing.T) {
	api := &fakeAPI{authResp: &client.AuthResponse{Token: "signup-token", User: client.User{ID: "u3", Role: "USER"}}}
	store := storeWith(t, "")
	m := NewManager(store, api)

	profile, err := m.Signup(context.Background(), "ada  king lovelace", "ada@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "AKL", profile.Avatar)
	assert.Equal(t, KindAuthenticated, m.State().Kind())
	assert.True(t, hasToken(store))
}

func TestLogout(t *testing.T) {
	states := []struct {
		name  string
		setup func(m *Manager)
	}{
		{"from loading", func(m *Manager) {}},
		{"from anonymous", func(m *Manager) { m.Init(context.Background()) }},
		{"from authenticated", func(m *Manager) {
			m.Login(context.Background(), "a@b.c", "password123")
		}},
	}

	for _, tt := range states {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{authResp: &client.AuthResponse{Token: "t", User: client.User{Name: "A"}}}
			store := storeWith(t, "")
			m := NewManager(store, api)
			tt.setup(m)
			meCalls := api.meCalls.Load()

			require.NoError(t, m.Logout())
			assert.Equal(t, KindAnonymous, m.State().Kind())
			assert.False(t, hasToken(store))
			assert.Equal(t, meCalls, api.meCalls.Load(), "logout makes no API calls")
		})
	}
}

func TestLogoutDuringPendingInit(t *testing.T) {
	api := &fakeAPI{
		user:    &client.User{ID: "u1", Name: "Late User"},
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	store := storeWith(t, "tok")
	m := NewManager(store, api)

	result := make(chan error, 1)
	go func() { result <- m.Init(context.Background()) }()

	<-api.entered
	require.NoError(t, m.Logout())
	close(api.gate)

	err := <-result
	assert.True(t, errors.Is(err, ErrSuperseded), "got %v", err)
	assert.Equal(t, KindAnonymous, m.State().Kind(), "stale Init result must not resurrect the session")
	assert.False(t, hasToken(store))
}

func TestLogoutDuringPendingLogin(t *testing.T) {
	api := &fakeAPI{
		authResp:      &client.AuthResponse{Token: "late-tok", User: client.User{ID: "u1", Name: "Late User", Role: "USER"}},
		signinGate:    make(chan struct{}),
		signinEntered: make(chan struct{}),
	}
	store := storeWith(t, "")
	m := NewManager(store, api)
	require.NoError(t, m.Init(context.Background()))

	result := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), "late@example.com", "password123")
		result <- err
	}()

	<-api.signinEntered
	require.NoError(t, m.Logout())
	close(api.signinGate)

	err := <-result
	assert.True(t, errors.Is(err, ErrSuperseded), "got %v", err)
	assert.Equal(t, KindAnonymous, m.State().Kind(), "stale Login result must not sign the user in")
	assert.False(t, hasToken(store), "stale Login result must not persist its token")
}

func TestLoginDuringPendingInit(t *testing.T) {
	api := &fakeAPI{
		user:     &client.User{ID: "u-old", Name: "Old Session"},
		gate:     make(chan struct{}),
		entered:  make(chan struct{}),
		authResp: &client.AuthResponse{Token: "new-tok", User: client.User{ID: "u-new", Name: "John Smith", Role: "USER"}},
	}
	store := storeWith(t, "old-tok")
	m := NewManager(store, api)

	result := make(chan error, 1)
	go func() { result <- m.Init(context.Background()) }()

	<-api.entered
	profile, err := m.Login(context.Background(), "john@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "JS", profile.Avatar)
	close(api.gate)

	err = <-result
	assert.True(t, errors.Is(err, ErrSuperseded), "got %v", err)

	got, ok := m.State().Profile()
	require.True(t, ok)
	assert.Equal(t, "u-new", got.ID, "the newer Login wins over the older Init")

	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new-tok", token)
}

func TestInitCancelled(t *testing.T) {
	api := &fakeAPI{
		user:    &client.User{ID: "u1", Name: "Slow"},
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	store := storeWith(t, "tok")
	m := NewManager(store, api)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- m.Init(ctx) }()

	<-api.entered
	cancel()

	err := <-result
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, KindLoading, m.State().Kind())
	assert.True(t, hasToken(store), "a cancelled lookup does not evict")
}

func TestClose_CancelsInFlight(t *testing.T) {
	api := &fakeAPI{
		user:    &client.User{ID: "u1", Name: "Slow"},
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	m := NewManager(storeWith(t, "tok"), api)

	result := make(chan error, 1)
	go func() { result <- m.Init(context.Background()) }()
	<-api.entered
	m.Close()

	select {
	case err := <-result:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Init did not return after Close")
	}
	assert.Equal(t, KindLoading, m.State().Kind())

	_, err := m.Login(context.Background(), "a@b.c", "password123")
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestOnChange(t *testing.T) {
	var mu sync.Mutex
	var kinds []Kind

	m := NewManager(storeWith(t, ""), &fakeAPI{})
	m.OnChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, s.Kind())
	})

	require.NoError(t, m.Init(context.Background()))
	require.NoError(t, m.Logout())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Kind{KindAnonymous, KindAnonymous}, kinds)
}

func TestFromContext(t *testing.T) {
	m := NewManager(storeWith(t, ""), &fakeAPI{})
	ctx := WithManager(context.Background(), m)
	assert.Same(t, m, FromContext(ctx))

	assert.Panics(t, func() { FromContext(context.Background()) })
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"Jane Doe":          "JD",
		"john smith":        "JS",
		"  Ada   Lovelace ": "AL",
		"Cher":              "C",
		"":                  "",
		"élodie durand":     "ÉD",
	}
	for name, want := range tests {
		assert.Equal(t, want, Initials(name), name)
	}
}

func TestGuard(t *testing.T) {
	assert.Equal(t, Decision{Action: ShowSpinner}, Guard(Loading()))
	assert.Equal(t, Decision{Action: RedirectSignIn, Target: SignInTarget, Replace: true}, Guard(Anonymous()))
	assert.Equal(t, Decision{Action: Render}, Guard(Authenticated(Profile{Role: RoleUser})))
}

func TestAdminGuard(t *testing.T) {
	assert.Equal(t, ShowSpinner, AdminGuard(Loading()).Action)
	assert.Equal(t, RedirectSignIn, AdminGuard(Anonymous()).Action)
	assert.Equal(t, Render, AdminGuard(Authenticated(Profile{Role: RoleAdmin})).Action)

	for _, role := range []Role{RoleUser, "", "SUPPORT"} {
		d := AdminGuard(Authenticated(Profile{Role: role}))
		assert.Equal(t, RedirectDashboard, d.Action, "role %q", role)
		assert.Equal(t, DashboardTarget, d.Target)
		assert.True(t, d.Replace)
	}
}
