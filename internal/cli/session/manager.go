// Package session owns the CLI's signed-in state: it resolves the persisted
// token at startup, performs login, signup and logout, and hands the current
// State to guards.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/investly/investly/internal/cli/auth"
	"github.com/investly/investly/internal/cli/client"
)

// ErrSuperseded is returned when a newer transition won before this result arrived
var ErrSuperseded = errors.New("session: superseded by a newer transition")

// ErrClosed is returned by operations started after Close
var ErrClosed = errors.New("session: manager closed")

// API is the part of the backend the session depends on
type API interface {
	Signin(ctx context.Context, email, password string) (*client.AuthResponse, error)
	Signup(ctx context.Context, name, email, password string) (*client.AuthResponse, error)
	Me(ctx context.Context) (*client.User, error)
}

// Option configures a Manager
type Option func(*Manager)

// KeepTokenOnTransportError makes Init evict the stored token only when the API
// rejects it (401/403). Network failures leave it in place for the next run.
func KeepTokenOnTransportError() Option {
	return func(m *Manager) { m.keepOnTransportErr = true }
}

// Manager is the single owner of session state. It is safe for concurrent use.
//
// Every operation takes a sequence number when it starts. A result is applied
// only if no operation that started later has already been applied, so a
// Logout during a pending Init wins and the late Init result is dropped.
type Manager struct {
	store auth.TokenStore
	api   API

	keepOnTransportErr bool

	mu        sync.Mutex
	state     State
	seq       uint64
	applied   uint64
	listeners []func(State)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager returns a manager in the Loading state
func NewManager(store auth.TokenStore, api API, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:  store,
		api:    api,
		state:  Loading(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers fn to be called after every applied transition
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Close cancels in-flight operations. Their results are discarded.
func (m *Manager) Close() {
	m.cancel()
}

// begin reserves a sequence number and scopes ctx to the manager's lifetime
func (m *Manager) begin(ctx context.Context) (uint64, context.Context, context.CancelFunc, error) {
	if m.ctx.Err() != nil {
		return 0, nil, nil, ErrClosed
	}

	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.ctx, cancel)
	return seq, ctx, func() {
		stop()
		cancel()
	}, nil
}

// commit applies next if seq is still current. effect runs under the lock first;
// if it fails the transition is abandoned.
func (m *Manager) commit(ctx context.Context, seq uint64, next State, effect func() error) error {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return ctx.Err()
	}
	if seq <= m.applied {
		m.mu.Unlock()
		return ErrSuperseded
	}
	if effect != nil {
		if err := effect(); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.applied = seq
	m.state = next
	listeners := append([]func(State){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// Init resolves a persisted token into a profile.
// Without a token it goes straight to Anonymous without calling the API.
// If the profile cannot be fetched the session becomes Anonymous and the token
// is evicted; that failure is not returned.
func (m *Manager) Init(ctx context.Context) error {
	seq, ctx, done, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	token, err := m.store.Load()
	if err != nil || token == "" {
		if err != nil && !errors.Is(err, auth.ErrNoToken) {
			// Unreadable store: nothing to resume
			_ = m.commit(ctx, seq, Anonymous(), nil)
			return fmt.Errorf("failed to load session token: %w", err)
		}
		return m.commit(ctx, seq, Anonymous(), nil)
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		evict := !m.keepOnTransportErr || client.IsAuthError(err)
		return m.commit(ctx, seq, Anonymous(), func() error {
			if evict {
				_ = m.store.Delete()
			}
			return nil
		})
	}

	return m.commit(ctx, seq, Authenticated(newProfile(*user)), nil)
}

// Login signs in and persists the returned token.
// API errors are returned unchanged and leave the state as it was.
func (m *Manager) Login(ctx context.Context, email, password string) (Profile, error) {
	seq, ctx, done, err := m.begin(ctx)
	if err != nil {
		return Profile{}, err
	}
	defer done()

	resp, err := m.api.Signin(ctx, email, password)
	if err != nil {
		return Profile{}, err
	}
	return m.authenticate(ctx, seq, resp)
}

// Signup registers an account and signs in as it
func (m *Manager) Signup(ctx context.Context, name, email, password string) (Profile, error) {
	seq, ctx, done, err := m.begin(ctx)
	if err != nil {
		return Profile{}, err
	}
	defer done()

	resp, err := m.api.Signup(ctx, name, email, password)
	if err != nil {
		return Profile{}, err
	}
	return m.authenticate(ctx, seq, resp)
}

func (m *Manager) authenticate(ctx context.Context, seq uint64, resp *client.AuthResponse) (Profile, error) {
	profile := newProfile(resp.User)
	// The token is written before the state flips so a profile always has a token behind it
	err := m.commit(ctx, seq, Authenticated(profile), func() error {
		if err := m.store.Save(resp.Token); err != nil {
			return fmt.Errorf("failed to save session token: %w", err)
		}
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Logout clears the profile and evicts the token. It never calls the API.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	var deleteErr error
	_ = m.commit(context.Background(), seq, Anonymous(), func() error {
		deleteErr = m.store.Delete()
		return nil
	})
	if deleteErr != nil {
		return fmt.Errorf("failed to delete session token: %w", deleteErr)
	}
	return nil
}

type contextKey struct{}

// WithManager attaches m to ctx
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// FromContext returns the manager attached with WithManager.
// It panics if there is none: that is a wiring bug, not a runtime condition.
func FromContext(ctx context.Context) *Manager {
	m, ok := ctx.Value(contextKey{}).(*Manager)
	if !ok || m == nil {
		panic("session: FromContext called without a Manager in the context")
	}
	return m
}
