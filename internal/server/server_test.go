package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/auth"
	"github.com/investly/investly/internal/config"
	"github.com/investly/investly/internal/database/dbtest"
	"github.com/investly/investly/internal/models"
	"github.com/investly/investly/internal/storage"
	"github.com/investly/investly/internal/tasks"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

// fakeEnqueuer records enqueued tasks instead of talking to redis
type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (f *fakeEnqueuer) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.tasks))
	for i, t := range f.tasks {
		out[i] = t.Type()
	}
	return out
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) (bool, error) { return false, nil }

type brokenLimiter struct{}

func (brokenLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

type testEnv struct {
	server   *Server
	db       *gorm.DB
	enqueuer *fakeEnqueuer
	fs       afero.Fs
}

func newTestEnv(t *testing.T, deps ...func(*Deps)) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:        "0",
			PublicURL:   "http://api.test",
			FrontendURL: "http://app.test",
			CORSOrigins: []string{"http://app.test"},
		},
		Auth: config.AuthConfig{
			JWTSecret: testSecret,
			TokenTTL:  time.Hour,
		},
		Uploads: config.UploadConfig{MaxBytes: 64 << 10},
	}

	env := &testEnv{
		db:       dbtest.New(t),
		enqueuer: &fakeEnqueuer{},
		fs:       afero.NewMemMapFs(),
	}
	d := Deps{
		DB:       env.db,
		Enqueuer: env.enqueuer,
		Store:    storage.NewAferoStore(env.fs),
	}
	for _, apply := range deps {
		apply(&d)
	}
	env.server = NewWithDeps(cfg, zerolog.Nop(), "test", d)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// createUser inserts a user directly and returns it with a valid token
func (e *testEnv) createUser(t *testing.T, email string, role models.Role) (*models.User, string) {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	user := &models.User{
		Email:           email,
		PasswordHash:    hash,
		Name:            "Test User",
		Role:            role,
		IsEmailVerified: true,
		Active:          true,
	}
	require.NoError(t, e.db.Create(user).Error)

	token, err := auth.NewIssuer(testSecret, time.Hour).GenerateToken(user)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) createPlan(t *testing.T) *models.Plan {
	t.Helper()
	plan := &models.Plan{
		Name:         "Starter",
		MinAmount:    10000,
		MaxAmount:    100000,
		ROIPercent:   10,
		DurationDays: 30,
		Active:       true,
	}
	require.NoError(t, e.db.Create(plan).Error)
	return plan
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"online"`)
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/signup", "", SignupRequest{
		Name:     "Ada Lovelace",
		Email:    "  Ada@Example.com ",
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Equal(t, models.RoleUser, resp.User.Role)
	assert.False(t, resp.User.IsEmailVerified)
	assert.Equal(t, []string{tasks.TypeSendVerificationEmail}, env.enqueuer.types())

	// The issued token is immediately usable
	me := env.do(t, http.MethodGet, "/api/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	var detail UserDetail
	decode(t, me, &detail)
	assert.Equal(t, resp.User.ID, detail.ID)

	dup := env.do(t, http.MethodPost, "/api/auth/signup", "", SignupRequest{
		Name:     "Someone Else",
		Email:    "ada@example.com",
		Password: "password123",
	})
	assert.Equal(t, http.StatusConflict, dup.Code)
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  SignupRequest
	}{
		{"short password", SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "short"}},
		{"bad email", SignupRequest{Name: "Ada", Email: "not-an-email", Password: "password123"}},
		{"blank name", SignupRequest{Name: "   ", Email: "ada@example.com", Password: "password123"}},
		{"name with digits", SignupRequest{Name: "Ada 2", Email: "ada@example.com", Password: "password123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "/api/auth/signup", "", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSignup_EnqueueFailureDoesNotFailSignup(t *testing.T) {
	env := newTestEnv(t)
	env.enqueuer.err = errors.New("redis down")

	rec := env.do(t, http.MethodPost, "/api/auth/signup", "", SignupRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "password123",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSignin(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser(t, "bob@example.com", models.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/auth/signin", "", SigninRequest{Email: "BOB@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AuthResponse
	decode(t, rec, &resp)
	assert.Equal(t, user.ID, resp.User.ID)

	claims, err := auth.NewIssuer(testSecret, time.Hour).ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	wrong := env.do(t, http.MethodPost, "/api/auth/signin", "", SigninRequest{Email: "bob@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)

	unknown := env.do(t, http.MethodPost, "/api/auth/signin", "", SigninRequest{Email: "nobody@example.com", Password: "password123"})
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
}

func TestSignin_InactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "bob@example.com", models.RoleUser)
	require.NoError(t, env.db.Model(user).Update("active", false).Error)

	rec := env.do(t, http.MethodPost, "/api/auth/signin", "", SigninRequest{Email: "bob@example.com", Password: "password123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Existing tokens stop working as well
	me := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusForbidden, me.Code)
}

func TestSignin_RateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.SigninLimiter = denyLimiter{} })
	env.createUser(t, "bob@example.com", models.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/auth/signin", "", SigninRequest{Email: "bob@example.com", Password: "password123"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSignin_LimiterErrorFailsOpen(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.SigninLimiter = brokenLimiter{} })
	env.createUser(t, "bob@example.com", models.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/auth/signin", "", SigninRequest{Email: "bob@example.com", Password: "password123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer   "},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthMiddleware_DeletedUser(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "gone@example.com", models.RoleUser)
	require.NoError(t, env.db.Delete(user).Error)

	rec := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.createUser(t, "user@example.com", models.RoleUser)
	_, adminToken := env.createUser(t, "admin@example.com", models.RoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/admin/stats", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/admin/stats", userToken, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/stats", adminToken, nil).Code)
}

func TestAdminRoutes_DemotionAppliesImmediately(t *testing.T) {
	env := newTestEnv(t)
	admin, adminToken := env.createUser(t, "admin@example.com", models.RoleAdmin)
	require.NoError(t, env.db.Model(admin).Update("role", models.RoleUser).Error)

	rec := env.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser(t, "carol@example.com", models.RoleUser)
	sent := time.Now().UTC()
	require.NoError(t, env.db.Model(user).Updates(map[string]interface{}{
		"is_email_verified":    false,
		"verification_token":   "abc123",
		"verification_sent_at": sent,
	}).Error)

	rec := env.do(t, http.MethodPost, "/api/auth/verify-email", "", VerifyEmailRequest{Token: "abc123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reloaded models.User
	require.NoError(t, models.FindByID(env.db, user.ID, &reloaded))
	assert.True(t, reloaded.IsEmailVerified)
	assert.Empty(t, reloaded.VerificationToken)

	// Tokens are single use
	again := env.do(t, http.MethodPost, "/api/auth/verify-email", "", VerifyEmailRequest{Token: "abc123"})
	assert.Equal(t, http.StatusBadRequest, again.Code)
}

func TestVerifyEmail_Expired(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser(t, "carol@example.com", models.RoleUser)
	require.NoError(t, env.db.Model(user).Updates(map[string]interface{}{
		"is_email_verified":    false,
		"verification_token":   "old-token",
		"verification_sent_at": time.Now().UTC().Add(-verificationTTL - time.Hour),
	}).Error)

	rec := env.do(t, http.MethodPost, "/api/auth/verify-email", "", VerifyEmailRequest{Token: "old-token"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestVerifyEmail_MissingToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "dan@example.com", models.RoleUser)

	// Already verified
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/auth/resend-verification", token, nil).Code)

	require.NoError(t, env.db.Model(user).Update("is_email_verified", false).Error)
	rec := env.do(t, http.MethodPost, "/api/auth/resend-verification", token, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{tasks.TypeSendVerificationEmail}, env.enqueuer.types())

	var reloaded models.User
	require.NoError(t, models.FindByID(env.db, user.ID, &reloaded))
	assert.NotEmpty(t, reloaded.VerificationToken)
	assert.NotNil(t, reloaded.VerificationSentAt)
}

func TestPlans(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.createUser(t, "admin@example.com", models.RoleAdmin)

	inactive := false
	rec := env.do(t, http.MethodPost, "/api/admin/plans", adminToken, PlanRequest{
		Name:         "Hidden",
		MinAmount:    100,
		MaxAmount:    200,
		ROIPercent:   5,
		DurationDays: 7,
		Active:       &inactive,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/admin/plans", adminToken, PlanRequest{
		Name:         "Gold",
		MinAmount:    50000,
		MaxAmount:    500000,
		ROIPercent:   20,
		DurationDays: 90,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var gold models.Plan
	decode(t, rec, &gold)

	dup := env.do(t, http.MethodPost, "/api/admin/plans", adminToken, PlanRequest{
		Name:         "gold",
		MinAmount:    1,
		MaxAmount:    2,
		ROIPercent:   1,
		DurationDays: 1,
	})
	assert.Equal(t, http.StatusConflict, dup.Code)

	invalid := env.do(t, http.MethodPost, "/api/admin/plans", adminToken, PlanRequest{
		Name:         "Broken",
		MinAmount:    500,
		MaxAmount:    100,
		ROIPercent:   1,
		DurationDays: 1,
	})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	// Only active plans are public
	list := env.do(t, http.MethodGet, "/api/plans", "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var plans []models.Plan
	decode(t, list, &plans)
	require.Len(t, plans, 1)
	assert.Equal(t, "Gold", plans[0].Name)

	del := env.do(t, http.MethodDelete, "/api/admin/plans/"+gold.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, del.Code)

	list = env.do(t, http.MethodGet, "/api/plans", "", nil)
	decode(t, list, &plans)
	assert.Empty(t, plans)

	// Retired plans stay readable by id
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/plans/"+gold.ID, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/plans/missing", "", nil).Code)
}

func TestUpdatePlan(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.createUser(t, "admin@example.com", models.RoleAdmin)
	plan := env.createPlan(t)

	inactive := false
	rec := env.do(t, http.MethodPut, "/api/admin/plans/"+plan.ID, adminToken, PlanRequest{
		Name:         "Starter Plus",
		MinAmount:    20000,
		MaxAmount:    200000,
		ROIPercent:   12.5,
		DurationDays: 45,
		Active:       &inactive,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reloaded models.Plan
	require.NoError(t, models.FindByID(env.db, plan.ID, &reloaded))
	assert.Equal(t, "Starter Plus", reloaded.Name)
	assert.Equal(t, 45, reloaded.DurationDays)
	assert.False(t, reloaded.Active)
}

func TestInvestmentFlow(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "eve@example.com", models.RoleUser)
	plan := env.createPlan(t)

	// No balance yet
	rec := env.do(t, http.MethodPost, "/api/investments", token, CreateInvestmentRequest{PlanID: plan.ID, Amount: 20000})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/deposits", token, DepositRequest{Amount: 50000, Reference: "wire-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/investments", token, CreateInvestmentRequest{PlanID: plan.ID, Amount: 20000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	outOfRange := env.do(t, http.MethodPost, "/api/investments", token, CreateInvestmentRequest{PlanID: plan.ID, Amount: 100})
	assert.Equal(t, http.StatusBadRequest, outOfRange.Code)

	missing := env.do(t, http.MethodPost, "/api/investments", token, CreateInvestmentRequest{PlanID: "nope", Amount: 20000})
	assert.Equal(t, http.StatusNotFound, missing.Code)

	list := env.do(t, http.MethodGet, "/api/investments", token, nil)
	require.Equal(t, http.StatusOK, list.Code)
	var userPlans []models.UserPlan
	decode(t, list, &userPlans)
	require.Len(t, userPlans, 1)
	require.NotNil(t, userPlans[0].Plan)
	assert.Equal(t, plan.ID, userPlans[0].Plan.ID)

	txns := env.do(t, http.MethodGet, "/api/transactions", token, nil)
	var transactions []models.Transaction
	decode(t, txns, &transactions)
	assert.Len(t, transactions, 2)

	me := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	var detail UserDetail
	decode(t, me, &detail)
	assert.Equal(t, int64(30000), detail.Balance)
}

func TestTickets(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.createUser(t, "user@example.com", models.RoleUser)
	_, adminToken := env.createUser(t, "admin@example.com", models.RoleAdmin)

	rec := env.do(t, http.MethodPost, "/api/tickets", userToken, CreateTicketRequest{Subject: "Payout", Message: "When do I get paid?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ticket models.Ticket
	decode(t, rec, &ticket)
	assert.Equal(t, models.TicketOpen, ticket.Status)

	open := env.do(t, http.MethodGet, "/api/admin/tickets?status=open", adminToken, nil)
	var tickets []models.Ticket
	decode(t, open, &tickets)
	require.Len(t, tickets, 1)

	reply := env.do(t, http.MethodPost, "/api/admin/tickets/"+ticket.ID+"/reply", adminToken, ReplyTicketRequest{Reply: "At maturity."})
	require.Equal(t, http.StatusOK, reply.Code, reply.Body.String())
	decode(t, reply, &ticket)
	assert.Equal(t, models.TicketAnswered, ticket.Status)

	mine := env.do(t, http.MethodGet, "/api/tickets", userToken, nil)
	decode(t, mine, &tickets)
	require.Len(t, tickets, 1)
	assert.Equal(t, "At maturity.", tickets[0].Reply)

	assert.Equal(t, http.StatusNotFound,
		env.do(t, http.MethodPost, "/api/admin/tickets/missing/reply", adminToken, ReplyTicketRequest{Reply: "x"}).Code)
}

func TestPaymentMethods(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "user@example.com", models.RoleUser)
	_, otherToken := env.createUser(t, "other@example.com", models.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/payment-methods", token, CreatePaymentMethodRequest{Kind: "bank", Label: "Checking"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first models.PaymentMethod
	decode(t, rec, &first)
	assert.True(t, first.IsDefault, "first method becomes default")
	assert.Equal(t, models.PaymentBank, first.Kind)

	rec = env.do(t, http.MethodPost, "/api/payment-methods", token, CreatePaymentMethodRequest{Kind: "CRYPTO", Label: "Wallet", IsDefault: true})
	require.Equal(t, http.StatusCreated, rec.Code)

	list := env.do(t, http.MethodGet, "/api/payment-methods", token, nil)
	var methods []models.PaymentMethod
	decode(t, list, &methods)
	require.Len(t, methods, 2)
	assert.Equal(t, "Wallet", methods[0].Label)
	assert.True(t, methods[0].IsDefault)
	assert.False(t, methods[1].IsDefault)

	bad := env.do(t, http.MethodPost, "/api/payment-methods", token, CreatePaymentMethodRequest{Kind: "CASH", Label: "Mattress"})
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	// Other users cannot delete it
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/payment-methods/"+first.ID, otherToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/payment-methods/"+first.ID, token, nil).Code)
}

func TestAdminUsers(t *testing.T) {
	env := newTestEnv(t)
	admin, adminToken := env.createUser(t, "admin@example.com", models.RoleAdmin)
	user, userToken := env.createUser(t, "user@example.com", models.RoleUser)

	list := env.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	var users []UserDetail
	decode(t, list, &users)
	assert.Len(t, users, 2)

	inactive := false
	rec := env.do(t, http.MethodPatch, "/api/admin/users/"+user.ID, adminToken, UpdateUserRequest{Active: &inactive})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/auth/me", userToken, nil).Code)

	bogus := models.Role("ROOT")
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPatch, "/api/admin/users/"+user.ID, adminToken, UpdateUserRequest{Role: &bogus}).Code)

	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPatch, "/api/admin/users/"+admin.ID, adminToken, UpdateUserRequest{Active: &inactive}).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodDelete, "/api/admin/users/"+admin.ID, adminToken, nil).Code)
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.createUser(t, "admin@example.com", models.RoleAdmin)
	plain, plainToken := env.createUser(t, "plain@example.com", models.RoleUser)
	investor, investorToken := env.createUser(t, "investor@example.com", models.RoleUser)

	require.Equal(t, http.StatusCreated,
		env.do(t, http.MethodPost, "/api/tickets", plainToken, CreateTicketRequest{Subject: "Hi", Message: "Hello"}).Code)
	require.Equal(t, http.StatusCreated,
		env.do(t, http.MethodPost, "/api/deposits", investorToken, DepositRequest{Amount: 100}).Code)

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodDelete, "/api/admin/users/"+investor.ID, adminToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/admin/users/"+plain.ID, adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/admin/users/"+plain.ID, adminToken, nil).Code)

	var tickets int64
	require.NoError(t, env.db.Model(&models.Ticket{}).Count(&tickets).Error)
	assert.Zero(t, tickets)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "uploader@example.com", models.RoleUser)

	body, contentType := multipartBody(t, "avatar.bin", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadResponse
	decode(t, rec, &resp)
	require.True(t, strings.HasPrefix(resp.URL, "http://api.test/uploads/"), resp.URL)
	assert.True(t, strings.HasSuffix(resp.URL, ".png"), "extension comes from sniffed content")

	get := env.do(t, http.MethodGet, strings.TrimPrefix(resp.URL, "http://api.test"), "", nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, pngHeader, get.Body.Bytes())
}

func TestUpload_Rejections(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "uploader@example.com", models.RoleUser)

	send := func(filename string, content []byte) int {
		body, contentType := multipartBody(t, filename, content)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnsupportedMediaType, send("fake.png", []byte("just some text, not an image")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, send("big.png", append(append([]byte{}, pngHeader...), make([]byte, 65<<10)...)))

	// No file field
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unauthenticated
	body, contentType := multipartBody(t, "a.png", pngHeader)
	req = httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServeUpload_NotFound(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/uploads/nope/missing.png", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/uploads/../secret", "", nil).Code)
}
