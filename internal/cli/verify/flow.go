// Package verify drives email verification from a link's query string.
package verify

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/investly/investly/internal/cli/client"
)

// Status of a verification attempt
type Status int

const (
	Verifying Status = iota
	Success
	Failed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failed:
		return "error"
	default:
		return "verifying"
	}
}

const (
	MissingTokenMessage = "Invalid verification link: token is missing"
	FallbackMessage     = "Email verification failed"
	SuccessMessage      = "Your email has been verified"
)

// Verifier submits a verification token
type Verifier interface {
	VerifyEmail(ctx context.Context, token string) error
}

// Flow is a single verification attempt
type Flow struct {
	api Verifier

	mu      sync.Mutex
	status  Status
	message string
}

func NewFlow(api Verifier) *Flow {
	return &Flow{api: api, status: Verifying}
}

// Run submits the token in query once and returns the terminal status.
// A missing token fails without calling the API.
func (f *Flow) Run(ctx context.Context, query url.Values) Status {
	token := strings.TrimSpace(query.Get("token"))
	if token == "" {
		return f.finish(Failed, MissingTokenMessage)
	}

	if err := f.api.VerifyEmail(ctx, token); err != nil {
		return f.finish(Failed, failureMessage(err))
	}
	return f.finish(Success, SuccessMessage)
}

func (f *Flow) finish(status Status, message string) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.message = message
	return status
}

func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

func failureMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return FallbackMessage
}

// ParseInput accepts a full verification link or a bare token
func ParseInput(input string) url.Values {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "?") || strings.Contains(input, "://") {
		if u, err := url.Parse(input); err == nil {
			return u.Query()
		}
		return url.Values{}
	}
	if input == "" {
		return url.Values{}
	}
	return url.Values{"token": {input}}
}
