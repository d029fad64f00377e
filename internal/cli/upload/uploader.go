// Package upload holds the image field used when creating plans: a URL that
// can be typed in directly or filled by uploading a local file.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// State of the uploader
type State int

const (
	Idle State = iota
	Uploading
)

func (s State) String() string {
	if s == Uploading {
		return "uploading"
	}
	return "idle"
}

// ErrBusy is returned when a file is selected while another upload is running
var ErrBusy = errors.New("an upload is already in progress")

// FileUploader sends a local file and returns its public URL
type FileUploader interface {
	UploadFile(ctx context.Context, path string) (string, error)
}

// Notifier shows a transient success or error indicator
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Uploader is a controlled URL value with an optional file-upload shortcut
type Uploader struct {
	api    FileUploader
	notify Notifier

	mu        sync.Mutex
	value     string
	selection string
	state     State
}

// New returns an idle uploader holding initial
func New(api FileUploader, notify Notifier, initial string) *Uploader {
	return &Uploader{api: api, notify: notify, value: initial}
}

func (u *Uploader) Value() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.value
}

// Selection is the file currently being uploaded, empty when idle
func (u *Uploader) Selection() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.selection
}

func (u *Uploader) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// SetURL replaces the value with a manually entered URL
func (u *Uploader) SetURL(url string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.value = url
}

// Select uploads path. On success the value becomes the returned URL; on
// failure it is left untouched. Either way the selection is cleared and the
// uploader is idle again when Select returns.
func (u *Uploader) Select(ctx context.Context, path string) error {
	u.mu.Lock()
	if u.state == Uploading {
		u.mu.Unlock()
		return ErrBusy
	}
	u.state = Uploading
	u.selection = path
	u.mu.Unlock()

	url, err := u.api.UploadFile(ctx, path)

	u.mu.Lock()
	if err == nil {
		u.value = url
	}
	u.selection = ""
	u.state = Idle
	u.mu.Unlock()

	if err != nil {
		u.notify.Error(fmt.Sprintf("Upload failed: %v", err))
		return err
	}
	u.notify.Success("Image uploaded")
	return nil
}

// WriterNotifier prints indicators to a terminal
type WriterNotifier struct {
	W io.Writer
}

func (n WriterNotifier) Success(message string) {
	fmt.Fprintf(n.W, "✓ %s\n", message)
}

func (n WriterNotifier) Error(message string) {
	fmt.Fprintf(n.W, "✗ %s\n", message)
}
