// Package attachment holds the single file a user may attach to their next
// message, together with the active interaction mode.
package attachment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"ApparelChat/internal/session"
)

// MaxSize matches the upload limit enforced by the assistant service.
const MaxSize = 5 * 1024 * 1024

var placeholders = map[session.Mode]string{
	session.ModeStandard:     "Ask about products, sizes, orders or returns...",
	session.ModeVirtualTryOn: "Attach a photo of yourself and name a product to try on...",
}

// Manager owns at most one pending attachment
type Manager struct {
	mu      sync.Mutex
	current *session.Attachment
	mode    session.Mode
}

// NewManager creates a Manager in standard mode
func NewManager() *Manager {
	return &Manager{mode: session.ModeStandard}
}

// Set replaces any pending attachment
func (m *Manager) Set(a session.Attachment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &a
}

// Clear drops the pending attachment, if any
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

// Current returns the pending attachment without removing it
func (m *Manager) Current() (session.Attachment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return session.Attachment{}, false
	}
	return *m.current, true
}

// Take removes and returns the pending attachment in one step
func (m *Manager) Take() (session.Attachment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return session.Attachment{}, false
	}
	a := *m.current
	m.current = nil
	return a, true
}

// Mode returns the active interaction mode
func (m *Manager) Mode() session.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode switches the interaction mode
func (m *Manager) SetMode(mode session.Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// Placeholder returns the input hint for the active mode
func (m *Manager) Placeholder() string {
	return placeholders[m.Mode()]
}

// Open reads an image from disk the way a file picker restricted to images
// would. Non-image files and files over MaxSize are rejected.
func Open(path string) (session.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return session.Attachment{}, fmt.Errorf("failed to stat attachment: %w", err)
	}
	if info.IsDir() {
		return session.Attachment{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxSize {
		return session.Attachment{}, fmt.Errorf("%s is too large (%d bytes, max %d)", filepath.Base(path), info.Size(), MaxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return session.Attachment{}, fmt.Errorf("failed to read attachment: %w", err)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return session.Attachment{}, fmt.Errorf("%s is not an image (%s)", filepath.Base(path), mtype.String())
	}

	return session.Attachment{
		Name:        filepath.Base(path),
		ContentType: mtype.String(),
		Data:        data,
	}, nil
}
