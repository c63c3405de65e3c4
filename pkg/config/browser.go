package config

import (
	"fmt"
	"sync"
)

const (
	// SectionIDBrowser is the identifier for the browser settings section
	SectionIDBrowser = "browser"

	defaultViewportWidth  = 1280
	defaultViewportHeight = 800
)

// BrowserSection manages settings for the managed browser host.
type BrowserSection struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	mu             sync.RWMutex
}

// NewBrowserSection creates a new browser section with default settings.
func NewBrowserSection() *BrowserSection {
	return &BrowserSection{
		Headless:       false,
		ViewportWidth:  defaultViewportWidth,
		ViewportHeight: defaultViewportHeight,
	}
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser Settings"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Configure the managed Chromium instance used to attach the agent to live pages."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"headless":        s.Headless,
		"viewport_width":  s.ViewportWidth,
		"viewport_height": s.ViewportHeight,
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowserSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if headless, ok := data["headless"].(bool); ok {
		s.Headless = headless
	}

	switch v := data["viewport_width"].(type) {
	case int:
		s.ViewportWidth = v
	case float64:
		s.ViewportWidth = int(v)
	}

	switch v := data["viewport_height"].(type) {
	case int:
		s.ViewportHeight = v
	case float64:
		s.ViewportHeight = int(v)
	}

	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive, got %dx%d", s.ViewportWidth, s.ViewportHeight)
	}

	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Headless = false
	s.ViewportWidth = defaultViewportWidth
	s.ViewportHeight = defaultViewportHeight
}

// IsHeadless returns whether the browser should launch headless.
func (s *BrowserSection) IsHeadless() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Headless
}

// Viewport returns the configured viewport dimensions.
func (s *BrowserSection) Viewport() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ViewportWidth, s.ViewportHeight
}
