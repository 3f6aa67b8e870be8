package handler

import (
	"sync"

	"github.com/dtroode/schoolhub-client/internal/model"
)

// Flash is the portal's Navigator. It keeps the last navigation and the
// pending notice until the login screen shows it.
type Flash struct {
	mu     sync.Mutex
	last   model.Navigation
	notice string
}

var _ model.Navigator = (*Flash)(nil)

func NewFlash() *Flash {
	return &Flash{}
}

func (f *Flash) Navigate(nav model.Navigation) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = nav
	if nav.Notice != "" {
		f.notice = nav.Notice
	}
}

// Take returns the pending notice and clears it.
func (f *Flash) Take() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.notice
	f.notice = ""
	return n
}

// Last returns the most recent navigation.
func (f *Flash) Last() model.Navigation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}
