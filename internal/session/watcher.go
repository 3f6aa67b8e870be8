package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dtroode/schoolhub-client/internal/model"
)

// armLocked starts the expiry watcher if it is not running. Callers hold m.mu.
func (m *Manager) armLocked() {
	if m.watchCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.watchCancel = cancel
	m.watchWG.Add(1)
	go m.watch(ctx, m.interval)
}

// disarmLocked stops the expiry watcher. It does not wait for the goroutine,
// which may itself be blocked on m.mu. Callers hold m.mu.
func (m *Manager) disarmLocked() {
	if m.watchCancel == nil {
		return
	}
	m.watchCancel()
	m.watchCancel = nil
}

func (m *Manager) watching() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.watchCancel != nil
}

func (m *Manager) watch(ctx context.Context, interval time.Duration) {
	defer m.watchWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.CheckNow(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("Session manager: expiry check failed",
					"error", err.Error())
			}
		}
	}
}

// CheckNow runs one expiry check: an expired access token gets one refresh
// attempt, and a failed refresh ends the session with an expiry notice.
func (m *Manager) CheckNow(ctx context.Context) error {
	m.mu.RLock()
	initialized, status, gen := m.initialized, m.state.Status, m.gen
	var user model.User
	if m.state.User != nil {
		user = *m.state.User
	}
	m.mu.RUnlock()

	if !initialized {
		return model.ErrNotInitialized
	}
	if status != model.StatusAuthenticated {
		return nil
	}

	creds, err := m.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stored credentials: %w", err)
	}
	if !m.inspector.IsExpired(creds.AccessToken) {
		return nil
	}

	resp, err := m.refreshTokens(ctx, creds.RefreshToken)

	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return ctx.Err()
	}
	if m.gen != gen {
		m.mu.Unlock()
		if err == nil {
			m.rec.RefreshOutcome(RefreshStale)
			m.logger.Info("Session manager: discarding stale refresh result",
				"user_id", user.ID)
		}
		return nil
	}

	if err != nil {
		m.logger.Info("Session manager: session expired",
			"user_id", user.ID,
			"error", err.Error())
		m.teardownLocked(ctx, EventExpired)
		m.mu.Unlock()
		m.nav.Navigate(model.Navigation{Path: model.LoginRoute, Notice: NoticeExpired})
		return nil
	}

	// A reconcile may have replaced the profile during the refresh.
	if m.state.User != nil {
		user = *m.state.User
	}

	// Refresh tokens are single use: keep the rotated one or none.
	if err := m.store.Set(ctx, resp.Token, user, resp.RefreshToken); err != nil {
		m.logger.Error("Session manager: failed to persist refreshed token",
			"user_id", user.ID,
			"error", err.Error())
		m.teardownLocked(ctx, EventExpired)
		m.mu.Unlock()
		m.nav.Navigate(model.Navigation{Path: model.LoginRoute, Notice: NoticeExpired})
		return nil
	}
	m.mu.Unlock()

	m.logger.Debug("Session manager: access token refreshed", "user_id", user.ID)
	return nil
}
