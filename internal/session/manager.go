// Package session owns the client's authentication state machine.
//
// A Manager is the single writer of the session. Consumers read it through
// Snapshot and the accessor methods and change it only through the
// operations below. Every asynchronous branch ends in a definite status.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dtroode/schoolhub-client/internal/logger"
	"github.com/dtroode/schoolhub-client/internal/model"
)

// User-visible notices attached to forced transitions.
const (
	NoticeExpired    = "Your session has expired. Please log in again."
	NoticeUnverified = "Your session could not be verified. Please log in again."
)

// Transition events reported to the Recorder.
const (
	EventInit        = "init"
	EventLogin       = "login"
	EventLogout      = "logout"
	EventForceLogout = "force_logout"
	EventExpired     = "expired"
	EventReconcile   = "reconcile"
)

// Refresh outcomes reported to the Recorder.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
	RefreshNoToken = "no_token"
	RefreshStale   = "stale"
)

// DefaultCheckInterval is the expiry watcher period.
const DefaultCheckInterval = 60 * time.Second

// RefreshTimeout bounds a shared token refresh.
const RefreshTimeout = 30 * time.Second

// ErrSuperseded is returned when a newer session event made a result obsolete.
var ErrSuperseded = errors.New("superseded by a newer session event")

// ReconcileMode selects how a cached session is re-validated during Init.
type ReconcileMode string

const (
	// ReconcileOptimistic paints Authenticated from cache, then asks the server.
	ReconcileOptimistic ReconcileMode = "optimistic"
	// ReconcileStrict stays Loading until the server confirms the user.
	ReconcileStrict ReconcileMode = "strict"
	// ReconcileOff trusts the cache until the token expires.
	ReconcileOff ReconcileMode = "off"
)

// Recorder receives session metrics.
type Recorder interface {
	Transition(from, to model.Status, event string)
	RefreshOutcome(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Transition(model.Status, model.Status, string) {}
func (nopRecorder) RefreshOutcome(string)                         {}

type nopNavigator struct{}

func (nopNavigator) Navigate(model.Navigation) {}

// Options tunes a Manager. Zero values select defaults.
type Options struct {
	CheckInterval time.Duration
	Reconcile     ReconcileMode
	Navigator     model.Navigator
	Recorder      Recorder
}

// LoginResult is the outcome of Login. Err is nil on success.
type LoginResult struct {
	User     model.User
	Redirect string
	Err      error
}

// OK reports whether the login succeeded.
func (r LoginResult) OK() bool { return r.Err == nil }

// SignupResult is the outcome of Signup. Err is nil on success.
type SignupResult struct {
	Confirmation model.SignupConfirmation
	Err          error
}

// OK reports whether the signup succeeded.
func (r SignupResult) OK() bool { return r.Err == nil }

// Manager is the session state machine.
type Manager struct {
	store     model.CredentialStore
	gateway   model.Gateway
	inspector model.TokenInspector
	nav       model.Navigator
	rec       Recorder
	logger    *logger.Logger
	interval  time.Duration
	mode      ReconcileMode

	mu          sync.RWMutex
	state       model.Session
	gen         uint64
	initGen     uint64
	initialized bool
	watchCancel context.CancelFunc

	group     singleflight.Group
	ready     chan struct{}
	readyOnce sync.Once
	watchWG   sync.WaitGroup
}

func NewManager(
	store model.CredentialStore,
	gateway model.Gateway,
	inspector model.TokenInspector,
	logger *logger.Logger,
	opts Options,
) *Manager {
	m := &Manager{
		store:     store,
		gateway:   gateway,
		inspector: inspector,
		nav:       opts.Navigator,
		rec:       opts.Recorder,
		logger:    logger,
		interval:  opts.CheckInterval,
		mode:      opts.Reconcile,
		state:     model.Session{Status: model.StatusLoading},
		ready:     make(chan struct{}),
	}
	if m.nav == nil {
		m.nav = nopNavigator{}
	}
	if m.rec == nil {
		m.rec = nopRecorder{}
	}
	if m.interval <= 0 {
		m.interval = DefaultCheckInterval
	}
	if m.mode == "" {
		m.mode = ReconcileOptimistic
	}
	return m
}

// Init resolves the stored credentials into Authenticated or Unauthenticated.
// Concurrent calls share one run.
func (m *Manager) Init(ctx context.Context) error {
	_, err, _ := m.group.Do("init", func() (any, error) {
		return nil, m.initialize(ctx)
	})
	return err
}

// RefreshAuth re-enters Loading and re-runs Init.
func (m *Manager) RefreshAuth(ctx context.Context) error {
	return m.Init(ctx)
}

// Ready is closed once the first Init has settled.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

func (m *Manager) initialize(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.initGen = gen
	m.disarmLocked()
	m.setStateLocked(model.StatusLoading, nil, EventInit)
	m.mu.Unlock()

	defer m.settle(gen)

	creds, err := m.store.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("failed to read stored credentials: %w", err)
		}
		if errors.Is(err, model.ErrCorruptCredentials) {
			m.logger.Warn("Session manager: stored credentials are corrupt, discarding",
				"error", err.Error())
			m.teardown(ctx, gen, EventInit, nil)
			return nil
		}
		m.logger.Error("Session manager: failed to read stored credentials",
			"error", err.Error())
		m.teardown(ctx, gen, EventInit, nil)
		return fmt.Errorf("failed to read stored credentials: %w", err)
	}

	if creds.IsEmpty() {
		m.logger.Debug("Session manager: no stored session")
		m.teardown(ctx, gen, EventInit, nil)
		return nil
	}

	token, refresh := creds.AccessToken, creds.RefreshToken
	rotated := false
	if m.inspector.IsExpired(token) {
		resp, err := m.refreshTokens(ctx, refresh)
		if err != nil {
			m.logger.Info("Session manager: stored token expired and could not be refreshed",
				"error", err.Error())
			m.teardown(ctx, gen, EventInit, nil)
			return nil
		}
		token, refresh, rotated = resp.Token, resp.RefreshToken, true
	}

	if creds.User != nil && !creds.User.Role.IsValid() {
		m.forceTeardown(ctx, gen, "cached user carries an unsupported role")
		return nil
	}

	if creds.User == nil || m.mode == ReconcileStrict {
		user, err := m.gateway.WhoAmI(ctx, token)
		if err != nil {
			m.logVerifyFailure(err)
			m.teardown(ctx, gen, EventInit, &model.Navigation{Path: model.LoginRoute, Notice: NoticeUnverified})
			return nil
		}
		if !user.Role.IsValid() {
			m.forceTeardown(ctx, gen, "server returned an unsupported role")
			return nil
		}
		m.establish(ctx, gen, token, user, refresh, EventInit, true)
		return nil
	}

	if !m.establish(ctx, gen, token, *creds.User, refresh, EventInit, rotated) {
		return nil
	}

	if m.mode == ReconcileOptimistic {
		m.reconcile(ctx, gen, token)
	}
	return nil
}

// settle guarantees Init never leaves the session Loading.
func (m *Manager) settle(gen uint64) {
	m.mu.Lock()
	if m.initGen == gen && m.state.Status == model.StatusLoading {
		m.setStateLocked(model.StatusUnauthenticated, nil, EventInit)
	}
	m.initialized = true
	m.mu.Unlock()

	m.readyOnce.Do(func() { close(m.ready) })
}

// establish moves to Authenticated unless gen is stale.
func (m *Manager) establish(ctx context.Context, gen uint64, token string, user model.User, refresh, event string, persist bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		m.logger.Debug("Session manager: discarding stale result", "event", event)
		return false
	}

	if persist {
		if err := m.store.Set(ctx, token, user, refresh); err != nil {
			m.logger.Error("Session manager: failed to persist credentials",
				"user_id", user.ID,
				"error", err.Error())
			m.teardownLocked(ctx, event)
			return false
		}
	}

	m.setStateLocked(model.StatusAuthenticated, &user, event)
	m.armLocked()
	return true
}

// Reconcile re-validates the current session against the server.
func (m *Manager) Reconcile(ctx context.Context) error {
	m.mu.RLock()
	initialized, status, gen := m.initialized, m.state.Status, m.gen
	m.mu.RUnlock()

	if !initialized {
		return model.ErrNotInitialized
	}
	if status != model.StatusAuthenticated {
		return model.ErrNotAuthenticated
	}

	creds, err := m.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stored credentials: %w", err)
	}

	if !m.reconcile(ctx, gen, creds.AccessToken) {
		return model.ErrNotAuthenticated
	}
	return nil
}

// reconcile asks the server for the canonical profile and tears the session
// down on any failure. It reports whether the session survived.
func (m *Manager) reconcile(ctx context.Context, gen uint64, token string) bool {
	user, err := m.gateway.WhoAmI(ctx, token)

	m.mu.Lock()
	if m.gen != gen || m.state.Status != model.StatusAuthenticated {
		m.mu.Unlock()
		m.logger.Debug("Session manager: discarding stale reconcile result")
		return false
	}

	if err != nil {
		m.logVerifyFailure(err)
		m.teardownLocked(ctx, EventReconcile)
		m.mu.Unlock()
		m.nav.Navigate(model.Navigation{Path: model.LoginRoute, Notice: NoticeUnverified})
		return false
	}

	if !user.Role.IsValid() {
		m.logger.Warn("Session manager: forcing logout",
			"reason", "server returned an unsupported role",
			"user_id", user.ID)
		m.teardownLocked(ctx, EventForceLogout)
		m.mu.Unlock()
		return false
	}

	// A refresh may have rotated the tokens while WhoAmI was in flight:
	// only the profile is replaced.
	current, err := m.store.Get(ctx)
	switch {
	case err != nil:
		m.logger.Error("Session manager: failed to read credentials for cached user update",
			"user_id", user.ID,
			"error", err.Error())
	case current.IsEmpty():
	default:
		if err := m.store.Set(ctx, current.AccessToken, user, current.RefreshToken); err != nil {
			m.logger.Error("Session manager: failed to update cached user",
				"user_id", user.ID,
				"error", err.Error())
		}
	}
	m.setStateLocked(model.StatusAuthenticated, &user, EventReconcile)
	m.mu.Unlock()
	return true
}

// Login authenticates with the backend. On failure the status is unchanged and
// LastError is set.
func (m *Manager) Login(ctx context.Context, creds model.LoginCredentials, returnTo string) LoginResult {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return LoginResult{Err: model.ErrNotInitialized}
	}
	m.state.LastError = ""
	gen := m.gen
	m.mu.Unlock()

	resp, err := m.gateway.Login(ctx, creds)
	if err != nil {
		m.logger.Info("Session manager: login rejected",
			"email", creds.Email,
			"error", err.Error())
		return m.loginFailure(gen, err)
	}

	if !resp.User.Role.IsValid() {
		m.logger.Warn("Session manager: login returned unsupported role",
			"user_id", resp.User.ID,
			"role", resp.User.Role.String())
		return m.loginFailure(gen, fmt.Errorf("%w: %q", model.ErrUnsupportedRole, resp.User.Role))
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.logger.Info("Session manager: discarding superseded login",
			"user_id", resp.User.ID)
		return LoginResult{Err: ErrSuperseded}
	}

	if err := m.store.Set(ctx, resp.Token, resp.User, resp.RefreshToken); err != nil {
		m.state.LastError = "Unable to save your session. Please try again."
		m.mu.Unlock()
		m.logger.Error("Session manager: failed to persist credentials",
			"user_id", resp.User.ID,
			"error", err.Error())
		return LoginResult{Err: fmt.Errorf("failed to persist credentials: %w", err)}
	}

	m.gen++
	user := resp.User
	m.setStateLocked(model.StatusAuthenticated, &user, EventLogin)
	m.armLocked()
	m.mu.Unlock()

	target := user.Role.DashboardRoute()
	if safe, err := SanitizeReturnTo(returnTo); err != nil {
		m.logger.Warn("Session manager: ignoring unsafe return target",
			"user_id", user.ID,
			"error", err.Error())
	} else if safe != "" {
		target = safe
	}

	m.logger.Info("Session manager: user logged in",
		"user_id", user.ID,
		"role", user.Role.String())
	m.nav.Navigate(model.Navigation{Path: target})

	return LoginResult{User: user, Redirect: target}
}

func (m *Manager) loginFailure(gen uint64, err error) LoginResult {
	m.mu.Lock()
	if m.gen == gen {
		m.state.LastError = UserMessage(err)
	}
	m.mu.Unlock()
	return LoginResult{Err: err}
}

// Signup registers a new account. It never changes the session.
func (m *Manager) Signup(ctx context.Context, profile model.SignupProfile) SignupResult {
	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()
	if !initialized {
		return SignupResult{Err: model.ErrNotInitialized}
	}

	role, err := model.ParseRole(string(profile.Role))
	if err != nil {
		return SignupResult{Err: err}
	}
	profile.Role = role

	conf, err := m.gateway.Signup(ctx, profile)
	if err != nil {
		m.logger.Info("Session manager: signup rejected",
			"email", profile.Email,
			"error", err.Error())
		return SignupResult{Err: err}
	}

	m.logger.Info("Session manager: account registered",
		"email", profile.Email,
		"role", role.String())
	return SignupResult{Confirmation: conf}
}

// Logout tears down the session, notifies the server when a token was held
// and navigates to the login route. Safe to call repeatedly.
func (m *Manager) Logout(ctx context.Context) (model.Navigation, error) {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return model.Navigation{}, model.ErrNotInitialized
	}

	var token string
	creds, err := m.store.Get(ctx)
	if err != nil {
		m.logger.Warn("Session manager: failed to read credentials on logout",
			"error", err.Error())
	} else {
		token = creds.AccessToken
	}

	userID := ""
	if m.state.User != nil {
		userID = m.state.User.ID
	}
	m.teardownLocked(ctx, EventLogout)
	m.mu.Unlock()

	if token != "" {
		if err := m.gateway.Logout(ctx, token); err != nil {
			m.logger.Warn("Session manager: server logout failed",
				"user_id", userID,
				"error", err.Error())
		}
	}

	if userID != "" {
		m.logger.Info("Session manager: user logged out", "user_id", userID)
	}

	nav := model.Navigation{Path: model.LoginRoute}
	m.nav.Navigate(nav)
	return nav, nil
}

// ForceLogout clears local credentials without contacting the server.
// Before the first Init settles the status stays Loading: only the store is
// cleared, and an Init in flight resolves to Unauthenticated.
func (m *Manager) ForceLogout(ctx context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logForceLocked(reason)
	if m.initialized {
		m.teardownLocked(ctx, EventForceLogout)
		return
	}

	m.gen++
	m.disarmLocked()
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.logger.Error("Session manager: failed to clear stored credentials",
			"error", err.Error())
	}
}

func (m *Manager) forceTeardown(ctx context.Context, gen uint64, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return
	}
	m.logForceLocked(reason)
	m.teardownLocked(ctx, EventForceLogout)
}

func (m *Manager) logForceLocked(reason string) {
	args := []any{"reason", reason}
	if m.state.User != nil {
		args = append(args, "user_id", m.state.User.ID, "role", m.state.User.Role.String())
	}
	m.logger.Warn("Session manager: forcing logout", args...)
}

// teardown moves to Unauthenticated unless gen is stale, then emits nav.
func (m *Manager) teardown(ctx context.Context, gen uint64, event string, nav *model.Navigation) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.teardownLocked(ctx, event)
	m.mu.Unlock()

	if nav != nil {
		m.nav.Navigate(*nav)
	}
}

// teardownLocked invalidates in-flight work, stops the watcher, clears the
// store and sets Unauthenticated. Callers hold m.mu.
func (m *Manager) teardownLocked(ctx context.Context, event string) {
	m.gen++
	m.disarmLocked()

	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.logger.Error("Session manager: failed to clear stored credentials",
			"error", err.Error())
	}

	m.setStateLocked(model.StatusUnauthenticated, nil, event)
}

func (m *Manager) setStateLocked(status model.Status, user *model.User, event string) {
	from := m.state.Status
	m.state.Status = status
	m.state.User = user
	if from != status {
		m.logger.Debug("Session manager: transition",
			"from", from.String(),
			"to", status.String(),
			"event", event)
	}
	m.rec.Transition(from, status, event)
}

func (m *Manager) refreshTokens(ctx context.Context, refreshToken string) (model.RefreshResponse, error) {
	if refreshToken == "" {
		m.rec.RefreshOutcome(RefreshNoToken)
		return model.RefreshResponse{}, model.ErrNoRefreshToken
	}

	// The shared call is detached from its first caller: a cancelled watcher
	// must not fail an Init that joined it, since the server may already have
	// consumed the single-use refresh token.
	ch := m.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		return m.gateway.Refresh(rctx, refreshToken)
	})

	select {
	case <-ctx.Done():
		return model.RefreshResponse{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			m.rec.RefreshOutcome(RefreshFailure)
			return model.RefreshResponse{}, res.Err
		}
		m.rec.RefreshOutcome(RefreshSuccess)
		return res.Val.(model.RefreshResponse), nil
	}
}

func (m *Manager) logVerifyFailure(err error) {
	if errors.Is(err, model.ErrNotAuthenticated) {
		m.logger.Info("Session manager: server no longer accepts the session",
			"error", err.Error())
		return
	}
	m.logger.Warn("Session manager: could not verify session",
		"error", err.Error())
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *model.User {
	return m.Snapshot().User
}

func (m *Manager) Role() model.Role {
	return m.Snapshot().Role()
}

func (m *Manager) IsAuthenticated() bool {
	return m.Snapshot().IsAuthenticated()
}

func (m *Manager) IsLoading() bool {
	return m.Snapshot().IsLoading()
}

func (m *Manager) LastError() string {
	return m.Snapshot().LastError
}

// CheckRole reports whether the signed-in user has one of roles.
func (m *Manager) CheckRole(roles ...model.Role) bool {
	s := m.Snapshot()
	return s.IsAuthenticated() && model.ContainsRole(roles, s.Role())
}

// DashboardRoute returns the signed-in user's landing route, or the login route.
func (m *Manager) DashboardRoute() string {
	s := m.Snapshot()
	if !s.IsAuthenticated() {
		return model.LoginRoute
	}
	return s.Role().DashboardRoute()
}

// Close stops the expiry watcher and waits for it to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	m.disarmLocked()
	m.mu.Unlock()

	m.watchWG.Wait()
}
