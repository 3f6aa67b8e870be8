package guard

import (
	"github.com/dtroode/schoolhub-client/internal/logger"
	"github.com/dtroode/schoolhub-client/internal/model"
)

// Recorder receives guard metrics.
type Recorder interface {
	GuardDecision(guard, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) GuardDecision(string, string) {}

// Authorizer applies the route table to sessions and reports denials.
type Authorizer struct {
	table  *Table
	logger *logger.Logger
	rec    Recorder
}

func NewAuthorizer(table *Table, logger *logger.Logger, rec Recorder) *Authorizer {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Authorizer{table: table, logger: logger, rec: rec}
}

// Authorize decides loc for s using the matching policy.
func (a *Authorizer) Authorize(s model.Session, loc Location) Decision {
	p := a.table.Match(loc.Path)
	d := p.Decide(s, loc)

	a.rec.GuardDecision(string(p.Kind), d.Outcome.String())

	if d.Outcome == Redirect && d.Reason == ReasonForbidden {
		userID := ""
		if s.User != nil {
			userID = s.User.ID
		}
		a.logger.Warn("Route guard: access denied",
			"path", loc.Path,
			"user_id", userID,
			"role", d.UserRole.String(),
			"required", d.Required)
	}

	return d
}
