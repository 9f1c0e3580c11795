package access

import "github.com/transport-saas-ms/console/internal/domain/session"

// NamedRequirement labels a requirement for display.
type NamedRequirement struct {
	Name        string
	Requirement Requirement
}

// DiagnosticChecks are the sample decisions shown by the inspection surfaces.
func DiagnosticChecks(adminRole string) []NamedRequirement {
	if adminRole == "" {
		adminRole = session.RoleAdmin
	}
	return []NamedRequirement{
		{Name: session.CapViewAllTrips, Requirement: Capabilities(Any, session.CapViewAllTrips)},
		{Name: session.CapManageExpenses, Requirement: Capabilities(Any, session.CapManageExpenses)},
		{Name: session.CapCreateTrip, Requirement: Capabilities(Any, session.CapCreateTrip)},
		{Name: session.CapManageTrip, Requirement: Capabilities(Any, session.CapManageTrip)},
		{Name: "trips section", Requirement: Requirement{Capabilities: session.GroupTrips, Roles: []string{adminRole}}},
		{Name: "expenses section", Requirement: Requirement{Capabilities: session.GroupExpenses, Roles: []string{adminRole}}},
		{Name: adminRole + " only", Requirement: Roles(adminRole)},
	}
}

// Decision is the outcome of one diagnostic check.
type Decision struct {
	Name    string `json:"name"`
	Granted bool   `json:"granted"`
}

// Diagnose evaluates every diagnostic check against perms.
func (e Evaluator) Diagnose(perms *session.Permissions) []Decision {
	checks := DiagnosticChecks(e.AdminRole)
	out := make([]Decision, len(checks))
	for i, c := range checks {
		out[i] = Decision{Name: c.Name, Granted: e.Evaluate(perms, c.Requirement)}
	}
	return out
}
