package access

import (
	"slices"

	"github.com/transport-saas-ms/console/internal/domain/session"
)

// MatchMode decides how several required capabilities combine.
type MatchMode int

const (
	// Any grants when at least one required capability is held.
	Any MatchMode = iota
	// All grants only when every required capability is held.
	All
)

// Combinator decides how a role requirement and a capability requirement
// combine when a caller gives both.
type Combinator int

const (
	// CombineOr grants when either requirement is satisfied.
	CombineOr Combinator = iota
	// CombineAnd grants only when both are satisfied.
	CombineAnd
)

// Requirement describes what a screen or action needs. The zero value has no
// constraints and grants as soon as a permission snapshot exists.
type Requirement struct {
	Capabilities []string
	Roles        []string
	Mode         MatchMode
}

// Capabilities is shorthand for a capability-only requirement.
func Capabilities(mode MatchMode, caps ...string) Requirement {
	return Requirement{Capabilities: caps, Mode: mode}
}

// Roles is shorthand for a role-only requirement.
func Roles(roles ...string) Requirement {
	return Requirement{Roles: roles}
}

// Evaluator is the pure permission decision function.
type Evaluator struct {
	AdminRole  string
	Combinator Combinator
}

// NewEvaluator returns an evaluator with the OR combinator.
func NewEvaluator(adminRole string) Evaluator {
	if adminRole == "" {
		adminRole = session.RoleAdmin
	}
	return Evaluator{AdminRole: adminRole, Combinator: CombineOr}
}

// Evaluate decides req against perms. A nil snapshot always denies.
func (e Evaluator) Evaluate(perms *session.Permissions, req Requirement) bool {
	if perms == nil {
		return false
	}

	hasRoles := len(req.Roles) > 0
	hasCaps := len(req.Capabilities) > 0

	// Administrator override applies only when no explicit role list was given.
	if !hasRoles && e.AdminRole != "" && perms.Role == e.AdminRole {
		return true
	}

	if !hasRoles && !hasCaps {
		return true
	}

	roleOK := hasRoles && slices.Contains(req.Roles, perms.Role)
	capOK := hasCaps && capabilitiesMatch(perms, req.Capabilities, req.Mode)

	switch {
	case hasRoles && hasCaps:
		if e.Combinator == CombineAnd {
			return roleOK && capOK
		}
		return roleOK || capOK
	case hasRoles:
		return roleOK
	default:
		return capOK
	}
}

func capabilitiesMatch(perms *session.Permissions, required []string, mode MatchMode) bool {
	if mode == All {
		for _, c := range required {
			if !perms.Has(c) {
				return false
			}
		}
		return true
	}
	return slices.ContainsFunc(required, perms.Has)
}
