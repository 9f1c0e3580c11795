package console

import (
	"github.com/transport-saas-ms/console/internal/domain/access"
	"github.com/transport-saas-ms/console/internal/domain/session"
)

// View renders a piece of the screen.
type View interface {
	View() string
}

// ViewFunc adapts a function to View.
type ViewFunc func() string

func (f ViewFunc) View() string { return f() }

// Text is a static View.
type Text string

func (t Text) View() string { return string(t) }

// SnapshotSource exposes the live session.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// Gate decides whether a view may be shown. It reads the session on every
// call and never touches the network.
type Gate struct {
	session   SnapshotSource
	evaluator access.Evaluator
	req       access.Requirement
}

func NewGate(sess SnapshotSource, evaluator access.Evaluator) Gate {
	return Gate{session: sess, evaluator: evaluator}
}

// Require returns a copy of the gate guarding req.
func (g Gate) Require(req access.Requirement) Gate {
	g.req = req
	return g
}

// Allowed evaluates the gate's own requirement.
func (g Gate) Allowed() bool {
	return g.Can(g.req)
}

// Can evaluates req against the current permissions.
func (g Gate) Can(req access.Requirement) bool {
	return g.evaluator.Evaluate(g.session.Snapshot().Permissions, req)
}

// Render returns protected when allowed, otherwise fallback. A nil
// fallback renders nothing.
func (g Gate) Render(protected, fallback View) string {
	if g.Allowed() {
		if protected == nil {
			return ""
		}
		return protected.View()
	}
	if fallback == nil {
		return ""
	}
	return fallback.View()
}
