package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/transport-saas-ms/console/internal/domain/access"
	"github.com/transport-saas-ms/console/internal/domain/session"
)

const (
	accessDeniedMessage  = "You do not have permission to perform this action."
	sessionExpiredNotice = "Your session has expired. Please sign in again."
	loggedOutNotice      = "You have been signed out."
)

// AccessDeniedView is shown in place of a page the operator may not see.
type AccessDeniedView struct {
	Styles  Styles
	Message string
}

func (v AccessDeniedView) View() string {
	msg := v.Message
	if msg == "" {
		msg = accessDeniedMessage
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		v.Styles.Error.Render("Access denied"),
		"",
		v.Styles.Subtitle.Render(msg),
		"",
		v.Styles.Muted.Render("Press L to sign out."),
	)
	return v.Styles.Box.BorderForeground(lipgloss.Color("196")).Render(body)
}

// AwaitingAssignmentView is shown to a signed-in user who has no company yet.
type AwaitingAssignmentView struct {
	Styles Styles
	User   *session.UserProfile
}

func (v AwaitingAssignmentView) View() string {
	who := "Your account"
	if v.User != nil {
		who = fmt.Sprintf("%s (%s)", v.User.Name, v.User.Role)
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		v.Styles.Warning.Render("Awaiting company assignment"),
		"",
		v.Styles.Subtitle.Render(who+" is not assigned to a company yet."),
		v.Styles.Subtitle.Render("An administrator has to grant you access before you can continue."),
		"",
		v.Styles.Muted.Render("Press R to check again or L to sign out."),
	)
	return v.Styles.Box.BorderForeground(lipgloss.Color("214")).Render(body)
}

// BannerView renders a one-line notice. An empty message renders nothing.
type BannerView struct {
	Styles  Styles
	Message string
}

func (v BannerView) View() string {
	if v.Message == "" {
		return ""
	}
	return v.Styles.Banner.Render(v.Message)
}

// DiagnosticsView lists sample access decisions next to the raw permissions.
type DiagnosticsView struct {
	Styles      Styles
	Permissions *session.Permissions
	Decisions   []access.Decision
}

func (v DiagnosticsView) View() string {
	var b strings.Builder

	b.WriteString(v.Styles.Title.Render("Permissions"))
	b.WriteString("\n")
	if v.Permissions == nil {
		b.WriteString(v.Styles.Muted.Render("no permission snapshot"))
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "role:         %s\n", v.Permissions.Role)
		fmt.Fprintf(&b, "capabilities: %s\n", joinOrDash(v.Permissions.Capabilities))
		fmt.Fprintf(&b, "restrictions: %s\n", joinOrDash(v.Permissions.Restrictions))
	}

	b.WriteString("\n")
	for _, d := range v.Decisions {
		mark := v.Styles.Error.Render("✗")
		if d.Granted {
			mark = v.Styles.Success.Render("✓")
		}
		fmt.Fprintf(&b, "%s %s\n", mark, d.Name)
	}

	return v.Styles.Box.Render(strings.TrimRight(b.String(), "\n"))
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
