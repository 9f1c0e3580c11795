package console

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/transport-saas-ms/console/internal/application/services"
	"github.com/transport-saas-ms/console/internal/domain/access"
	"github.com/transport-saas-ms/console/internal/domain/session"
	apperrors "github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// SessionSource is the read side of the session container.
type SessionSource interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Event)) (unsubscribe func())
}

// ProfileSource refreshes and exposes the derived permission view.
type ProfileSource interface {
	Sync(ctx context.Context) (*session.Profile, error)
	SyncIfStale(ctx context.Context) (*session.Profile, error)
	Current() services.ProfileView
}

// Logouter ends the session on request.
type Logouter interface {
	Logout(ctx context.Context) (string, error)
}

// Section is one navigable area of the shell.
type Section struct {
	Name string
	Path string
	// Guarded sections are hidden and denied unless Requirement passes.
	Guarded     bool
	Requirement access.Requirement
	// Actions are the capabilities listed on the section page.
	Actions []string
}

// DefaultSections mirrors the console navigation.
func DefaultSections(adminRole string) []Section {
	if adminRole == "" {
		adminRole = session.RoleAdmin
	}
	return []Section{
		{Name: "Dashboard", Path: "/dashboard"},
		{
			Name: "Trips", Path: "/trips", Guarded: true,
			Requirement: access.Requirement{Capabilities: session.GroupTrips, Roles: []string{adminRole}},
			Actions:     session.GroupTrips,
		},
		{
			Name: "Expenses", Path: "/expenses", Guarded: true,
			Requirement: access.Requirement{Capabilities: session.GroupExpenses, Roles: []string{adminRole}},
			Actions:     session.GroupExpenses,
		},
		{
			Name: "Users", Path: "/users", Guarded: true,
			Requirement: access.Capabilities(access.Any, session.GroupUsers...),
			Actions:     session.GroupUsers,
		},
		{
			Name: "Companies", Path: "/companies", Guarded: true,
			Requirement: access.Capabilities(access.Any, session.GroupCompanies...),
			Actions:     session.GroupCompanies,
		},
	}
}

// ShellDeps holds what the shell reads from and drives.
type ShellDeps struct {
	Session    SessionSource
	Profiles   ProfileSource
	Auth       Logouter
	Navigator  *Navigator
	Evaluator  access.Evaluator
	Sections   []Section
	Production bool
	Logger     logger.Logger
}

// Messages delivered to the shell.
type (
	sessionEventMsg struct{ event session.Event }
	locationMsg     struct{ location string }
	profileMsg      struct{ err error }
	logoutMsg       struct {
		destination string
		err         error
	}
)

// bridge forwards session and navigation changes into the program.
type bridge struct {
	ctx    context.Context
	events chan tea.Msg
	stops  []func()
}

// Shell is the interactive bubbletea model.
type Shell struct {
	deps     ShellDeps
	gate     Gate
	styles   Styles
	bridge   *bridge
	log      logger.Logger
	active   int
	showDiag bool
	notice   string
	lastErr  error
	width    int
	quitting bool
}

// NewShell builds the shell and subscribes it to the session and navigator.
// Close releases the subscriptions.
func NewShell(ctx context.Context, deps ShellDeps) *Shell {
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	if deps.Sections == nil {
		deps.Sections = DefaultSections(deps.Evaluator.AdminRole)
	}

	b := &bridge{ctx: ctx, events: make(chan tea.Msg, 16)}
	b.stops = append(b.stops,
		deps.Session.Subscribe(func(ev session.Event) { b.push(sessionEventMsg{event: ev}) }),
		deps.Navigator.Watch(func(loc string) { b.push(locationMsg{location: loc}) }),
	)

	s := &Shell{
		deps:   deps,
		gate:   NewGate(deps.Session, deps.Evaluator),
		styles: DefaultStyles(),
		bridge: b,
		log:    deps.Logger.With(logger.Component("shell")),
	}
	s.syncActive(deps.Navigator.Path())
	return s
}

func (b *bridge) push(msg tea.Msg) {
	select {
	case b.events <- msg:
	default:
		// View reads live state, so a dropped event only delays a repaint.
	}
}

func (b *bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.events:
			return msg
		case <-b.ctx.Done():
			return nil
		}
	}
}

// Close unsubscribes the shell.
func (s *Shell) Close() {
	for _, stop := range s.bridge.stops {
		stop()
	}
	s.bridge.stops = nil
}

// Run starts the program and blocks until the operator quits.
func (s *Shell) Run(opts ...tea.ProgramOption) error {
	defer s.Close()
	opts = append([]tea.ProgramOption{tea.WithContext(s.bridge.ctx), tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(s, opts...).Run()
	return err
}

func (s *Shell) Init() tea.Cmd {
	cmds := []tea.Cmd{s.bridge.wait()}
	if s.deps.Session.Snapshot().IsAuthenticated {
		cmds = append(cmds, s.syncProfile(false))
	}
	return tea.Batch(cmds...)
}

func (s *Shell) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return s.handleKey(msg)

	case tea.WindowSizeMsg:
		s.width = msg.Width
		return s, nil

	case sessionEventMsg:
		return s, tea.Batch(s.bridge.wait(), s.onSessionEvent(msg.event))

	case locationMsg:
		s.syncActive(pathOf(msg.location))
		return s, s.bridge.wait()

	case profileMsg:
		s.lastErr = msg.err
		return s, nil

	case logoutMsg:
		if msg.err != nil {
			s.log.Warn("logout did not clear storage", logger.Error(msg.err))
		}
		s.deps.Navigator.Navigate(msg.destination)
		return s, nil
	}

	return s, nil
}

func (s *Shell) onSessionEvent(ev session.Event) tea.Cmd {
	switch ev.Kind {
	case session.EventLoggedOut:
		s.notice = loggedOutNotice
		s.showDiag = false
	case session.EventForcedLogout:
		// Silent: the login route carries the expiry banner instead.
		s.notice = ""
		s.showDiag = false
	case session.EventAuthenticated:
		s.notice = ""
		s.lastErr = nil
		return s.syncProfile(false)
	}
	return nil
}

func (s *Shell) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		s.quitting = true
		return s, tea.Quit

	case "?":
		if !s.deps.Production {
			s.showDiag = !s.showDiag
		}

	case "tab", "right":
		s.moveSection(1)

	case "shift+tab", "left":
		s.moveSection(-1)

	case "r", "R":
		if s.deps.Session.Snapshot().IsAuthenticated {
			return s, s.syncProfile(true)
		}

	case "L":
		if s.deps.Session.Snapshot().IsAuthenticated {
			return s, s.logout()
		}

	default:
		if k := msg.String(); len(k) == 1 && k[0] >= '1' && k[0] <= '9' {
			s.openSection(int(k[0] - '1'))
		}
	}
	return s, nil
}

func (s *Shell) syncProfile(force bool) tea.Cmd {
	ctx := s.bridge.ctx
	profiles := s.deps.Profiles
	return func() tea.Msg {
		var err error
		if force {
			_, err = profiles.Sync(ctx)
		} else {
			_, err = profiles.SyncIfStale(ctx)
		}
		return profileMsg{err: err}
	}
}

func (s *Shell) logout() tea.Cmd {
	ctx := s.bridge.ctx
	auth := s.deps.Auth
	return func() tea.Msg {
		dest, err := auth.Logout(ctx)
		return logoutMsg{destination: dest, err: err}
	}
}

// visible lists the sections the operator may open.
func (s *Shell) visible() []int {
	out := make([]int, 0, len(s.deps.Sections))
	for i, sec := range s.deps.Sections {
		if !sec.Guarded || s.gate.Can(sec.Requirement) {
			out = append(out, i)
		}
	}
	return out
}

func (s *Shell) moveSection(delta int) {
	vis := s.visible()
	if len(vis) == 0 {
		return
	}
	pos := 0
	for i, idx := range vis {
		if idx == s.active {
			pos = i
		}
	}
	pos = (pos + delta + len(vis)) % len(vis)
	s.openSection(vis[pos])
}

func (s *Shell) openSection(idx int) {
	if idx < 0 || idx >= len(s.deps.Sections) {
		return
	}
	s.active = idx
	s.deps.Navigator.Navigate(s.deps.Sections[idx].Path)
}

func (s *Shell) syncActive(path string) {
	for i, sec := range s.deps.Sections {
		if strings.HasPrefix(path, sec.Path) {
			s.active = i
			return
		}
	}
}

func (s *Shell) View() string {
	if s.quitting {
		return ""
	}

	snap := s.deps.Session.Snapshot()
	var b strings.Builder

	b.WriteString(s.styles.Title.Render("Transport SaaS console"))
	if snap.User != nil {
		b.WriteString("  ")
		b.WriteString(s.styles.Muted.Render(fmt.Sprintf("%s (%s)", snap.User.Name, snap.User.Role)))
	}
	b.WriteString("\n\n")

	if s.notice != "" {
		b.WriteString(BannerView{Styles: s.styles, Message: s.notice}.View())
		b.WriteString("\n\n")
	}

	switch {
	case !snap.IsAuthenticated:
		b.WriteString(s.renderSignedOut())
	case s.awaitingAssignment():
		b.WriteString(AwaitingAssignmentView{Styles: s.styles, User: snap.User}.View())
	default:
		b.WriteString(s.renderTabs())
		b.WriteString("\n\n")
		b.WriteString(s.renderSection())
		if s.lastErr != nil && !apperrors.Is(s.lastErr, services.ErrProfileSuperseded) {
			b.WriteString("\n\n")
			b.WriteString(s.styles.Error.Render("Profile refresh failed: " + s.lastErr.Error()))
		}
	}

	if s.showDiag && !s.deps.Production {
		b.WriteString("\n\n")
		b.WriteString(DiagnosticsView{
			Styles:      s.styles,
			Permissions: snap.Permissions,
			Decisions:   s.deps.Evaluator.Diagnose(snap.Permissions),
		}.View())
	}

	b.WriteString("\n\n")
	b.WriteString(s.renderHelp(snap.IsAuthenticated))
	return b.String()
}

func (s *Shell) awaitingAssignment() bool {
	return s.deps.Profiles.Current().AwaitingAssignment || apperrors.Is(s.lastErr, apperrors.ErrAwaitingAssignment)
}

func (s *Shell) renderSignedOut() string {
	var b strings.Builder
	if s.deps.Navigator.SessionExpired() {
		b.WriteString(BannerView{Styles: s.styles, Message: sessionExpiredNotice}.View())
		b.WriteString("\n\n")
	}
	b.WriteString(s.styles.Subtitle.Render("You are signed out. Run `console login` to sign in."))
	return b.String()
}

func (s *Shell) renderTabs() string {
	var tabs []string
	for _, idx := range s.visible() {
		label := fmt.Sprintf("%d %s", idx+1, s.deps.Sections[idx].Name)
		if idx == s.active {
			tabs = append(tabs, s.styles.Active.Render(label))
			continue
		}
		tabs = append(tabs, s.styles.Inactive.Render(label))
	}
	return strings.Join(tabs, " ")
}

func (s *Shell) renderSection() string {
	sec := s.deps.Sections[s.active]
	content := ViewFunc(func() string {
		if len(sec.Actions) == 0 {
			return s.renderDashboard()
		}
		var b strings.Builder
		for _, capability := range sec.Actions {
			mark := s.styles.Muted.Render("·")
			if s.gate.Can(access.Capabilities(access.Any, capability)) {
				mark = s.styles.Success.Render("✓")
			}
			fmt.Fprintf(&b, "%s %s\n", mark, capability)
		}
		return strings.TrimRight(b.String(), "\n")
	})

	if !sec.Guarded {
		return s.styles.Title.Render(sec.Name) + "\n\n" + content.View()
	}
	page := Page{Title: sec.Name, Gate: s.gate.Require(sec.Requirement), Content: content, Styles: s.styles}
	return page.View()
}

func (s *Shell) renderDashboard() string {
	view := s.deps.Profiles.Current()
	snap := s.deps.Session.Snapshot()

	var lines []string
	if snap.User != nil {
		lines = append(lines, "email:   "+snap.User.Email)
		if snap.User.Company.Name != "" {
			lines = append(lines, "company: "+snap.User.Company.Name)
		}
	}
	switch {
	case view.IsAdmin:
		lines = append(lines, "You administer this company.")
	case view.IsAccountant:
		lines = append(lines, "You manage expenses and reports.")
	case view.IsDriver:
		lines = append(lines, "You see your own trips and expenses.")
	}
	if snap.Permissions == nil {
		lines = append(lines, s.styles.Muted.Render("Permissions not loaded yet. Press R to refresh."))
	}
	return strings.Join(lines, "\n")
}

func (s *Shell) renderHelp(signedIn bool) string {
	keys := [][2]string{{"q", "quit"}}
	if signedIn {
		keys = append(keys, [2]string{"tab", "next section"}, [2]string{"R", "refresh"}, [2]string{"L", "sign out"})
	}
	if !s.deps.Production {
		keys = append(keys, [2]string{"?", "permissions"})
	}

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = s.styles.Key.Render(k[0]) + " " + s.styles.KeyDesc.Render(k[1])
	}
	return strings.Join(parts, "  ")
}

func pathOf(location string) string {
	p, _ := splitLocation(location)
	return p
}
