package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/transport-saas-ms/console/config"
	"github.com/transport-saas-ms/console/internal/application/dto"
	"github.com/transport-saas-ms/console/internal/application/services"
	"github.com/transport-saas-ms/console/internal/domain/access"
	"github.com/transport-saas-ms/console/internal/domain/session"
	apperrors "github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// errDenied makes `console can` exit non-zero without an error line.
var errDenied = errors.New("permission denied")

type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "console",
		Short:         "Operator console for the transport and expense API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.configPath != "" {
				if err := os.Setenv("CONSOLE_CONFIG", opts.configPath); err != nil {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (overrides CONSOLE_CONFIG)")

	root.AddCommand(
		newLoginCmd(opts),
		newRegisterCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newCanCmd(opts),
		newChangePasswordCmd(opts),
		newShellCmd(opts),
		newDevPanelCmd(opts),
		newLogsCmd(opts),
	)
	return root
}

// withApp builds the process state, expires a stale session, runs fn, and
// tears it down.
func withApp(cmd *cobra.Command, opts *rootOptions, interactive bool, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts.cfg, interactive)
	if err != nil {
		return err
	}
	defer a.Close()
	a.svcs.Monitor.ValidateNow(ctx)
	return explain(fn(ctx, a))
}

// explain spells out validation failures, whose Error text only counts them.
func explain(err error) error {
	var verrs *apperrors.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs.Errors) == 0 {
		return err
	}
	msgs := make([]string, len(verrs.Errors))
	for i, e := range verrs.Errors {
		msgs[i] = e.Message
	}
	return fmt.Errorf("%w: %s", err, strings.Join(msgs, "; "))
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var req dto.LoginRequest

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("CONSOLE_PASSWORD")
			}
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				res, err := a.svcs.Auth.Login(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if role := roleOf(a.svcs.Session.Snapshot()); role != "" {
					fmt.Fprintf(out, "Signed in as %s (%s)\n", req.Email, role)
				} else {
					fmt.Fprintf(out, "Signed in as %s\n", req.Email)
				}
				if res.ProfileErr != nil {
					printProfileError(out, res.ProfileErr)
				}
				fmt.Fprintf(out, "Next: %s\n", a.nav.Navigate(res.Destination))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (or CONSOLE_PASSWORD)")
	return cmd
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var req dto.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account; an administrator assigns it to a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("CONSOLE_PASSWORD")
			}
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				next, err := a.svcs.Auth.Register(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Account created. Sign in with `console login`.")
				fmt.Fprintf(out, "Next: %s\n", a.nav.Navigate(next))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (or CONSOLE_PASSWORD)")
	cmd.Flags().StringVar(&req.Role, "role", session.RoleUser, "requested role ("+strings.Join(session.Roles, ", ")+")")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				next, err := a.svcs.Auth.Logout(ctx)
				a.nav.Navigate(next)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()

				if !a.svcs.Session.Snapshot().IsAuthenticated {
					if a.nav.SessionExpired() {
						fmt.Fprintln(out, "Your session has expired. Please sign in again.")
					}
					fmt.Fprintln(out, "Not signed in.")
					return nil
				}

				if _, err := a.svcs.Profiles.SyncIfStale(ctx); err != nil {
					// A 401 during sync has already expired the session.
					if !a.svcs.Session.Snapshot().IsAuthenticated {
						fmt.Fprintln(out, "Your session has expired. Please sign in again.")
						return nil
					}
					printProfileError(out, err)
				}

				printSession(out, a.svcs.Session.Snapshot(), a.svcs.Profiles.Current())
				return nil
			})
		},
	}
}

func newCanCmd(opts *rootOptions) *cobra.Command {
	var (
		roles []string
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "can [CAPABILITY...]",
		Short: "Check the stored permissions against a requirement",
		Long: "Evaluates capabilities and roles against the stored permission snapshot.\n" +
			"Exits 1 when the requirement is denied.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(_ context.Context, a *app) error {
				req := access.Requirement{Capabilities: args, Roles: roles, Mode: access.Any}
				if all {
					req.Mode = access.All
				}

				granted := a.svcs.Evaluator.Evaluate(a.svcs.Session.Snapshot().Permissions, req)
				if !granted {
					fmt.Fprintln(cmd.OutOrStdout(), "denied")
					return errDenied
				}
				fmt.Fprintln(cmd.OutOrStdout(), "granted")
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", nil, "accepted roles")
	cmd.Flags().BoolVar(&all, "all", false, "require every capability instead of any")
	return cmd
}

func newChangePasswordCmd(opts *rootOptions) *cobra.Command {
	var req dto.ChangePasswordRequest

	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the signed-in user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				if err := a.svcs.Auth.ChangePassword(ctx, req); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.CurrentPassword, "current", "", "current password")
	cmd.Flags().StringVar(&req.NewPassword, "new", "", "new password")
	return cmd
}

func newShellCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open the interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				a.svcs.Monitor.Start(ctx)
				return a.shell(ctx).Run()
			})
		},
	}
}

func newDevPanelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dev-panel",
		Short: "Serve the permission debug panel (non-production only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				panel := a.devPanel()
				if !panel.Enabled() {
					return fmt.Errorf("dev panel is disabled in %s", a.cfg.App.Environment)
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				a.svcs.Monitor.Start(ctx)
				return panel.ListenAndServe(ctx)
			})
		},
	}
}

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var (
		filter logger.QueryFilter
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show stored log entries (requires LOG_SQLITE_PATH)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				if a.logDB == nil {
					return errors.New("log store is disabled; set LOG_SQLITE_PATH")
				}
				if since > 0 {
					filter.Since = time.Now().Add(-since)
				}
				entries, err := a.logDB.Query(ctx, filter)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for i := len(entries) - 1; i >= 0; i-- {
					e := entries[i]
					ts := time.UnixMilli(e.Timestamp).Format("2006-01-02 15:04:05.000")
					fmt.Fprintf(out, "%s %-5s %s", ts, strings.ToUpper(e.Level), e.Message)
					if e.RequestID != "" {
						fmt.Fprintf(out, " request_id=%s", e.RequestID)
					}
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.Level, "level", "", "only this level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.RequestID, "request-id", "", "only entries for one API request")
	cmd.Flags().StringVar(&filter.UserID, "user-id", "", "only entries for one user")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum entries")
	return cmd
}

func roleOf(snap session.Snapshot) string {
	if snap.Permissions != nil && snap.Permissions.Role != "" {
		return snap.Permissions.Role
	}
	if snap.User != nil && snap.User.Role != "" {
		return snap.User.Role
	}
	return ""
}

func printProfileError(out io.Writer, err error) {
	if errors.Is(err, apperrors.ErrAwaitingAssignment) {
		fmt.Fprintln(out, "Awaiting company assignment. An administrator must add you to a company.")
		return
	}
	fmt.Fprintf(out, "Profile unavailable: %v\n", err)
}

func printSession(out io.Writer, snap session.Snapshot, view services.ProfileView) {
	if u := snap.User; u != nil {
		fmt.Fprintf(out, "User:         %s <%s>\n", u.Name, u.Email)
		if u.Company.Name != "" {
			fmt.Fprintf(out, "Company:      %s\n", u.Company.Name)
		}
	}
	if role := roleOf(snap); role != "" {
		fmt.Fprintf(out, "Role:         %s\n", role)
	}

	if view.AwaitingAssignment {
		fmt.Fprintln(out, "Status:       awaiting company assignment")
	}
	if p := view.Permissions; p != nil {
		fmt.Fprintf(out, "Capabilities: %s\n", joinOrNone(p.Capabilities))
		fmt.Fprintf(out, "Restrictions: %s\n", joinOrNone(p.Restrictions))
	} else {
		fmt.Fprintln(out, "Permissions:  not loaded")
	}
	fmt.Fprintf(out, "Admin: %t  Accountant: %t  Driver: %t\n", view.IsAdmin, view.IsAccountant, view.IsDriver)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
