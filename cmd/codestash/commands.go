package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"codestash/auth"
	"codestash/auth/identity"
	"codestash/internal/config"
	"codestash/projects"
	"codestash/server"
	"codestash/store/firestore"
)

// app holds the wired services shared by every subcommand. Wiring is lazy so
// flag parsing can finish before anything touches the network.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	auth    *auth.Orchestrator
	manager *projects.Manager
}

func newRootCmd() (*cobra.Command, error) {
	var (
		configPath string
		workspace  string
		a          app
	)

	root := &cobra.Command{
		Use:           "codestash",
		Short:         "Save, sync and manage editor workspace projects in a remote store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.wire(configPath, workspace)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "codestash.yaml", "path to the config file")
	root.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace folder (defaults to the current directory)")

	root.AddCommand(
		newServeCmd(&a),
		newLoginCmd(&a),
		newLogoutCmd(&a),
		newProjectsCmd(&a),
	)
	return root, nil
}

func (a *app) wire(configPath, workspace string) error {
	cfg, err := config.FromFile(configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if workspace == "" {
		if workspace, err = os.Getwd(); err != nil {
			return err
		}
	}

	exchanger := identity.NewGoogleExchanger(cfg.GetIssuer(), cfg.GetIdentityBaseURL(), cfg.GetAPIKey())

	a.auth, err = auth.NewOrchestrator(cfg, exchanger, auth.WithLogger(a.logger))
	if err != nil {
		return err
	}

	repo, err := firestore.NewRepo(cfg, a.auth, firestore.WithLogger(a.logger))
	if err != nil {
		return err
	}

	a.manager, err = projects.NewManager(repo, a.auth,
		projects.WithConfirmer(stdinConfirmer{}),
		projects.WithWorkspaceRoot(workspace),
		projects.WithCacheTTL(cfg.GetListCacheTTL()),
		projects.WithManagerLogger(a.logger),
	)
	if err != nil {
		return err
	}

	// A login or logout makes any cached listing stale.
	a.auth.OnSessionChange(func(*auth.Session) {
		a.manager.InvalidateCache()
	})
	return nil
}

// ensureSession signs the user in when no session is active yet.
func (a *app) ensureSession(ctx context.Context) error {
	if a.auth.Current() != nil {
		return nil
	}
	session, err := a.auth.Login(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", session.Email)
	return nil
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the editor bridge on the loopback interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(a.cfg.GetAppName())

			bridge, err := server.New(a.cfg, a.auth, a.manager, server.WithLogger(a.logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return bridge.Start(ctx)
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.auth.Login(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", session.Email)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.auth.Logout()
			fmt.Println("Signed out")
			return nil
		},
	}
}

func newProjectsCmd(a *app) *cobra.Command {
	projectsCmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage saved projects",
	}

	projectsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your saved projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureSession(cmd.Context()); err != nil {
				return err
			}
			list, err := a.manager.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No saved projects")
				return nil
			}
			for _, p := range list {
				fmt.Printf("%-24s %-30s %4d files  %s\n", p.ID, p.Name, len(p.Files), p.WorkspacePath)
			}
			return nil
		},
	})

	projectsCmd.AddCommand(&cobra.Command{
		Use:   "save <name>",
		Short: "Save the current workspace as a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureSession(cmd.Context()); err != nil {
				return err
			}
			id, err := a.manager.Save(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Saved project %s\n", id)
			return nil
		},
	})

	projectsCmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a saved project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.manager.Rename(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("Renamed")
			return nil
		},
	})

	projectsCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.manager.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted")
			return nil
		},
	})

	projectsCmd.AddCommand(&cobra.Command{
		Use:   "sync <id>",
		Short: "Re-enumerate a project's workspace files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.manager.Sync(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Synced")
			return nil
		},
	})

	return projectsCmd
}
