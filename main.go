package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"teamcal/internal/api"
	"teamcal/internal/config"
	"teamcal/internal/event"
	"teamcal/internal/format"
	"teamcal/internal/project"
	"teamcal/internal/session"
)

// app wires the controllers together. The API client and data controllers
// are built lazily on first use so unauthenticated commands (login, whoami)
// never construct them.
type app struct {
	cfg      *config.Config
	sessions *session.Controller
	client   *api.Client
	projects *project.Controller
	events   *event.Controller
}

func newApp(cfg *config.Config) (*app, error) {
	tokenPath, err := config.GetTokenPath()
	if err != nil {
		return nil, err
	}

	return &app{
		cfg: cfg,
		sessions: session.NewController(session.Config{
			Demo:         cfg.DemoMode,
			AuthDomain:   cfg.AuthDomain,
			ClientID:     cfg.ClientID,
			RedirectPort: cfg.RedirectPort,
			TokenPath:    tokenPath,
		}),
	}, nil
}

// ensureSession resolves the current session and builds the controllers.
// Fails when no authenticated session exists.
func (a *app) ensureSession(ctx context.Context) error {
	if a.client != nil {
		return nil
	}

	user, ok := a.sessions.CheckAuthState(ctx)
	if !ok {
		return fmt.Errorf("not signed in - run 'teamcal login' first")
	}

	a.client = api.NewClient(api.Config{
		BaseURL: a.cfg.APIBaseURL,
		Demo:    a.cfg.DemoMode,
		Tokens:  a.sessions.TokenSource(ctx),
	})

	a.projects = project.NewController(project.Config{
		API:  a.client,
		Demo: a.cfg.DemoMode,
		User: *user,
	})
	a.events = event.NewController(event.Config{
		API:   a.client,
		Demo:  a.cfg.DemoMode,
		User:  *user,
		Scope: a.projects,
	})
	a.projects.SetSelectionListener(func(*format.Project) {
		a.events.Invalidate(ctx)
	})

	return nil
}

// selectProjectByID loads the project collection and points the scope at the
// given project id.
func (a *app) selectProjectByID(ctx context.Context, projectID string) error {
	if projectID == "" {
		return nil
	}
	if err := a.projects.FetchProjects(ctx); err != nil {
		return err
	}
	for _, p := range a.projects.Projects() {
		if p.ID == projectID {
			a.projects.SelectProject(p)
			return nil
		}
	}
	return fmt.Errorf("no project with id %q", projectID)
}

func main() {
	ctx := context.Background()

	root := &cli.Command{
		Name:  "teamcal",
		Usage: "Project-scoped calendar client",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config.yaml"},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			projectsCommand(),
			eventsCommand(),
		},
	}

	if err := root.Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadApp loads configuration and builds the app wiring.
func loadApp(cmd *cli.Command) (*app, error) {
	path := cmd.String("config")
	if path == "" {
		defaultPath, err := config.GetConfigPath()
		if err == nil {
			path = defaultPath
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	setupLogger(cfg.LogLevel)

	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}

	return newApp(cfg)
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in through the hosted identity provider",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := a.sessions.SignIn(ctx); err != nil {
				return err
			}
			if user := a.sessions.User(); user != nil {
				slog.Info("signed in", "user", user.Username)
			}
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Sign out and clear the cached session",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := a.sessions.SignOut(ctx); err != nil {
				return err
			}
			slog.Info("signed out")
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the current session identity",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			user, ok := a.sessions.CheckAuthState(ctx)
			if !ok {
				fmt.Println("not signed in")
				return nil
			}
			fmt.Printf("%s <%s>\n", user.Username, user.Email)
			return nil
		},
	}
}

func projectsCommand() *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "Manage projects",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List projects for the current user",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := loadApp(cmd)
					if err != nil {
						return err
					}
					if err := a.ensureSession(ctx); err != nil {
						return err
					}
					if err := a.projects.FetchProjects(ctx); err != nil {
						return err
					}
					for _, p := range a.projects.Projects() {
						fmt.Printf("%s\t%s\t%d events\t%s\n", p.ID, p.Name, p.EventCount, p.Description)
					}
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create a project",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Usage: "project name"},
					&cli.StringFlag{Name: "description", Usage: "project description"},
					&cli.StringFlag{Name: "color", Usage: "project color (hex)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := loadApp(cmd)
					if err != nil {
						return err
					}
					if err := a.ensureSession(ctx); err != nil {
						return err
					}
					data := map[string]any{
						"name":        cmd.String("name"),
						"description": cmd.String("description"),
					}
					if color := cmd.String("color"); color != "" {
						data["color"] = color
					}
					created, err := a.projects.CreateProject(ctx, data)
					if err != nil {
						return err
					}
					fmt.Printf("created project %s (%s)\n", created.Name, created.ID)
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "Update a project",
				ArgsUsage: "<project-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "new project name"},
					&cli.StringFlag{Name: "description", Usage: "new description"},
					&cli.StringFlag{Name: "color", Usage: "new color (hex)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := loadApp(cmd)
					if err != nil {
						return err
					}
					if err := a.ensureSession(ctx); err != nil {
						return err
					}
					id := cmd.Args().First()
					if id == "" {
						return fmt.Errorf("project id is required")
					}
					patch := map[string]any{}
					for _, key := range []string{"name", "description", "color"} {
						if v := cmd.String(key); v != "" {
							patch[key] = v
						}
					}
					return a.projects.UpdateProject(ctx, id, patch)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a project",
				ArgsUsage: "<project-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := loadApp(cmd)
					if err != nil {
						return err
					}
					if err := a.ensureSession(ctx); err != nil {
						return err
					}
					id := cmd.Args().First()
					if id == "" {
						return fmt.Errorf("project id is required")
					}
					return a.projects.DeleteProject(ctx, id)
				},
			},
			membersCommand(),
		},
	}
}

func membersCommand() *cli.Command {
	return &cli.Command{
		Name:  "members",
		Usage: "Manage project members",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a member to a project",
				ArgsUsage: "<project-id> <user-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role", Value: "MEMBER", Usage: "member role (ADMIN, MEMBER, VIEWER)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := loadApp(cmd)
					if err != nil {
						return err
					}
					if err := a.ensureSession(ctx); err != nil {
						return err
					}
					projectID, userID := cmd.Args().Get(0), cmd.Args().Get(1)
					if projectID == "" || userID == "" {
						return fmt.Errorf("project id and user id are required")
					}
					return a.projects.AddMember(ctx, projectID, userID, format.Role(cmd.String("role")))
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a member from a project",
				ArgsUsage: "<project-id> <user-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := loadApp(cmd)
					if err != nil {
						return err
					}
					if err := a.ensureSession(ctx); err != nil {
						return err
					}
					projectID, userID := cmd.Args().Get(0), cmd.Args().Get(1)
					if projectID == "" || userID == "" {
						return fmt.Errorf("project id and user id are required")
					}
					return a.projects.RemoveMember(ctx, projectID, userID)
				},
			},
		},
	}
}

func projectFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "project", Usage: "project id scope"}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Manage calendar events",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List events, optionally scoped to a project",
				Flags: []cli.Flag{projectFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := loadApp(cmd)
					if err != nil {
						return err
					}
					if err := a.ensureSession(ctx); err != nil {
						return err
					}
					if err := a.selectProjectByID(ctx, cmd.String("project")); err != nil {
						return err
					}
					if err := a.events.FetchEvents(ctx); err != nil {
						return err
					}
					for _, e := range a.events.Events() {
						fmt.Printf("%s\t%s\t%s - %s\t[%s]\n", e.ID, e.Title, e.Start, e.End, e.ProjectName)
					}
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create an event",
				Flags: []cli.Flag{
					projectFlag(),
					&cli.StringFlag{Name: "title", Required: true, Usage: "event title"},
					&cli.StringFlag{Name: "start", Required: true, Usage: "start time (ISO 8601)"},
					&cli.StringFlag{Name: "end", Required: true, Usage: "end time (ISO 8601)"},
					&cli.BoolFlag{Name: "all-day", Usage: "all-day event"},
					&cli.StringFlag{Name: "description", Usage: "event description"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := loadApp(cmd)
					if err != nil {
						return err
					}
					if err := a.ensureSession(ctx); err != nil {
						return err
					}
					if err := a.selectProjectByID(ctx, cmd.String("project")); err != nil {
						return err
					}
					return a.events.CreateEvent(ctx, event.Input{
						Title:       cmd.String("title"),
						Start:       cmd.String("start"),
						End:         cmd.String("end"),
						AllDay:      cmd.Bool("all-day"),
						Description: cmd.String("description"),
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an event (requires a project scope)",
				ArgsUsage: "<event-id>",
				Flags:     []cli.Flag{projectFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := loadApp(cmd)
					if err != nil {
						return err
					}
					if err := a.ensureSession(ctx); err != nil {
						return err
					}
					id := cmd.Args().First()
					if id == "" {
						return fmt.Errorf("event id is required")
					}
					if err := a.selectProjectByID(ctx, cmd.String("project")); err != nil {
						return err
					}
					return a.events.DeleteEvent(ctx, id)
				},
			},
		},
	}
}
