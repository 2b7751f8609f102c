// Package main provides the MentorLink terminal client.
//
// It drives the auth subsystem end to end: login/logout against the
// platform API, a persisted session, and role-gated navigation.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mentorlink/mentorlink-client/internal/authclient"
	"github.com/mentorlink/mentorlink-client/internal/config"
	"github.com/mentorlink/mentorlink-client/internal/domain/user"
	"github.com/mentorlink/mentorlink-client/internal/guard"
	"github.com/mentorlink/mentorlink-client/internal/menu"
	"github.com/mentorlink/mentorlink-client/internal/observability"
	"github.com/mentorlink/mentorlink-client/internal/session"
)

func main() {
	app := newApp()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mentorlink",
		Usage: "MentorLink platform client",
		Before: func(c *cli.Context) error {
			cfg := config.Load()
			log := observability.NewLogger(cfg.Env)

			client := authclient.New(cfg.APIBaseURL,
				authclient.WithLogger(log),
				authclient.WithTimeout(cfg.RequestTimeout),
			)

			slot := session.NewFileSlot(cfg.SessionFile, log)

			if err := slot.Watch(); err != nil {
				log.Warn("session slot watcher unavailable", "err", err)
			}

			store := session.NewStore(client, slot, session.Options{
				Logger:            log,
				AccessTTLFallback: cfg.AccessTTLFallback,
				RefreshSkew:       cfg.RefreshSkew,
			})

			c.App.Metadata["store"] = store
			return nil
		},
		Commands: []*cli.Command{
			loginCommand(),
			registerCommand(),
			logoutCommand(),
			whoamiCommand(),
			menuCommand(),
			openCommand(),
		},
	}
}

func storeFrom(c *cli.Context) *session.Store {
	store, _ := c.App.Metadata["store"].(*session.Store)
	return store
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Authenticate and persist the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			store := storeFrom(c)

			if err := store.Login(c.Context, c.String("email"), c.String("password")); err != nil {
				return describeFailure(err)
			}

			sess := store.Current()
			fmt.Printf("logged in as %s (%s)\n", sess.User.Name, sess.User.Role)
			return nil
		},
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account (log in afterwards)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Load()

			client := authclient.New(cfg.APIBaseURL, authclient.WithTimeout(cfg.RequestTimeout))

			u, err := client.Register(c.Context, c.String("email"), c.String("name"), c.String("password"))
			if err != nil {
				return describeFailure(err)
			}

			fmt.Printf("registered %s; run `mentorlink login` to start a session\n", u.Email)
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "End the session (local teardown always succeeds)",
		Action: func(c *cli.Context) error {
			storeFrom(c).Logout(c.Context)
			fmt.Println("logged out")
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the current session",
		Action: func(c *cli.Context) error {
			sess := storeFrom(c).Current()

			if sess == nil {
				fmt.Println("not logged in")
				return nil
			}

			fmt.Printf("%s <%s> role=%s\n", sess.User.Name, sess.User.Email, sess.User.Role)
			return nil
		},
	}
}

func menuCommand() *cli.Command {
	return &cli.Command{
		Name:  "menu",
		Usage: "Show the navigation available to the current role",
		Action: func(c *cli.Context) error {
			sess := storeFrom(c).Current()

			if sess == nil {
				fmt.Println("not logged in")
				return nil
			}

			for _, item := range menu.ItemsForRole(sess.User.Role) {
				fmt.Printf("%-16s %s\n", item.Label, item.Route)
			}
			return nil
		},
	}
}

func openCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Check whether the current session may open a route",
		ArgsUsage: "<route> [required role ...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("usage: open <route> [required role ...]", 2)
			}

			var required []user.Role

			for _, raw := range c.Args().Slice()[1:] {
				role, ok := user.ParseRole(raw)
				if !ok {
					return cli.Exit(fmt.Sprintf("unknown role %q", raw), 2)
				}
				required = append(required, role)
			}

			g := guard.New(storeFrom(c))
			decision := g.Decide(required...)

			if decision == guard.Allow {
				fmt.Printf("allow %s\n", c.Args().First())
				return nil
			}

			fmt.Printf("%s -> %s\n", decision, guard.RedirectTarget(decision))
			return nil
		},
	}
}

// describeFailure keeps validation details readable on the terminal.
func describeFailure(err error) error {
	var e *authclient.Error

	if errors.As(err, &e) && e.Kind == authclient.KindValidation {
		for _, f := range e.Fields {
			fmt.Fprintf(os.Stderr, "  %s %s\n", f.Field, f.Message)
		}
	}

	return err
}
