package cli

// This file contains the resolution of the test session shared by the
// subset and record commands.

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/subsetter/client"
	"github.com/perfgo/subsetter/model"
	"github.com/perfgo/subsetter/session"
)

func (a *App) sessionStore() *session.Store {
	return session.New(a.logger, a.config.SessionDir)
}

// resolveSession returns the session given with --session, a new session
// for --no-build, the stored session of --build (creating it when there is
// none), or the stored session.
func (a *App) resolveSession(ctx *cli.Context, c *client.Client, observation bool) (build, sess string, err error) {
	explicit := ctx.String("session")
	build = ctx.String("build")
	store := a.sessionStore()

	if explicit != "" {
		if ctx.Bool("no-build") {
			a.logger.Warn().Str("session", explicit).Msg("--session and --no-build are set, ignoring --no-build")
		}
		sess, err := store.Resolve(explicit)
		if err != nil {
			return "", "", err
		}
		return session.Build(sess), sess, nil
	}

	if ctx.Bool("no-build") {
		sess, err := a.createSession(ctx, c, session.NamelessBuild, observation)
		return session.NamelessBuild, sess, err
	}

	if build != "" {
		e, err := store.Load()
		if err != nil {
			return "", "", err
		}
		if e != nil && e.Build == build {
			return build, e.Session, nil
		}
		sess, err := a.createSession(ctx, c, build, observation)
		if err != nil {
			return "", "", err
		}
		if err := store.Save(build, sess); err != nil {
			return "", "", err
		}
		return build, sess, nil
	}

	sess, err = store.Resolve("")
	if err != nil {
		return "", "", err
	}
	return session.Build(sess), sess, nil
}

func (a *App) createSession(ctx *cli.Context, c *client.Client, build string, observation bool) (string, error) {
	flavors, err := parseKeyValues("flavor", ctx.StringSlice("flavor"))
	if err != nil {
		return "", err
	}

	sess, err := c.CreateSession(ctx.Context, build, client.SessionOptions{Flavors: flavors, IsObservation: observation})
	if errors.Is(err, client.ErrDryRun) {
		return fmt.Sprintf("builds/%s/test_sessions/0", build), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create a test session for build %s: %w", build, err)
	}
	a.logger.Info().Str("build", build).Str("session", sess).Msg("Test session created")
	return sess, nil
}

func (a *App) recordSession(ctx *cli.Context) error {
	build := ctx.String("build")
	noBuild := ctx.Bool("no-build")
	switch {
	case build == "" && !noBuild:
		return model.Usagef("--build is required unless --no-build is set")
	case build != "" && noBuild:
		return model.Usagef("--build and --no-build cannot be used together")
	case noBuild:
		build = session.NamelessBuild
	}

	if err := a.config.Validate(); err != nil {
		return err
	}
	c, err := a.newClient(ctx, "")
	if err != nil {
		return err
	}

	sess, err := a.createSession(ctx, c, build, ctx.Bool("observation"))
	if err != nil {
		return err
	}
	if err := a.sessionStore().Save(build, sess); err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, sess)
	return err
}
