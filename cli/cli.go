package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/perfgo/subsetter/client"
	"github.com/perfgo/subsetter/config"
	"github.com/perfgo/subsetter/runner"
)

const AppName = "subsetter"

type App struct {
	logger  zerolog.Logger
	cli     *cli.App
	config  *config.Config
	version string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

var runnerUsage = map[string]string{
	"raw":        "Test paths in their textual form, one per line",
	"file":       "Test files, for frameworks that select tests by file name",
	"googletest": "GoogleTest, candidates from --gtest_list_tests",
	"gotest":     "go test, candidates from go test -list",
	"gradle":     "Gradle, candidates from the test source roots",
	"maven":      "Maven surefire, candidates from the test source roots",
	"pytest":     "pytest, candidates from pytest --collect-only -q",
	"robot":      "Robot Framework, candidates from a dry run output.xml",
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger:  logger,
		version: "dev",
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	app.cli = &cli.App{
		Name:  AppName,
		Usage: "Subset tests with an optimization service and record their results",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file (default: .env when present)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Log the requests instead of sending them",
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			if err := config.LoadEnvFile(ctx.String("env-file"), ctx.IsSet("env-file")); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			app.config = cfg
			return nil
		},
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:        "subset",
		Usage:       "Select the tests to run",
		Description: "Reads the candidate tests in the format of the test runner and prints the selected ones.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Usage: "Subset to a percentage of the estimated duration, e.g. 10%",
			},
			&cli.StringFlag{
				Name:  "time",
				Usage: "Subset to a time budget, in seconds or as a duration (e.g. 300, 5m)",
			},
			&cli.StringFlag{
				Name:  "confidence",
				Usage: "Subset to a confidence of catching a failure, e.g. 90%",
			},
			sessionFlag(),
			buildFlag(),
			noBuildFlag(),
			flavorFlag(),
			baseFlag(),
			restFlag(),
			&cli.BoolFlag{
				Name:  "split",
				Usage: "Print the subset id for split-subset instead of the tests",
			},
			&cli.BoolFlag{
				Name:  "observation",
				Usage: "Run all tests while reporting the subset that would have been selected",
			},
			&cli.BoolFlag{
				Name:  "get-tests-from-previous-sessions",
				Usage: "Take the candidates from previous test sessions instead of the input",
			},
			exclusionFlag(),
			&cli.BoolFlag{
				Name:  "ignore-new-tests",
				Usage: "Leave tests without history out of the subset",
			},
			&cli.Float64Flag{
				Name:  "ignore-flaky-tests-above",
				Usage: "Leave tests with a flakiness above this threshold (0..1) out of the subset",
			},
			&cli.IntFlag{
				Name:  "prioritize-tests-failed-within-hours",
				Usage: fmt.Sprintf("Run tests that failed within this many hours (0..%d) first", 720),
			},
			&cli.PathFlag{
				Name:  "prioritized-tests-mapping",
				Usage: "JSON file mapping changed files to tests to prioritize",
			},
		},
		Subcommands: runnerCommands("[ARGS...]", app.subset, true),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "split-subset",
		Usage: "Print one bin of a subset computed with subset --split",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "subset-id",
				Usage:    "Subset to split, as printed by subset --split (subset/<id>)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "bin",
				Usage:    "Bin to print, as <index>/<count>, e.g. 1/3",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "same-bin",
				Usage: fmt.Sprintf("File listing tests that must run in the same bin, one group per file (%s)", strings.Join(runner.SupportsSameBin(), ", ")),
			},
			baseFlag(),
			restFlag(),
			exclusionFlag(),
		},
		Subcommands: runnerCommands("", app.splitSubset, false),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "record",
		Usage: "Record test sessions and test results",
		Subcommands: []*cli.Command{
			{
				Name:  "session",
				Usage: "Start a test session for a build and remember it for later commands",
				Flags: []cli.Flag{
					buildFlag(),
					noBuildFlag(),
					flavorFlag(),
					&cli.BoolFlag{
						Name:  "observation",
						Usage: "Mark the session as observed",
					},
				},
				Action: app.recordSession,
			},
			{
				Name:  "tests",
				Usage: "Upload test reports",
				Flags: []cli.Flag{
					sessionFlag(),
					buildFlag(),
					noBuildFlag(),
					flavorFlag(),
					baseFlag(),
					&cli.StringFlag{
						Name:  "group",
						Usage: "Group the recorded tests belong to",
					},
					&cli.IntFlag{
						Name:  "post-chunk",
						Usage: "Maximum number of test cases per request",
						Value: 1000,
					},
				},
				Subcommands: runnerCommands("REPORT...", app.recordTests, false),
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "runners",
		Usage:  "List the supported test runners",
		Action: app.runners,
	})
	return app
}

func (a *App) Run(args []string) error {
	a.cli.Writer = a.stdout
	a.cli.ErrWriter = a.stderr
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.version = version
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

// runnerCommands creates one subcommand per registered runner.
func runnerCommands(argsUsage string, action func(string) cli.ActionFunc, withCandidates bool) []*cli.Command {
	var cmds []*cli.Command
	for _, name := range runner.Names() {
		cmd := &cli.Command{
			Name:      name,
			Usage:     runnerUsage[name],
			ArgsUsage: argsUsage,
			Action:    action(name),
		}
		switch name {
		case "gradle":
			cmd.Flags = append(cmd.Flags, &cli.BoolFlag{
				Name:  "bare",
				Usage: "Print class names without the --tests option",
			})
		case "pytest":
			if !withCandidates {
				cmd.Flags = append(cmd.Flags, &cli.BoolFlag{
					Name:  "json",
					Usage: "Read pytest-reportlog files instead of JUnit XML",
				})
			}
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func sessionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "session",
		Usage: "Test session as builds/<build>/test_sessions/<id> (default: the one of record session)",
	}
}

func buildFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "build",
		Usage: "Build name",
	}
}

func noBuildFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "no-build",
		Usage: "Record without a build",
	}
}

func flavorFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "flavor",
		Usage: "Environment attribute of the session as key=value, repeatable",
	}
}

func baseFlag() cli.Flag {
	return &cli.PathFlag{
		Name:  "base",
		Usage: "Directory test file names are relative to",
	}
}

func restFlag() cli.Flag {
	return &cli.PathFlag{
		Name:  "rest",
		Usage: "Write the tests that are not selected to this file",
	}
}

func exclusionFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "output-exclusion-rules",
		Usage: "Print the tests to skip instead of the tests to run",
	}
}

func (a *App) adapter(ctx *cli.Context, name string) (runner.Adapter, error) {
	return runner.Lookup(name, runner.Options{
		BasePath:   ctx.Path("base"),
		Bare:       ctx.Bool("bare"),
		JSONReport: ctx.Bool("json"),
	})
}

func (a *App) newClient(ctx *cli.Context, testRunner string) (*client.Client, error) {
	return client.New(a.logger, a.config.IntakeURL(),
		client.WithToken(a.config.Token),
		client.WithUserAgent(AppName+"/"+a.version),
		client.WithTestRunner(testRunner),
		client.WithDryRun(ctx.Bool("dry-run")),
	)
}
