package cli

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := newRootCommand(os.Stdout)

	if err := cmd.Run(ctx, argv); err != nil {
		logging.From(ctx).Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

func newRootCommand(w io.Writer) *cli.Command {
	var logLevel string

	return &cli.Command{
		Name:   "tempo",
		Usage:  "Talk to Gemini and drive Ableton Live",
		Writer: w,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Aliases:     []string{"l"},
				Usage:       "Log level: debug, info, warn or error",
				Value:       "info",
				Sources:     cli.EnvVars("TEMPO_LOG_LEVEL"),
				Destination: &logLevel,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if _, err := logging.ParseLevel(logLevel); err != nil {
				return ctx, err
			}
			logger := logging.New(logLevel, c.Root().ErrWriter)
			logging.SetDefault(logger)
			return logging.With(ctx, logger), nil
		},
		Commands: []*cli.Command{
			askCommand(),
			chatCommand(),
			qaCommand(),
			agentCommand(),
			liveCommand(),
			mcpCommand(),
		},
	}
}
