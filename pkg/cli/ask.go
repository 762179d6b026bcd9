package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

const defaultAskPrompt = "Say hello"

func askCommand() *cli.Command {
	var cfg config

	flags := llmFlags(&cfg)
	flags = append(flags, systemFlag(&cfg))

	return &cli.Command{
		Name:      "ask",
		Usage:     "Send one prompt and print the reply",
		ArgsUsage: "[prompt]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			prompt := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(prompt) == "" {
				prompt = defaultAskPrompt
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			exchanger, err := cfg.newExchanger(gemini)
			if err != nil {
				return err
			}

			stop := startSpinner("thinking...")
			reply, err := exchanger.Exchange(ctx, prompt, nil, nil)
			stop()
			if err != nil {
				return err
			}

			fmt.Fprintln(c.Root().Writer, reply)
			return nil
		},
	}
}
