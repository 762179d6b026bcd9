package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/m-mizutani/tempo/pkg/usecase/conversation"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg             config
		window          int64
		maxHistoryBytes int64
	)

	flags := llmFlags(&cfg)
	flags = append(flags,
		systemFlag(&cfg),
		&cli.IntFlag{
			Name:        "window",
			Usage:       "Number of recent turns sent with each message; 0 sends all",
			Destination: &window,
		},
		&cli.IntFlag{
			Name:        "max-history-bytes",
			Usage:       "Summarize older turns once the history grows beyond this size; 0 disables",
			Value:       64 * 1024,
			Destination: &maxHistoryBytes,
		},
	)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation that remembers previous turns",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			exchanger, err := cfg.newExchanger(gemini)
			if err != nil {
				return err
			}

			session, err := conversation.New(exchanger,
				conversation.WithWindow(int(window)),
				conversation.WithMaxHistoryBytes(int(maxHistoryBytes)),
			)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			in, err := newPrompter("you> ", w)
			if err != nil {
				return err
			}
			defer in.Close()

			fmt.Fprintln(w, "Chat session started. Type 'quit' to exit, '/reset' to forget the conversation.")
			for {
				message, ok := in.next()
				if !ok {
					break
				}

				if err := chatTurn(ctx, w, session, message); err != nil {
					return err
				}
			}

			fmt.Fprintf(w, "\nChat session completed (%d turns)\n", len(session.History()))
			return nil
		},
	}
}

// chatTurn handles one line of input. Only cancellation of ctx ends the
// session; a failed turn is not recorded, so the user may simply retry.
func chatTurn(ctx context.Context, w io.Writer, session *conversation.Session, message string) error {
	switch message {
	case "/reset":
		session.Reset()
		fmt.Fprintln(w, "(history cleared)")
		return nil
	case "/history":
		for _, turn := range session.History() {
			fmt.Fprintf(w, "[%d] you: %s\n    model: %s\n", turn.Index, turn.Prompt, turn.Response)
		}
		return nil
	}

	stop := startSpinner("thinking...")
	reply, err := session.Send(ctx, message)
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logging.From(ctx).Error("exchange failed", "error", err)
		fmt.Fprintln(w, "(message failed, try again)")
		return nil
	}

	fmt.Fprintf(w, "model> %s\n", reply)
	return nil
}
