package cli

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
)

// quitWords end an interactive session
var quitWords = map[string]bool{"quit": true, "exit": true, "q": true}

// startSpinner shows a progress indicator on stderr until the returned function is called.
// Nothing is drawn when stderr is not a terminal.
func startSpinner(message string) func() {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriterFile(os.Stderr))
	s.Suffix = " " + message
	s.Start()
	return s.Stop
}

// renderMarkdown renders text for the terminal, falling back to plain text
func renderMarkdown(text string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

// prompter reads lines interactively
type prompter struct {
	rl *readline.Instance
}

func newPrompter(prompt string, stdout io.Writer) (*prompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          stdout,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize readline")
	}
	return &prompter{rl: rl}, nil
}

// next returns the next non-empty line. ok is false at EOF, interrupt or a quit word.
func (p *prompter) next() (line string, ok bool) {
	for {
		raw, err := p.rl.Readline()
		if err != nil {
			// readline.ErrInterrupt and io.EOF both end the session
			return "", false
		}

		line = strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if quitWords[strings.ToLower(line)] {
			return "", false
		}
		return line, true
	}
}

func (p *prompter) Close() error {
	return p.rl.Close()
}
