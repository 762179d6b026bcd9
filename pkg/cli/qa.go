package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/tempo/pkg/adapter"
	"github.com/m-mizutani/tempo/pkg/usecase/qa"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"github.com/m-mizutani/tempo/pkg/utils/textsplit"
	"github.com/urfave/cli/v3"
)

func qaCommand() *cli.Command {
	var (
		cfg          config
		source       string
		questions    []string
		topK         int64
		chunkSize    int64
		chunkOverlap int64
		raw          bool
		showSources  bool
	)

	flags := llmFlags(&cfg)
	flags = append(flags, indexFlags(&cfg)...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "Document to answer from: a local file, gs://bucket/object or \"sample\"",
			Value:       qa.SampleName,
			Sources:     cli.EnvVars("TEMPO_QA_SOURCE"),
			Destination: &source,
		},
		&cli.StringSliceFlag{
			Name:        "question",
			Aliases:     []string{"q"},
			Usage:       "Question to ask; repeatable. Defaults to the sample questions",
			Destination: &questions,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Number of chunks given to the model per question",
			Value:       qa.DefaultTopK,
			Destination: &topK,
		},
		&cli.IntFlag{
			Name:        "chunk-size",
			Usage:       "Maximum chunk length in characters",
			Value:       textsplit.DefaultChunkSize,
			Destination: &chunkSize,
		},
		&cli.IntFlag{
			Name:        "chunk-overlap",
			Usage:       "Characters shared by neighboring chunks",
			Value:       textsplit.DefaultChunkOverlap,
			Destination: &chunkOverlap,
		},
		&cli.BoolFlag{
			Name:        "raw",
			Usage:       "Print answers without markdown rendering",
			Destination: &raw,
		},
		&cli.BoolFlag{
			Name:        "show-sources",
			Usage:       "Print the chunks each answer was given",
			Destination: &showSources,
		},
	)

	return &cli.Command{
		Name:      "qa",
		Usage:     "Answer questions about a document from retrieved chunks",
		ArgsUsage: "[question...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			questions = append(questions, c.Args().Slice()...)
			if len(questions) == 0 {
				questions = qa.DefaultQuestions
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			exchanger, err := cfg.newExchanger(gemini)
			if err != nil {
				return err
			}

			var storage adapter.Storage
			if strings.HasPrefix(source, "gs://") {
				if storage, err = adapter.NewStorage(ctx); err != nil {
					return err
				}
			}
			doc, err := qa.LoadDocument(ctx, storage, source)
			if err != nil {
				return err
			}

			splitter, err := textsplit.New(
				textsplit.WithChunkSize(int(chunkSize)),
				textsplit.WithChunkOverlap(int(chunkOverlap)),
			)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(ctx); err != nil {
					logging.From(ctx).Warn("failed to close index", "error", err)
				}
			}()

			svc, err := qa.New(gemini, exchanger, repo,
				qa.WithTopK(int(topK)),
				qa.WithSplitter(splitter),
			)
			if err != nil {
				return err
			}

			stop := startSpinner("indexing " + doc.Name + "...")
			n, err := svc.Ingest(ctx, doc)
			stop()
			if err != nil {
				return err
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "Indexed %q into %d chunks (%s index)\n\n", doc.Name, n, cfg.index)

			for _, question := range questions {
				stop := startSpinner("answering...")
				answer, err := svc.Ask(ctx, question)
				stop()
				if err != nil {
					return err
				}

				text := fmt.Sprintf("## %s\n\n%s\n", answer.Question, answer.Text)
				if raw {
					fmt.Fprintln(w, text)
				} else {
					fmt.Fprint(w, renderMarkdown(text))
				}

				if showSources {
					for _, src := range answer.Sources {
						fmt.Fprintf(w, "  [chunk %d, distance %.4f] %s\n",
							src.Chunk.Index, src.Distance, oneLine(src.Chunk.Content, 80))
					}
					fmt.Fprintln(w)
				}
			}

			return nil
		},
	}
}

// oneLine collapses whitespace and truncates s to n runes
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
