package conversation

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
)

const (
	compressionRatio = 0.7 // Compress first 70% by byte size

	summaryHeader   = "=== Previous Conversation Summary ===\n\n"
	summaryResponse = "Understood. I will keep this summary in mind."
)

//go:embed prompt/summarize.md
var summarizePromptRaw string

// errNothingToCompress means no turn before the newest one is left to summarize
var errNothingToCompress = goerr.New("insufficient content to compress")

// compressHistory replaces the oldest turns, up to 70% of the total bytes,
// with one summary turn. The newest turn is always kept as is.
func compressHistory(ctx context.Context, exchanger Exchanger, history model.History) (model.History, error) {
	if len(history) < 2 {
		return nil, goerr.Wrap(errNothingToCompress, "too few turns", goerr.V("turns", len(history)))
	}

	compressThreshold := int(float64(history.Bytes()) * compressionRatio)

	// Find the index where we cross the 70% threshold
	cumulativeBytes := 0
	compressIndex := 0
	for i, turn := range history {
		cumulativeBytes += turn.Bytes()
		if cumulativeBytes >= compressThreshold {
			compressIndex = i + 1 // Include this turn in compression
			break
		}
	}

	// A large newest turn would otherwise pull everything into the summary
	if compressIndex == 0 || compressIndex >= len(history) {
		compressIndex = len(history) - 1
	}
	if compressIndex == 1 && isSummary(history[0]) {
		return nil, goerr.Wrap(errNothingToCompress, "only a summary precedes the newest turn", goerr.V("turns", len(history)))
	}

	toCompress := history[:compressIndex]
	toKeep := history[compressIndex:]

	summary, err := exchanger.Exchange(ctx, summarizePromptRaw, toCompress, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to summarize history")
	}

	last := toCompress[len(toCompress)-1]
	compressed := make(model.History, 0, len(toKeep)+1)
	compressed = append(compressed, model.Turn{
		ID:        model.NewTurnID(),
		Index:     last.Index,
		Prompt:    summaryHeader + summary,
		Response:  summaryResponse,
		CreatedAt: time.Now(),
	})
	return append(compressed, toKeep...), nil
}

func isSummary(turn model.Turn) bool {
	return strings.HasPrefix(turn.Prompt, summaryHeader) && turn.Response == summaryResponse
}
