package live

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
)

// DemoNotes is a C major triad arpeggio, one note per beat
var DemoNotes = []model.Note{
	{Pitch: 60, StartTime: 0.0, Duration: 0.5, Velocity: 100},
	{Pitch: 64, StartTime: 1.0, Duration: 0.5, Velocity: 100},
	{Pitch: 67, StartTime: 2.0, Duration: 0.5, Velocity: 100},
}

// DemoStep is one command of the demo and its reply
type DemoStep struct {
	Command  *model.LiveCommand
	Response *model.LiveResponse
}

// RunDemo creates a MIDI track with a four-beat clip, writes DemoNotes and launches it.
// Steps completed before a failure are returned along with the error.
func RunDemo(ctx context.Context, p *Provider) ([]*DemoStep, error) {
	var steps []*DemoStep
	send := func(name string, args map[string]any) (*model.LiveResponse, error) {
		cmd, _, err := p.BuildCommand(name, args)
		if err != nil {
			return nil, err
		}
		resp, err := p.Send(ctx, cmd)
		if err != nil {
			return nil, err
		}
		steps = append(steps, &DemoStep{Command: cmd, Response: resp})
		return resp, nil
	}

	resp, err := send("create_midi_track", nil)
	if err != nil {
		return steps, goerr.Wrap(err, "failed to create MIDI track")
	}

	var track struct {
		Index *int `json:"index"`
	}
	if err := json.Unmarshal(resp.Result, &track); err != nil || track.Index == nil {
		return steps, goerr.Wrap(model.ErrEndpoint, "create_midi_track returned no track index",
			goerr.V("result", string(resp.Result)))
	}
	trackIdx := *track.Index

	if _, err := send("create_clip", map[string]any{"track_index": trackIdx, "clip_index": 0, "length": 4.0}); err != nil {
		return steps, goerr.Wrap(err, "failed to create clip", goerr.V("track_index", trackIdx))
	}
	if _, err := send("add_notes_to_clip", map[string]any{"track_index": trackIdx, "clip_index": 0, "notes": DemoNotes}); err != nil {
		return steps, goerr.Wrap(err, "failed to add notes", goerr.V("track_index", trackIdx))
	}
	if _, err := send("fire_clip", map[string]any{"track_index": trackIdx, "clip_index": 0}); err != nil {
		return steps, goerr.Wrap(err, "failed to fire clip", goerr.V("track_index", trackIdx))
	}

	return steps, nil
}
