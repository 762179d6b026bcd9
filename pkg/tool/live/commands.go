package live

import "google.golang.org/genai"

type param struct {
	name        string
	typ         genai.Type
	description string
	required    bool
	def         any
	items       *genai.Schema
	enum        []string
}

type command struct {
	name        string
	description string
	params      []param
	// wire is the command type sent to the server when it differs from name
	wire string
	// udp commands are sent fire-and-forget and get no reply
	udp bool
}

func (c *command) wireType() string {
	if c.wire != "" {
		return c.wire
	}
	return c.name
}

var (
	trackIndex = param{name: "track_index", typ: genai.TypeInteger, description: "Zero-based track index", required: true}
	clipIndex  = param{name: "clip_index", typ: genai.TypeInteger, description: "Zero-based clip slot index", required: true}
	deviceIdx  = param{name: "device_index", typ: genai.TypeInteger, description: "Zero-based device index on the track", required: true}
	paramIdx   = param{name: "parameter_index", typ: genai.TypeInteger, description: "Zero-based parameter index on the device", required: true}
	sceneIndex = param{name: "index", typ: genai.TypeInteger, description: "Zero-based scene index", required: true}

	noteSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"pitch":      {Type: genai.TypeInteger, Description: "MIDI pitch, 60 is middle C"},
			"start_time": {Type: genai.TypeNumber, Description: "Start in beats from the clip start"},
			"duration":   {Type: genai.TypeNumber, Description: "Length in beats"},
			"velocity":   {Type: genai.TypeInteger, Description: "Velocity 1-127"},
			"mute":       {Type: genai.TypeBoolean, Description: "Whether the note is muted"},
		},
		Required: []string{"pitch", "start_time", "duration", "velocity"},
	}
)

// noteRange are the optional filters shared by note editing commands
var noteRange = []param{
	{name: "from_time", typ: genai.TypeNumber, description: "Only notes starting at or after this beat"},
	{name: "to_time", typ: genai.TypeNumber, description: "Only notes starting before this beat"},
	{name: "from_pitch", typ: genai.TypeInteger, description: "Lowest pitch to include"},
	{name: "to_pitch", typ: genai.TypeInteger, description: "Highest pitch to include"},
}

func withRange(params ...param) []param {
	return append(params, noteRange...)
}

var commands = []command{
	// Session
	{name: "get_session_info", description: "Get tempo, time signature, track count and playback state of the current Live set"},
	{name: "set_tempo", description: "Set the song tempo in BPM", params: []param{
		{name: "tempo", typ: genai.TypeNumber, description: "Tempo in BPM", required: true},
	}},
	{name: "start_playback", description: "Start song playback"},
	{name: "stop_playback", description: "Stop song playback"},

	// Tracks
	{name: "get_track_info", description: "Get name, type, mixer settings, clip slots and devices of a track", params: []param{trackIndex}},
	{name: "create_midi_track", description: "Create a MIDI track", params: []param{
		{name: "index", typ: genai.TypeInteger, description: "Insert position, -1 appends at the end", def: -1},
	}},
	{name: "create_audio_track", description: "Create an audio track", params: []param{
		{name: "index", typ: genai.TypeInteger, description: "Insert position, -1 appends at the end", def: -1},
	}},
	{name: "set_track_name", description: "Rename a track", params: []param{
		trackIndex,
		{name: "name", typ: genai.TypeString, description: "New track name", required: true},
	}},
	{name: "set_track_level", description: "Set track volume", params: []param{
		trackIndex,
		{name: "level", typ: genai.TypeNumber, description: "Volume from 0.0 to 1.0", required: true},
	}},
	{name: "set_track_pan", description: "Set track panning", params: []param{
		trackIndex,
		{name: "pan", typ: genai.TypeNumber, description: "Pan from -1.0 (left) to 1.0 (right)", required: true},
	}},

	// Clips
	{name: "create_clip", description: "Create an empty MIDI clip in a clip slot", params: []param{
		trackIndex, clipIndex,
		{name: "length", typ: genai.TypeNumber, description: "Clip length in beats", def: 4.0},
	}},
	{name: "set_clip_name", description: "Rename a clip", params: []param{
		trackIndex, clipIndex,
		{name: "name", typ: genai.TypeString, description: "New clip name", required: true},
	}},
	{name: "fire_clip", description: "Launch a clip", params: []param{trackIndex, clipIndex}},
	{name: "stop_clip", description: "Stop a playing clip", params: []param{trackIndex, clipIndex}},
	{name: "set_clip_loop_parameters", description: "Set loop start, end and on/off of a clip", params: []param{
		trackIndex, clipIndex,
		{name: "loop_start", typ: genai.TypeNumber, description: "Loop start in beats", required: true},
		{name: "loop_end", typ: genai.TypeNumber, description: "Loop end in beats", required: true},
		{name: "loop_enabled", typ: genai.TypeBoolean, description: "Whether looping is on", def: true},
	}},
	{name: "set_clip_follow_action", description: "Set the follow action of a clip", params: []param{
		trackIndex, clipIndex,
		{name: "action", typ: genai.TypeString, description: "Follow action name, e.g. next, previous, first, last, any, other, stop", required: true},
		{name: "target_clip", typ: genai.TypeInteger, description: "Target clip index for jump actions"},
		{name: "chance", typ: genai.TypeNumber, description: "Probability from 0.0 to 1.0", def: 1.0},
		{name: "time", typ: genai.TypeNumber, description: "Follow action time in bars", def: 1.0},
	}},

	// Notes
	{name: "add_notes_to_clip", description: "Add MIDI notes to a clip", params: []param{
		trackIndex, clipIndex,
		{name: "notes", typ: genai.TypeArray, description: "Notes to add", required: true, items: noteSchema},
	}},
	{name: "get_notes_from_clip", description: "List the MIDI notes in a clip", params: []param{trackIndex, clipIndex}},
	{name: "batch_edit_notes_in_clip", description: "Replace properties of several notes at once", params: []param{
		trackIndex, clipIndex,
		{name: "note_ids", typ: genai.TypeArray, description: "IDs of the notes to edit", required: true, items: &genai.Schema{Type: genai.TypeInteger}},
		{name: "note_data_array", typ: genai.TypeArray, description: "New note data, one per ID", required: true, items: noteSchema},
	}},
	{name: "delete_notes_from_clip", description: "Delete notes in a time and pitch range", params: withRange(trackIndex, clipIndex)},
	{name: "transpose_notes_in_clip", description: "Transpose notes by semitones", params: withRange(
		trackIndex, clipIndex,
		param{name: "semitones", typ: genai.TypeInteger, description: "Semitones to shift, negative goes down", required: true},
	)},
	{name: "quantize_notes_in_clip", description: "Quantize note start times to a grid", params: withRange(
		trackIndex, clipIndex,
		param{name: "grid_size", typ: genai.TypeNumber, description: "Grid in beats, 0.25 is a sixteenth note", def: 0.25},
		param{name: "strength", typ: genai.TypeNumber, description: "Quantize strength from 0.0 to 1.0", def: 1.0},
	)},
	{name: "randomize_note_timing", description: "Humanize note start times", params: withRange(
		trackIndex, clipIndex,
		param{name: "amount", typ: genai.TypeNumber, description: "Maximum shift in beats", def: 0.1},
	)},
	{name: "set_note_probability", description: "Set the play probability of notes", params: withRange(
		trackIndex, clipIndex,
		param{name: "probability", typ: genai.TypeNumber, description: "Probability from 0.0 to 1.0", def: 1.0},
	)},

	// Devices
	{name: "get_device_parameters", description: "List the parameters of a device with their current values", params: []param{trackIndex, deviceIdx}},
	{name: "set_device_parameter", description: "Set one device parameter", params: []param{
		trackIndex, deviceIdx, paramIdx,
		{name: "value", typ: genai.TypeNumber, description: "Normalized value from 0.0 to 1.0", required: true},
	}},
	{name: "batch_set_device_parameters", description: "Set several parameters of a device at once", params: []param{
		trackIndex, deviceIdx,
		{name: "parameter_indices", typ: genai.TypeArray, description: "Parameter indices", required: true, items: &genai.Schema{Type: genai.TypeInteger}},
		{name: "values", typ: genai.TypeArray, description: "Normalized values, one per index", required: true, items: &genai.Schema{Type: genai.TypeNumber}},
	}},
	{name: "set_device_parameter_udp", wire: "set_device_parameter", udp: true,
		description: "Set one device parameter without waiting for a reply, for real-time control",
		params: []param{
			trackIndex, deviceIdx, paramIdx,
			{name: "value", typ: genai.TypeNumber, description: "Normalized value from 0.0 to 1.0", required: true},
		}},
	{name: "batch_set_device_parameters_udp", wire: "batch_set_device_parameters", udp: true,
		description: "Set several device parameters without waiting for a reply",
		params: []param{
			trackIndex, deviceIdx,
			{name: "parameter_indices", typ: genai.TypeArray, description: "Parameter indices", required: true, items: &genai.Schema{Type: genai.TypeInteger}},
			{name: "values", typ: genai.TypeArray, description: "Normalized values, one per index", required: true, items: &genai.Schema{Type: genai.TypeNumber}},
		}},
	{name: "load_instrument_or_effect", description: "Load an instrument or effect onto a track by browser URI", params: []param{
		trackIndex,
		{name: "uri", typ: genai.TypeString, description: "Browser item URI", required: true},
	}},

	// Browser
	{name: "get_browser_tree", description: "Get the browser category tree", params: []param{
		{name: "category_type", typ: genai.TypeString, description: "Category to list", def: "all",
			enum: []string{"all", "instruments", "sounds", "drums", "audio_effects", "midi_effects"}},
	}},
	{name: "get_browser_items_at_path", description: "List browser items under a path", params: []param{
		{name: "path", typ: genai.TypeString, description: "Slash separated browser path, e.g. instruments/Drum Rack", required: true},
	}},
	{name: "load_drum_kit", description: "Load a drum rack and then a kit into it", params: []param{
		trackIndex,
		{name: "rack_uri", typ: genai.TypeString, description: "URI of the drum rack", required: true},
		{name: "kit_path", typ: genai.TypeString, description: "Browser path of the kit", required: true},
	}},

	// Clip envelopes
	{name: "get_clip_envelope", description: "Get the automation envelope of a device parameter in a clip", params: []param{
		trackIndex, clipIndex, deviceIdx, paramIdx,
	}},
	{name: "add_clip_envelope_point", description: "Add a point to a clip automation envelope", params: []param{
		trackIndex, clipIndex, deviceIdx, paramIdx,
		{name: "time", typ: genai.TypeNumber, description: "Position in beats", required: true},
		{name: "value", typ: genai.TypeNumber, description: "Normalized value from 0.0 to 1.0", required: true},
		{name: "curve_type", typ: genai.TypeInteger, description: "Curve shape, 0 is linear", def: 0},
	}},
	{name: "clear_clip_envelope", description: "Remove the automation envelope of a device parameter in a clip", params: []param{
		trackIndex, clipIndex, deviceIdx, paramIdx,
	}},

	// Scenes
	{name: "get_scenes_info", description: "List scenes with their names"},
	{name: "create_scene", description: "Create a scene", params: []param{
		{name: "index", typ: genai.TypeInteger, description: "Insert position, -1 appends at the end", def: -1},
	}},
	{name: "set_scene_name", description: "Rename a scene", params: []param{
		sceneIndex,
		{name: "name", typ: genai.TypeString, description: "New scene name", required: true},
	}},
	{name: "delete_scene", description: "Delete a scene", params: []param{sceneIndex}},
	{name: "fire_scene", description: "Launch every clip in a scene", params: []param{sceneIndex}},

	// Audio
	{name: "import_audio_file", description: "Import an audio file into a clip slot", params: []param{
		{name: "uri", typ: genai.TypeString, description: "File path or browser URI of the audio file", required: true},
		{name: "track_index", typ: genai.TypeInteger, description: "Target track, -1 creates or picks one", def: -1},
		{name: "clip_index", typ: genai.TypeInteger, description: "Target clip slot", def: 0},
		{name: "create_track_if_needed", typ: genai.TypeBoolean, description: "Create an audio track when the target does not exist", def: true},
	}},
}

func (c *command) declaration() *genai.FunctionDeclaration {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(c.params)),
	}
	for _, p := range c.params {
		s := &genai.Schema{
			Type:        p.typ,
			Description: p.description,
			Items:       p.items,
			Enum:        p.enum,
		}
		if p.def != nil {
			s.Default = p.def
		}
		schema.Properties[p.name] = s
		if p.required {
			schema.Required = append(schema.Required, p.name)
		}
	}

	return &genai.FunctionDeclaration{
		Name:        c.name,
		Description: c.description,
		Parameters:  schema,
	}
}
