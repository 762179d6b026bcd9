package tool

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// ErrToolNotFound is returned when a function call names no registered tool
var ErrToolNotFound = goerr.New("tool not found")

// Registry manages available tools for the LLM
type Registry struct {
	tools    map[string]Tool
	allTools []Tool
	specs    []*genai.Tool
}

// New creates a new tool registry with the given tools. A function name
// offered by more than one tool is routed to the first one; Init reports it.
func New(tools ...Tool) *Registry {
	r := &Registry{}
	_ = r.build(tools)
	return r
}

func (r *Registry) build(tools []Tool) error {
	r.tools = make(map[string]Tool)
	r.allTools = tools
	r.specs = nil

	var dupErr error
	for _, t := range tools {
		spec := t.Spec()
		if spec == nil || len(spec.FunctionDeclarations) == 0 {
			continue
		}
		r.specs = append(r.specs, spec)
		for _, fd := range spec.FunctionDeclarations {
			if _, exists := r.tools[fd.Name]; exists {
				if dupErr == nil {
					dupErr = goerr.Wrap(model.ErrConfiguration, "duplicated tool name",
						goerr.V("name", fd.Name),
						goerr.V("first", toolName(r.tools[fd.Name])),
						goerr.V("second", toolName(t)))
				}
				continue
			}
			r.tools[fd.Name] = t
		}
	}
	return dupErr
}

// Init initializes every tool and keeps only the enabled ones. Two enabled
// tools declaring the same function name is a configuration error.
func (r *Registry) Init(ctx context.Context, client *Client) error {
	if client == nil {
		client = &Client{}
	}

	var enabled []Tool
	for _, t := range r.allTools {
		ok, err := t.Init(ctx, client)
		if err != nil {
			return goerr.Wrap(err, "failed to initialize tool", goerr.V("tool", toolName(t)))
		}
		if !ok {
			logging.From(ctx).Debug("tool disabled", "tool", toolName(t))
			continue
		}
		enabled = append(enabled, t)
	}

	return r.build(enabled)
}

// Specs returns all tool specifications for Gemini function calling
func (r *Registry) Specs() []*genai.Tool {
	return r.specs
}

// Declarations returns every function declaration in registration order
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	var decls []*genai.FunctionDeclaration
	for _, spec := range r.specs {
		decls = append(decls, spec.FunctionDeclarations...)
	}
	return decls
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.allTools {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Flags returns all tool flags combined
func (r *Registry) Flags() []cli.Flag {
	var flags []cli.Flag
	for _, t := range r.allTools {
		if toolFlags := t.Flags(); toolFlags != nil {
			flags = append(flags, toolFlags...)
		}
	}
	return flags
}

// Execute runs the tool with the given function call
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	tool, ok := r.tools[fc.Name]
	if !ok {
		return nil, goerr.Wrap(ErrToolNotFound, "tool not found", goerr.V("name", fc.Name))
	}

	return tool.Execute(ctx, fc)
}

func toolName(t Tool) string {
	spec := t.Spec()
	if spec == nil || len(spec.FunctionDeclarations) == 0 {
		return "(no functions)"
	}
	return spec.FunctionDeclarations[0].Name
}
