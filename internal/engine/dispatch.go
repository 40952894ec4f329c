package engine

import (
	"sync"
	"sync/atomic"

	api "github.com/dgellow/mcp-stress/lib-stress"
	"github.com/dgellow/mcp-stress/internal/client"
	"github.com/dgellow/mcp-stress/internal/record"
	"github.com/dgellow/mcp-stress/internal/sampler"
	"github.com/dgellow/mcp-stress/internal/stresserr"
)

// op executes one operation and reports which method id it ran under.
type op func() (methodID int32, latencyMs float64, err error)

// dispatcher turns the operations mix into a round-robin list of operation
// closures.
type dispatcher struct {
	list []op
	next atomic.Int64
}

// runOne executes the next operation and records its outcome.
func (d *dispatcher) runOne(rec *record.Recorder) {
	i := int(d.next.Add(1)-1) % len(d.list)
	id, latency, err := d.list[i]()
	if err != nil {
		rec.Error(id, latency, err)
	} else {
		rec.Success(id, latency)
	}
}

// toolTarget is one tools/call target with its pre-parsed input schema.
type toolTarget struct {
	methodID int32
	name     string
	schema   *sampler.Schema
}

// newDispatcher discovers what the mix needs from the server and builds the
// operation closures. Argument generation routes through one seeded sampler,
// guarded by a mutex because operations run in parallel.
func newDispatcher(cl *client.Client, rec *record.Recorder, opts Options) (*dispatcher, error) {
	mix := expandMix(opts.Profile.Mix)
	if len(mix) == 0 {
		mix = []OperationMix{{Method: "ping", Weight: 1}}
	}

	gen := sampler.New(opts.Seed)
	var genMu sync.Mutex

	randomArgs := func(s *sampler.Schema) any {
		genMu.Lock()
		defer genMu.Unlock()
		return gen.GenerateRandomArgs(s)
	}

	var (
		tools         []toolTarget
		toolNext      atomic.Int64
		firstResource string
		firstPrompt   string
	)

	needsTools := false
	needsResources := false
	needsPrompts := false
	for _, m := range mix {
		switch m.Method {
		case "tools/call":
			needsTools = true
		case "resources/read":
			needsResources = true
		case "prompts/get":
			needsPrompts = true
		}
	}

	if needsTools {
		discovered, _, err := cl.ListTools()
		if err != nil {
			opts.logf("tool discovery failed (%s); tools/call entries fall back to ping", err)
		}
		for _, t := range discovered {
			schema, err := sampler.ParseSchema(t.InputSchema)
			if err != nil {
				opts.logf("ignoring unparsable input schema of tool %s: %s", t.Name, err)
				schema = &sampler.Schema{Type: "object"}
			}
			// Per-tool method ids keep per-method statistics meaningful.
			tools = append(tools, toolTarget{
				methodID: rec.RegisterMethod("tools/call:" + t.Name),
				name:     t.Name,
				schema:   schema,
			})
		}
	}

	if needsResources {
		resources, _, err := cl.ListResources()
		if err != nil {
			opts.logf("resource discovery failed (%s); resources/read entries fall back to ping", err)
		} else if len(resources) > 0 {
			firstResource = resources[0].URI
		}
	}

	if needsPrompts {
		prompts, _, err := cl.ListPrompts()
		if err != nil {
			opts.logf("prompt discovery failed (%s); prompts/get entries fall back to ping", err)
		} else if len(prompts) > 0 {
			firstPrompt = prompts[0].Name
		}
	}

	pingID := rec.RegisterMethod("ping")
	ping := func() (int32, float64, error) {
		latency, err := cl.Ping()
		return pingID, latency, err
	}

	d := &dispatcher{}
	for _, m := range mix {
		switch m.Method {
		case "ping":
			d.list = append(d.list, ping)

		case "tools/list":
			id := rec.RegisterMethod("tools/list")
			d.list = append(d.list, func() (int32, float64, error) {
				_, latency, err := cl.ListTools()
				return id, latency, err
			})

		case "tools/call":
			targets := tools
			if m.Tool != "" {
				targets = selectTool(tools, m.Tool)
				if len(targets) == 0 {
					// The named tool was not discovered; call it anyway with
					// empty arguments and let the server decide.
					targets = []toolTarget{{
						methodID: rec.RegisterMethod("tools/call:" + m.Tool),
						name:     m.Tool,
						schema:   &sampler.Schema{Type: "object"},
					}}
				}
			}
			if len(targets) == 0 {
				opts.logf("no tools available; tools/call falls back to ping")
				d.list = append(d.list, ping)
				continue
			}
			d.list = append(d.list, func() (int32, float64, error) {
				t := targets[int(toolNext.Add(1)-1)%len(targets)]
				_, latency, err := cl.CallTool(t.name, randomArgs(t.schema))
				return t.methodID, latency, err
			})

		case "resources/list":
			id := rec.RegisterMethod("resources/list")
			d.list = append(d.list, func() (int32, float64, error) {
				_, latency, err := cl.ListResources()
				return id, latency, err
			})

		case "resources/read":
			if firstResource == "" {
				opts.logf("no resources available; resources/read falls back to ping")
				d.list = append(d.list, ping)
				continue
			}
			id := rec.RegisterMethod("resources/read")
			uri := firstResource
			d.list = append(d.list, func() (int32, float64, error) {
				_, latency, err := cl.ReadResource(uri)
				return id, latency, err
			})

		case "resources/templates/list":
			id := rec.RegisterMethod("resources/templates/list")
			d.list = append(d.list, func() (int32, float64, error) {
				_, latency, err := cl.ListResourceTemplates()
				return id, latency, err
			})

		case "prompts/list":
			id := rec.RegisterMethod("prompts/list")
			d.list = append(d.list, func() (int32, float64, error) {
				_, latency, err := cl.ListPrompts()
				return id, latency, err
			})

		case "prompts/get":
			if firstPrompt == "" {
				opts.logf("no prompts available; prompts/get falls back to ping")
				d.list = append(d.list, ping)
				continue
			}
			id := rec.RegisterMethod("prompts/get")
			name := firstPrompt
			d.list = append(d.list, func() (int32, float64, error) {
				_, latency, err := cl.GetPrompt(name, nil)
				return id, latency, err
			})

		default:
			return nil, stresserr.New(api.ErrInvalidArgumentValue, nil, "unknown operation %q in mix", m.Method)
		}
	}

	return d, nil
}

func selectTool(tools []toolTarget, name string) []toolTarget {
	for _, t := range tools {
		if t.name == name {
			return []toolTarget{t}
		}
	}
	return nil
}
