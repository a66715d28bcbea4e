package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/pulse/internal/component"
	"firestige.xyz/pulse/internal/core"
)

// Source produces events until ctx is done.
type Source interface {
	Run(ctx context.Context, emit func(core.Event)) error
}

// Transform maps one event; keep=false drops it.
type Transform interface {
	Transform(ev core.Event) (out core.Event, keep bool)
}

// Sink consumes events.
type Sink interface {
	Write(ev core.Event) error
}

// Env carries process-level collaborators into stage factories.
type Env struct {
	Output io.Writer
}

type factory struct {
	role  component.Role
	build func(opts map[string]any, env Env) (any, error)
}

var factories = map[string]factory{
	"generator":  {component.Source, newGenerator},
	"add_fields": {component.Transform, newAddFields},
	"filter":     {component.Transform, newFilter},
	"console":    {component.Sink, newConsole},
	"blackhole":  {component.Sink, newBlackhole},
}

// Types lists the component types available for role, sorted.
func Types(role component.Role) []string {
	var out []string
	for name, f := range factories {
		if f.role == role {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func build(c component.Component, opts map[string]any, env Env) (any, error) {
	f, ok := factories[c.Type]
	if !ok || f.role != c.Role {
		return nil, fmt.Errorf("%w: %s %q has unknown type %q (available: %v)",
			core.ErrConfigInvalid, c.Role, c.Name, c.Type, Types(c.Role))
	}
	stage, err := f.build(opts, env)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q options: %w", core.ErrConfigInvalid, c.Role, c.Name, err)
	}
	return stage, nil
}

// decode fills out from a loosely typed options map.
func decode(opts map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(opts)
}

// ─── generator ───

type generatorOptions struct {
	Interval time.Duration `mapstructure:"interval"`
	Lines    []string      `mapstructure:"lines"`
	Count    int           `mapstructure:"count"` // 0 = unbounded
}

type generator struct {
	opts generatorOptions
}

func newGenerator(opts map[string]any, _ Env) (any, error) {
	g := generatorOptions{Interval: time.Second, Lines: []string{"pulse heartbeat"}}
	if err := decode(opts, &g); err != nil {
		return nil, err
	}
	if g.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if len(g.Lines) == 0 {
		return nil, fmt.Errorf("lines must not be empty")
	}
	return &generator{opts: g}, nil
}

func (g *generator) Run(ctx context.Context, emit func(core.Event)) error {
	ticker := time.NewTicker(g.opts.Interval)
	defer ticker.Stop()

	for seq := 0; g.opts.Count == 0 || seq < g.opts.Count; seq++ {
		ev := core.NewLogEvent(g.opts.Lines[seq%len(g.opts.Lines)])
		ev.Insert("sequence", seq)
		emit(core.LogEventOf(ev))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	<-ctx.Done()
	return nil
}

// ─── add_fields ───

type addFieldsOptions struct {
	Fields    map[string]any `mapstructure:"fields"`
	Overwrite bool           `mapstructure:"overwrite"`
}

type addFields struct {
	opts addFieldsOptions
}

func newAddFields(opts map[string]any, _ Env) (any, error) {
	var a addFieldsOptions
	if err := decode(opts, &a); err != nil {
		return nil, err
	}
	if len(a.Fields) == 0 {
		return nil, fmt.Errorf("fields must not be empty")
	}
	return &addFields{opts: a}, nil
}

func (a *addFields) Transform(ev core.Event) (core.Event, bool) {
	log, ok := ev.AsLog()
	if !ok {
		return ev, true
	}
	for k, v := range a.opts.Fields {
		if _, exists := log.Get(k); exists && !a.opts.Overwrite {
			continue
		}
		log.Insert(k, v)
	}
	return ev, true
}

// ─── filter ───

type filterOptions struct {
	Field  string `mapstructure:"field"`
	Equals any    `mapstructure:"equals"`
}

type filter struct {
	opts filterOptions
}

func newFilter(opts map[string]any, _ Env) (any, error) {
	var f filterOptions
	if err := decode(opts, &f); err != nil {
		return nil, err
	}
	if f.Field == "" {
		return nil, fmt.Errorf("field is required")
	}
	return &filter{opts: f}, nil
}

// Transform keeps log events that carry the field, and, when equals is
// set, whose value prints the same. Metrics always pass.
func (f *filter) Transform(ev core.Event) (core.Event, bool) {
	log, ok := ev.AsLog()
	if !ok {
		return ev, true
	}
	v, ok := log.Get(f.opts.Field)
	if !ok {
		return ev, false
	}
	if f.opts.Equals != nil && fmt.Sprint(v) != fmt.Sprint(f.opts.Equals) {
		return ev, false
	}
	return ev, true
}

// ─── console ───

type consoleOptions struct {
	Target string `mapstructure:"target"` // stdout | stderr
}

type console struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newConsole(opts map[string]any, env Env) (any, error) {
	var c consoleOptions
	if err := decode(opts, &c); err != nil {
		return nil, err
	}

	var w io.Writer
	switch c.Target {
	case "", "stdout":
		w = env.Output
		if w == nil {
			w = os.Stdout
		}
	case "stderr":
		w = os.Stderr
	default:
		return nil, fmt.Errorf("unknown target %q", c.Target)
	}
	return &console{enc: json.NewEncoder(w)}, nil
}

func (c *console) Write(ev core.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if log, ok := ev.AsLog(); ok {
		return c.enc.Encode(log)
	}
	return c.enc.Encode(ev.Metric)
}

// ─── blackhole ───

type blackhole struct{}

func newBlackhole(opts map[string]any, _ Env) (any, error) {
	var none struct{}
	if err := decode(opts, &none); err != nil {
		return nil, err
	}
	return blackhole{}, nil
}

func (blackhole) Write(core.Event) error { return nil }
