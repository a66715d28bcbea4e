// Package pipeline implements a small event pipeline engine whose
// components feed the metric controller and the tap topology.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"firestige.xyz/pulse/internal/component"
	"firestige.xyz/pulse/internal/config"
	"firestige.xyz/pulse/internal/core"
	"firestige.xyz/pulse/internal/metrics"
	"firestige.xyz/pulse/internal/topology"
)

// fanoutOrigin labels counters recorded by a component's fan-out.
const fanoutOrigin = "fanout"

// Config contains pipeline configuration.
type Config struct {
	Metrics    *metrics.Controller
	Topology   *topology.Topology
	Registry   *component.Registry
	BufferSize int // per-component input channel
	Env        Env
}

// Pipeline runs the declared components. Every component is one goroutine;
// components are connected through fan-outs that drop rather than block.
type Pipeline struct {
	cfg Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running []config.Declared
	stages  map[string]*stageMetrics
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 1024
	}
	return &Pipeline{cfg: cfg}
}

// node is one built component ready to run.
type node struct {
	decl    config.Declared
	stage   any
	fanout  *topology.Fanout
	in      chan core.Event
	metrics *stageMetrics
}

// Validate checks that every component type exists for its role, that its
// options decode, and that the graph has no cycles.
func Validate(components []config.Declared) error {
	_, err := plan(components, Env{})
	return err
}

// plan builds every stage and returns them in start order: downstream
// components first so nothing emits into a consumer that is not running.
func plan(components []config.Declared, env Env) ([]*node, error) {
	nodes := make(map[string]*node, len(components))
	for _, d := range components {
		stage, err := build(d.Component, d.Options, env)
		if err != nil {
			return nil, err
		}
		nodes[d.Name] = &node{decl: d, stage: stage, metrics: &stageMetrics{}}
	}
	for _, d := range components {
		for _, in := range d.Inputs {
			upstream, ok := nodes[in]
			if !ok || upstream.decl.Role == component.Sink {
				return nil, fmt.Errorf("%w: %q input %q is not a source or transform", core.ErrConfigInvalid, d.Name, in)
			}
		}
	}

	order, err := loadOrder(components)
	if err != nil {
		return nil, err
	}
	out := make([]*node, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		out = append(out, nodes[order[i]])
	}
	return out, nil
}

// loadOrder sorts components so that every component follows its inputs.
func loadOrder(components []config.Declared) ([]string, error) {
	graph := make(map[string][]string) // input -> consumers
	inDegree := make(map[string]int)
	for _, d := range components {
		inDegree[d.Name] = len(d.Inputs)
		for _, in := range d.Inputs {
			graph[in] = append(graph[in], d.Name)
		}
	}

	queue := make([]string, 0)
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(components))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		consumers := graph[current]
		sort.Strings(consumers)
		for _, c := range consumers {
			inDegree[c]--
			if inDegree[c] == 0 {
				queue = append(queue, c)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(components) {
		return nil, fmt.Errorf("%w: circular dependency detected among components", core.ErrConfigInvalid)
	}
	return result, nil
}

// Start builds and runs components. It fails without side effects if any
// component cannot be built.
func (p *Pipeline) Start(ctx context.Context, components []config.Declared) error {
	nodes, err := plan(components, p.cfg.Env)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return fmt.Errorf("pipeline already running")
	}
	p.start(ctx, components, nodes)
	return nil
}

func (p *Pipeline) start(ctx context.Context, components []config.Declared, nodes []*node) {
	byName := make(map[string]*node, len(nodes))
	fanouts := make(map[string]*topology.Fanout)
	for _, n := range nodes {
		byName[n.decl.Name] = n
		if n.decl.Role != component.Sink {
			n.fanout = topology.NewFanout(n.decl.Name, p.recorder(n.decl, fanoutOrigin))
			fanouts[n.decl.Name] = n.fanout
		}
		if n.decl.Role != component.Source {
			n.in = make(chan core.Event, p.cfg.BufferSize)
		}
	}
	for _, n := range nodes {
		for _, in := range n.decl.Inputs {
			byName[in].fanout.Add("pipeline:"+n.decl.Name, n.in)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = components
	p.stages = make(map[string]*stageMetrics, len(nodes))

	decls := make([]component.Component, 0, len(components))
	for _, d := range components {
		decls = append(decls, d.Component)
	}
	if p.cfg.Registry != nil {
		p.cfg.Registry.Replace(decls)
	}
	if p.cfg.Topology != nil {
		p.cfg.Topology.Reload(fanouts)
	}

	for _, n := range nodes {
		p.stages[n.decl.Name] = n.metrics
		p.wg.Add(1)
		go p.run(runCtx, n, p.recorder(n.decl, n.decl.Type))
	}
	slog.Info("pipeline started", "components", len(nodes))
}

func (p *Pipeline) recorder(d config.Declared, origin string) *metrics.Recorder {
	if p.cfg.Metrics == nil {
		return nil
	}
	return p.cfg.Metrics.Recorder(d.Name, d.Role.String(), d.Type, origin)
}

func (p *Pipeline) run(ctx context.Context, n *node, rec *metrics.Recorder) {
	defer p.wg.Done()

	record := func(ev core.Event) {
		n.metrics.Processed.Add(1)
		if rec != nil {
			rec.Processed(1, ev.Size())
		}
	}
	fail := func(err error) {
		n.metrics.Errors.Add(1)
		if rec != nil {
			rec.Error()
		}
		slog.Debug("component error", "component", n.decl.Name, "error", err)
	}

	switch stage := n.stage.(type) {
	case Source:
		err := stage.Run(ctx, func(ev core.Event) {
			record(ev)
			n.fanout.Send(ev)
		})
		if err != nil && ctx.Err() == nil {
			fail(err)
			slog.Error("source failed", "component", n.decl.Name, "error", err)
		}
	case Transform:
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-n.in:
				record(ev)
				out, keep := stage.Transform(ev)
				if !keep {
					n.metrics.Dropped.Add(1)
					continue
				}
				n.fanout.Send(out)
			}
		}
	case Sink:
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-n.in:
				record(ev)
				if err := stage.Write(ev); err != nil {
					fail(err)
				}
			}
		}
	}
}

// Stop stops every component and waits for them to exit.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
}

func (p *Pipeline) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.cancel = nil
	slog.Info("pipeline stopped")
}

// Reload replaces the running components. The new set is built first; if
// that fails the old pipeline keeps running. Metric series of components
// that disappear are dropped.
func (p *Pipeline) Reload(ctx context.Context, components []config.Declared) error {
	nodes, err := plan(components, p.cfg.Env)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	keep := make(map[string]bool, len(components))
	for _, d := range components {
		keep[d.Name] = true
	}
	previous := p.running
	p.stop()
	if p.cfg.Metrics != nil {
		for _, d := range previous {
			if !keep[d.Name] {
				p.cfg.Metrics.Forget(d.Name)
			}
		}
	}
	p.start(ctx, components, nodes)
	return nil
}

// Components returns the running declarations.
func (p *Pipeline) Components() []config.Declared {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]config.Declared(nil), p.running...)
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Running: p.cancel != nil, Components: make(map[string]ComponentStats, len(p.stages))}
	for name, m := range p.stages {
		s.Components[name] = m.snapshot()
	}
	return s
}
