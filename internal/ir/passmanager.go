package ir

import (
	"fmt"
)

// PassKind distinguishes analyses (cached, invalidated by transforms) from
// transforms (mutating, reporting whether they changed anything).
type PassKind int

const (
	Analysis PassKind = iota
	Transform
)

// Pass declares one pass: name, description, the passes it depends on,
// and either an analysis or a transform body.
type Pass struct {
	Name        string
	Description string
	Deps        []string
	Kind        PassKind

	// Preserves names the analyses a transform does not invalidate.
	Preserves []string

	Analyze   func(pm *PassManager, f *Function) any
	Transform func(pm *PassManager, f *Function) bool
}

// PassManager computes a topological order from declared dependencies,
// runs analyses on demand, caches analysis results per function, and
// invalidates every analysis a transform is not declared to preserve.
type PassManager struct {
	Module *Module

	passes map[string]*Pass
	// registration order breaks topological-sort ties deterministically.
	regOrder []string

	cache map[analysisKey]any
}

type analysisKey struct {
	pass string
	fn   *Function
}

func NewPassManager(m *Module) *PassManager {
	pm := &PassManager{
		Module: m,
		passes: make(map[string]*Pass),
		cache:  make(map[analysisKey]any),
	}
	pm.registerDefaults()
	return pm
}

// Register declares a pass. Re-registering a name is a programmer error.
func (pm *PassManager) Register(p *Pass) error {
	if _, dup := pm.passes[p.Name]; dup {
		return fmt.Errorf("pass %q registered twice", p.Name)
	}
	pm.passes[p.Name] = p
	pm.regOrder = append(pm.regOrder, p.Name)
	return nil
}

// GetAnalysis runs (or serves from cache) an analysis pass for a function.
func (pm *PassManager) GetAnalysis(name string, f *Function) (any, error) {
	p, ok := pm.passes[name]
	if !ok || p.Kind != Analysis {
		return nil, fmt.Errorf("no analysis pass named %q", name)
	}
	key := analysisKey{pass: name, fn: f}
	if cached, hit := pm.cache[key]; hit {
		return cached, nil
	}
	result := p.Analyze(pm, f)
	pm.cache[key] = result
	return result, nil
}

// Run executes the named transform passes (plus their transitive
// dependencies, analyses resolved lazily) in topological order over every
// function of the module.
func (pm *PassManager) Run(names ...string) error {
	order, err := pm.schedule(names)
	if err != nil {
		return err
	}
	for _, name := range order {
		p := pm.passes[name]
		if p.Kind != Transform {
			continue // analyses run on demand from inside transforms
		}
		for _, f := range pm.Module.Functions {
			if p.Transform(pm, f) {
				pm.invalidate(p, f)
			}
		}
	}
	return nil
}

func (pm *PassManager) invalidate(p *Pass, f *Function) {
	preserved := make(map[string]bool, len(p.Preserves))
	for _, name := range p.Preserves {
		preserved[name] = true
	}
	for key := range pm.cache {
		if key.fn == f && !preserved[key.pass] {
			delete(pm.cache, key)
		}
	}
}

// schedule topologically sorts the requested passes and their
// dependencies; ties break by registration order.
func (pm *PassManager) schedule(names []string) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		p, ok := pm.passes[name]
		if !ok {
			return fmt.Errorf("no pass named %q", name)
		}
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("pass dependency cycle through %q", name)
		}
		state[name] = visiting
		for _, dep := range pm.sortedDeps(p) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (pm *PassManager) sortedDeps(p *Pass) []string {
	if len(p.Deps) < 2 {
		return p.Deps
	}
	pos := make(map[string]int, len(pm.regOrder))
	for i, name := range pm.regOrder {
		pos[name] = i
	}
	out := append([]string{}, p.Deps...)
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if pos[out[j]] < pos[out[i]] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// registerDefaults declares the standard pipeline: the two analyses
// (escape, dominators) and the four standard transforms.
func (pm *PassManager) registerDefaults() {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(pm.Register(&Pass{
		Name:        "escape",
		Description: "symbols whose address is observable outside the function",
		Kind:        Analysis,
		Analyze: func(_ *PassManager, f *Function) any {
			return ComputeEscapes(f)
		},
	}))
	must(pm.Register(&Pass{
		Name:        "dominators",
		Description: "immediate-dominator tree per function",
		Kind:        Analysis,
		Analyze: func(_ *PassManager, f *Function) any {
			return ComputeDominators(f)
		},
	}))
	must(pm.Register(&Pass{
		Name:        "constfold",
		Description: "fold arithmetic and comparisons over literal operands",
		Kind:        Transform,
		Transform:   constFold,
	}))
	must(pm.Register(&Pass{
		Name:        "inline",
		Description: "inline small callees at their single call site",
		Deps:        []string{"constfold"},
		Kind:        Transform,
		Transform:   inlineSmallFunctions,
	}))
	must(pm.Register(&Pass{
		Name:        "memcpyopt",
		Description: "redundant-stack copy propagation and load/store to memcpy rewriting",
		Deps:        []string{"escape"},
		Kind:        Transform,
		Transform:   memcpyOpt,
	}))
	must(pm.Register(&Pass{
		Name:        "dce",
		Description: "remove side-effect-free instructions with unused results and unreachable blocks",
		Deps:        []string{"memcpyopt"},
		Kind:        Transform,
		Transform:   deadCodeElim,
	}))
}

// Optimize runs the default transform pipeline in its declared order.
func (pm *PassManager) Optimize() error {
	return pm.Run("constfold", "inline", "memcpyopt", "dce")
}
