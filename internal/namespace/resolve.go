package namespace

import (
	"fmt"

	"golang.org/x/text/cases"

	"github.com/vmlang/corec/internal/types"
)

// ImportPrivateSymbolError reports a path that crosses into a private
// symbol from outside its defining module.
type ImportPrivateSymbolError struct {
	Name string
}

func (e *ImportPrivateSymbolError) Error() string {
	return fmt.Sprintf("cannot access private symbol %q from outside its defining module", e.Name)
}

// UnresolvedPathError reports the first path segment (or module prefix)
// that could not be resolved, optionally carrying a case-insensitive "did you mean" suggestion found
// among the sibling symbols actually in scope.
type UnresolvedPathError struct {
	Name       string
	Suggestion string
}

func (e *UnresolvedPathError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("cannot find %q in this scope; did you mean %q?", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("cannot find %q in this scope", e.Name)
}

var foldCase = cases.Fold()

// Resolve walks a path segment by segment: given path segments and
// the module currently being checked, walk each segment — continuing into
// a child module or an explicitly imported module when the segment names
// one, otherwise looking the symbol up in the current module then the
// root — checking visibility at every step.
func Resolve(ctx *types.Context, current *Module, path []string) (types.DeclHandle, error) {
	if len(path) == 0 {
		return types.DeclHandle(-1), fmt.Errorf("empty path")
	}

	mod := current
	for i, seg := range path[:len(path)-1] {
		if child, ok := mod.Children[seg]; ok {
			mod = child
			continue
		}
		if imported, ok := mod.modules[seg]; ok {
			mod = imported
			continue
		}
		return types.DeclHandle(-1), &UnresolvedPathError{Name: joinPrefix(path, i+1)}
	}

	name := path[len(path)-1]
	if h, ok := mod.LookupLocal(name); ok {
		return checkVisibility(ctx, mod, current, name, h)
	}
	if b, ok := mod.imports[name]; ok {
		return checkVisibility(ctx, mod, current, name, b.Target)
	}
	if h, ok := mod.Root().LookupLocal(name); ok {
		return checkVisibility(ctx, mod.Root(), current, name, h)
	}

	return types.DeclHandle(-1), &UnresolvedPathError{Name: name, Suggestion: suggest(mod, name)}
}

func checkVisibility(ctx *types.Context, defining, from *Module, name string, h types.DeclHandle) (types.DeclHandle, error) {
	if defining == from {
		return h, nil
	}
	if ctx.GetDecl(h).Vis != types.VisPublic {
		return types.DeclHandle(-1), &ImportPrivateSymbolError{Name: name}
	}
	return h, nil
}

// ResolveWildcard imports every public symbol of the final module named by
// path into current, implementing the trailing-`*` import form.
func ResolveWildcard(ctx *types.Context, current *Module, path []string) error {
	mod := current
	for _, seg := range path {
		child, ok := mod.Children[seg]
		if !ok {
			return &UnresolvedPathError{Name: seg}
		}
		mod = child
	}
	for name, h := range mod.AllPublicSymbols(ctx) {
		current.Import(name, h, true)
	}
	return nil
}

func joinPrefix(path []string, n int) string {
	out := path[0]
	for i := 1; i < n; i++ {
		out += "::" + path[i]
	}
	return out
}

// suggest performs a case-folded nearest-name search among the symbols
// visible in mod, for the UnresolvedPathError's "did you mean" hint. It
// only catches exact matches modulo case, not a full edit-distance search —
// that is a reasonable first cut the driver can replace later, not a
// promise of finding every typo.
func suggest(mod *Module, name string) string {
	folded := foldCase.String(name)
	for candidate := range mod.symbols {
		if candidate != name && foldCase.String(candidate) == folded {
			return candidate
		}
	}
	for candidate := range mod.imports {
		if candidate != name && foldCase.String(candidate) == folded {
			return candidate
		}
	}
	return ""
}
