package semantic

import "github.com/vmlang/corec/internal/types"

// localBinding is one let-bound variable or parameter visible in the
// current block.
type localBinding struct {
	Type    types.TypeHandle
	Mutable bool
}

// localScope is a parent-chained table of local bindings, one frame per
// block. Module-level symbols stay in the namespace; locals never do — a
// block's scope dies when checking of the block finishes.
type localScope struct {
	parent   *localScope
	bindings map[string]localBinding
}

func newLocalScope(parent *localScope) *localScope {
	return &localScope{parent: parent, bindings: make(map[string]localBinding)}
}

// Define binds name in this frame, shadowing any outer binding of the same
// name. Redefinition within one frame is allowed (sequential let shadowing).
func (s *localScope) Define(name string, b localBinding) {
	s.bindings[name] = b
}

// Lookup walks the chain outward.
func (s *localScope) Lookup(name string) (localBinding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.bindings[name]; ok {
			return b, true
		}
	}
	return localBinding{}, false
}
