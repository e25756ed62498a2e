package registry

import (
	"fmt"

	"tierd/pkg/types"
)

// Registry is an immutable, indexed view of the model catalog. It is built
// once per load; a name index and a role index preserve file order.
type Registry struct {
	models []types.ModelDescriptor
	byName map[string]int
	byRole map[types.Role][]int
}

// New validates descriptors, applies the default host and builds the
// indexes. Priority is taken as given, so 0 is the most preferred value;
// LoadFile applies DefaultPriority only to entries that omit the key.
func New(models []types.ModelDescriptor) (*Registry, error) {
	r := &Registry{
		models: make([]types.ModelDescriptor, 0, len(models)),
		byName: make(map[string]int, len(models)),
		byRole: make(map[types.Role][]int),
	}
	for i, m := range models {
		if m.Name == "" {
			return nil, fmt.Errorf("registry entry %d: empty name", i)
		}
		if !m.Role.Valid() {
			return nil, fmt.Errorf("registry entry %q: unknown role %q", m.Name, m.Role)
		}
		if _, dup := r.byName[m.Name]; dup {
			return nil, fmt.Errorf("registry entry %q: duplicate name", m.Name)
		}
		if m.Host == "" {
			m.Host = types.DefaultHost
		}
		m.Domain = append([]string(nil), m.Domain...)
		idx := len(r.models)
		r.models = append(r.models, m)
		r.byName[m.Name] = idx
		r.byRole[m.Role] = append(r.byRole[m.Role], idx)
	}
	return r, nil
}

// MustNew is New that panics on invalid input; intended for tests and fixtures.
func MustNew(models []types.ModelDescriptor) *Registry {
	r, err := New(models)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of descriptors.
func (r *Registry) Len() int { return len(r.models) }

// All returns a copy of every descriptor in file order.
func (r *Registry) All() []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, len(r.models))
	for i, m := range r.models {
		out[i] = clone(m)
	}
	return out
}

// Get looks up a descriptor by name.
func (r *Registry) Get(name string) (types.ModelDescriptor, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return types.ModelDescriptor{}, false
	}
	return clone(r.models[idx]), true
}

// Lookup is Get returning ErrModelNotFound for unknown names.
func (r *Registry) Lookup(name string) (types.ModelDescriptor, error) {
	if m, ok := r.Get(name); ok {
		return m, nil
	}
	return types.ModelDescriptor{}, ErrModelNotFound(name)
}

// ByRole returns the descriptors with the given role in file order.
func (r *Registry) ByRole(role types.Role) []types.ModelDescriptor {
	idxs := r.byRole[role]
	out := make([]types.ModelDescriptor, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, clone(r.models[i]))
	}
	return out
}

// First returns the first descriptor with the given role.
func (r *Registry) First(role types.Role) (types.ModelDescriptor, bool) {
	idxs := r.byRole[role]
	if len(idxs) == 0 {
		return types.ModelDescriptor{}, false
	}
	return clone(r.models[idxs[0]]), true
}

// Resolve accepts either a role or a model name, matching the first entry in
// file order whose role or name equals nameOrRole.
func (r *Registry) Resolve(nameOrRole string) (types.ModelDescriptor, bool) {
	for _, m := range r.models {
		if string(m.Role) == nameOrRole || m.Name == nameOrRole {
			return clone(m), true
		}
	}
	return types.ModelDescriptor{}, false
}

// clone detaches the domain tags so callers cannot edit the registry's copy.
func clone(m types.ModelDescriptor) types.ModelDescriptor {
	m.Domain = append([]string(nil), m.Domain...)
	return m
}
