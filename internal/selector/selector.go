// Package selector ranks specialist models for a query.
package selector

import (
	"sort"

	"tierd/internal/registry"
	"tierd/pkg/types"
)

// SelectCandidates returns the specialists ordered by ascending priority.
// When domain is set, specialists tagged with it are preferred; if none are,
// the full specialist set is used, so a hint never empties the result.
// Ties keep registry order.
func SelectCandidates(reg *registry.Registry, domain string) []types.ModelDescriptor {
	if reg == nil {
		return nil
	}
	pool := reg.ByRole(types.RoleSpecialist)
	if domain != "" {
		var matched []types.ModelDescriptor
		for _, m := range pool {
			if m.HasDomain(domain) {
				matched = append(matched, m)
			}
		}
		if len(matched) > 0 {
			pool = matched
		}
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Priority < pool[j].Priority })
	return pool
}

// PickPreferred returns the single best specialist for domain.
func PickPreferred(reg *registry.Registry, domain string) (types.ModelDescriptor, bool) {
	cands := SelectCandidates(reg, domain)
	if len(cands) == 0 {
		return types.ModelDescriptor{}, false
	}
	return cands[0], true
}

// WithPreferred moves the descriptor named preferred to the front of cands.
// An explicit preference outranks priority ordering; it is looked up in reg,
// so it may be a specialist outside the domain subset. Unknown names leave
// cands unchanged.
func WithPreferred(cands []types.ModelDescriptor, reg *registry.Registry, preferred string) []types.ModelDescriptor {
	if preferred == "" || reg == nil {
		return cands
	}
	pref, ok := reg.Get(preferred)
	if !ok {
		return cands
	}
	out := make([]types.ModelDescriptor, 0, len(cands)+1)
	out = append(out, pref)
	for _, m := range cands {
		if m.Name != pref.Name {
			out = append(out, m)
		}
	}
	return out
}
