package types

// Role is the tier a model serves in the cascade.
type Role string

const (
	RoleGatekeeper Role = "gatekeeper"
	RoleLibrarian  Role = "librarian"
	RoleSpecialist Role = "specialist"
)

// Valid reports whether r is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleGatekeeper, RoleLibrarian, RoleSpecialist:
		return true
	}
	return false
}

// DefaultPriority is used when a registry entry omits priority.
const DefaultPriority = 10

// DefaultHost is used when a registry entry omits host.
const DefaultHost = "127.0.0.1"

// ModelDescriptor is one entry of the model registry. Values are immutable
// once loaded; a registry reload produces fresh descriptors.
type ModelDescriptor struct {
	// Unique model name; also the argument passed to the control scripts.
	// example: math-13b
	Name string `json:"name" yaml:"name" toml:"name" example:"math-13b"`
	// Tier served by this model.
	// example: specialist
	Role Role `json:"role" yaml:"role" toml:"role" example:"specialist"`
	// Port of the model's completion server.
	// example: 8083
	Port int `json:"port" yaml:"port" toml:"port" example:"8083"`
	// Host of the model's completion server (default 127.0.0.1).
	// example: 127.0.0.1
	Host string `json:"host,omitempty" yaml:"host,omitempty" toml:"host,omitempty" example:"127.0.0.1"`
	// Domain tags; empty means general purpose.
	// example: ["math"]
	Domain []string `json:"domain,omitempty" yaml:"domain,omitempty" toml:"domain,omitempty"`
	// Lower is preferred; 0 is a valid value. Registry files that omit it get 10.
	// example: 5
	Priority int `json:"priority" yaml:"priority" toml:"priority" example:"5"`
	// Approximate resident memory of the model in MB. Informational only.
	// example: 6200
	MemMB int `json:"mem_mb,omitempty" yaml:"mem_mb,omitempty" toml:"mem_mb,omitempty" example:"6200"`
}

// HasDomain reports whether d is one of the descriptor's domain tags.
func (m ModelDescriptor) HasDomain(d string) bool {
	for _, tag := range m.Domain {
		if tag == d {
			return true
		}
	}
	return false
}
