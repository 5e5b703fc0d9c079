package plugin

import "fmt"

// Category partitions the plugin registry into extension domains.
type Category string

const (
	// CategoryEnvironment covers project environment setup plugins.
	CategoryEnvironment Category = "environment"

	// CategoryAPI covers API surface plugins.
	CategoryAPI Category = "api"

	// CategoryMicroservices covers service decomposition plugins.
	CategoryMicroservices Category = "microservices"

	// CategoryPerformance covers performance tooling plugins.
	CategoryPerformance Category = "performance"

	// CategorySecurity covers security tooling plugins.
	CategorySecurity Category = "security"

	// CategoryDatabase covers database tooling plugins.
	CategoryDatabase Category = "database"
)

// Categories returns all categories in declaration order.
func Categories() []Category {
	return []Category{
		CategoryEnvironment,
		CategoryAPI,
		CategoryMicroservices,
		CategoryPerformance,
		CategorySecurity,
		CategoryDatabase,
	}
}

// Valid reports whether c is a member of the fixed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryEnvironment, CategoryAPI, CategoryMicroservices,
		CategoryPerformance, CategorySecurity, CategoryDatabase:
		return true
	}
	return false
}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Profile describes category-specific constraints. Category behavior is a
// dispatch table over the fixed enum, not a type hierarchy.
type Profile struct {
	// Capabilities lists the capability names a plugin in this category may
	// declare. Empty means unrestricted.
	Capabilities []string
}

// profiles is the closed dispatch table keyed by category.
var profiles = map[Category]Profile{
	CategoryEnvironment: {Capabilities: []string{
		"docker", "env-files", "ci", "editor-config", "git-hooks",
	}},
	CategoryAPI: {Capabilities: []string{
		"rest", "graphql", "websocket", "openapi", "versioning",
	}},
	CategoryMicroservices: {Capabilities: []string{
		"grpc", "service-discovery", "gateway", "messaging", "tracing",
	}},
	CategoryPerformance: {Capabilities: []string{
		"caching", "profiling", "compression", "pooling", "benchmarks",
	}},
	CategorySecurity: {Capabilities: []string{
		"auth", "tls", "scanning", "secrets", "headers", "rate-limiting",
	}},
	CategoryDatabase: {Capabilities: []string{
		"migrations", "orm", "seeding", "backups", "indexing",
	}},
}

// ProfileFor returns the constraint profile for a category.
func ProfileFor(c Category) (Profile, error) {
	p, ok := profiles[c]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return p, nil
}

// AllowsCapability reports whether the profile admits the capability name.
func (p Profile) AllowsCapability(name string) bool {
	if len(p.Capabilities) == 0 {
		return true
	}
	for _, c := range p.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}
