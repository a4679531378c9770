package rate

import (
	"github.com/dropDatabas3/hablas/internal/config"
)

// PoliciesFromConfig convierte las políticas validadas de config.
func PoliciesFromConfig(c *config.Config) map[string]Policy {
	out := make(map[string]Policy, len(c.Rate.Policies))
	for cat, p := range c.Rate.Policies {
		out[cat] = Policy{Max: p.Max, Window: p.PolicyWindow(), Message: p.Message}
	}
	return out
}

// OptionsFromConfig arma Options desde config; Redis y Logger se inyectan aparte.
func OptionsFromConfig(c *config.Config) Options {
	return Options{
		Prefix:         c.Redis.Prefix + "rl:",
		MaxKeys:        c.Rate.MemoryMaxKeys,
		BackendTimeout: c.RateBackendTimeout(),
		Policies:       PoliciesFromConfig(c),
	}
}
