package containersvc

import (
	"os"

	"gopkg.in/yaml.v3"

	"keep/internal/cerr"
)

// Defaults is the operator-tunable subset of Config that can be loaded from
// a YAML file instead of set in code: provisioning defaults, not the
// command allow/deny policy of a separate admission layer.
type Defaults struct {
	AdminPrincipal   string            `yaml:"admin_principal"`
	ServicePrincipal string            `yaml:"service_principal"`
	DefaultQuota     string            `yaml:"default_quota"`
	DefaultEnv       map[string]string `yaml:"default_env"`
}

// LoadDefaults reads and parses a YAML provisioning-defaults file.
func LoadDefaults(path string) (Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults{}, cerr.Wrap(err, cerr.KindHostUnavailable, "read provisioning defaults file")
	}

	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Defaults{}, cerr.Wrap(err, cerr.KindInvalidInput, "parse provisioning defaults file")
	}
	return d, nil
}

// Apply fills any zero-value field of cfg from d, leaving fields the caller
// already set untouched. Loaded defaults are applied before New's own
// hardcoded fallbacks, so an operator-supplied file always takes priority
// over the built-in ones.
func (d Defaults) Apply(cfg Config) Config {
	if cfg.AdminPrincipal == "" {
		cfg.AdminPrincipal = d.AdminPrincipal
	}
	if cfg.ServicePrincipal == "" {
		cfg.ServicePrincipal = d.ServicePrincipal
	}
	if cfg.DefaultQuota == "" {
		cfg.DefaultQuota = d.DefaultQuota
	}
	if cfg.DefaultEnv == nil {
		cfg.DefaultEnv = d.DefaultEnv
	}
	return cfg
}
