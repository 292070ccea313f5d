package containersvc

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestLoadDefaultsParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	contents := `
admin_principal: custom-admins
service_principal: custom-svc
default_quota: 2GB
default_env:
  HTTP_PROXY: http://proxy.internal:8080
  TZ: UTC
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write defaults file: %v", err)
	}

	d, err := LoadDefaults(path)
	assert.NilError(t, err)
	assert.Equal(t, d.AdminPrincipal, "custom-admins")
	assert.Equal(t, d.ServicePrincipal, "custom-svc")
	assert.Equal(t, d.DefaultQuota, "2GB")
	assert.DeepEqual(t, d.DefaultEnv, map[string]string{
		"HTTP_PROXY": "http://proxy.internal:8080",
		"TZ":         "UTC",
	})
}

func TestDefaultsApplyLeavesExplicitConfigUntouched(t *testing.T) {
	d := Defaults{AdminPrincipal: "from-yaml", DefaultQuota: "5GB"}
	cfg := Config{AdminPrincipal: "from-code"}

	applied := d.Apply(cfg)
	assert.Equal(t, applied.AdminPrincipal, "from-code")
	assert.Equal(t, applied.DefaultQuota, "5GB")
}

func TestNewLoadsDefaultsFile(t *testing.T) {
	base := t.TempDir()
	defaultsPath := filepath.Join(base, "defaults.yaml")
	contents := "default_quota: 3GB\ndefault_env:\n  REGION: us-east-1\n"
	if err := os.WriteFile(defaultsPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write defaults file: %v", err)
	}

	svc, err := New(Config{BaseDir: filepath.Join(base, "containers"), DefaultsFile: defaultsPath})
	assert.NilError(t, err)
	assert.Equal(t, svc.cfg.DefaultQuota, "3GB")
	assert.DeepEqual(t, svc.cfg.DefaultEnv, map[string]string{"REGION": "us-east-1"})
}
