package containersvc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"keep/internal/cerr"
	"keep/internal/cuser"
	"keep/internal/ident"
	"keep/internal/propstore"
	"keep/internal/quota"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestCreateAndGetByHandleCaseInsensitive(t *testing.T) {
	svc := newTestService(t)

	c, err := svc.Create(context.Background(), ContainerSpec{Handle: "Build-Box"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok := svc.GetByHandle("build-box")
	if !ok || got.ID != c.ID {
		t.Fatalf("GetByHandle case-insensitive lookup failed: ok=%v", ok)
	}

	if _, ok := svc.GetByHandle("BUILD-BOX"); !ok {
		t.Fatal("expected case-insensitive lookup to succeed")
	}
}

func TestCreateDuplicateHandleFails(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(context.Background(), ContainerSpec{Handle: "dup"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := svc.Create(context.Background(), ContainerSpec{Handle: "DUP"})
	if cerr.KindOf(err) != cerr.KindResourceExists {
		t.Fatalf("expected KindResourceExists, got %v", err)
	}
}

func TestDestroyRemovesContainerAndUser(t *testing.T) {
	svc := newTestService(t)

	c, err := svc.Create(context.Background(), ContainerSpec{Handle: "ephemeral"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Destroy("ephemeral"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if _, ok := svc.GetByHandle("ephemeral"); ok {
		t.Fatal("expected container to be gone after Destroy")
	}
	if _, err := os.Stat(filepath.Join(svc.cfg.BaseDir, c.ID)); !os.IsNotExist(err) {
		t.Fatalf("expected container directory to be removed, stat err = %v", err)
	}

	// The user id should be free again.
	if _, err := svc.cfg.Users.CreateUser(c.ID); err != nil {
		t.Fatalf("expected user id to be reusable after destroy, got %v", err)
	}
}

func TestCreatePersistsHandleQuotaAndCallerProperties(t *testing.T) {
	svc := newTestService(t)

	c, err := svc.Create(context.Background(), ContainerSpec{
		Handle:     "props-box",
		Quota:      "4GB",
		Properties: map[string]string{"team": "infra", "tier": "dev"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	privateDir := filepath.Join(svc.cfg.BaseDir, c.ID, "private")
	props, err := propstore.GetAll(privateDir)
	assert.NilError(t, err)
	assert.DeepEqual(t, props, map[string]string{
		"team":            "infra",
		"tier":            "dev",
		reservedHandleKey: "props-box",
		reservedQuotaKey:  "4GB",
	})
}

func TestDestroyUnknownHandleIsNoOp(t *testing.T) {
	svc := newTestService(t)
	err := svc.Destroy("nope")
	if err != nil {
		t.Fatalf("expected Destroy of an unknown handle to be a no-op, got %v", err)
	}
}

// failingQuotaManager always fails CreateQuotaControl, to exercise the
// rollback path: every earlier step of Create must be undone.
type failingQuotaManager struct{}

func (failingQuotaManager) CreateQuotaControl(directory, limit string) (quota.Control, error) {
	return nil, cerr.New(cerr.KindQuota, "quota backend unavailable")
}

func TestCreateRollsBackOnLateFailure(t *testing.T) {
	base := t.TempDir()
	svc, err := New(Config{BaseDir: base, Quotas: failingQuotaManager{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = svc.Create(context.Background(), ContainerSpec{Handle: "rollback-me"})
	if err == nil {
		t.Fatal("expected Create to fail")
	}

	if _, ok := svc.GetByHandle("rollback-me"); ok {
		t.Fatal("failed create must not register a container")
	}

	id := ident.DeriveID("rollback-me")
	if _, err := os.Stat(filepath.Join(base, id)); !os.IsNotExist(err) {
		t.Fatalf("expected directory to be rolled back, stat err = %v", err)
	}
	if _, err := svc.cfg.Users.CreateUser(id); err != nil {
		t.Fatalf("expected user to be rolled back, CreateUser failed: %v", err)
	}
}

func TestRestoreReattachesAfterRestart(t *testing.T) {
	base := t.TempDir()
	// A real UserManager's principals outlive the process; share one fake
	// across both Service instances to model that survival, while leaving
	// the job object to be recreated fresh on restore.
	users := cuser.NewFake()

	svc1, err := New(Config{BaseDir: base, Users: users})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c, err := svc1.Create(context.Background(), ContainerSpec{Handle: "durable", Quota: "7GB"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc2, err := New(Config{BaseDir: base, Users: users})
	if err != nil {
		t.Fatalf("New (restarted): %v", err)
	}

	restored, err := svc2.Restore(context.Background(), "durable")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.ID != c.ID || restored.Handle != c.Handle {
		t.Fatalf("restored container mismatch: got %+v, want id=%s handle=%s", restored, c.ID, c.Handle)
	}
	if restored.Quota.LimitBytes() != c.Quota.LimitBytes() {
		t.Fatalf("restored quota limit = %d, want the originally created limit %d", restored.Quota.LimitBytes(), c.Quota.LimitBytes())
	}
}

func TestDiscoverAllRecoversHandleFromProperties(t *testing.T) {
	base := t.TempDir()
	users := cuser.NewFake()

	svc1, err := New(Config{BaseDir: base, Users: users})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := svc1.Create(context.Background(), ContainerSpec{Handle: "scan-me"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc2, err := New(Config{BaseDir: base, Users: users})
	if err != nil {
		t.Fatalf("New (restarted): %v", err)
	}
	if err := svc2.DiscoverAll(context.Background()); err != nil {
		t.Fatalf("DiscoverAll: %v", err)
	}

	if _, ok := svc2.GetByHandle("scan-me"); !ok {
		t.Fatal("expected DiscoverAll to re-register the container by its recorded handle")
	}
}
