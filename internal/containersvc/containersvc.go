// Package containersvc implements the Container Service (§4.6): the
// transactional orchestrator that turns the capability interfaces
// (UserManager, FileSystemManager, JobObject, QuotaManager,
// ContainerHostService) into a running Container, and tears one back down
// again.
package containersvc

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"keep/internal/cdir"
	"keep/internal/cerr"
	"keep/internal/constrained"
	"keep/internal/container"
	"keep/internal/containerhost"
	"keep/internal/cuser"
	"keep/internal/envblock"
	"keep/internal/ident"
	"keep/internal/jobobject"
	"keep/internal/procrun"
	"keep/internal/propstore"
	"keep/internal/quota"
	"keep/internal/undo"
)

// reservedHandleKey stores the caller-visible handle inside a container's
// own properties.json, keyed under its id-named directory. Directory names
// are ids (derived, stable), not handles (caller-chosen, may collide case-
// insensitively), so recovering the handle after a process restart means
// reading it back out of the one place it was persisted.
const reservedHandleKey = "__handle"

// reservedQuotaKey stores the resolved quota limit (after DefaultQuota
// substitution) alongside the handle, so restore can recover the limit the
// container was actually created with instead of silently falling back to
// whatever DefaultQuota happens to be configured at restore time.
const reservedQuotaKey = "__quota"

// Config wires the Container Service to its capability implementations.
// Users, Jobs and Quotas left nil fall back to in-memory fakes and Hosts to
// an in-process launcher, so a Service can be constructed for tests with a
// zero Config plus a BaseDir. A nil FS means no ACLs are applied.
type Config struct {
	BaseDir          string
	AdminPrincipal   string
	ServicePrincipal string
	DefaultQuota     string
	DefaultEnv       map[string]string

	// DefaultsFile, if set, is a YAML file of provisioning defaults loaded
	// by New before any hardcoded fallback is applied. See Defaults.
	DefaultsFile string

	Users  cuser.Manager
	FS     cdir.FileSystemManager
	Jobs   jobobject.Manager
	Quotas quota.Manager
	Hosts  containerhost.HostLauncher

	Logger *log.Logger
}

// ContainerSpec describes a container to create.
type ContainerSpec struct {
	// Handle is the caller-chosen name. If empty, one is generated.
	Handle     string
	BindMounts []cdir.BindMount
	Properties map[string]string
	Quota      string
	Env        []string
}

// entry is a registry slot. c is nil while a Create for this handle is
// still running its provisioning I/O, reserving the key so a second,
// concurrent Create under the same handle collides immediately instead of
// racing past the duplicate check.
type entry struct {
	id string
	c  *container.Container
}

// Service is the Container Service.
type Service struct {
	cfg Config

	mu      sync.RWMutex
	byLower map[string]*entry // strings.ToLower(handle) -> entry

	logger *log.Logger
}

// New constructs a Service from cfg, filling unset capabilities as Config
// describes and any unset string with a sane default.
func New(cfg Config) (*Service, error) {
	if cfg.BaseDir == "" {
		return nil, cerr.New(cerr.KindInvalidInput, "BaseDir is required")
	}
	if cfg.DefaultsFile != "" {
		d, err := LoadDefaults(cfg.DefaultsFile)
		if err != nil {
			return nil, err
		}
		cfg = d.Apply(cfg)
	}
	if cfg.AdminPrincipal == "" {
		cfg.AdminPrincipal = "Administrators"
	}
	if cfg.ServicePrincipal == "" {
		cfg.ServicePrincipal = "keep-svc"
	}
	if cfg.DefaultQuota == "" {
		cfg.DefaultQuota = "1GB"
	}
	if cfg.Users == nil {
		cfg.Users = cuser.NewFake()
	}
	if cfg.Jobs == nil {
		cfg.Jobs = jobobject.NewFake()
	}
	if cfg.Quotas == nil {
		cfg.Quotas = quota.NewFake()
	}
	if cfg.Hosts == nil {
		// Dot-prefixed so DiscoverAll's directory scan (which otherwise
		// treats every BaseDir entry as a container id) skips it.
		cfg.Hosts = containerhost.NewInProcessLauncher(filepath.Join(cfg.BaseDir, ".sockets"))
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[containersvc] ", log.LstdFlags|log.Lmsgprefix)
	}

	if err := os.MkdirAll(cfg.BaseDir, 0o750); err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "create base directory")
	}

	return &Service{cfg: cfg, byLower: make(map[string]*entry), logger: cfg.Logger}, nil
}

// Create provisions a new container per §4.6's creation sequence, rolling
// back every already-completed step if a later one fails. The registry lock
// covers only the duplicate-check-and-reserve and the final fill-in; the
// provisioning I/O itself (user/directory/job/host/quota setup) runs
// unlocked, so two concurrent creates under different handles proceed in
// parallel.
func (s *Service) Create(ctx context.Context, spec ContainerSpec) (*container.Container, error) {
	handle := spec.Handle
	if handle == "" {
		h, err := ident.GenerateHandle()
		if err != nil {
			return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "generate handle")
		}
		handle = h
	}
	key := strings.ToLower(handle)
	id := ident.DeriveID(handle)

	s.mu.Lock()
	if _, exists := s.byLower[key]; exists {
		s.mu.Unlock()
		return nil, cerr.Newf(cerr.KindResourceExists, "container %q already exists", handle)
	}
	s.byLower[key] = &entry{id: id}
	s.mu.Unlock()

	u := undo.New()
	c, err := s.create(ctx, id, handle, spec, u)
	if err != nil {
		s.mu.Lock()
		delete(s.byLower, key)
		s.mu.Unlock()

		undoErrs := u.UndoAll()
		if len(undoErrs) > 0 {
			msgs := make([]string, len(undoErrs))
			for i, e := range undoErrs {
				msgs[i] = e.Error()
			}
			s.logger.Printf("create %s failed (%v); rollback also failed: %s", handle, err, strings.Join(msgs, "; "))
		} else {
			s.logger.Printf("create %s failed: %v", handle, err)
		}
		return nil, cerr.NewAggregateError(err, undoErrs)
	}

	s.mu.Lock()
	s.byLower[key].c = c
	s.mu.Unlock()
	s.logger.Printf("created container %s (id=%s)", handle, id)
	return c, nil
}

func (s *Service) create(ctx context.Context, id, handle string, spec ContainerSpec, u *undo.Stack) (*container.Container, error) {
	user, err := s.cfg.Users.CreateUser(id)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindResourceExists, "create container user")
	}
	u.Push(func() error { return s.cfg.Users.DeleteUser(id) })

	dir := cdir.New(filepath.Join(s.cfg.BaseDir, id), s.cfg.FS)
	if err := dir.CreateSubdirectories(s.cfg.AdminPrincipal, s.cfg.ServicePrincipal, id); err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "create container directory")
	}
	u.Push(dir.Destroy)

	if err := dir.CreateBindMounts(spec.BindMounts, id); err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "create bind mounts")
	}

	job, err := s.cfg.Jobs.Create(id)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "create job object")
	}
	u.Push(job.Dispose)

	client, err := s.cfg.Hosts.StartHost(ctx, id, dir.Root, job, user)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "start container host")
	}
	u.Push(func() error { return s.cfg.Hosts.StopHost(id) })

	runner := constrained.New(client)
	u.Push(runner.Dispose)

	limit := spec.Quota
	if limit == "" {
		limit = s.cfg.DefaultQuota
	}
	q, err := s.cfg.Quotas.CreateQuotaControl(dir.Volume(), limit)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindInvalidInput, "create quota control")
	}
	u.Push(q.Release)

	props := make(map[string]string, len(spec.Properties)+2)
	for k, v := range spec.Properties {
		props[k] = v
	}
	props[reservedHandleKey] = handle
	props[reservedQuotaKey] = limit
	privateDir, err := dir.MapPrivatePath("")
	if err != nil {
		return nil, err
	}
	if err := propstore.SetProperties(privateDir, props); err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "persist container properties")
	}

	env := envblock.ForUser(map[string]string{
		"CONTAINER_ID":     id,
		"CONTAINER_HANDLE": handle,
	})
	if len(s.cfg.DefaultEnv) > 0 {
		env = envblock.Merge(env, envblock.FromMap(s.cfg.DefaultEnv))
	}
	if len(spec.Env) > 0 {
		env = envblock.Merge(env, spec.Env)
	}

	return container.New(id, handle, user, dir, job, client, runner, q, env), nil
}

// Destroy tears down the named container: stops its host agent, disposes
// its runner/job/quota/directory via Container.Destroy, then deletes its
// user. An unknown handle is a no-op.
func (s *Service) Destroy(handle string) error {
	key := strings.ToLower(handle)

	s.mu.Lock()
	e, ok := s.byLower[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if e.c == nil {
		s.mu.Unlock()
		return cerr.Newf(cerr.KindInvalidOperation, "container %q is still being created", handle)
	}
	delete(s.byLower, key)
	s.mu.Unlock()

	var errs []error
	if err := s.cfg.Hosts.StopHost(e.id); err != nil {
		errs = append(errs, err)
	}
	if err := e.c.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := s.cfg.Users.DeleteUser(e.id); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return cerr.Newf(cerr.KindAggregate, "destroy %s: %s", handle, strings.Join(msgs, "; "))
	}
	s.logger.Printf("destroyed container %s (id=%s)", handle, e.id)
	return nil
}

// Restore re-attaches to a container that already exists on disk (its
// directory, user, and properties survive a process restart). Its job
// object is recreated fresh; no host agent is started (see restore).
func (s *Service) Restore(ctx context.Context, handle string) (*container.Container, error) {
	return s.restoreAndRegister(ident.DeriveID(handle), handle)
}

// restoreAndRegister restores the container at base/id (the directory is
// always named by id, not handle) and, on success, registers it under
// handle in the live registry. If a container is already registered under
// handle it is returned as-is.
func (s *Service) restoreAndRegister(id, handle string) (*container.Container, error) {
	key := strings.ToLower(handle)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byLower[key]; ok {
		if e.c == nil {
			return nil, cerr.Newf(cerr.KindInvalidOperation, "container %q is still being created", handle)
		}
		return e.c, nil
	}

	c, err := s.restore(id, handle)
	if err != nil {
		return nil, err
	}

	s.byLower[key] = &entry{id: id, c: c}
	s.logger.Printf("restored container %s (id=%s)", handle, id)
	return c, nil
}

// restore reattaches to a container whose process died with the prior run:
// user, directory, and a fresh job object (by name) are recovered, but no
// host agent is started, so the container comes back in a degraded,
// queryable-only mode. It uses the unconstrained Process Runner directly in
// place of the Constrained Process Runner, with an empty environment since
// there is no live host agent session to derive one from.
func (s *Service) restore(id, handle string) (*container.Container, error) {
	root := filepath.Join(s.cfg.BaseDir, id)
	if _, err := os.Stat(root); err != nil {
		return nil, cerr.Newf(cerr.KindResourceMissing, "no container directory for %q", handle)
	}

	user, err := s.cfg.Users.Restore(id)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindResourceMissing, "restore container user")
	}

	dir := cdir.New(root, s.cfg.FS)
	privateDir, err := dir.MapPrivatePath("")
	if err != nil {
		return nil, err
	}
	props, err := propstore.GetAll(privateDir)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "read container properties")
	}

	job, err := s.cfg.Jobs.Create(id)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "recreate job object")
	}

	limit := props[reservedQuotaKey]
	if limit == "" {
		limit = s.cfg.DefaultQuota
	}
	q, err := s.cfg.Quotas.CreateQuotaControl(dir.Volume(), limit)
	if err != nil {
		job.Dispose()
		return nil, cerr.Wrap(err, cerr.KindInvalidInput, "recreate quota control")
	}

	runner := procrun.NewLocal()

	return container.New(id, handle, user, dir, job, nil, runner, q, nil), nil
}

// DiscoverAll scans BaseDir for container directories left over from a
// prior process and restores each one. A directory whose properties.json
// still carries its reserved handle entry is restored under that handle;
// one that doesn't (state written before this recovery mechanism existed,
// or written by a version that predates it) is restored under its raw id
// instead, logged as degraded since its original caller-chosen handle is
// unrecoverable.
func (s *Service) DiscoverAll(ctx context.Context) error {
	entries, err := os.ReadDir(s.cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return cerr.Wrap(err, cerr.KindHostUnavailable, "scan base directory")
	}

	for _, d := range entries {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		id := d.Name()
		privateDir := filepath.Join(s.cfg.BaseDir, id, "private")
		props, err := propstore.GetAll(privateDir)
		if err != nil {
			s.logger.Printf("skip %s: %v", id, err)
			continue
		}

		handle, ok := props[reservedHandleKey]
		if !ok {
			handle = id
			s.logger.Printf("no recorded handle for %s; restoring under its id", id)
		}

		if _, err := s.restoreAndRegister(id, handle); err != nil {
			s.logger.Printf("restore %s (id=%s) failed: %v", handle, id, err)
		}
	}
	return nil
}

// GetByHandle looks up a live container by its caller-visible handle,
// case-insensitively. A handle whose Create is still in flight is reported
// as not found.
func (s *Service) GetByHandle(handle string) (*container.Container, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byLower[strings.ToLower(handle)]
	if !ok || e.c == nil {
		return nil, false
	}
	return e.c, true
}

// GetContainers returns every live container. Handles whose Create is still
// in flight are omitted.
func (s *Service) GetContainers() []*container.Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*container.Container, 0, len(s.byLower))
	for _, e := range s.byLower {
		if e.c == nil {
			continue
		}
		out = append(out, e.c)
	}
	return out
}

// GetHandles returns the handle of every live container. Handles whose
// Create is still in flight are omitted.
func (s *Service) GetHandles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byLower))
	for _, e := range s.byLower {
		if e.c == nil {
			continue
		}
		out = append(out, e.c.Handle)
	}
	return out
}
