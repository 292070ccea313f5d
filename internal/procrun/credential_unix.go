//go:build !windows

package procrun

import "os/exec"

// applyCredential is a no-op on the portable adapter: the fake/in-memory
// UserManager (internal/cuser.FakeManager) doesn't mint real OS uid/gid
// pairs, so there is nothing to hand os/exec's SysProcAttr.Credential. A
// deployment wiring a real POSIX UserManager would resolve the container
// user's uid/gid here.
func applyCredential(cmd *exec.Cmd, cred *Credential) {}
