//go:build windows

package procrun

import "os/exec"

// applyCredential is a deliberate no-op: impersonating another logged-on
// user requires a token minted by LogonUser, which is
// internal/cuser.WindowsManager's concern (§6 treats logon tokens as a
// capability interface), not this package's. A production
// ContainerHostService adapter that needs real per-user impersonation
// would populate cmd.SysProcAttr.Token from the Credential.Token the
// UserManager produced.
func applyCredential(cmd *exec.Cmd, cred *Credential) {}
