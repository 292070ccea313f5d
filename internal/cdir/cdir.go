// Package cdir implements the Container Directory component (§4.4): the
// on-disk layout of one container, its ACLs, and path confinement.
package cdir

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"keep/internal/cerr"
)

// AccessLevel is the permission an ACL entry grants.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessReadWrite
)

// AccessEntry grants Level to Principal on a directory.
type AccessEntry struct {
	Principal string
	Level     AccessLevel
}

// FileSystemManager is the capability interface (§6) this spec abstracts
// ACL application behind; actual directory creation/removal/copy is plain
// portable file I/O handled directly by Directory below.
type FileSystemManager interface {
	ApplyACL(path string, entries []AccessEntry) error
}

// Directory owns the filesystem subtree for one container.
type Directory struct {
	Root string
	fs   FileSystemManager
}

// New constructs a Directory rooted at root, using fs to apply ACLs.
func New(root string, fs FileSystemManager) *Directory {
	return &Directory{Root: root, fs: fs}
}

const (
	subPrivate = "private"
	subBin     = "bin"
	subUser    = "user"
)

// CreateSubdirectories creates root/private/bin/user with the ACLs §4.4
// specifies: administrators and the service account always get
// read-write; the container's own user gets read on root/bin, read-write
// on user/, and nothing on private/.
func (d *Directory) CreateSubdirectories(admin, service, containerUser string) error {
	dirs := []struct {
		rel string
		acl []AccessEntry
	}{
		{"", []AccessEntry{
			{admin, AccessReadWrite}, {service, AccessReadWrite}, {containerUser, AccessRead},
		}},
		{subPrivate, []AccessEntry{
			{admin, AccessReadWrite}, {service, AccessReadWrite},
		}},
		{subBin, []AccessEntry{
			{admin, AccessReadWrite}, {service, AccessReadWrite}, {containerUser, AccessRead},
		}},
		{subUser, []AccessEntry{
			{admin, AccessReadWrite}, {service, AccessReadWrite}, {containerUser, AccessReadWrite},
		}},
	}

	for _, dir := range dirs {
		path := filepath.Join(d.Root, dir.rel)
		if err := os.MkdirAll(path, 0o750); err != nil {
			return cerr.Wrap(err, cerr.KindHostUnavailable, "create "+path)
		}
		if d.fs != nil {
			if err := d.fs.ApplyACL(path, dir.acl); err != nil {
				return cerr.Wrap(err, cerr.KindHostUnavailable, "apply ACL to "+path)
			}
		}
	}
	return nil
}

// BindMount maps a host source path to a path under the container's user
// subtree.
type BindMount struct {
	Source      string
	Destination string
}

// CreateBindMounts maps each mount's destination through MapUserPath,
// ensures its parent directory, copies the source tree into place, and
// grants containerUser read-write on the destination.
func (d *Directory) CreateBindMounts(mounts []BindMount, containerUser string) error {
	for _, mnt := range mounts {
		dest, err := d.MapUserPath(mnt.Destination)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
			return cerr.Wrap(err, cerr.KindHostUnavailable, "create bind mount parent")
		}
		if err := copyTree(mnt.Source, dest); err != nil {
			return cerr.Wrap(err, cerr.KindHostUnavailable, "copy bind mount "+mnt.Source)
		}
		if d.fs != nil {
			if err := d.fs.ApplyACL(dest, []AccessEntry{{containerUser, AccessReadWrite}}); err != nil {
				return cerr.Wrap(err, cerr.KindHostUnavailable, "apply ACL to bind mount "+dest)
			}
		}
	}
	return nil
}

// Destroy recursively removes the container's entire subtree. A
// already-absent directory is not an error.
func (d *Directory) Destroy() error {
	if err := os.RemoveAll(d.Root); err != nil {
		return cerr.Wrap(err, cerr.KindHostUnavailable, "remove container directory")
	}
	return nil
}

// Volume returns the scoping key the Quota Manager attaches a quota
// control to. Per §6, volume_resolution is none: the container root itself
// is used verbatim rather than resolved to an underlying disk volume.
func (d *Directory) Volume() string {
	return d.Root
}

// MapBinPath confines path to the bin/ subtree.
func (d *Directory) MapBinPath(path string) (string, error) { return d.mapInto(subBin, path) }

// MapPrivatePath confines path to the private/ subtree.
func (d *Directory) MapPrivatePath(path string) (string, error) { return d.mapInto(subPrivate, path) }

// MapUserPath confines path to the user/ subtree.
func (d *Directory) MapUserPath(path string) (string, error) { return d.mapInto(subUser, path) }

func (d *Directory) mapInto(subtree, path string) (string, error) {
	if isAbsoluteDriveRooted(path) {
		return path, nil
	}

	base := filepath.Join(d.Root, subtree)
	// Both '/' and '\' count as separators, so neither style can slip a ".."
	// past the confinement check below.
	sep := string(filepath.Separator)
	normalized := strings.NewReplacer("/", sep, `\`, sep).Replace(path)
	stripped := strings.TrimLeft(normalized, sep)
	joined := filepath.Join(base, stripped)
	clean := filepath.Clean(joined)

	rel, err := filepath.Rel(base, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", cerr.Newf(cerr.KindInvalidPath, "path %q escapes %s", path, subtree)
	}
	return clean, nil
}

// isAbsoluteDriveRooted reports whether path already names an absolute,
// drive-rooted location (e.g. "C:\foo" on the target platform) that should
// be passed through verbatim rather than mapped into a subtree.
func isAbsoluteDriveRooted(path string) bool {
	if len(path) >= 2 && path[1] == ':' {
		c := path[0]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	return false
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}

	if err := os.MkdirAll(dst, info.Mode()); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
