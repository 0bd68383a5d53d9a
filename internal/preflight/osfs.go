package preflight

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// OSFileSystem is the production FileSystem implementation, backed
// directly by the os and path/filepath packages.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (OSFileSystem) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// AvailableSpace reports free bytes on the filesystem backing path, via
// unix.Statfs (no portable stdlib call exists for this).
func (OSFileSystem) AvailableSpace(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("preflight: statfs %s: %w", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// DirSize walks root summing regular file sizes. Errors reading individual
// entries are skipped rather than aborting the whole walk, matching the
// best-effort nature of a preflight estimate.
func (OSFileSystem) DirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("preflight: dir size %s: %w", root, err)
	}
	return total, nil
}

// WalkDir visits every entry under root, reporting each path and whether it
// is a directory. Used by callers (e.g. a future bulk preflight over many
// jobs sharing a source tree) that need more than an aggregate size.
func (OSFileSystem) WalkDir(root string, visit func(path string, isDir bool) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return visit(path, d.IsDir())
	})
}

// FilesystemType reports the type of the filesystem backing path (e.g.
// "ext4", "xfs", "tmpfs") using the magic number unix.Statfs reports,
// falling back to "unknown" for unrecognized or non-Linux values — there is
// no portable syscall for this without cgo.
func (OSFileSystem) FilesystemType(path string) (string, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return "unknown", fmt.Errorf("preflight: statfs %s: %w", path, err)
	}
	if name, ok := filesystemMagicNames[uint32(stat.Type)]; ok {
		return name, nil
	}
	return "unknown", nil
}

// filesystemMagicNames covers the common Linux filesystem magic numbers
// from statfs(2); anything else reports "unknown" rather than guessing.
var filesystemMagicNames = map[uint32]string{
	0xEF53:     "ext4",
	0x58465342: "xfs",
	0x9123683E: "btrfs",
	0x01021994: "tmpfs",
	0x65735546: "fuse",
	0x6969:     "nfs",
}
