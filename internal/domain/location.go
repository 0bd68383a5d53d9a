// Package domain holds the data model shared by every engine component:
// job definitions, locations, transfer options, invocations, snapshots,
// statistics, and settings. Nothing here talks to rsync, a database, or a
// filesystem — it is pure data plus the small amount of pure logic (string
// forms, defaults) that every consumer needs identically.
package domain

import "fmt"

// LocationKind discriminates the Location tagged variant.
type LocationKind int

const (
	LocationLocal LocationKind = iota
	LocationRemoteShell
	LocationRemoteNative
)

// Location is a tagged variant over the three ways a transfer endpoint can be
// addressed. Only the fields relevant to Kind are meaningful.
type Location struct {
	Kind LocationKind

	// Local
	Path string

	// RemoteShell (rsync over ssh: user@host:path)
	User     string
	Host     string
	Port     int
	Identity string

	// RemoteNative (rsync daemon: host::module/path)
	Module string
}

// NewLocal constructs a Local location.
func NewLocal(path string) Location {
	return Location{Kind: LocationLocal, Path: path}
}

// NewRemoteShell constructs a RemoteShell location.
func NewRemoteShell(user, host string, port int, path, identity string) Location {
	return Location{
		Kind: LocationRemoteShell, User: user, Host: host, Port: port,
		Path: path, Identity: identity,
	}
}

// NewRemoteNative constructs a RemoteNative (rsync daemon module) location.
func NewRemoteNative(host, module, path string) Location {
	return Location{Kind: LocationRemoteNative, Host: host, Module: module, Path: path}
}

// String renders the canonical form the Command Builder passes to rsync.
func (l Location) String() string {
	switch l.Kind {
	case LocationLocal:
		return l.Path
	case LocationRemoteShell:
		user := ""
		if l.User != "" {
			user = l.User + "@"
		}
		return fmt.Sprintf("%s%s:%s", user, l.Host, l.Path)
	case LocationRemoteNative:
		return fmt.Sprintf("%s::%s/%s", l.Host, l.Module, l.Path)
	default:
		return ""
	}
}

// IsLocal reports whether this location addresses the local filesystem.
func (l Location) IsLocal() bool {
	return l.Kind == LocationLocal
}

// IsRemoteShell reports whether this location is reached over ssh.
func (l Location) IsRemoteShell() bool {
	return l.Kind == LocationRemoteShell
}
