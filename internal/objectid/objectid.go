// Package objectid names bucket+key pairs and derives the staging paths
// a processor config implies around a given key.
package objectid

import (
	"path"
	"strings"
)

// ID identifies an object by its bucket (namespace) and POSIX-style key
// (path). Paths never begin with "/".
type ID struct {
	Namespace string
	Path      string
}

// New builds an ID, stripping any leading slash from path.
func New(namespace, p string) ID {
	return ID{Namespace: namespace, Path: strings.TrimPrefix(p, "/")}
}

// Equal reports structural equality.
func (id ID) Equal(other ID) bool {
	return id.Namespace == other.Namespace && id.Path == other.Path
}

// Parent returns the longest prefix of Path before the final "/", or ""
// if Path has no "/".
func (id ID) Parent() string {
	i := strings.LastIndex(id.Path, "/")
	if i < 0 {
		return ""
	}
	return id.Path[:i]
}

// Filename returns the trailing path segment.
func (id ID) Filename() string {
	i := strings.LastIndex(id.Path, "/")
	if i < 0 {
		return id.Path
	}
	return id.Path[i+1:]
}

// Rename returns a copy of id with its final path segment replaced.
func (id ID) Rename(newBasename string) ID {
	parent := id.Parent()
	if parent == "" {
		return ID{Namespace: id.Namespace, Path: newBasename}
	}
	return ID{Namespace: id.Namespace, Path: parent + "/" + newBasename}
}

// Join appends name as a child of id's path.
func (id ID) Join(name string) ID {
	return ID{Namespace: id.Namespace, Path: path.Join(id.Path, name)}
}

// String returns "namespace/path" for logging.
func (id ID) String() string {
	return id.Namespace + "/" + id.Path
}

// GlobMatches reports whether dataObj's filename matches glob and dataObj's
// parent equals the config's inbox path (cfgInboxPath).
func GlobMatches(dataObj ID, cfgInboxPath, glob string) (bool, error) {
	if dataObj.Parent() != cfgInboxPath {
		return false, nil
	}
	return path.Match(glob, dataObj.Filename())
}

// StagePaths describes the derived inbox/processing/archive/error
// directories for a config object, relative to that config's parent.
type StagePaths struct {
	Inbox      string
	Processing string
	Archive    string
	Error      string
}

// DirPath returns parent(configObj)/dirName, optionally joined with the
// data object's filename.
func DirPath(configObj ID, dirName string, dataObj *ID) ID {
	base := configObj.Parent()
	var dir string
	if base == "" {
		dir = dirName
	} else {
		dir = base + "/" + dirName
	}
	id := ID{Namespace: configObj.Namespace, Path: dir}
	if dataObj != nil {
		id = id.Join(dataObj.Filename())
	}
	return id
}
