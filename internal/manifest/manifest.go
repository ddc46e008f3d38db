// Package manifest records every entry of a finished package tree.
package manifest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgbuilder/internal/integrity"
)

// FileName is the manifest's name inside the package tree.
const FileName = "MANIFEST"

// EntryType distinguishes manifest entries.
type EntryType string

const (
	TypeDir     EntryType = "dir"
	TypeFile    EntryType = "file"
	TypeSymlink EntryType = "symlink"
	TypeOther   EntryType = "other"
)

// Entry describes one node of the package tree. Size, SHA256 and Timestamp are set for
// regular files only.
type Entry struct {
	Path      string     `json:"path"`
	Type      EntryType  `json:"type"`
	Mode      string     `json:"mode"`
	Size      *int64     `json:"size,omitempty"`
	SHA256    string     `json:"sha256,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Manifest is the ordered list of entries, in walk order.
type Manifest struct {
	Entries []Entry
}

// Build walks root and records every node below it. now is stamped on every file entry.
func Build(root string, now time.Time) (*Manifest, error) {
	generated := now.UTC()
	m := &Manifest{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		entry, err := newEntry(root, path, d, generated)
		if err != nil {
			return err
		}
		m.Entries = append(m.Entries, entry)
		return nil
	})
	if err != nil {
		if _, ok := foundationerrors.AsClassified(err); ok {
			return nil, err
		}
		return nil, foundationerrors.WalkError("failed to walk package tree").
			WithContext("path", root).
			WithCause(err).
			Build()
	}
	return m, nil
}

// RelPath renders path relative to root with a leading "./".
func RelPath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return "./" + filepath.ToSlash(rel), nil
}

func newEntry(root, path string, d fs.DirEntry, generated time.Time) (Entry, error) {
	rel, err := RelPath(root, path)
	if err != nil {
		return Entry{}, err
	}
	info, err := d.Info()
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{Path: rel, Mode: fmt.Sprintf("%04o", PosixMode(info.Mode()))}

	switch {
	case d.IsDir():
		entry.Type = TypeDir
	case d.Type().IsRegular():
		sum, err := integrity.Sum(path, integrity.SHA256)
		if err != nil {
			return Entry{}, err
		}
		size := info.Size()
		entry.Type = TypeFile
		entry.Size = &size
		entry.SHA256 = sum
		entry.Timestamp = &generated
	case d.Type()&fs.ModeSymlink != 0:
		entry.Type = TypeSymlink
	default:
		entry.Type = TypeOther
	}
	return entry, nil
}

// PosixMode returns the permission bits of m together with its setuid, setgid and sticky
// bits, in their POSIX positions.
func PosixMode(m fs.FileMode) uint32 {
	mode := uint32(m.Perm())
	if m&fs.ModeSetuid != 0 {
		mode |= 0o4000
	}
	if m&fs.ModeSetgid != 0 {
		mode |= 0o2000
	}
	if m&fs.ModeSticky != 0 {
		mode |= 0o1000
	}
	return mode
}

// ToJSON serializes the manifest entries.
func (m *Manifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m.Entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// FromJSON deserializes manifest entries.
func FromJSON(data []byte) (*Manifest, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &Manifest{Entries: entries}, nil
}

// Write stores the manifest at path.
func (m *Manifest) Write(path string) error {
	data, err := m.ToJSON()
	if err != nil {
		return foundationerrors.NewError(foundationerrors.CategoryEncode, "failed to encode manifest").
			Fatal().
			WithCause(err).
			Build()
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return foundationerrors.IOError("failed to write manifest").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	return nil
}

// Files returns the file entries keyed by path.
func (m *Manifest) Files() map[string]Entry {
	out := make(map[string]Entry)
	for _, e := range m.Entries {
		if e.Type == TypeFile {
			out[e.Path] = e
		}
	}
	return out
}
