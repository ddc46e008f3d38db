// Package archive names and writes the final uncompressed package tarball.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

// Extension is appended to every package file name.
const Extension = ".pkg.tar"

var hostArchByGOARCH = map[string]string{
	"amd64":   "x86_64",
	"386":     "i686",
	"arm":     "arm",
	"arm64":   "aarch64",
	"ppc64":   "powerpc",
	"ppc64le": "powerpc",
}

// HostArch maps the running platform to a package architecture, or "any".
func HostArch() string {
	return archFor(runtime.GOARCH)
}

func archFor(goarch string) string {
	if arch, ok := hostArchByGOARCH[goarch]; ok {
		return arch
	}
	return "any"
}

// FileName returns <name>[-<version>-<release>]-<arch>.pkg.tar. The version segment is
// only present when both version and release are set.
func FileName(name, version, release, arch string) string {
	if version != "" && release != "" {
		return fmt.Sprintf("%s-%s-%s-%s%s", name, version, release, arch, Extension)
	}
	return fmt.Sprintf("%s-%s%s", name, arch, Extension)
}

// Create packs every node below root into a tar file at out. Stored paths are relative to
// root. The file may remain, partially written, when an error is returned.
func Create(root, out string) (int, error) {
	f, err := os.Create(out)
	if err != nil {
		return 0, ioError("failed to create archive", out, err)
	}
	n, err := Write(root, f)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = ioError("failed to close archive", out, cerr)
	}
	return n, err
}

// Write streams the tree below root as tar to w and returns the number of entries written.
func Write(root string, w io.Writer) (int, error) {
	tw := tar.NewWriter(w)
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		if err := appendEntry(tw, root, path, d); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, ioError("failed to append to archive", root, err)
	}
	if err := tw.Close(); err != nil {
		return count, ioError("failed to finalize archive", root, err)
	}
	return count, nil
}

func appendEntry(tw *tar.Writer, root, path string, d fs.DirEntry) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	if info.IsDir() {
		hdr.Name += "/"
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	_, err = io.Copy(tw, src)
	return err
}

func ioError(msg, path string, err error) error {
	return foundationerrors.IOError(msg).WithContext("path", path).WithCause(err).Build()
}
