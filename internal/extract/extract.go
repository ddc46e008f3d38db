// Package extract unpacks source archives into the source tree.
package extract

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

// Format is the container format of a source file.
type Format string

const (
	FormatGzip    Format = "gzip"
	FormatXZ      Format = "xz"
	FormatZstd    Format = "zstd"
	FormatTar     Format = "tar"
	FormatUnknown Format = "unknown"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	tarMagic  = []byte("ustar")
)

const tarMagicOffset = 257

func sniff(br *bufio.Reader) Format {
	head, _ := br.Peek(tarMagicOffset + len(tarMagic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return FormatGzip
	case bytes.HasPrefix(head, xzMagic):
		return FormatXZ
	case bytes.HasPrefix(head, zstdMagic):
		return FormatZstd
	case len(head) >= tarMagicOffset+len(tarMagic) && bytes.Equal(head[tarMagicOffset:], tarMagic):
		return FormatTar
	default:
		return FormatUnknown
	}
}

// Detect reports the format of the file at path from its leading bytes.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, foundationerrors.IOError("failed to open source file").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	defer func() { _ = f.Close() }()
	return sniff(bufio.NewReader(f)), nil
}

// IsArchive reports whether f is a format Extract understands.
func (f Format) IsArchive() bool {
	return f != FormatUnknown
}

// Extract unpacks the archive at path into dest and returns the number of entries written.
// Gzip is tried first, then xz and zstd; anything else is read as an uncompressed tar stream.
func Extract(path, dest string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, foundationerrors.IOError("failed to open archive").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	format := sniff(br)
	var stream io.Reader = br
	switch format {
	case FormatGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return 0, extractError(path, format, err)
		}
		defer func() { _ = gz.Close() }()
		stream = gz
	case FormatXZ:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return 0, extractError(path, format, err)
		}
		stream = xzr
	case FormatZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return 0, extractError(path, format, err)
		}
		defer zr.Close()
		stream = zr
	default:
		format = FormatTar
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, foundationerrors.IOError("failed to create source tree").
			WithContext("path", dest).
			WithCause(err).
			Build()
	}
	n, err := untar(stream, dest)
	if err != nil {
		return n, extractError(path, format, err)
	}
	return n, nil
}

func extractError(path string, format Format, err error) error {
	return foundationerrors.WrapError(err, foundationerrors.CategoryExtract, "failed to extract archive").
		Fatal().
		WithContext("path", path).
		WithContext("format", string(format)).
		Build()
}

func untar(r io.Reader, dest string) (int, error) {
	tr := tar.NewReader(r)
	count := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}

		target, err := securejoin.SecureJoin(dest, hdr.Name)
		if err != nil {
			return count, err
		}
		mode := hdr.FileInfo().Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o700); err != nil {
				return count, err
			}
			if err := os.Chmod(target, mode|0o700); err != nil {
				return count, err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, mode); err != nil {
				return count, err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return count, err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return count, err
			}
		case tar.TypeLink:
			oldname, err := securejoin.SecureJoin(dest, hdr.Linkname)
			if err != nil {
				return count, err
			}
			_ = os.Remove(target)
			if err := os.Link(oldname, target); err != nil {
				return count, err
			}
		default:
			// pax global headers, devices and fifos are not part of a source tree
			continue
		}
		count++
	}
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(target, mode)
}
