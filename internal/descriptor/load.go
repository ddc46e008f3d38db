package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

// Section names.
const (
	SectionPackage = "package"
	SectionClean   = "clean"
)

// decoder decodes one raw section into a typed value.
type decoder func(target any) error

// Document is a parsed descriptor file whose sections have not been decoded yet.
type Document struct {
	Path     string
	sections map[string]decoder
}

// Has reports whether the section exists.
func (d *Document) Has(name string) bool {
	_, ok := d.sections[name]
	return ok
}

// Load reads and parses the descriptor at path. The format is chosen by file extension.
func Load(path string) (*Document, error) {
	format := strings.ToLower(filepath.Ext(path))
	if format != ".toml" && format != ".yaml" && format != ".yml" {
		return nil, foundationerrors.NewError(foundationerrors.CategoryNotConfig,
			fmt.Sprintf("'%s' is not a recognized config file", path)).
			Fatal().
			WithContext("path", path).
			Build()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		msg := "failed to read descriptor"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "descriptor not found"
		}
		return nil, foundationerrors.IOError(msg).WithContext("path", path).WithCause(err).Build()
	}

	var sections map[string]decoder
	if format == ".toml" {
		sections, err = parseTOML(data)
	} else {
		sections, err = parseYAML(data)
	}
	if err != nil {
		return nil, foundationerrors.DecodeError("failed to parse descriptor").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	return &Document{Path: path, sections: sections}, nil
}

func parseTOML(data []byte) (map[string]decoder, error) {
	var raw map[string]toml.Primitive
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw)
	if err != nil {
		return nil, err
	}
	sections := make(map[string]decoder, len(raw))
	for name, prim := range raw {
		sections[name] = func(target any) error {
			return md.PrimitiveDecode(prim, target)
		}
	}
	return sections, nil
}

func parseYAML(data []byte) (map[string]decoder, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	sections := make(map[string]decoder, len(raw))
	for name, node := range raw {
		sections[name] = func(target any) error {
			return node.Decode(target)
		}
	}
	return sections, nil
}

// DecodeSection decodes the named section of doc into a T.
func DecodeSection[T any](doc *Document, name string) (T, error) {
	var out T
	decode, ok := doc.sections[name]
	if !ok {
		return out, foundationerrors.NewError(foundationerrors.CategoryMissingSection,
			fmt.Sprintf("descriptor has no [%s] section", name)).
			Fatal().
			WithContext("path", doc.Path).
			WithContext("section", name).
			Build()
	}
	if err := decode(&out); err != nil {
		return out, foundationerrors.DecodeError(fmt.Sprintf("failed to decode [%s] section", name)).
			WithContext("path", doc.Path).
			WithContext("section", name).
			WithCause(err).
			Build()
	}
	return out, nil
}

// Package decodes the [package] section.
func (d *Document) Package() (*PackageDescriptor, error) {
	desc, err := DecodeSection[PackageDescriptor](d, SectionPackage)
	if err != nil {
		return nil, err
	}
	desc.BuildDate = ""
	return &desc, nil
}

// Clean decodes the [clean] section.
func (d *Document) Clean() (*CleanDescriptor, error) {
	desc, err := DecodeSection[CleanDescriptor](d, SectionClean)
	if err != nil {
		return nil, err
	}
	return &desc, nil
}
