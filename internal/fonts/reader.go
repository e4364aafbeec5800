package fonts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font/sfnt"
)

// Reader extracts naming information from a font file.
type Reader interface {
	Read(path string) (Font, error)
}

// SFNTReader reads the name table of TrueType/OpenType files.
type SFNTReader struct{}

// Read returns the full name, family and subfamily stored in the font. Records stored
// as UTF-16BE are decoded by the sfnt parser.
func (SFNTReader) Read(path string) (Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Font{}, err
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return Font{}, fmt.Errorf("parse font %s: %w", path, err)
	}

	var buf sfnt.Buffer
	family, err := f.Name(&buf, sfnt.NameIDFamily)
	if err != nil {
		return Font{}, fmt.Errorf("font %s: family name: %w", path, err)
	}
	subfamily, err := f.Name(&buf, sfnt.NameIDSubfamily)
	if err != nil {
		return Font{}, fmt.Errorf("font %s: subfamily name: %w", path, err)
	}
	name, err := f.Name(&buf, sfnt.NameIDFull)
	if err != nil && !errors.Is(err, sfnt.ErrNotFound) {
		return Font{}, fmt.Errorf("font %s: full name: %w", path, err)
	}

	return Font{
		Name:      name,
		Family:    family,
		Subfamily: ParseSubfamily(subfamily),
		File:      path,
	}, nil
}

// IsFontFile reports whether the extension is one LoadDirectory picks up.
func IsFontFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}

// LoadDirectory reads every font file directly inside dir.
func LoadDirectory(dir string, reader Reader) ([]Font, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var fonts []Font
	for _, entry := range entries {
		if entry.IsDir() || !IsFontFile(entry.Name()) {
			continue
		}
		f, err := reader.Read(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		fonts = append(fonts, f)
	}
	return fonts, nil
}

// Check resolves the fonts needed by one subtitle file against a font directory.
func Check(fontDir, subtitlePath string, reader Reader) ([]Font, error) {
	available, err := LoadDirectory(fontDir, reader)
	if err != nil {
		return nil, err
	}
	styles, err := StylesFromFile(subtitlePath)
	if err != nil {
		return nil, err
	}
	return Resolve(available, styles)
}
