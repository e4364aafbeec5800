package fonts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const stylePrefix = "Style: "

// Positions in a V4+ style record: Name, Fontname, ..., Bold, Italic.
const (
	styleFieldFamily = 1
	styleFieldBold   = 7
	styleFieldItalic = 8
)

// ParseStyles scans an SSA/ASS document for style declarations.
func ParseStyles(r io.Reader) ([]Style, error) {
	var styles []Style
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, stylePrefix) {
			continue
		}
		style, err := parseStyleLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		styles = append(styles, style)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return styles, nil
}

// StylesFromFile reads the styles of a subtitle file.
func StylesFromFile(path string) ([]Style, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	styles, err := ParseStyles(f)
	if err != nil {
		return nil, fmt.Errorf("parse styles %s: %w", path, err)
	}
	return styles, nil
}

func parseStyleLine(line string) (Style, error) {
	fields := strings.Split(line, ",")
	if len(fields) <= styleFieldItalic {
		return Style{}, fmt.Errorf("style record has %d fields, need at least %d", len(fields), styleFieldItalic+1)
	}

	var tokens []string
	bold, err := flagField(fields[styleFieldBold])
	if err != nil {
		return Style{}, fmt.Errorf("bold field: %w", err)
	}
	if bold {
		tokens = append(tokens, "Bold")
	}
	italic, err := flagField(fields[styleFieldItalic])
	if err != nil {
		return Style{}, fmt.Errorf("italic field: %w", err)
	}
	if italic {
		tokens = append(tokens, "Italic")
	}
	if len(tokens) == 0 {
		tokens = append(tokens, "Regular")
	}

	return Style{
		Name:      strings.TrimPrefix(fields[0], stylePrefix),
		Family:    strings.TrimSpace(fields[styleFieldFamily]),
		Subfamily: NewSubfamily(tokens...),
	}, nil
}

// flagField parses an ASS boolean; any non-zero integer (usually -1) is true.
func flagField(field string) (bool, error) {
	n, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return false, err
	}
	return n != 0, nil
}
