package fonts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const sampleASS = `[Script Info]
Title: Sample

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,52,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,-1,0,0,0,100,100,0,0,1,2,1,2,10,10,10,1
Style: Sign,Times New Roman,40,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,-1,0,0,100,100,0,0,1,2,1,2,10,10,10,1
Style: Note,Arial,40,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,1,2,10,10,10,1
Style: Shout,Arial,40,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,1,1,0,0,100,100,0,0,1,2,1,2,10,10,10,1

[Events]
Dialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,Style: not a style line
`

func TestParseStyles(t *testing.T) {
	styles, err := ParseStyles(strings.NewReader(sampleASS))
	require.NoError(t, err)
	require.Len(t, styles, 4)

	assert.Equal(t, Style{Name: "Default", Family: "Arial", Subfamily: Subfamily{"Bold"}}, styles[0])
	assert.Equal(t, Style{Name: "Sign", Family: "Times New Roman", Subfamily: Subfamily{"Italic"}}, styles[1])
	assert.Equal(t, Subfamily{"Regular"}, styles[2].Subfamily)
	assert.Equal(t, Subfamily{"Bold", "Italic"}, styles[3].Subfamily)
}

func TestParseStylesHandlesCRLF(t *testing.T) {
	doc := strings.ReplaceAll(sampleASS, "\n", "\r\n")
	styles, err := ParseStyles(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Len(t, styles, 4)
}

func TestParseStylesRejectsShortRecord(t *testing.T) {
	_, err := ParseStyles(strings.NewReader("Style: Broken,Arial,20\n"))
	assert.Error(t, err)
}

func TestNewSubfamilyNormalizes(t *testing.T) {
	assert.Equal(t, Subfamily{"Bold", "Italic"}, ParseSubfamily("Bold Oblique"))
	assert.Equal(t, Subfamily{"Italic"}, NewSubfamily("Oblique", "Italic"))
	assert.True(t, Subfamily{"Italic", "Bold"}.Equal(Subfamily{"Bold", "Italic"}))
	assert.False(t, Subfamily{"Bold"}.Equal(Subfamily{"Bold", "Italic"}))
}

func TestResolvePicksExactSubfamily(t *testing.T) {
	fonts := []Font{
		{Family: "Arial", Subfamily: Subfamily{"Bold"}, File: "a.ttf"},
		{Family: "Arial", Subfamily: Subfamily{"Regular"}, File: "b.ttf"},
	}
	styles := []Style{{Name: "Default", Family: "Arial", Subfamily: Subfamily{"Bold"}}}

	got, err := Resolve(fonts, styles)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a.ttf", got[0].File)
}

func TestResolveDedupesInFirstOccurrenceOrder(t *testing.T) {
	fonts := []Font{
		{Family: "Arial", Subfamily: Subfamily{"Regular"}, File: "arial.ttf"},
		{Family: "Verdana", Subfamily: Subfamily{"Italic"}, File: "verdana-i.ttf"},
		{Family: "Arial", Subfamily: Subfamily{"Bold"}, File: "arial-b.ttf"},
	}
	styles := []Style{
		{Name: "A", Family: "Verdana", Subfamily: Subfamily{"Italic"}},
		{Name: "B", Family: "Arial", Subfamily: Subfamily{"Regular"}},
		{Name: "C", Family: "Verdana", Subfamily: Subfamily{"Italic"}},
	}

	got, err := Resolve(fonts, styles)
	require.NoError(t, err)
	files := []string{}
	for _, f := range got {
		files = append(files, f.File)
	}
	assert.Equal(t, []string{"verdana-i.ttf", "arial.ttf"}, files)
}

func TestResolveFailsWithOffendingStyle(t *testing.T) {
	missing := Style{Name: "Sign", Family: "Comic Sans", Subfamily: Subfamily{"Regular"}}
	ambiguous := Style{Name: "Dup", Family: "Arial", Subfamily: Subfamily{"Regular"}}
	fonts := []Font{
		{Family: "Arial", Subfamily: Subfamily{"Regular"}, File: "one.ttf"},
		{Family: "Arial", Subfamily: Subfamily{"Regular"}, File: "two.ttf"},
	}

	tests := []struct {
		name       string
		style      Style
		candidates int
	}{
		{"absent", missing, 0},
		{"ambiguous", ambiguous, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(fonts, []Style{tt.style})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFontNotFound))

			var fnf *FontNotFoundError
			require.True(t, errors.As(err, &fnf))
			assert.Equal(t, tt.style, fnf.Style)
			assert.Equal(t, tt.candidates, fnf.Candidates)
			assert.Contains(t, err.Error(), tt.style.Name)
		})
	}
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]Font{{File: "a"}, {File: "b"}, {File: "a"}})
	assert.Equal(t, []Font{{File: "a"}, {File: "b"}}, got)
}

func TestSFNTReaderAndLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go-regular.ttf"), goregular.TTF, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go-bold.TTF"), gobold.TTF, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not a font"), 0o600))

	fonts, err := LoadDirectory(dir, SFNTReader{})
	require.NoError(t, err)
	require.Len(t, fonts, 2)

	byFile := map[string]Font{}
	for _, f := range fonts {
		byFile[filepath.Base(f.File)] = f
	}
	assert.Equal(t, "Go", byFile["go-regular.ttf"].Family)
	assert.Equal(t, Subfamily{"Regular"}, byFile["go-regular.ttf"].Subfamily)
	assert.Equal(t, Subfamily{"Bold"}, byFile["go-bold.TTF"].Subfamily)
	assert.NotEmpty(t, byFile["go-bold.TTF"].Name)
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go-bold.ttf"), gobold.TTF, 0o600))
	sub := filepath.Join(t.TempDir(), "episode.ass")
	require.NoError(t, os.WriteFile(sub, []byte(strings.ReplaceAll(sampleASS, "Arial", "Go")), 0o600))

	_, err := Check(dir, sub, SFNTReader{})
	require.Error(t, err)
	var fnf *FontNotFoundError
	require.True(t, errors.As(err, &fnf))
	assert.Equal(t, "Sign", fnf.Style.Name)
}
