package module

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sisyphus-worker/internal/command"
	"github.com/sisyphus-worker/internal/executor"
	"github.com/sisyphus-worker/internal/fileops"
	"github.com/sisyphus-worker/internal/fonts"
	"github.com/sisyphus-worker/pkg/logger"
)

const MkvmergeName = "mkvmerge"

const (
	mkvmergeProgress = `Progress: (\d+)%`
	fontMimeType     = "font/sfnt"
)

type mkvmergeConfig struct {
	OutputFile  string          `json:"output_file"`
	Options     command.Options `json:"options"`
	Sources     []mkvSource     `json:"sources"`
	Tracks      []mkvTrack      `json:"tracks"`
	Attachments []mkvAttachment `json:"attachments"`
}

// mkvSource is an input file with options rendered before it, such as
// {"audio_tracks": "1,2"}. A bare string is a file without options.
type mkvSource struct {
	File    string          `json:"file"`
	Options command.Options `json:"options"`
}

func (s *mkvSource) UnmarshalJSON(data []byte) error {
	var file string
	if err := json.Unmarshal(data, &file); err == nil {
		*s = mkvSource{File: file}
		return nil
	}
	type plain mkvSource
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("source must be a path or {file, options}: %w", err)
	}
	*s = mkvSource(p)
	return nil
}

// mkvTrack holds per-track options of one source; each renders as
// "--<key> <track>:<value>", or "--<key> <track>" for flags.
type mkvTrack struct {
	Source  int                `json:"source"`
	Track   command.TrackIndex `json:"track"`
	Options command.Options    `json:"options"`
}

func (t mkvTrack) tokens() []string {
	tokens := make([]string, 0, len(t.Options)*2)
	for _, opt := range t.Options {
		tokens = append(tokens, command.Flag(opt.Key))
		switch opt.Value.(type) {
		case nil, bool:
			tokens = append(tokens, string(t.Track))
		default:
			tokens = append(tokens, string(t.Track)+":"+command.FormatValue(opt.Value))
		}
	}
	return tokens
}

type mkvAttachment struct {
	File        string `json:"file"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	Description string `json:"description"`
}

func (a mkvAttachment) tokens() []string {
	name := a.Name
	if name == "" {
		name = filepath.Base(a.File)
	}
	tokens := []string{"--attachment-name", name, "--attachment-mime-type", a.MimeType}
	if a.Description != "" {
		tokens = append(tokens, "--attachment-description", a.Description)
	}
	return append(tokens, "--attach-file", a.File)
}

// Mkvmerge multiplexes tracks of several sources into one Matroska file and
// attaches the fonts used by its subtitle sources.
type Mkvmerge struct {
	cfg         mkvmergeConfig
	env         Env
	binary      string
	attachments []mkvAttachment
	validated   bool
}

func newMkvmerge(raw json.RawMessage, env Env) (Module, error) {
	var cfg mkvmergeConfig
	if err := decodeConfig(MkvmergeName, raw, &cfg); err != nil {
		return nil, err
	}
	return &Mkvmerge{cfg: cfg, env: env}, nil
}

func (m *Mkvmerge) Name() string { return MkvmergeName }

func (m *Mkvmerge) Validate(ctx context.Context) error {
	m.validated = false
	binary, err := requireBinary(m.env, MkvmergeName, m.env.binaries().Mkvmerge)
	if err != nil {
		return err
	}
	m.binary = binary

	if len(m.cfg.Sources) == 0 {
		return &ValidationError{Module: MkvmergeName, Message: "There are no source files specified."}
	}
	if len(m.cfg.Tracks) == 0 {
		return &ValidationError{Module: MkvmergeName, Message: "There are no tracks specified."}
	}
	if m.cfg.OutputFile == "" {
		return &ValidationError{Module: MkvmergeName, Message: "No output file specified."}
	}
	for _, src := range m.cfg.Sources {
		if err := requireFile(MkvmergeName, src.File, "source file"); err != nil {
			return err
		}
	}
	for _, t := range m.cfg.Tracks {
		if t.Source < 0 || t.Source >= len(m.cfg.Sources) {
			return &ValidationError{Module: MkvmergeName, Message: fmt.Sprintf("Track %s references source %d but only %d sources are defined.", t.Track, t.Source, len(m.cfg.Sources))}
		}
	}

	attachments := make([]mkvAttachment, 0, len(m.cfg.Attachments))
	for _, a := range m.cfg.Attachments {
		if err := requireFile(MkvmergeName, a.File, "attachment"); err != nil {
			return err
		}
		if a.MimeType == "" {
			a.MimeType = detectMimeType(a.File)
		}
		attachments = append(attachments, a)
	}

	fontAttachments, err := m.resolveFonts()
	if err != nil {
		return err
	}
	m.attachments = append(attachments, fontAttachments...)
	m.validated = true
	return nil
}

// resolveFonts matches the styles of every .ass/.ssa source against the font
// directory. Any unmatched style fails validation before mkvmerge is started.
func (m *Mkvmerge) resolveFonts() ([]mkvAttachment, error) {
	if m.env.Config == nil || !m.env.Config.Mkvmerge.EnableFontAttachments {
		return nil, nil
	}

	dir := m.env.Config.Mkvmerge.FontDirectory
	if dir == "" {
		return nil, &ConfigurationError{Module: MkvmergeName, Message: "The configuration does not have the font directory defined."}
	}
	if !fileops.IsDir(dir) {
		return nil, &ConfigurationError{Module: MkvmergeName, Message: fmt.Sprintf("The font directory '%s' doesn't exist.", dir)}
	}

	reader := m.env.Fonts
	if reader == nil {
		reader = fonts.SFNTReader{}
	}
	available, err := fonts.LoadDirectory(dir, reader)
	if err != nil {
		return nil, &ValidationError{Module: MkvmergeName, Message: fmt.Sprintf("Could not read the font directory '%s': %v", dir, err), Err: err}
	}
	if len(available) == 0 {
		return nil, &ValidationError{Module: MkvmergeName, Message: fmt.Sprintf("There are no fonts in the font directory '%s'.", dir)}
	}

	var needed []fonts.Font
	for _, src := range m.cfg.Sources {
		if !fileops.HasExtension(src.File, ".ass", ".ssa") {
			continue
		}
		styles, err := fonts.StylesFromFile(src.File)
		if err != nil {
			return nil, &ValidationError{Module: MkvmergeName, Message: err.Error(), Err: err}
		}
		resolved, err := fonts.Resolve(available, styles)
		if err != nil {
			var fnf *fonts.FontNotFoundError
			if errors.As(err, &fnf) {
				return nil, &ValidationError{
					Module:  MkvmergeName,
					Message: fmt.Sprintf("Could not find font for style '%s' in '%s': font => '%s/%s'", fnf.Style.Name, filepath.Base(src.File), fnf.Style.Family, fnf.Style.Subfamily),
					Err:     err,
				}
			}
			return nil, &ValidationError{Module: MkvmergeName, Message: err.Error(), Err: err}
		}
		needed = append(needed, resolved...)
	}

	needed = fonts.Dedupe(needed)
	attachments := make([]mkvAttachment, 0, len(needed))
	for _, f := range needed {
		attachments = append(attachments, mkvAttachment{
			File:     absPath(f.File),
			Name:     filepath.Base(f.File),
			MimeType: fontMimeType,
		})
	}
	if len(attachments) > 0 {
		logger.Infof("🔤 [%s -> %s] Attaching %d font(s)", m.env.JobTitle, MkvmergeName, len(attachments))
	}
	return attachments, nil
}

func detectMimeType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

// Command builds the mkvmerge invocation. Validate must have succeeded.
func (m *Mkvmerge) Command() executor.Command {
	args := []string{"-o", m.cfg.OutputFile}
	args = append(args, command.Compile(m.cfg.Options)...)
	for i, src := range m.cfg.Sources {
		args = append(args, command.Compile(src.Options)...)
		for _, t := range m.cfg.Tracks {
			if t.Source == i {
				args = append(args, t.tokens()...)
			}
		}
		args = append(args, src.File)
	}
	for _, a := range m.attachments {
		args = append(args, a.tokens()...)
	}
	cmd := executor.Command{Path: m.binary, Args: args}
	// mkvmerge exits with 1 when it only emitted warnings.
	if m.env.Config != nil && m.env.Config.Mkvmerge.AllowWarnings {
		cmd.OKExitCodes = []int{0, 1}
	}
	return cmd
}

func (m *Mkvmerge) Run(ctx context.Context) error {
	if !m.validated {
		return errNotValidated(MkvmergeName)
	}
	if err := fileops.EnsureDir(filepath.Dir(m.cfg.OutputFile)); err != nil {
		return &RunFailureError{Module: MkvmergeName, Message: fmt.Sprintf("create output directory: %v", err), Err: err}
	}
	mon := m.env.monitor(executor.NewPercentMatcher(mkvmergeProgress), 100)
	if err := m.env.Runner.Run(ctx, m.Command(), mon); err != nil {
		return runFailure(MkvmergeName, err)
	}
	return nil
}
