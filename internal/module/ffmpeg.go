package module

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sisyphus-worker/internal/command"
	"github.com/sisyphus-worker/internal/executor"
	"github.com/sisyphus-worker/pkg/logger"
)

const FfmpegName = "ffmpeg"

type ffmpegConfig struct {
	Sources    []string       `json:"sources"`
	OutputFile string         `json:"output_file"`
	SourceMap  []ffmpegSource `json:"source_map"`
	OutputMap  []ffmpegOutput `json:"output_map"`
}

// ffmpegSource selects input streams: "-map source[:stream_type[:stream]]".
type ffmpegSource struct {
	Source     int                `json:"source"`
	StreamType string             `json:"stream_type"`
	Stream     command.TrackIndex `json:"stream"`
}

func (s ffmpegSource) tokens() []string {
	spec := strconv.Itoa(s.Source)
	if s.StreamType != "" {
		spec += ":" + s.StreamType
	}
	if s.Stream != "" {
		spec += ":" + string(s.Stream)
	}
	return []string{"-map", spec}
}

// ffmpegOutput applies options to an output stream specifier. Profile options are
// loaded first and overlaid by inline options.
type ffmpegOutput struct {
	StreamType string             `json:"stream_type"`
	Stream     command.TrackIndex `json:"stream"`
	Profile    string             `json:"profile"`
	Options    command.Options    `json:"options"`
}

func (o ffmpegOutput) specifier() string {
	parts := make([]string, 0, 2)
	if o.StreamType != "" {
		parts = append(parts, o.StreamType)
	}
	if o.Stream != "" {
		parts = append(parts, string(o.Stream))
	}
	if len(parts) == 0 {
		return ""
	}
	return ":" + strings.Join(parts, ":")
}

// Ffmpeg encodes mapped streams of one or more inputs into a single output.
type Ffmpeg struct {
	cfg     ffmpegConfig
	env     Env
	binary  string
	outputs []command.Options // nil until Validate succeeds
}

func newFfmpeg(raw json.RawMessage, env Env) (Module, error) {
	var cfg ffmpegConfig
	if err := decodeConfig(FfmpegName, raw, &cfg); err != nil {
		return nil, err
	}
	return &Ffmpeg{cfg: cfg, env: env}, nil
}

func (f *Ffmpeg) Name() string { return FfmpegName }

func (f *Ffmpeg) Validate(ctx context.Context) error {
	f.outputs = nil
	binary, err := requireBinary(f.env, FfmpegName, f.env.binaries().Ffmpeg)
	if err != nil {
		return err
	}
	f.binary = binary

	if len(f.cfg.Sources) == 0 {
		return &ValidationError{Module: FfmpegName, Message: "No source files specified."}
	}
	if f.cfg.OutputFile == "" {
		return &ValidationError{Module: FfmpegName, Message: "No output file specified."}
	}
	for _, src := range f.cfg.Sources {
		if err := requireFile(FfmpegName, src, "input file"); err != nil {
			return err
		}
	}
	for _, m := range f.cfg.SourceMap {
		if m.Source < 0 || m.Source >= len(f.cfg.Sources) {
			return &ConfigurationError{Module: FfmpegName, Message: fmt.Sprintf("source_map references input %d but only %d sources are defined", m.Source, len(f.cfg.Sources))}
		}
	}

	outputs := make([]command.Options, len(f.cfg.OutputMap))
	for i, out := range f.cfg.OutputMap {
		opts := command.Options{}
		if out.Profile != "" {
			if f.env.Profiles == nil {
				return &ConfigurationError{Module: FfmpegName, Message: fmt.Sprintf("profile '%s' requested but no profile source is configured", out.Profile)}
			}
			profile, err := f.env.Profiles.Profile(ctx, out.Profile)
			if err != nil {
				return &ValidationError{Module: FfmpegName, Message: fmt.Sprintf("Could not load encode profile '%s': %v", out.Profile, err), Err: err}
			}
			opts = profile
		}
		outputs[i] = opts.Merge(out.Options)
	}
	f.outputs = outputs
	return nil
}

// Command builds the ffmpeg invocation. Validate must have succeeded.
func (f *Ffmpeg) Command() executor.Command {
	args := []string{"-y", "-progress", "pipe:1"}
	for _, src := range f.cfg.Sources {
		args = append(args, "-i", src)
	}
	for _, m := range f.cfg.SourceMap {
		args = append(args, m.tokens()...)
	}
	for i, out := range f.cfg.OutputMap {
		if i >= len(f.outputs) {
			break
		}
		spec := out.specifier()
		for _, opt := range f.outputs[i] {
			args = append(args, "-"+opt.Key+spec)
			switch opt.Value.(type) {
			case nil, bool:
				continue
			}
			args = append(args, command.FormatValue(opt.Value))
		}
	}
	args = append(args, f.cfg.OutputFile)
	return executor.Command{Path: f.binary, Args: args}
}

func (f *Ffmpeg) Run(ctx context.Context) error {
	if f.outputs == nil {
		return errNotValidated(FfmpegName)
	}
	var total int64
	if f.env.Probe != nil {
		info, err := f.env.Probe.Probe(ctx, f.cfg.Sources[0])
		if err == nil {
			total, err = info.VideoFrames()
		}
		if err != nil {
			logger.Warnf("⚠️ [%s -> %s] Could not determine frame count: %v", f.env.JobTitle, FfmpegName, err)
		}
	}

	mon := f.env.monitor(executor.FrameMatcher{}, total)
	if err := f.env.Runner.Run(ctx, f.Command(), mon); err != nil {
		return runFailure(FfmpegName, err)
	}
	return nil
}
