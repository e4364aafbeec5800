package module

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/sisyphus-worker/internal/command"
	"github.com/sisyphus-worker/internal/executor"
)

const HandbrakeName = "handbrake"

// handbrakeProgress matches "Encoding: task 1 of 1, 12.34 %".
const handbrakeProgress = `Encoding: task \d+ of \d+, (\d+(?:\.\d+)?) %`

type handbrakeConfig struct {
	Source             string          `json:"source"`
	OutputFile         string          `json:"output_file"`
	GeneralOptions     command.Options `json:"general_options"`
	SourceOptions      command.Options `json:"source_options"`
	DestinationOptions command.Options `json:"destination_options"`
	VideoOptions       command.Options `json:"video_options"`
	PictureOptions     command.Options `json:"picture_options"`
	FiltersOptions     command.Options `json:"filters_options"`
	AudioTracks        []command.Track `json:"audio_tracks"`
	SubtitleTracks     []command.Track `json:"subtitle_tracks"`
}

// Handbrake transcodes one source with HandBrakeCLI.
type Handbrake struct {
	cfg    handbrakeConfig
	env    Env
	binary string // set by Validate
}

func newHandbrake(raw json.RawMessage, env Env) (Module, error) {
	var cfg handbrakeConfig
	if err := decodeConfig(HandbrakeName, raw, &cfg); err != nil {
		return nil, err
	}
	return &Handbrake{cfg: cfg, env: env}, nil
}

func (h *Handbrake) Name() string { return HandbrakeName }

func (h *Handbrake) Validate(ctx context.Context) error {
	h.binary = ""
	binary, err := requireBinary(h.env, HandbrakeName, h.env.binaries().Handbrake)
	if err != nil {
		return err
	}
	if h.cfg.Source == "" {
		return &ValidationError{Module: HandbrakeName, Message: "No source file specified."}
	}
	if err := requireFile(HandbrakeName, h.cfg.Source, "source file"); err != nil {
		return err
	}
	if h.cfg.OutputFile == "" {
		return &ValidationError{Module: HandbrakeName, Message: "No output file specified."}
	}
	h.binary = binary
	return nil
}

// Command builds the HandBrakeCLI invocation in section order: general, source,
// video, picture, audio, subtitle, destination, filters.
func (h *Handbrake) Command() executor.Command {
	var args []string
	args = append(args, command.Compile(h.cfg.GeneralOptions)...)
	args = append(args, "-i", absPath(h.cfg.Source))
	args = append(args, command.Compile(h.cfg.SourceOptions)...)
	args = append(args, command.Compile(h.cfg.VideoOptions)...)
	args = append(args, command.Compile(h.cfg.PictureOptions)...)
	args = append(args, command.Aggregate("audio", h.cfg.AudioTracks)...)
	args = append(args, command.Aggregate("subtitle", h.cfg.SubtitleTracks)...)
	args = append(args, "-o", absPath(h.cfg.OutputFile))
	args = append(args, command.Compile(h.cfg.DestinationOptions)...)
	args = append(args, command.Compile(h.cfg.FiltersOptions)...)
	return executor.Command{Path: h.binary, Args: args}
}

func (h *Handbrake) Run(ctx context.Context) error {
	if h.binary == "" {
		return errNotValidated(HandbrakeName)
	}
	total := int64(100)
	if h.env.Probe != nil {
		if info, err := h.env.Probe.Probe(ctx, h.cfg.Source); err == nil {
			if frames, err := info.VideoFrames(); err == nil {
				total = frames
			}
		}
	}

	mon := h.env.monitor(executor.NewPercentMatcher(handbrakeProgress), total)
	if err := h.env.Runner.Run(ctx, h.Command(), mon); err != nil {
		return runFailure(HandbrakeName, err)
	}
	return nil
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
