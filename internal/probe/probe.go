// Package probe reads track information from media files with ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Track types as reported by Info.
const (
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypeSubtitle = "subtitle"
)

// TrackInfo describes one track of a media file.
type TrackInfo struct {
	Codec      string
	Index      int // position among tracks of the same type
	Language   string
	Bitrate    string
	Forced     bool
	Default    bool
	FrameCount int64 // 0 when unknown
	Type       string
	Title      string
	Channels   int
}

// Info holds the tracks of a media file.
type Info struct {
	Tracks []TrackInfo
}

// ByType returns the tracks of one type, in file order.
func (i Info) ByType(trackType string) []TrackInfo {
	var out []TrackInfo
	for _, t := range i.Tracks {
		if t.Type == trackType {
			out = append(out, t)
		}
	}
	return out
}

// VideoFrames returns the frame count of the first video track.
func (i Info) VideoFrames() (int64, error) {
	video := i.ByType(TypeVideo)
	if len(video) == 0 {
		return 0, errors.New("no video track")
	}
	if video[0].FrameCount <= 0 {
		return 0, errors.New("video frame count unavailable")
	}
	return video[0].FrameCount, nil
}

// Provider returns track information for a media file.
type Provider interface {
	Probe(ctx context.Context, path string) (Info, error)
}

type commandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// runCommand returns stdout, or stderr when the command fails.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Stderr, err
		}
		return nil, err
	}
	return out, nil
}

// FFprobe is a Provider backed by the ffprobe binary.
type FFprobe struct {
	binary string
	run    commandFunc
}

// NewFFprobe creates a provider; an empty binary means "ffprobe" from PATH.
func NewFFprobe(binary string) *FFprobe {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{binary: binary, run: runCommand}
}

// Probe executes ffprobe against path and decodes its streams.
func (p *FFprobe) Probe(ctx context.Context, path string) (Info, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Info{}, errors.New("ffprobe: empty path")
	}
	output, err := p.run(ctx, p.binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(output)))
	}
	return Parse(output)
}

type result struct {
	Streams []stream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type stream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	BitRate      string            `json:"bit_rate"`
	Channels     int               `json:"channels"`
	NbFrames     string            `json:"nb_frames"`
	Duration     string            `json:"duration"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Disposition  map[string]int    `json:"disposition"`
	Tags         map[string]string `json:"tags"`
}

// Parse decodes ffprobe JSON output.
func Parse(data []byte) (Info, error) {
	var res result
	if err := json.Unmarshal(data, &res); err != nil {
		return Info{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	counts := make(map[string]int)
	info := Info{Tracks: make([]TrackInfo, 0, len(res.Streams))}
	for _, s := range res.Streams {
		trackType := strings.ToLower(s.CodecType)
		info.Tracks = append(info.Tracks, TrackInfo{
			Codec:      s.CodecName,
			Index:      counts[trackType],
			Language:   tag(s.Tags, "language"),
			Bitrate:    firstNonEmpty(s.BitRate, tag(s.Tags, "BPS")),
			Forced:     s.Disposition["forced"] == 1,
			Default:    s.Disposition["default"] == 1,
			FrameCount: frameCount(s, res.Format.Duration),
			Type:       trackType,
			Title:      tag(s.Tags, "title"),
			Channels:   s.Channels,
		})
		counts[trackType]++
	}
	return info, nil
}

// frameCount prefers the container count, then the matroska statistics tag, then
// duration × frame rate.
func frameCount(s stream, formatDuration string) int64 {
	if n, err := strconv.ParseInt(s.NbFrames, 10, 64); err == nil && n > 0 {
		return n
	}
	if n, err := strconv.ParseInt(tag(s.Tags, "NUMBER_OF_FRAMES"), 10, 64); err == nil && n > 0 {
		return n
	}
	if !strings.EqualFold(s.CodecType, TypeVideo) {
		return 0
	}
	duration := parseFloat(firstNonEmpty(s.Duration, formatDuration))
	rate := parseRate(s.AvgFrameRate)
	if duration <= 0 || rate <= 0 {
		return 0
	}
	return int64(math.Round(duration * rate))
}

// tag looks a tag up case-insensitively, also matching language-suffixed keys such
// as NUMBER_OF_FRAMES-eng.
func tag(tags map[string]string, key string) string {
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	prefix := strings.ToLower(key) + "-"
	for k, v := range tags {
		if strings.HasPrefix(strings.ToLower(k), prefix) {
			return v
		}
	}
	return ""
}

func parseRate(value string) float64 {
	num, den, ok := strings.Cut(value, "/")
	if !ok {
		return parseFloat(value)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return f
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
