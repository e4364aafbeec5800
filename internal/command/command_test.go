package command

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"q", "-q"},
		{"encoder", "--encoder"},
		{"no_deinterlace", "--no-deinterlace"},
		{"_", "--"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, Flag(tt.key))
		})
	}
}

func TestCompilePreservesOrderAndValueRules(t *testing.T) {
	opts := Options{
		{Key: "encoder", Value: "x265_10bit"},
		{Key: "q", Value: json.Number("19")},
		{Key: "no_comb_detect", Value: true},
		{Key: "markers", Value: nil},
		{Key: "encopts", Value: Options{{Key: "aq-mode", Value: "3"}, {Key: "psy-rd", Value: json.Number("1.0")}}},
		{Key: "w", Value: 1920},
		{Key: "ratio", Value: 2.5},
	}

	got := Compile(opts)
	assert.Equal(t, []string{
		"--encoder", "x265_10bit",
		"-q", "19",
		"--no-comb-detect",
		"--markers",
		"--encopts", "aq-mode=3:psy-rd=1.0",
		"-w", "1920",
		"--ratio", "2.5",
	}, got)
}

func TestCompileFalseIsFlagOnly(t *testing.T) {
	assert.Equal(t, []string{"--two-pass"}, Compile(Options{{Key: "two_pass", Value: false}}))
}

func TestCompileEmpty(t *testing.T) {
	assert.Empty(t, Compile(nil))
}

func TestOptionsUnmarshalKeepsDocumentOrder(t *testing.T) {
	var opts Options
	err := json.Unmarshal([]byte(`{"z": 1, "a": "x", "m": {"k2": "v2", "k1": "v1"}, "flag": null, "on": true, "list": [1, "b"]}`), &opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m", "flag", "on", "list"}, opts.Keys())
	nested, ok := opts.Get("m")
	require.True(t, ok)
	assert.Equal(t, []string{"k2", "k1"}, nested.(Options).Keys())
	assert.Equal(t, []string{"-z", "1", "-a", "x", "-m", "k2=v2:k1=v1", "--flag", "--on", "--list", "[1 b]"}, Compile(opts))
}

func TestOptionsUnmarshalRejectsNonObject(t *testing.T) {
	var opts Options
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &opts))
}

func TestOptionsRoundTripOrder(t *testing.T) {
	opts := Options{{Key: "b", Value: "1"}, {Key: "a", Value: "2"}}
	data, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.Equal(t, `{"b":"1","a":"2"}`, string(data))
}

func TestMergeOverlaysInPlace(t *testing.T) {
	base := Options{{Key: "c", Value: "libx265"}, {Key: "crf", Value: "20"}}
	merged := base.Merge(Options{{Key: "crf", Value: "18"}, {Key: "preset", Value: "slow"}})

	assert.Equal(t, Options{{Key: "c", Value: "libx265"}, {Key: "crf", Value: "18"}, {Key: "preset", Value: "slow"}}, merged)
	// base untouched
	v, _ := base.Get("crf")
	assert.Equal(t, "20", v)
}

func TestAggregateTransposesTracks(t *testing.T) {
	tracks := []Track{
		{Index: "1", Options: Options{{Key: "aencoder", Value: "opus"}}},
		{Index: "2", Options: Options{{Key: "aencoder", Value: "ac3"}, {Key: "ab", Value: "128"}}},
	}

	got := Aggregate("audio", tracks)
	assert.Equal(t, []string{
		"--aencoder", "opus,ac3",
		"--ab", "-1,128",
		"--audio", "1,2",
	}, got)
}

func TestAggregateColumnsMatchTrackCount(t *testing.T) {
	tracks := []Track{
		{Index: "1", Options: Options{{Key: "aencoder", Value: "opus"}, {Key: "mixdown", Value: "stereo"}}},
		{Index: "2"},
		{Index: "3", Options: Options{{Key: "ab", Value: json.Number("160")}}},
	}
	got := Aggregate("audio", tracks)
	require.Len(t, got, 8)
	for i := 1; i < len(got); i += 2 {
		assert.Len(t, splitComma(got[i]), len(tracks), "column %s", got[i-1])
	}
	assert.Equal(t, "opus,-1,-1", got[1])
	assert.Equal(t, "stereo,-1,-1", got[3])
	assert.Equal(t, "-1,-1,160", got[5])
	assert.Equal(t, "1,2,3", got[7])
}

func TestAggregateWithoutTracks(t *testing.T) {
	assert.Empty(t, Aggregate("subtitle", nil))
}

func TestAggregateTracksWithoutOptions(t *testing.T) {
	got := Aggregate("subtitle", []Track{{Index: "1"}, {Index: "2"}})
	assert.Equal(t, []string{"--subtitle", "1,2"}, got)
}

func TestTrackUnmarshalAcceptsNumberOrString(t *testing.T) {
	var tracks []Track
	err := json.Unmarshal([]byte(`[{"track": 1, "options": {"aencoder": "opus"}}, {"track": "scan"}]`), &tracks)
	require.NoError(t, err)
	assert.Equal(t, TrackIndex("1"), tracks[0].Index)
	assert.Equal(t, TrackIndex("scan"), tracks[1].Index)
	assert.Empty(t, tracks[1].Options)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `ffmpeg -i 'my file.mkv' out.mkv`, Quote([]string{"ffmpeg", "-i", "my file.mkv", "out.mkv"}))
	assert.Equal(t, `echo 'it'"'"'s'`, Quote([]string{"echo", "it's"}))
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
