package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAudioQuality_Bitrate(t *testing.T) {
	assert.Equal(t, 320, QualityBest.Bitrate())
	assert.Equal(t, 128, QualityMedium.Bitrate())
}

func TestInferSpec(t *testing.T) {
	tests := []struct {
		url       string
		kind      Kind
		thumbnail bool
	}{
		{"https://soundcloud.com/artist/track", KindAudio, true},
		{"https://music.youtube.com/watch?v=abc", KindAudio, true},
		{"https://open.spotify.com/track/1", KindAudio, true},
		{"https://www.youtube.com/watch?v=abc", KindVideo, false},
		{"https://vimeo.com/1", KindVideo, false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			spec := InferSpec(tt.url)
			assert.Equal(t, tt.kind, spec.Kind)
			assert.Equal(t, tt.thumbnail, spec.WantThumbnail)
			assert.False(t, spec.WantSubtitle)
			assert.Equal(t, DefaultResolution, spec.Resolution)
			assert.Equal(t, ContainerMP4, spec.Container)
			assert.Equal(t, AudioMP3, spec.AudioFormat)
			assert.Equal(t, QualityBest, spec.AudioQuality)
		})
	}
}

func TestSpec_Sanitize(t *testing.T) {
	got := Spec{
		URL:          "u",
		Kind:         "podcast",
		Resolution:   -3,
		Container:    "avi",
		AudioFormat:  "ogg-ish",
		AudioQuality: "ultra",
	}.Sanitize()

	assert.Equal(t, KindVideo, got.Kind)
	assert.Equal(t, DefaultResolution, got.Resolution)
	assert.Equal(t, ContainerMP4, got.Container)
	assert.Equal(t, AudioMP3, got.AudioFormat)
	assert.Equal(t, QualityBest, got.AudioQuality)

	kept := Spec{Kind: KindAudio, Resolution: 720, Container: ContainerWebM, AudioFormat: AudioFLAC, AudioQuality: QualityMedium}
	assert.Equal(t, kept, kept.Sanitize())
}

func TestParseResolution(t *testing.T) {
	tests := map[string]int{
		"2160":           2160,
		"1440 (2K)":      1440,
		"720p":           720,
		"":               DefaultResolution,
		"best":           DefaultResolution,
		"0":              DefaultResolution,
		" 480 (SD) ":     480,
		"1080 (Full HD)": 1080,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseResolution(in), in)
	}
}

func TestParseEnumsAreCaseInsensitive(t *testing.T) {
	assert.Equal(t, KindAudio, ParseKind(" Audio "))
	assert.Equal(t, ContainerMKV, ParseContainer("MKV"))
	assert.Equal(t, AudioM4A, ParseAudioFormat("M4A"))
	assert.Equal(t, QualityMedium, ParseAudioQuality("Medium"))
}
