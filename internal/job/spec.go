package job

import (
	"strconv"
	"strings"
)

// Kind selects between a muxed video file and an extracted audio file.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Container is the output container of a video job.
type Container string

const (
	ContainerMP4  Container = "mp4"
	ContainerMKV  Container = "mkv"
	ContainerWebM Container = "webm"
)

// AudioFormat is the codec/extension of an audio job.
type AudioFormat string

const (
	AudioMP3  AudioFormat = "mp3"
	AudioM4A  AudioFormat = "m4a"
	AudioFLAC AudioFormat = "flac"
	AudioWAV  AudioFormat = "wav"
	AudioOpus AudioFormat = "opus"
	AudioAAC  AudioFormat = "aac"
)

// AudioQuality maps to a fixed bitrate.
type AudioQuality string

const (
	QualityBest   AudioQuality = "best"
	QualityMedium AudioQuality = "medium"
)

// Bitrate returns the target bitrate in kbps.
func (q AudioQuality) Bitrate() int {
	if q == QualityBest {
		return 320
	}

	return 128
}

const (
	DefaultResolution   = 1080
	DefaultContainer    = ContainerMP4
	DefaultAudioFormat  = AudioMP3
	DefaultAudioQuality = QualityBest
)

// Resolutions lists the offered resolution ceilings, highest first.
var Resolutions = []int{2160, 1440, 1080, 720, 480}

// Spec describes what the user asked for. It is immutable once accepted,
// except that intake rewrites URL to its normalized form.
type Spec struct {
	URL           string
	Kind          Kind
	Resolution    int
	Container     Container
	AudioFormat   AudioFormat
	AudioQuality  AudioQuality
	WantSubtitle  bool
	WantThumbnail bool
}

// NewSpec returns a video spec with the submission defaults.
func NewSpec(url string) Spec {
	return Spec{
		URL:          url,
		Kind:         KindVideo,
		Resolution:   DefaultResolution,
		Container:    DefaultContainer,
		AudioFormat:  DefaultAudioFormat,
		AudioQuality: DefaultAudioQuality,
	}
}

// audioHosts are sources whose links are almost always wanted as music.
var audioHosts = []string{"soundcloud", "music.youtube", "spotify"}

// InferSpec picks a preset from the URL alone: audio sources get best-quality
// mp3 with an embedded cover, everything else a clean 1080p mp4.
func InferSpec(url string) Spec {
	spec := NewSpec(url)

	lower := strings.ToLower(url)
	for _, h := range audioHosts {
		if strings.Contains(lower, h) {
			spec.Kind = KindAudio
			spec.WantThumbnail = true

			return spec
		}
	}

	return spec
}

// Sanitize replaces unrepresentable values with defaults.
func (s Spec) Sanitize() Spec {
	s.Kind = ParseKind(string(s.Kind))
	s.Container = ParseContainer(string(s.Container))
	s.AudioFormat = ParseAudioFormat(string(s.AudioFormat))
	s.AudioQuality = ParseAudioQuality(string(s.AudioQuality))

	if s.Resolution <= 0 {
		s.Resolution = DefaultResolution
	}

	return s
}

// ParseKind defaults to video.
func ParseKind(v string) Kind {
	if Kind(strings.ToLower(strings.TrimSpace(v))) == KindAudio {
		return KindAudio
	}

	return KindVideo
}

// ParseContainer defaults to mp4.
func ParseContainer(v string) Container {
	switch c := Container(strings.ToLower(strings.TrimSpace(v))); c {
	case ContainerMP4, ContainerMKV, ContainerWebM:
		return c
	}

	return DefaultContainer
}

// ParseAudioFormat defaults to mp3.
func ParseAudioFormat(v string) AudioFormat {
	switch f := AudioFormat(strings.ToLower(strings.TrimSpace(v))); f {
	case AudioMP3, AudioM4A, AudioFLAC, AudioWAV, AudioOpus, AudioAAC:
		return f
	}

	return DefaultAudioFormat
}

// ParseAudioQuality defaults to best.
func ParseAudioQuality(v string) AudioQuality {
	if AudioQuality(strings.ToLower(strings.TrimSpace(v))) == QualityMedium {
		return QualityMedium
	}

	return DefaultAudioQuality
}

// ParseResolution accepts "1080", "1080p" or "1080 (Full HD)".
func ParseResolution(v string) int {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, ' '); i >= 0 {
		v = v[:i]
	}

	n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(v), "p"))
	if err != nil || n <= 0 {
		return DefaultResolution
	}

	return n
}
