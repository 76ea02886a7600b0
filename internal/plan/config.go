package plan

import (
	"strconv"

	"github.com/italolelis/mediafetch/internal/tools"
)

const (
	// OutputTemplate names files by extractor, capped title and item id so
	// that distinct items never collide and a re-download overwrites.
	OutputTemplate = "%(extractor)s - %(title).200s [%(id)s].%(ext)s"

	// EngineRetries is the engine-level retry budget for transient network
	// failures, independent of the orchestrator's cookie-less fallback.
	EngineRetries = 10

	AcceleratorConnections = 16
	AcceleratorSplits      = 16
	AcceleratorChunkSize   = "1M"

	mp4SubtitleFormat      = "srt"
	fallbackSubtitleFormat = "ass/srt/best"
	compatibleAudioCodec   = "aac"
)

var (
	subtitleLangs      = []string{"vi", "en", "en-US", "all"}
	sponsorCategories  = []string{"sponsor", "intro", "outro", "selfpromo"}
	browserLikeHeaders = []Header{
		{Name: "User-Agent", Value: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"},
		{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		{Name: "Accept-Language", Value: "en-US,en;q=0.9"},
		{Name: "Referer", Value: "https://www.threads.net/"},
		{Name: "Sec-Fetch-Mode", Value: "navigate"},
		{Name: "Sec-Fetch-Site", Value: "same-origin"},
	}
)

// Environment is the runtime context a configuration is derived from. It is
// built once per attempt by the caller; deriving never touches the
// filesystem.
type Environment struct {
	OutputDir string
	Tools     tools.Toolset
	// CookieFile is empty when no cookie file is present.
	CookieFile string
}

// HasCookies reports whether a cookie source is available.
func (e Environment) HasCookies() bool {
	return e.CookieFile != ""
}

// Header is a single HTTP request header sent by the engine.
type Header struct {
	Name  string
	Value string
}

// PostProcessorKind names a post-processing step.
type PostProcessorKind string

const (
	PostExtractAudio   PostProcessorKind = "extract-audio"
	PostEmbedThumbnail PostProcessorKind = "embed-thumbnail"
	PostWriteMetadata  PostProcessorKind = "write-metadata"
	PostRecodeAudio    PostProcessorKind = "recode-audio"
)

// PostProcessor is one step of the post-processing pipeline.
type PostProcessor struct {
	Kind PostProcessorKind
	// AudioCodec is the target codec for extract-audio and recode-audio.
	AudioCodec string
	// VideoCodec is the video codec for recode-audio; "copy" passes through.
	VideoCodec string
	// Bitrate in kbps for extract-audio.
	Bitrate int
}

// Accelerator configures the external multi-connection downloader.
type Accelerator struct {
	Path        string
	Connections int
	Splits      int
	ChunkSize   string
}

// Args returns the accelerator command line arguments.
func (a Accelerator) Args() []string {
	return []string{
		"-x", strconv.Itoa(a.Connections),
		"-k", a.ChunkSize,
		"-s", strconv.Itoa(a.Splits),
	}
}

// Config holds every parameter of a single engine invocation. It is never
// persisted and is rebuilt for every attempt.
type Config struct {
	OutputTemplate string
	// FFmpegLocation is the directory of the muxer, empty when absent.
	FFmpegLocation string
	Headers        []Header
	// CookieFile is empty when no cookie source is configured.
	CookieFile string

	Format            string
	MergeOutputFormat string
	PostProcessors    []PostProcessor

	// Accelerator is nil when multi-connection fetching is disabled.
	Accelerator *Accelerator

	Retries         int
	FragmentRetries int
	ForceOverwrite  bool
	NoContinue      bool
	IgnoreErrors    bool

	WriteSubtitles bool
	EmbedSubtitles bool
	SubtitleLangs  []string
	SubtitleFormat string

	// WriteThumbnail keeps the thumbnail as a standalone deliverable.
	WriteThumbnail bool
	EmbedThumbnail bool

	SponsorBlockRemove []string
}

// HasCookies reports whether the configuration carries a cookie source.
func (c Config) HasCookies() bool {
	return c.CookieFile != ""
}

// HasPostProcessor reports whether a step of the given kind is present.
func (c Config) HasPostProcessor(kind PostProcessorKind) bool {
	for _, p := range c.PostProcessors {
		if p.Kind == kind {
			return true
		}
	}

	return false
}

// WithoutCookies returns a copy with the cookie source removed.
func (c Config) WithoutCookies() Config {
	c.CookieFile = ""

	return c
}
