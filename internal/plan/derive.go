// Package plan derives the full engine configuration for a job from its spec
// and the runtime environment.
//
// Derive is pure and total: identical inputs yield identical configurations
// and unrepresentable spec values degrade to defaults instead of failing.
package plan

import (
	"fmt"
	"path/filepath"

	"github.com/italolelis/mediafetch/internal/job"
)

// Derive builds the engine configuration for spec. The spec URL is expected
// to be normalized already.
func Derive(spec job.Spec, env Environment) Config {
	spec = spec.Sanitize()
	host := Host(spec.URL)

	cfg := common(env)

	switch spec.Kind {
	case job.KindAudio:
		applyAudio(&cfg, spec)
	default:
		applyVideo(&cfg, spec, host)
	}

	if acc := env.Tools.Accelerator; acc.Available() && AcceleratorAllowed(host) {
		cfg.Accelerator = &Accelerator{
			Path:        acc.Path,
			Connections: AcceleratorConnections,
			Splits:      AcceleratorSplits,
			ChunkSize:   AcceleratorChunkSize,
		}
	}

	return cfg
}

func common(env Environment) Config {
	return Config{
		OutputTemplate:  filepath.Join(env.OutputDir, OutputTemplate),
		FFmpegLocation:  env.Tools.FFmpeg.Dir(),
		Headers:         append([]Header(nil), browserLikeHeaders...),
		CookieFile:      env.CookieFile,
		Retries:         EngineRetries,
		FragmentRetries: EngineRetries,
		ForceOverwrite:  true,
		NoContinue:      true,
		IgnoreErrors:    true,
	}
}

// applyAudio targets the best audio stream and always fetches the thumbnail
// so it can be embedded; the standalone file is only kept on request.
func applyAudio(cfg *Config, spec job.Spec) {
	cfg.Format = "bestaudio/best"
	cfg.PostProcessors = []PostProcessor{
		{Kind: PostExtractAudio, AudioCodec: string(spec.AudioFormat), Bitrate: spec.AudioQuality.Bitrate()},
		{Kind: PostEmbedThumbnail},
		{Kind: PostWriteMetadata},
	}
	cfg.WriteThumbnail = spec.WantThumbnail
}

func applyVideo(cfg *Config, spec job.Spec, host string) {
	cfg.Format = videoFormat(spec.Resolution, spec.Container)
	cfg.MergeOutputFormat = string(spec.Container)

	// Best-audio streams are usually opus, which common mp4 players reject.
	if spec.Container == job.ContainerMP4 {
		cfg.PostProcessors = []PostProcessor{
			{Kind: PostRecodeAudio, VideoCodec: "copy", AudioCodec: compatibleAudioCodec},
		}
		cfg.SubtitleFormat = mp4SubtitleFormat
	} else {
		cfg.SubtitleFormat = fallbackSubtitleFormat
	}

	cfg.WriteSubtitles = spec.WantSubtitle
	cfg.EmbedSubtitles = spec.WantSubtitle
	if spec.WantSubtitle {
		cfg.SubtitleLangs = append([]string(nil), subtitleLangs...)
	}

	cfg.WriteThumbnail = spec.WantThumbnail
	cfg.EmbedThumbnail = spec.WantThumbnail

	if SupportsSponsorSegments(host) {
		cfg.SponsorBlockRemove = append([]string(nil), sponsorCategories...)
	}
}

func videoFormat(resolution int, container job.Container) string {
	return fmt.Sprintf(
		"bestvideo[height<=%[1]d][ext=%[2]s]+bestaudio/best[height<=%[1]d][ext=%[2]s]/best",
		resolution, container,
	)
}
