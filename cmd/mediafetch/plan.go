package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/italolelis/mediafetch/internal/job"
	"github.com/italolelis/mediafetch/internal/plan"
	"github.com/italolelis/mediafetch/internal/tools"
	"github.com/spf13/cobra"
)

type planFlags struct {
	kind         string
	resolution   string
	container    string
	audioFormat  string
	audioQuality string
	subtitles    bool
	thumbnail    bool
}

func newPlanCommand(cc *commandContext) *cobra.Command {
	var flags planFlags

	cmd := &cobra.Command{
		Use:   "plan <url>",
		Short: "Show the engine configuration a URL would be downloaded with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cc.cfg

			spec := flags.spec(args[0], cmd.Flags().Changed)
			spec.URL = plan.NormalizeURL(spec.URL)

			env := plan.Environment{
				OutputDir: cfg.OutputDir,
				Tools:     tools.NewLocator(cfg.ToolsDir).Discover(),
			}

			if fileExists(cfg.CookieFile) {
				env.CookieFile = cfg.CookieFile
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderPlan(spec, plan.Derive(spec, env)))

			return nil
		},
	}

	cmd.Flags().StringVar(&flags.kind, "kind", "", "video or audio (inferred from the URL when omitted)")
	cmd.Flags().StringVar(&flags.resolution, "resolution", "1080", "Resolution ceiling for video")
	cmd.Flags().StringVar(&flags.container, "container", "mp4", "Video container: mp4, mkv or webm")
	cmd.Flags().StringVar(&flags.audioFormat, "audio-format", "mp3", "Audio format")
	cmd.Flags().StringVar(&flags.audioQuality, "audio-quality", "best", "Audio quality: best or medium")
	cmd.Flags().BoolVar(&flags.subtitles, "subtitles", false, "Download and embed subtitles")
	cmd.Flags().BoolVar(&flags.thumbnail, "thumbnail", false, "Keep the thumbnail as a separate file")

	return cmd
}

// spec builds a job spec from the flags. Without --kind the preset is
// inferred from the URL and only explicitly set flags override it.
func (f planFlags) spec(url string, changed func(string) bool) job.Spec {
	spec := job.InferSpec(url)
	if changed("kind") {
		spec.Kind = job.ParseKind(f.kind)
	}

	if changed("resolution") {
		spec.Resolution = job.ParseResolution(f.resolution)
	}

	if changed("container") {
		spec.Container = job.ParseContainer(f.container)
	}

	if changed("audio-format") {
		spec.AudioFormat = job.ParseAudioFormat(f.audioFormat)
	}

	if changed("audio-quality") {
		spec.AudioQuality = job.ParseAudioQuality(f.audioQuality)
	}

	if changed("subtitles") {
		spec.WantSubtitle = f.subtitles
	}

	if changed("thumbnail") {
		spec.WantThumbnail = f.thumbnail
	}

	return spec
}

func renderPlan(spec job.Spec, cfg plan.Config) string {
	rows := [][]string{
		{"url", spec.URL},
		{"kind", string(spec.Kind)},
		{"output", cfg.OutputTemplate},
		{"format", cfg.Format},
		{"merge container", orNone(cfg.MergeOutputFormat)},
		{"post-processing", postProcessors(cfg.PostProcessors)},
		{"ffmpeg", orNone(cfg.FFmpegLocation)},
		{"accelerator", accelerator(cfg.Accelerator)},
		{"cookies", orNone(cfg.CookieFile)},
		{"retries", strconv.Itoa(cfg.Retries) + " (fragments " + strconv.Itoa(cfg.FragmentRetries) + ")"},
		{"subtitles", subtitles(cfg)},
		{"thumbnail", thumbnail(cfg)},
		{"sponsorblock", orNone(strings.Join(cfg.SponsorBlockRemove, ","))},
	}

	return renderTable([]string{"Setting", "Value"}, rows)
}

func postProcessors(steps []plan.PostProcessor) string {
	if len(steps) == 0 {
		return "none"
	}

	parts := make([]string, 0, len(steps))

	for _, s := range steps {
		switch {
		case s.Bitrate > 0:
			parts = append(parts, fmt.Sprintf("%s(%s, %dk)", s.Kind, s.AudioCodec, s.Bitrate))
		case s.AudioCodec != "":
			parts = append(parts, fmt.Sprintf("%s(video %s, audio %s)", s.Kind, s.VideoCodec, s.AudioCodec))
		default:
			parts = append(parts, string(s.Kind))
		}
	}

	return strings.Join(parts, " -> ")
}

func accelerator(a *plan.Accelerator) string {
	if a == nil {
		return "disabled"
	}

	return a.Path + " " + strings.Join(a.Args(), " ")
}

func subtitles(cfg plan.Config) string {
	if !cfg.WriteSubtitles {
		return "no"
	}

	return cfg.SubtitleFormat + " [" + strings.Join(cfg.SubtitleLangs, ",") + "]"
}

func thumbnail(cfg plan.Config) string {
	switch {
	case cfg.EmbedThumbnail && cfg.WriteThumbnail:
		return "embed + keep file"
	case cfg.EmbedThumbnail:
		return "embed"
	case cfg.WriteThumbnail:
		return "keep file"
	default:
		return "no"
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}

	return s
}
