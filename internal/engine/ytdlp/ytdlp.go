// Package ytdlp runs jobs through the yt-dlp executable.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/italolelis/mediafetch/internal/engine"
	"github.com/italolelis/mediafetch/internal/logctx"
	"github.com/italolelis/mediafetch/internal/plan"
	ytdlp "github.com/lrstanley/go-ytdlp"
)

// Name identifies this engine in logs and metrics.
const Name = "yt-dlp"

const defaultProgressInterval = 500 * time.Millisecond

const (
	filepathPrefix = "filepath="
	// printFilepath prints each file's path after post-processing and moves.
	printFilepath = "after_move:" + filepathPrefix + "%(filepath)s"
)

// Engine is an engine.Engine backed by the yt-dlp command line.
type Engine struct {
	executable       string
	progressInterval time.Duration
}

// New returns an engine. An empty executable resolves yt-dlp from the
// search path.
func New(executable string) *Engine {
	return &Engine{
		executable:       executable,
		progressInterval: defaultProgressInterval,
	}
}

// ExtractAndDownload runs a single yt-dlp invocation for url.
func (e *Engine) ExtractAndDownload(
	ctx context.Context, url string, cfg plan.Config, onProgress func(engine.Event),
) (*engine.Result, error) {
	logger := logctx.LoggerFromContext(ctx)

	cmd := e.command(cfg)
	if onProgress != nil {
		cmd.ProgressFunc(e.progressInterval, func(update ytdlp.ProgressUpdate) {
			switch update.Status {
			case ytdlp.ProgressStatusDownloading:
				onProgress(engine.Event{Phase: engine.PhaseDownloading, Percent: update.PercentString()})
			case ytdlp.ProgressStatusFinished:
				onProgress(engine.Event{Phase: engine.PhaseFinished, Percent: update.PercentString()})
			}
		})
	}

	res, runErr := cmd.Run(ctx, append(headerArgs(cfg), url)...)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("yt-dlp interrupted: %w", ctx.Err())
	}

	if isStartFailure(runErr) {
		return nil, fmt.Errorf("failed to start yt-dlp: %w", runErr)
	}

	if res == nil {
		if runErr != nil {
			return nil, fmt.Errorf("failed to run yt-dlp: %w", runErr)
		}

		return nil, nil
	}

	result, err := resultFrom(res)
	if err != nil {
		logger.Warn("failed to read yt-dlp output", "err", err)

		return nil, nil
	}

	if result == nil {
		logger.Debug("yt-dlp produced no result", "exit_code", res.ExitCode, "err", runErr)

		return nil, nil
	}

	if runErr != nil {
		logger.Warn("yt-dlp reported errors but produced a result", "err", runErr)
	}

	return result, nil
}

// command maps a derived configuration onto yt-dlp flags. Headers other than
// the user agent and referer are not part of it, see headerArgs.
func (e *Engine) command(cfg plan.Config) *ytdlp.Command {
	cmd := ytdlp.New().
		Output(cfg.OutputTemplate).
		Format(cfg.Format).
		Retries(strconv.Itoa(cfg.Retries)).
		FragmentRetries(strconv.Itoa(cfg.FragmentRetries)).
		DumpJSON().
		Print(printFilepath).
		NoSimulate()

	if e.executable != "" {
		cmd.SetExecutable(e.executable)
	}

	if cfg.ForceOverwrite {
		cmd.ForceOverwrites()
	}

	if cfg.NoContinue {
		cmd.NoContinue()
	}

	if cfg.IgnoreErrors {
		cmd.IgnoreErrors()
	}

	if cfg.FFmpegLocation != "" {
		cmd.FFmpegLocation(cfg.FFmpegLocation)
	}

	for _, h := range cfg.Headers {
		switch {
		case strings.EqualFold(h.Name, "User-Agent"):
			cmd.UserAgent(h.Value)
		case strings.EqualFold(h.Name, "Referer"):
			cmd.Referer(h.Value)
		}
	}

	if cfg.HasCookies() {
		cmd.Cookies(cfg.CookieFile)
	}

	if cfg.MergeOutputFormat != "" {
		cmd.MergeOutputFormat(cfg.MergeOutputFormat)
	}

	for _, p := range cfg.PostProcessors {
		switch p.Kind {
		case plan.PostExtractAudio:
			cmd.ExtractAudio().
				AudioFormat(p.AudioCodec).
				AudioQuality(strconv.Itoa(p.Bitrate) + "K")
		case plan.PostEmbedThumbnail:
			cmd.EmbedThumbnail()
		case plan.PostWriteMetadata:
			cmd.EmbedMetadata()
		case plan.PostRecodeAudio:
			cmd.PostProcessorArgs("Merger+ffmpeg_o:-c:v " + p.VideoCodec + " -c:a " + p.AudioCodec)
		}
	}

	if cfg.Accelerator != nil {
		cmd.Downloader(cfg.Accelerator.Path).
			DownloaderArgs("aria2c:" + strings.Join(cfg.Accelerator.Args(), " "))
	}

	if cfg.WriteSubtitles {
		cmd.WriteSubs().SubFormat(cfg.SubtitleFormat)

		if len(cfg.SubtitleLangs) > 0 {
			cmd.SubLangs(strings.Join(cfg.SubtitleLangs, ","))
		}
	}

	if cfg.EmbedSubtitles {
		cmd.EmbedSubs()
	}

	if cfg.WriteThumbnail {
		cmd.WriteThumbnail()
	}

	if cfg.EmbedThumbnail && !cfg.HasPostProcessor(plan.PostEmbedThumbnail) {
		cmd.EmbedThumbnail()
	}

	if len(cfg.SponsorBlockRemove) > 0 {
		cmd.SponsorblockRemove(strings.Join(cfg.SponsorBlockRemove, ","))
	}

	return cmd
}

// headerArgs returns one --add-headers argument pair per header that has no
// dedicated flag. The builder keeps a single --add-headers value, so these
// are passed as raw arguments ahead of the url.
func headerArgs(cfg plan.Config) []string {
	var args []string

	for _, h := range cfg.Headers {
		if strings.EqualFold(h.Name, "User-Agent") || strings.EqualFold(h.Name, "Referer") {
			continue
		}

		args = append(args, "--add-headers", h.Name+":"+h.Value)
	}

	return args
}

// isStartFailure reports whether the executable could not be launched.
func isStartFailure(err error) bool {
	if err == nil {
		return false
	}

	var execErr *exec.Error

	return errors.As(err, &execErr) || errors.Is(err, os.ErrNotExist)
}

// resultFrom maps the first extracted info and the printed final paths onto
// an engine result. It returns nil when yt-dlp reported no item.
func resultFrom(res *ytdlp.Result) (*engine.Result, error) {
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to parse extracted info: %w", err)
	}

	files := finalPaths(res)

	var info *ytdlp.ExtractedInfo

	for _, i := range infos {
		if i.ID != "" || i.AltFilename != nil {
			info = i

			break
		}
	}

	if info == nil {
		if len(files) == 0 {
			return nil, nil
		}

		return &engine.Result{Files: files}, nil
	}

	r := &engine.Result{
		ID:    info.ID,
		Ext:   info.Extension,
		Files: files,
	}

	if info.Title != nil {
		r.Title = *info.Title
	}

	if info.Extractor != nil {
		r.Extractor = *info.Extractor
	}

	if info.AltFilename != nil {
		r.Filename = *info.AltFilename
	}

	return r, nil
}

// finalPaths collects the paths printed once files reached their final
// location, in order.
func finalPaths(res *ytdlp.Result) []string {
	var paths []string

	for _, l := range res.OutputLogs {
		if l.JSON != nil || l.Pipe != "stdout" {
			continue
		}

		if p, ok := strings.CutPrefix(strings.TrimSpace(l.Line), filepathPrefix); ok && p != "" {
			paths = append(paths, p)
		}
	}

	return paths
}
