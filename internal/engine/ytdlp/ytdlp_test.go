package ytdlp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"testing"

	"github.com/italolelis/mediafetch/internal/job"
	"github.com/italolelis/mediafetch/internal/plan"
	"github.com/italolelis/mediafetch/internal/tools"
	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv() plan.Environment {
	return plan.Environment{
		OutputDir: "/data/downloads",
		Tools: tools.Toolset{
			FFmpeg:      tools.Tool{Name: tools.FFmpeg, Path: "/opt/bin/ffmpeg"},
			Accelerator: tools.Tool{Name: tools.Accelerator, Path: "/opt/bin/aria2c"},
		},
		CookieFile: "/data/cookies.txt",
	}
}

func videoConfig(url string, container job.Container) plan.Config {
	spec := job.NewSpec(url)
	spec.Container = container

	return plan.Derive(spec, testEnv())
}

func audioConfig(quality job.AudioQuality, thumbnail bool) plan.Config {
	spec := job.NewSpec("https://soundcloud.com/a/b")
	spec.Kind = job.KindAudio
	spec.AudioFormat = job.AudioMP3
	spec.AudioQuality = quality
	spec.WantThumbnail = thumbnail

	return plan.Derive(spec, testEnv())
}

// commandLine returns the arguments yt-dlp receives ahead of the url.
func commandLine(cfg plan.Config) []string {
	var args []string

	for _, f := range New("").command(cfg).GetFlagConfig().ToFlags() {
		args = append(args, f.Raw()...)
	}

	return append(args, headerArgs(cfg)...)
}

// valuesOf returns every value passed to flag.
func valuesOf(args []string, flag string) []string {
	var values []string

	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			values = append(values, args[i+1])
		}
	}

	return values
}

func TestCommand_SendsEveryHeader(t *testing.T) {
	cfg := videoConfig("https://www.youtube.com/watch", job.ContainerMP4)
	args := commandLine(cfg)

	require.NotEmpty(t, cfg.Headers)

	for _, h := range cfg.Headers {
		switch h.Name {
		case "User-Agent":
			assert.Equal(t, []string{h.Value}, valuesOf(args, "--user-agent"))
		case "Referer":
			assert.Equal(t, []string{h.Value}, valuesOf(args, "--referer"))
		default:
			assert.Contains(t, valuesOf(args, "--add-headers"), h.Name+":"+h.Value)
		}
	}

	assert.Len(t, valuesOf(args, "--add-headers"), len(cfg.Headers)-2)
}

func TestCommand_Cookies(t *testing.T) {
	cfg := videoConfig("https://www.youtube.com/watch", job.ContainerMP4)

	assert.Equal(t, []string{"/data/cookies.txt"}, valuesOf(commandLine(cfg), "--cookies"))
	assert.NotContains(t, commandLine(cfg.WithoutCookies()), "--cookies")
}

func TestCommand_Accelerator(t *testing.T) {
	allowed := commandLine(videoConfig("https://www.youtube.com/watch", job.ContainerMP4))
	assert.Equal(t, []string{"/opt/bin/aria2c"}, valuesOf(allowed, "--downloader"))
	assert.Equal(t, []string{"aria2c:-x 16 -k 1M -s 16"}, valuesOf(allowed, "--downloader-args"))

	denied := commandLine(videoConfig("https://threads.net/p/x", job.ContainerMP4))
	assert.NotContains(t, denied, "--downloader")
	assert.NotContains(t, denied, "--downloader-args")
}

func TestCommand_RecodeOnlyForMP4(t *testing.T) {
	tests := []struct {
		container job.Container
		want      []string
	}{
		{job.ContainerMP4, []string{"Merger+ffmpeg_o:-c:v copy -c:a aac"}},
		{job.ContainerMKV, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.container), func(t *testing.T) {
			args := commandLine(videoConfig("https://vimeo.com/1", tt.container))

			assert.Equal(t, tt.want, valuesOf(args, "--postprocessor-args"))
			assert.Equal(t, []string{string(tt.container)}, valuesOf(args, "--merge-output-format"))
		})
	}
}

func TestCommand_AudioExtraction(t *testing.T) {
	tests := []struct {
		quality job.AudioQuality
		want    string
	}{
		{job.QualityBest, "320K"},
		{job.QualityMedium, "128K"},
	}

	for _, tt := range tests {
		t.Run(string(tt.quality), func(t *testing.T) {
			args := commandLine(audioConfig(tt.quality, false))

			assert.Contains(t, args, "--extract-audio")
			assert.Equal(t, []string{"mp3"}, valuesOf(args, "--audio-format"))
			assert.Equal(t, []string{tt.want}, valuesOf(args, "--audio-quality"))
		})
	}
}

func TestCommand_Thumbnail(t *testing.T) {
	embedOnly := commandLine(audioConfig(job.QualityBest, false))
	assert.Contains(t, embedOnly, "--embed-thumbnail")
	assert.NotContains(t, embedOnly, "--write-thumbnail")

	kept := commandLine(audioConfig(job.QualityBest, true))
	assert.Contains(t, kept, "--embed-thumbnail")
	assert.Contains(t, kept, "--write-thumbnail")
}

func TestCommand_ReportsInfoAndFinalPath(t *testing.T) {
	args := commandLine(videoConfig("https://vimeo.com/1", job.ContainerMKV))

	assert.Contains(t, args, "--dump-json")
	assert.Contains(t, args, "--no-simulate")
	assert.Equal(t, []string{printFilepath}, valuesOf(args, "--print"))
	assert.Equal(t, []string{"/opt/bin"}, valuesOf(args, "--ffmpeg-location"))
}

func jsonLog(t *testing.T, v string) *ytdlp.ResultLog {
	t.Helper()

	require.True(t, json.Valid([]byte(v)))

	raw := json.RawMessage(v)

	return &ytdlp.ResultLog{Line: v, JSON: &raw, Pipe: "stdout"}
}

func TestResultFrom(t *testing.T) {
	res := &ytdlp.Result{OutputLogs: []*ytdlp.ResultLog{
		{Line: "WARNING: [youtube] falling back", Pipe: "stderr"},
		jsonLog(t, `{"_type": "video", "id": "abc", "title": "Live: Part 1", "extractor": "youtube", "ext": "webm",
			"_filename": "/data/downloads/youtube - Live： Part 1 [abc].webm"}`),
		{Line: "filepath=/data/downloads/youtube - Live： Part 1 [abc].mp4", Pipe: "stdout"},
	}}

	r, err := resultFrom(res)

	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "abc", r.ID)
	assert.Equal(t, "Live: Part 1", r.Title)
	assert.Equal(t, "youtube", r.Extractor)
	assert.Equal(t, "webm", r.Ext)
	assert.Equal(t, "/data/downloads/youtube - Live： Part 1 [abc].webm", r.Filename)
	assert.Equal(t, []string{"/data/downloads/youtube - Live： Part 1 [abc].mp4"}, r.Files)
}

func TestResultFrom_InfoWithoutFinalPath(t *testing.T) {
	res := &ytdlp.Result{OutputLogs: []*ytdlp.ResultLog{
		jsonLog(t, `{"_type": "video", "id": "x1", "title": "T", "extractor": "threads", "ext": "mp4",
			"_filename": "out/threads - T [x1].mp4"}`),
	}}

	r, err := resultFrom(res)

	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Empty(t, r.Files)
	assert.Equal(t, "out/threads - T [x1].mp4", r.Filename)
	assert.Equal(t, "threads", r.Item().Extractor)
}

func TestResultFrom_NothingUsable(t *testing.T) {
	tests := []struct {
		name string
		logs []*ytdlp.ResultLog
	}{
		{"empty", nil},
		{"error only", []*ytdlp.ResultLog{{Line: "ERROR: [threads] x: Unable to extract", Pipe: "stderr"}}},
		{"json without type", []*ytdlp.ResultLog{jsonLog(t, `{"id": "abc"}`)}},
		{"path on stderr", []*ytdlp.ResultLog{{Line: "filepath=/x.mp4", Pipe: "stderr"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := resultFrom(&ytdlp.Result{OutputLogs: tt.logs})

			require.NoError(t, err)
			assert.Nil(t, r)
		})
	}
}

func TestResultFrom_FinalPathOnly(t *testing.T) {
	r, err := resultFrom(&ytdlp.Result{OutputLogs: []*ytdlp.ResultLog{
		{Line: "filepath=/data/downloads/a.mp3\n", Pipe: "stdout"},
		{Line: "filepath=/data/downloads/b.mp3", Pipe: "stdout"},
	}})

	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, slices.Equal([]string{"/data/downloads/a.mp3", "/data/downloads/b.mp3"}, r.Files))
}

func TestIsStartFailure(t *testing.T) {
	assert.False(t, isStartFailure(nil))
	assert.False(t, isStartFailure(errors.New("exit status 1")))
	assert.True(t, isStartFailure(&exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}))
	assert.True(t, isStartFailure(fmt.Errorf("run: %w", os.ErrNotExist)))
}
