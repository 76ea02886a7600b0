package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/italolelis/mediafetch/internal/job"
	"github.com/italolelis/mediafetch/internal/plan"
	"github.com/italolelis/mediafetch/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func changedSet(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}

	return func(name string) bool { return set[name] }
}

func TestPlanFlags_InfersWithoutOverrides(t *testing.T) {
	spec := planFlags{}.spec("https://soundcloud.com/a/b", changedSet())

	assert.Equal(t, job.InferSpec("https://soundcloud.com/a/b"), spec)
}

func TestPlanFlags_ExplicitFlagsWin(t *testing.T) {
	flags := planFlags{
		kind:         "video",
		resolution:   "720p",
		container:    "mkv",
		audioQuality: "medium",
		subtitles:    true,
	}

	spec := flags.spec("https://soundcloud.com/a/b", changedSet("kind", "resolution", "container", "subtitles"))

	assert.Equal(t, job.KindVideo, spec.Kind)
	assert.Equal(t, 720, spec.Resolution)
	assert.Equal(t, job.ContainerMKV, spec.Container)
	assert.Equal(t, job.QualityBest, spec.AudioQuality, "unchanged flags keep the preset")
	assert.True(t, spec.WantSubtitle)
}

func TestRenderPlan(t *testing.T) {
	spec := job.Spec{
		URL:        "https://threads.net/p/x",
		Kind:       job.KindVideo,
		Resolution: 1080,
		Container:  job.ContainerMP4,
	}

	cfg := plan.Derive(spec, plan.Environment{
		OutputDir: "media/downloads",
		Tools: tools.Toolset{
			FFmpeg:      tools.Tool{Name: tools.FFmpeg, Path: "/usr/bin/ffmpeg"},
			Accelerator: tools.Tool{Name: tools.Accelerator, Path: "/usr/bin/aria2c"},
		},
	})

	out := renderPlan(spec, cfg)

	assert.Contains(t, out, "https://threads.net/p/x")
	assert.Contains(t, out, "height<=1080")
	assert.Contains(t, out, string(plan.PostRecodeAudio))
	assert.Contains(t, out, "disabled", "threads is deny-listed for the accelerator")
	assert.Contains(t, out, "/usr/bin")
}

func TestRenderPlan_Accelerator(t *testing.T) {
	assert.Equal(t, "disabled", accelerator(nil))
	assert.Equal(t, "/bin/aria2c -x 16 -k 1M -s 16", accelerator(&plan.Accelerator{
		Path:        "/bin/aria2c",
		Connections: 16,
		Splits:      16,
		ChunkSize:   "1M",
	}))
}

func TestPostProcessors(t *testing.T) {
	assert.Equal(t, "none", postProcessors(nil))
	assert.Equal(t,
		"extract-audio(mp3, 320k) -> embed-thumbnail",
		postProcessors([]plan.PostProcessor{
			{Kind: plan.PostExtractAudio, AudioCodec: "mp3", Bitrate: 320},
			{Kind: plan.PostEmbedThumbnail},
		}),
	)
}

func TestPlanCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TOOLS_DIR", dir)
	t.Setenv("COOKIES_FILE", filepath.Join(dir, "absent.txt"))

	var out bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"plan", "--env-file", "", "--kind", "audio", "https://www.youtube.com/watch?v=abc&si=x"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "https://www.youtube.com/watch")
	assert.NotContains(t, out.String(), "si=x", "query string is stripped")
	assert.Contains(t, out.String(), "extract-audio(mp3, 320k)")
}

func TestPlanCommand_RequiresURL(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"plan", "--env-file", ""})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
