package plan

import (
	"path/filepath"
	"strings"

	"github.com/italolelis/mediafetch/internal/job"
)

const maxTitleRunes = 200

// Item is the metadata the engine reports for a resolved media item.
type Item struct {
	Extractor string
	Title     string
	ID        string
	Ext       string
}

// unsafeChars maps characters the engine will not write into a filename to
// the look-alikes it substitutes.
var unsafeChars = strings.NewReplacer(
	"/", "\u29f8",
	"\\", "\u29f9",
	`"`, "\uff02",
	"*", "\uff0a",
	":", "\uff1a",
	"<", "\uff1c",
	">", "\uff1e",
	"?", "\uff1f",
	"|", "\uff5c",
)

// RenderFilename expands OutputTemplate fields for it, the way the engine
// would before post-processing.
func RenderFilename(template string, it Item) string {
	title := []rune(it.Title)
	if len(title) > maxTitleRunes {
		title = title[:maxTitleRunes]
	}

	return strings.NewReplacer(
		"%(extractor)s", unsafeChars.Replace(it.Extractor),
		"%(title).200s", unsafeChars.Replace(string(title)),
		"%(id)s", unsafeChars.Replace(it.ID),
		"%(ext)s", it.Ext,
	).Replace(template)
}

// CorrectExtension fixes the extension of a pre-post-processing filename.
// Audio extraction always ends in the requested audio format and mp4 merges
// end in .mp4; other containers are left as the engine named them.
func CorrectExtension(spec job.Spec, path string) string {
	spec = spec.Sanitize()
	base := strings.TrimSuffix(path, filepath.Ext(path))

	switch {
	case spec.Kind == job.KindAudio:
		return base + "." + string(spec.AudioFormat)
	case spec.Container == job.ContainerMP4 && !strings.HasSuffix(path, ".mp4"):
		return base + ".mp4"
	}

	return path
}
