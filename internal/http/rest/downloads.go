package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/mediafetch/internal/job"
	"github.com/italolelis/mediafetch/internal/logctx"
	"github.com/italolelis/mediafetch/internal/storage"
)

// MediaPrefix is where finished files are served from. A job's download_url
// is MediaPrefix joined with its bare filename.
const MediaPrefix = "/media/downloads/"

const maxBodySize = 64 * 1024

// Submitter hands a created job over to the workers.
type Submitter interface {
	Submit(ctx context.Context, id string) error
}

// JobStore is the part of the job repository the handler needs.
type JobStore interface {
	Create(ctx context.Context, spec job.Spec) (*job.Job, error)
	Get(ctx context.Context, id string) (*job.Job, error)
}

// flexString accepts a JSON string, number or bool.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)

		return nil
	}

	*f = flexString(strings.Trim(string(b), `"`))

	return nil
}

type submitRequest struct {
	URL          string     `json:"url"`
	TaskType     string     `json:"task_type"`
	Resolution   flexString `json:"resolution"`
	Container    string     `json:"container"`
	AudioFormat  string     `json:"audio_format"`
	AudioQuality string     `json:"audio_quality"`
	UseSubtitle  bool       `json:"use_subtitle"`
	UseThumbnail bool       `json:"use_thumbnail"`
}

// spec turns the request into a job spec. Missing or unknown values fall
// back to the submission defaults; when task_type is absent the preset is
// inferred from the URL.
func (r submitRequest) spec() job.Spec {
	if r.TaskType == "" && r.Resolution == "" && r.Container == "" && r.AudioFormat == "" && r.AudioQuality == "" {
		spec := job.InferSpec(r.URL)
		spec.WantSubtitle = spec.WantSubtitle || r.UseSubtitle
		spec.WantThumbnail = spec.WantThumbnail || r.UseThumbnail

		return spec
	}

	return job.Spec{
		URL:           r.URL,
		Kind:          job.ParseKind(r.TaskType),
		Resolution:    job.ParseResolution(string(r.Resolution)),
		Container:     job.ParseContainer(r.Container),
		AudioFormat:   job.ParseAudioFormat(r.AudioFormat),
		AudioQuality:  job.ParseAudioQuality(r.AudioQuality),
		WantSubtitle:  r.UseSubtitle,
		WantThumbnail: r.UseThumbnail,
	}
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

type statusResponse struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	Filename    string  `json:"filename,omitempty"`
	DownloadURL *string `json:"download_url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// DownloadsHandler accepts download submissions and reports job status.
type DownloadsHandler struct {
	jobs      JobStore
	submitter Submitter
	outputDir string
}

// NewDownloadsHandler creates a handler serving finished files from outputDir.
func NewDownloadsHandler(jobs JobStore, submitter Submitter, outputDir string) *DownloadsHandler {
	return &DownloadsHandler{
		jobs:      jobs,
		submitter: submitter,
		outputDir: outputDir,
	}
}

func (h *DownloadsHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/downloads", h.HandleSubmit)
	r.Get("/api/downloads/{id}", h.HandleStatus)

	// Paths used by the original web client.
	r.Post("/api/start/", h.HandleSubmit)
	r.Get("/api/status/{id}/", h.HandleStatus)

	r.Handle(MediaPrefix+"*", http.StripPrefix(MediaPrefix, http.FileServer(noListing{http.Dir(h.outputDir)})))

	return r
}

// HandleSubmit creates a PENDING job and enqueues it.
func (h *DownloadsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.LoggerFromContext(ctx)

	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	if err := validateURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	created, err := h.jobs.Create(ctx, req.spec())
	if err != nil {
		logger.ErrorContext(ctx, "failed to create job", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")

		return
	}

	logger = logger.With("job_id", created.ID)

	if err := h.submitter.Submit(ctx, created.ID); err != nil {
		// The job stays PENDING and is picked up again on the next start.
		logger.WarnContext(ctx, "failed to enqueue job", "err", err)
		writeError(w, http.StatusServiceUnavailable, "job queue unavailable")

		return
	}

	logger.InfoContext(ctx, "job submitted", "kind", created.Spec.Kind, "url", created.Spec.URL)

	writeJSON(w, http.StatusAccepted, submitResponse{TaskID: created.ID})
}

// HandleStatus reports status, progress and, once finished, where to fetch
// the file.
func (h *DownloadsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	j, err := h.jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found")

			return
		}

		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to get job", "job_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get job")

		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(j))
}

func toStatusResponse(j *job.Job) statusResponse {
	resp := statusResponse{
		ID:       j.ID,
		URL:      j.Spec.URL,
		Status:   j.Status.String(),
		Progress: j.Progress,
		Filename: j.Filename,
	}

	if j.Status == job.StatusFinished && j.Filename != "" {
		u := MediaPrefix + j.Filename
		resp.DownloadURL = &u
	}

	return resp
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid url %q", raw)
	}

	return nil
}

// noListing hides directory listings of the output directory.
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}

	if st, err := f.Stat(); err != nil || st.IsDir() {
		_ = f.Close()

		return nil, fs.ErrNotExist
	}

	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
