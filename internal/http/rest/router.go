package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/mediafetch/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter assembles the public HTTP surface: the downloads API, the media
// files, health and metrics. tel may be nil. Media downloads are exempt from
// the server's write timeout; everything else keeps it.
func NewRouter(downloads *DownloadsHandler, tel *telemetry.Telemetry) http.Handler {
	r := chi.NewRouter()

	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if tel.Enabled() {
		r.Handle("/metrics", tel.Handler())
	}

	r.Mount("/", downloads.Routes())

	var opts []otelhttp.Option
	if tp := tel.TracerProvider(); tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}

	if mp := tel.MeterProvider(); mp != nil {
		opts = append(opts, otelhttp.WithMeterProvider(mp))
	}

	return liftMediaDeadline(otelhttp.NewHandler(r, "mediafetch", opts...))
}
