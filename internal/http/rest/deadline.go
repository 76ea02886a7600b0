package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/italolelis/mediafetch/internal/logctx"
)

// liftMediaDeadline removes the server write timeout for media downloads,
// whose transfer time grows with the file. It must wrap the handler the
// server calls directly so the response controller reaches the connection.
func liftMediaDeadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, MediaPrefix) {
			if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
				logctx.LoggerFromContext(r.Context()).Debug("failed to lift write deadline", "path", r.URL.Path, "err", err)
			}
		}

		next.ServeHTTP(w, r)
	})
}
