package offlinekit

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/offline-kit/offline-kit/cache"
)

// offlineError is the machine-readable payload synthesized for
// API-style endpoints when the origin is unreachable and nothing is
// cached for the request.
type offlineError struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// writeOfflineFallback synthesizes the "offline, no cached data"
// response. API-style paths get JSON, everything else plain text;
// both carry a 503 status.
func writeOfflineFallback(w http.ResponseWriter, r *http.Request) {
	cs := CacheStatus{}
	cs.Forward(CacheStatusFwdMiss)
	w.Header().Add("Cache-Status", cs.String())
	if strings.HasPrefix(r.URL.Path, APIPrefix) {
		cache.OfflineFallbacks.WithLabelValues("api").Inc()
		body, _ := json.Marshal(offlineError{
			Error:     "Offline",
			Message:   "You are offline and no cached data is available",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write(body)
		return
	}
	cache.OfflineFallbacks.WithLabelValues("plain").Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("You are offline and no cached version is available"))
}
