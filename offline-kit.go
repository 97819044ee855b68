package offlinekit

import (
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sync"

	"github.com/offline-kit/offline-kit/cache"
	cachekey "github.com/offline-kit/offline-kit/pkg/cache-key"

	"github.com/rs/zerolog"
)

type Config struct {
	// Storage for cached responses.
	Cache cache.CacheProvider
	// URL of the origin server, for reverse-proxy use.
	// Leave empty when only Middleware is used.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation.
	// Use if needed if e.g. the origin URL is just an IP address.
	OriginHost string
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
	// Disable rewriting of HTML responses with the offline bootstrap.
	DisableInjection bool
	// Do not activate the current generation on creation.
	// Activation then happens on the first SkipWaiting call.
	HoldActivation bool
}

// Lifecycle states of the kit. A new instance starts out installing,
// purges stale generations while activating, and then stays active
// until a newer generation (i.e. a new process) supersedes it.
type agentState int

const (
	stateInstalling agentState = iota
	stateActivating
	stateActive
)

func (s agentState) String() string {
	switch s {
	case stateInstalling:
		return "installing"
	case stateActivating:
		return "activating"
	default:
		return "active"
	}
}

// fetchFunc produces the live response for a request, from the origin
// server or from an inner handler. An error means the fetch failed and
// the offline fallback path should run.
type fetchFunc func(*http.Request) (*http.Response, error)

type OfflineKit struct {
	cache     cache.CacheProvider
	keyer     cachekey.Keyer
	log       zerolog.Logger
	client    http.Client
	originURL url.URL
	inject    bool

	stateMu sync.Mutex
	state   agentState
}

// New initializes the offline-kit instance and runs its install and
// activate transitions. There is no staged rollout: unless
// HoldActivation is set, the instance is active when New returns.
func New(config Config) *OfflineKit {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	logger = logger.With().
		Str("generation", CacheGeneration).
		Logger()

	o := &OfflineKit{
		cache:     config.Cache,
		log:       logger,
		originURL: config.OriginURL,
		inject:    !config.DisableInjection,
		state:     stateInstalling,
		client: http.Client{
			// do not follow redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}

	// use provided hostname for origin if configured
	if config.OriginHost != "" {
		o.client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				ServerName: config.OriginHost,
			},
		}
	}

	o.log.Debug().Msg("Installing")
	if !config.HoldActivation {
		o.activate()
	}

	return o
}

// SkipWaiting forces an instance that is still installing to activate
// immediately. It does nothing on an already active instance.
func (o *OfflineKit) SkipWaiting() {
	o.activate()
}

// State returns the current lifecycle state as a string.
func (o *OfflineKit) State() string {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state.String()
}

// activate purges every stored generation other than the current one.
// Eviction is whole-generation replacement; there is no partial
// retention. A fetch handler still writing under a stale generation
// while it is being purged loses the race, and that is accepted.
func (o *OfflineKit) activate() {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	if o.state == stateActive {
		return
	}
	o.state = stateActivating
	generations, err := o.cache.Generations()
	if err != nil {
		o.log.Error().Err(err).Msg("Could not enumerate generations")
	} else {
		for _, generation := range generations {
			if generation == CacheGeneration {
				continue
			}
			if err := o.cache.PurgeGeneration(generation); err != nil {
				cache.CacheErrors.WithLabelValues("purge").Inc()
				o.log.Error().Err(err).Str("stale", generation).Msg("Could not purge stale generation")
			} else {
				o.log.Info().Str("stale", generation).Msg("Purged stale generation")
			}
		}
	}
	o.state = stateActive
	o.log.Info().Msg("Generation active")
}

// ServeHTTP implements the http.Handler interface.
// It serves the policy script at the well-known path and proxies
// everything else to the configured origin under the interception
// policy.
func (o *OfflineKit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == WellKnownPath {
		o.ServePolicyScript(w, r)
		return
	}
	o.serve(w, r, o.fetchOrigin)
}

// Middleware wraps an in-process handler with the interception policy.
// A panic in the inner handler counts as a failed fetch and triggers
// the offline fallback path.
func (o *OfflineKit) Middleware(next http.Handler) http.Handler {
	fetch := o.fetchNext(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == WellKnownPath {
			o.ServePolicyScript(w, r)
			return
		}
		o.serve(w, r, fetch)
	})
}

// ServePolicyScript serves the generated policy script.
// The script itself must never be cached by intermediaries, so that
// clients always pick up the freshest generation.
func (o *OfflineKit) ServePolicyScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Service-Worker-Allowed", "/")
	cs := CacheStatus{}
	cs.Forward(CacheStatusFwdBypass)
	w.Header().Add("Cache-Status", cs.String())
	io.WriteString(w, GeneratePolicy())
}

// serve runs the interception policy for one request.
func (o *OfflineKit) serve(w http.ResponseWriter, r *http.Request, fetch fetchFunc) {
	logger := o.log.With().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Logger()

	// only GET is intercepted; everything else passes through with no
	// caching side effect
	if r.Method != http.MethodGet {
		res, err := fetch(r)
		if err != nil {
			logger.Error().Err(err).Msg("Could not fetch response from origin")
			http.Error(w, "Error contacting origin", http.StatusBadGateway)
			return
		}
		cs := CacheStatus{}
		cs.Forward(CacheStatusFwdMethod)
		o.send(w, res, cs)
		return
	}

	key := o.keyer.Key(r)

	res, err := fetch(r)
	if err == nil {
		o.sendLive(w, r, res, key, logger)
		return
	}

	// fetch failure is the expected trigger for the fallback path,
	// not an error to surface
	logger.Debug().Err(err).Msg("Origin unreachable, trying cache")
	if bts, ok, cerr := o.cache.Get(CacheGeneration, key); cerr == nil && ok {
		stored, rerr := bytesToResponse(bts)
		if rerr == nil {
			cache.CacheHits.Inc()
			cs := CacheStatus{}
			cs.Hit()
			cs.Detail("offline")
			o.send(w, stored, cs)
			logger.Debug().Str("key", key).Msg("Served stored response")
			return
		}
		logger.Error().Err(rerr).Str("key", key).Msg("Could not read stored response")
	} else if cerr != nil {
		cache.CacheErrors.WithLabelValues("get").Inc()
	}
	cache.CacheMisses.Inc()
	writeOfflineFallback(w, r)
	logger.Debug().Str("key", key).Msg("Served offline fallback")
}

// sendLive delivers a live response, injecting the offline bootstrap
// into HTML and storing a copy for successful responses. The store
// write happens in a goroutine; delivery does not wait for it.
func (o *OfflineKit) sendLive(w http.ResponseWriter, r *http.Request, res *http.Response, key string, logger zerolog.Logger) {
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Could not read origin response")
		http.Error(w, "Error reading origin response", http.StatusBadGateway)
		return
	}

	ok := res.StatusCode >= 200 && res.StatusCode < 300

	if ok && o.inject && isHTML(res.Header) {
		body = Inject(body)
	}

	cs := CacheStatus{}
	cs.Forward(CacheStatusFwdMiss)
	if ok && r.URL.Path != WellKnownPath {
		cs.Stored = true
		bts := responseBytes(res.StatusCode, res.Header, body)
		// fire and forget
		go o.store(key, bts)
	}

	copyHeader(w.Header(), res.Header)
	w.Header().Del("Transfer-Encoding")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Header().Add("Cache-Status", cs.String())
	w.WriteHeader(res.StatusCode)
	if _, err := w.Write(body); err != nil {
		logger.Error().Err(err).Msg("Could not write response body to client")
	}
	logger.Debug().Int("status", res.StatusCode).Bool("stored", cs.Stored).Msg("Sent live response")
}

// store writes a serialized response to the cache. Failures are logged
// and dropped: caching is best effort only.
func (o *OfflineKit) store(key string, bts []byte) {
	if err := o.cache.Put(CacheGeneration, key, bts); err != nil {
		cache.CacheErrors.WithLabelValues("put").Inc()
		o.log.Debug().Err(err).Str("key", key).Msg("Could not write to cache")
		return
	}
	cache.CacheStores.Inc()
	o.log.Trace().Str("key", key).Msg("Cache write")
}

func (o *OfflineKit) send(w http.ResponseWriter, res *http.Response, cs CacheStatus) {
	if res.Body != nil {
		defer res.Body.Close()
	}
	copyHeader(w.Header(), res.Header)
	w.Header().Add("Cache-Status", cs.String())
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		o.log.Error().Err(err).Msg("Could not write response body to client")
	}
}

// fetchOrigin fetches the resource specified in the incoming request
// from the origin server.
func (o *OfflineKit) fetchOrigin(r *http.Request) (*http.Response, error) {
	req, err := http.NewRequest(r.Method, o.originURL.String()+r.URL.RequestURI(), r.Body)
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, r.Header)
	req.Host = o.originURL.Host
	return o.client.Do(req)
}

// fetchNext runs the inner handler and turns its buffered output back
// into a response. A panic in the handler is returned as an error.
func (o *OfflineKit) fetchNext(next http.Handler) fetchFunc {
	return func(r *http.Request) (res *http.Response, err error) {
		rw := NewResponseSaver()
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("handler panic: %v", rec)
				}
			}()
			next.ServeHTTP(rw, r)
		}()
		if err != nil {
			return nil, err
		}
		return bytesToResponse(rw.Response())
	}
}

// Status describes the kit for operational endpoints.
type Status struct {
	Generation string `json:"generation"`
	State      string `json:"state"`
	StoredGets int    `json:"storedGets"`
}

// Status reports the current generation, lifecycle state, and the
// number of stored GET responses.
func (o *OfflineKit) Status() Status {
	count := 0
	if err := o.cache.Keys(CacheGeneration, o.keyer.MethodPrefix(http.MethodGet), func(string) {
		count++
	}); err != nil {
		o.log.Error().Err(err).Msg("Could not count cache keys")
	}
	return Status{
		Generation: CacheGeneration,
		State:      o.State(),
		StoredGets: count,
	}
}

func isHTML(header http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "text/html"
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// this is a workaround to remove default headers sent by an upstream proxy
		// some servers do not like the presence of these headers in the downstream request
		if k != "X-Forwarded-For" && k != "X-Forwarded-Proto" && k != "X-Forwarded-Host" {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}
