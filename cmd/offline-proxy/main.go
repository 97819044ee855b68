package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	offlinekit "github.com/offline-kit/offline-kit"
	"github.com/offline-kit/offline-kit/cache"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	originFlag         string
	hostFlag           string
	providerFlag       string
	dbFilenameFlag     string
	redisAddrFlag      string
	noInjectFlag       bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides config)")
	flag.StringVar(&hostFlag, "host", "", "Hostname of origin")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&providerFlag, "provider", "sqlite", "Cache provider to use (sqlite, memory, redis)")
	flag.StringVar(&dbFilenameFlag, "db", "cache.db", "Cache DB file name (sqlite provider)")
	flag.StringVar(&redisAddrFlag, "redis", "localhost:6379", "Redis address (redis provider)")
	flag.BoolVar(&noInjectFlag, "no-inject", false, "Do not rewrite HTML responses")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// the -redis flag has a non-empty default, so only a flag the user
	// actually set may override the config file
	redisFlagSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "redis" {
			redisFlagSet = true
		}
	})

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config := Config{
		Port:     portFlag,
		Provider: providerFlag,
		DB:       dbFilenameFlag,
	}
	if configFilenameFlag != "" {
		fileConfig, err := getConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
		config = fileConfig
		if config.Port == 0 {
			config.Port = portFlag
		}
		if config.Provider == "" {
			config.Provider = providerFlag
		}
		if config.DB == "" {
			config.DB = dbFilenameFlag
		}
	}
	// flags override config
	if originFlag != "" {
		config.Origin = originFlag
	}
	if hostFlag != "" {
		config.Host = hostFlag
	}
	config.RedisAddr = resolveRedisAddr(config.RedisAddr, redisAddrFlag, redisFlagSet)
	if noInjectFlag {
		config.DisableInjection = true
	}

	if config.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}
	originURL, err := url.Parse(config.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}

	kitConfig := offlinekit.Config{
		Cache:            getProvider(config),
		OriginURL:        *originURL,
		OriginHost:       config.Host,
		Logger:           &log.Logger,
		DisableInjection: config.DisableInjection,
	}
	kit := offlinekit.New(kitConfig)

	r := chi.NewRouter()
	r.Get(offlinekit.WellKnownPath, kit.ServePolicyScript)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "OK")
	})
	r.Get("/.offline-kit/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(kit.Status())
	})
	// everything else goes through the interception policy
	r.NotFound(kit.ServeHTTP)
	r.MethodNotAllowed(kit.ServeHTTP)

	log.Info().Msgf("Proxying port %v to %s (with hostname '%s')", config.Port, config.Origin, config.Host)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", config.Port), r); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// resolveRedisAddr picks the redis address: a flag the user actually
// set wins, then the config file value, then the flag default.
func resolveRedisAddr(fileValue, flagValue string, flagSet bool) string {
	if flagSet || fileValue == "" {
		return flagValue
	}
	return fileValue
}

func getProvider(config Config) cache.CacheProvider {
	switch config.Provider {
	case "memory":
		return cache.NewMemCache()
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: config.RedisAddr,
		})
		return cache.NewRedisCache(client)
	default:
		dbFilename := config.DB
		if dbFilename == "memory" {
			dbFilename = "file::memory:?cache=shared"
		}
		return cache.NewSQLiteCache(dbFilename)
	}
}
