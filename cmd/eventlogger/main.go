package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"event-logger/eventlogger"
)

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	var configPath string
	var apiKey string
	var apiURL string
	var dbPath string
	var transport string
	var syslogAddr string
	var ttl time.Duration
	var maxEventCount int
	var deleteOnFailure bool
	var dropDir string
	var debug bool
	var jsonLogs bool

	var level string
	var sourceName string
	var sourceVersion string
	var errorCode string
	var errorMessage string
	var infoPairs multiFlag
	var infoJSON string
	var flush bool
	var once bool
	var pollInterval time.Duration

	flag.StringVar(&configPath, "config", "", "YAML config file path.")
	flag.StringVar(&apiKey, "api-key", "", "Collection endpoint API key (overrides config and EVENTLOGGER_API_KEY).")
	flag.StringVar(&apiURL, "api-url", "", "Collection endpoint URL (overrides config and EVENTLOGGER_API_URL).")
	flag.StringVar(&dbPath, "db", eventlogger.DefaultDBPath, "SQLite database path for pending events.")
	flag.StringVar(&transport, "transport", "http", "Sender transport: http or syslog.")
	flag.StringVar(&syslogAddr, "syslog-addr", eventlogger.DefaultSyslogAddr, "Syslog receiver address (tcp).")
	flag.DurationVar(&ttl, "ttl", eventlogger.DefaultTTL, "Time-to-live of stored events before a time-based flush.")
	flag.IntVar(&maxEventCount, "max-event-count", eventlogger.DefaultMaxEventCount, "Stored event count that triggers a flush.")
	flag.BoolVar(&deleteOnFailure, "delete-on-failure", false, "Drop stored events when a flush fails.")
	flag.StringVar(&dropDir, "drop-dir", "", "Directory receiving dropped batches as JSON.")
	flag.BoolVar(&debug, "debug", false, "Enable debug logs.")
	flag.BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON.")

	flag.StringVar(&level, "level", "", "Log one event with this severity: critical or warning.")
	flag.StringVar(&sourceName, "source", "", "Event source name (e.g. app or SDK name).")
	flag.StringVar(&sourceVersion, "source-version", "", "Event source version.")
	flag.StringVar(&errorCode, "code", "", "Error code.")
	flag.StringVar(&errorMessage, "message", "", "Error message.")
	flag.Var(&infoPairs, "info", "Extra info as key=value. Can be repeated.")
	flag.StringVar(&infoJSON, "info-json", "", "Extra info as a JSON object; nested values become dotted keys.")
	flag.BoolVar(&flush, "flush", false, "Send every stored event now.")
	flag.BoolVar(&once, "once", true, "Run once and exit. With --once=false, flush on TTL expiry until interrupted.")
	flag.DurationVar(&pollInterval, "poll-interval", time.Minute, "TTL check interval when running with --once=false.")
	flag.Parse()

	visited := map[string]bool{}
	flag.CommandLine.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})

	fileCfg := &eventlogger.FileConfig{}
	if configPath != "" {
		cfg, err := eventlogger.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		fileCfg = cfg
	}
	fileCfg.ApplyEnv()

	// Merge config + CLI overrides
	if visited["api-key"] {
		fileCfg.APIKey = apiKey
	}
	if visited["api-url"] {
		fileCfg.APIURL = apiURL
	}
	if visited["db"] || fileCfg.DB == "" {
		fileCfg.DB = dbPath
	}
	if visited["transport"] {
		fileCfg.Transport = transport
	}
	if visited["syslog-addr"] {
		fileCfg.SyslogAddr = syslogAddr
	}
	if visited["ttl"] {
		fileCfg.TTL = ttl
	}
	if visited["max-event-count"] {
		fileCfg.MaxEventCount = maxEventCount
	}
	if visited["delete-on-failure"] {
		fileCfg.DeleteOnFailure = &deleteOnFailure
	}
	if visited["drop-dir"] {
		fileCfg.DropDir = dropDir
	}
	if visited["debug"] {
		fileCfg.Debug = debug
	}
	cfg := fileCfg.WithDefaults()

	logLevel := eventlogger.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := eventlogger.InitLogging(os.Stderr, jsonLogs, logLevel)

	db, err := eventlogger.OpenDB(cfg.DB)
	if err != nil {
		logger.Error("open db", slog.String("path", cfg.DB), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer eventlogger.CloseDB(db)

	var sender eventlogger.Sender
	switch strings.ToLower(cfg.Transport) {
	case "http":
		sender = eventlogger.NewHTTPSender(eventlogger.WithTimeout(cfg.SendTimeout))
	case "syslog":
		sender = eventlogger.NewSyslogSender(cfg.SyslogAddr, cfg.SendTimeout)
	default:
		fmt.Fprintf(os.Stderr, "unknown transport %q (use http or syslog)\n", cfg.Transport)
		os.Exit(2)
	}

	engine := eventlogger.NewEngine(
		eventlogger.NewSQLStore(db),
		sender,
		eventlogger.NewSQLCache(db),
		eventlogger.WithTTL(cfg.TTL),
		eventlogger.WithMaxEventCount(cfg.MaxEventCount),
		eventlogger.WithDeleteOnFailure(cfg.DeleteOnFailureOrDefault()),
		eventlogger.WithDropDir(cfg.DropDir),
		eventlogger.WithEnvironment(eventlogger.CaptureEnvironment(cfg.App)),
		eventlogger.WithLogger(logger),
		eventlogger.WithMetrics(eventlogger.NewMetricsRecorder()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !engine.Configure(ctx, fileCfg.APIConfig(), func(ok bool, msg string) {
		logger.Debug(msg, slog.Bool("configured", ok))
	}) {
		fmt.Fprintln(os.Stderr, "missing api key or url (use config.yaml, EVENTLOGGER_API_KEY/EVENTLOGGER_API_URL or --api-key/--api-url)")
		os.Exit(2)
	}

	if level != "" {
		typ, ok := eventlogger.ParseEventType(level)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown level %q (use critical or warning)\n", level)
			os.Exit(2)
		}
		if !engine.IsEventValid(sourceName, sourceVersion, errorCode, errorMessage) {
			fmt.Fprintln(os.Stderr, "--source, --source-version, --code and --message are required")
			os.Exit(2)
		}
		info, err := parseInfo(infoPairs, infoJSON)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if typ == eventlogger.EventTypeCritical {
			engine.LogCritical(ctx, sourceName, sourceVersion, errorCode, errorMessage, info)
		} else {
			engine.LogWarning(ctx, sourceName, sourceVersion, errorCode, errorMessage, info)
		}
	}

	if flush {
		engine.SendAllEventsInStorage(ctx, cfg.DeleteOnFailureOrDefault())
	}

	if once {
		return
	}
	if err := engine.Run(ctx, pollInterval); err != nil && ctx.Err() == nil {
		logger.Error("run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// parseInfo merges the flattened --info-json object with --info pairs; pairs win.
func parseInfo(pairs []string, rawJSON string) (map[string]string, error) {
	var out map[string]string
	if strings.TrimSpace(rawJSON) != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(rawJSON), &decoded); err != nil {
			return nil, fmt.Errorf("invalid --info-json: %w", err)
		}
		out = eventlogger.FlattenInfo(decoded, eventlogger.FlattenOptions{})
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --info %q (use key=value)", p)
		}
		if out == nil {
			out = make(map[string]string, len(pairs))
		}
		out[k] = v
	}
	return out, nil
}
