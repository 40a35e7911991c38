package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"event-logger/collector"
	"event-logger/eventlogger"
)

func main() {
	var addr string
	var apiKeys string
	var debug bool

	flag.StringVar(&addr, "addr", ":8080", "Listen address.")
	flag.StringVar(&apiKeys, "api-keys", os.Getenv("COLLECTOR_API_KEYS"), "Accepted keys as tenant:key,tenant:key.")
	flag.BoolVar(&debug, "debug", false, "Enable debug logs.")
	flag.Parse()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := eventlogger.InitLogging(os.Stderr, false, level)

	keys := collector.ParseAPIKeys(apiKeys)
	if len(keys) == 0 {
		fmt.Fprintln(os.Stderr, "missing api keys (use --api-keys or COLLECTOR_API_KEYS)")
		os.Exit(2)
	}

	router := collector.NewRouter(collector.Config{APIKeys: keys, Logger: logger}, collector.NewRecorder())
	logger.Info("collector listening", slog.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("collector stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
