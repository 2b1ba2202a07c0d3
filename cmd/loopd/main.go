// Command loopd runs the loop engine as a standalone daemon: it opens its
// configured MIDI/OSC outputs, serves Prometheus metrics, and drives the
// five engine loops until it receives SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/iltempo/oiduna-loop/internal/command"
	"github.com/iltempo/oiduna-loop/internal/engine"
	"github.com/iltempo/oiduna-loop/internal/logging"
	"github.com/iltempo/oiduna-loop/internal/metrics"
	"github.com/iltempo/oiduna-loop/internal/midiout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	destinationsPath := flag.String("destinations", "", "path to destinations.yaml")
	legacyMidiPort := flag.String("midi-port", "", "legacy MIDI output port name (exact match)")
	legacyOscHost := flag.String("osc-host", "", "legacy OSC target host")
	legacyOscPort := flag.Int("osc-port", 57120, "legacy OSC target port")
	legacyOscAddress := flag.String("osc-address", "/dirt/play", "legacy OSC event address")
	telemetryCapacity := flag.Int("telemetry-capacity", 256, "bounded telemetry queue capacity")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	listPorts := flag.Bool("list-ports", false, "list available MIDI output ports and exit")
	logLevel := flag.String("log-level", "info", "zerolog level: debug, info, warn, error")
	flag.Parse()

	if *listPorts {
		for i, name := range midiout.ListPorts() {
			fmt.Printf("%d: %s\n", i, name)
		}
		return
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logging.New(os.Stdout, level)

	reg := prometheus.NewRegistry()
	met := metrics.New()
	reg.MustRegister(met.Collectors()...)

	commands := command.NewInProcessSource(64)

	eng := engine.New(engine.Config{
		DestinationsPath:  *destinationsPath,
		LegacyMidiPort:    *legacyMidiPort,
		LegacyOscHost:     *legacyOscHost,
		LegacyOscPort:     *legacyOscPort,
		LegacyOscAddress:  *legacyOscAddress,
		TelemetryCapacity: *telemetryCapacity,
		Metrics:           met,
	}, commands, log)

	if err := eng.Start(); err != nil {
		log.Fatal().Err(err).Msg("engine failed to start")
	}
	defer eng.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down gracefully")
		cancel()
	}()

	log.Info().Str("metrics_addr", *metricsAddr).Msg("loopd running")
	if err := eng.Run(ctx); err != nil {
		log.Error().Err(err).Msg("engine run returned an error")
	}

	_ = metricsServer.Close()
}
