package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cwbudde/clinventory/internal/backend"
	"github.com/cwbudde/clinventory/internal/cl"
	"github.com/cwbudde/clinventory/internal/metrics"
	"github.com/cwbudde/clinventory/internal/telemetry"
)

var (
	logLevel    string
	runtimeName string
	traceSpans  bool
	metricsFile string

	// finishers run after the command, whether it failed or not.
	finishers []func()
)

var rootCmd = &cobra.Command{
	Use:   "clinventory",
	Short: "Inventory OpenCL platforms and exercise each device with a vector addition",
	Long: `clinventory lists the compute platforms and devices exposed by an OpenCL
runtime, reports their capabilities, and validates each eligible device by
running a vector-addition kernel and checking the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		if traceSpans {
			shutdown, err := telemetry.InitTracer(os.Stderr, version)
			if err != nil {
				return err
			}
			finishers = append(finishers, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("Tracer shutdown failed")
				}
			})
		}

		if metricsFile != "" {
			path := metricsFile
			finishers = append(finishers, func() {
				if err := metrics.WriteFile(path); err != nil {
					log.Warn().Err(err).Str("path", path).Msg("Writing metrics failed")
					return
				}
				log.Debug().Str("path", path).Msg("Metrics written")
			})
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&runtimeName, "runtime", string(backend.BackendOpenCL), "Compute runtime ("+backend.SupportedNames()+")")
	rootCmd.PersistentFlags().BoolVar(&traceSpans, "trace", false, "Export OpenTelemetry spans to stderr")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
}

func setupLogger() {
	var level zerolog.Level
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// openRuntime opens the runtime selected by --runtime.
func openRuntime() (cl.Runtime, func(), error) {
	rt, cleanup, err := backend.NewRuntimeForBackend(runtimeName)
	if err != nil {
		return nil, cleanup, err
	}
	log.Debug().Str("runtime", string(backend.NormalizeBackend(runtimeName))).Msg("Runtime opened")
	return rt, cleanup, nil
}

func finish() {
	for i := len(finishers) - 1; i >= 0; i-- {
		finishers[i]()
	}
	finishers = nil
}
