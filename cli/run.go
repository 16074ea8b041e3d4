package cli

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telemetry-peak-analyzer/analytics"
	"telemetry-peak-analyzer/config"
	"telemetry-peak-analyzer/models"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze one window and refresh the baseline",
		Example: `  peak-analyzer run -n "data/*.json" -s 2020-07-01 -e 2021-08-01 -t 10
  peak-analyzer run -c analyzer.yaml --store redis -d 1 -k 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringP("start-date", "s", "", "start of the window (YYYY-MM-DD)")
	flags.StringP("end-date", "e", "", "end of the window (YYYY-MM-DD), exclusive")
	flags.IntP("delta", "d", config.DefaultDelta, "window length in days when no dates are given")
	flags.IntP("delay", "k", 0, "days between the window end and today when no dates are given")
	flags.IntP("threshold", "t", 0, "submission threshold overriding the suggested ones, 0 for none")
	flags.StringP("output-file", "o", "", "write the detected peaks to this file")
	flags.String("metrics-file", "", "write prometheus metrics to this textfile after the run")
	a.bind(flags, map[string]string{
		config.KeyStartDate:   "start-date",
		config.KeyEndDate:     "end-date",
		config.KeyDelta:       "delta",
		config.KeyDelay:       "delay",
		config.KeyThreshold:   "threshold",
		config.KeyOutput:      "output-file",
		config.KeyMetricsFile: "metrics-file",
	})
	return cmd
}

func (a *app) run(cmd *cobra.Command) error {
	cfg, logger, cleanup, err := a.setup()
	if err != nil {
		return err
	}
	defer cleanup()

	start, end, err := cfg.Window(a.now())
	if err != nil {
		return err
	}
	analyzer, err := newAnalyzer(cfg, logger, start, end)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := analytics.Run(ctx, analyzer, st, cfg.Threshold)
	if err != nil {
		return err
	}
	logger.Info("Analysis finished",
		zap.Int("peaks", result.Peaks.Len()),
		zap.String("baseline_source", result.BaselineSource),
		zap.Duration("duration", result.Duration))

	if cfg.Output != "" {
		logger.Info("Saving output", zap.String("path", cfg.Output))
		if err := writePeaks(cfg.Output, result.Peaks); err != nil {
			return err
		}
	}
	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, prometheus.DefaultGatherer); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func writePeaks(path string, peaks models.TelemetryPeaks) error {
	var buf bytes.Buffer
	if err := models.EncodePeaks(&buf, peaks); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write peaks to %s: %w", path, err)
	}
	return nil
}
