package main

import (
	"fmt"
	"io"

	"github.com/andrelcunha/ottermock/pkg/broker"
	"github.com/andrelcunha/ottermock/pkg/management"
	"github.com/andrelcunha/ottermock/pkg/metrics"
	"github.com/andrelcunha/ottermock/pkg/topology"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type runOptions struct {
	metrics   bool
	legacyPop bool
	overview  bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Apply a scenario file to a fresh session and print the resulting state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.metrics {
				root.cfg.EnableMetrics = true
			}
			if opts.legacyPop {
				root.cfg.LegacyPop = true
			}
			return runScenario(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print Prometheus metrics after the report")
	cmd.Flags().BoolVar(&opts.legacyPop, "legacy-pop", false, "use the untracked pop shape")
	cmd.Flags().BoolVar(&opts.overview, "overview", false, "print a management overview of the session after the report")
	return cmd
}

func runScenario(cmd *cobra.Command, root *rootOptions, opts *runOptions, path string) error {
	topo, err := topology.LoadFile(path)
	if err != nil {
		return err
	}

	sessionOpts, err := broker.SessionOptionsFromConfig(root.cfg)
	if err != nil {
		return err
	}
	session := broker.NewSession(sessionOpts).Start()
	defer session.Close()

	var (
		report   *topology.Report
		overview *management.OverviewDTO
	)
	err = session.WithChannel(func(ch *broker.Channel) error {
		var applyErr error
		if report, applyErr = topo.Apply(ch); applyErr != nil {
			return applyErr
		}
		// Taken while the scenario channel is still open.
		overview = management.NewService(session).GetOverview()
		return nil
	})
	if err != nil {
		return fmt.Errorf("scenario %s: %w", path, err)
	}
	log.Info().Str("scenario", path).Int("queues", len(report.Queues)).Msg("Scenario applied")

	out := cmd.OutOrStdout()
	if err := report.Write(out); err != nil {
		return err
	}
	if opts.overview {
		fmt.Fprintln(out, "---")
		if err := writeYAML(out, map[string]*management.OverviewDTO{"overview": overview}); err != nil {
			return err
		}
	}
	if collector, ok := session.Metrics().(*metrics.PrometheusCollector); ok {
		fmt.Fprintln(out, "---")
		return collector.WriteText(out)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode overview: %w", err)
	}
	return enc.Close()
}
