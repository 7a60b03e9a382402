package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockpile/internal/script"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

type applyFlags struct {
	snapshot string
	metrics  bool
}

func newApplyCmd() *cobra.Command {
	var af applyFlags
	cmd := &cobra.Command{
		Use:   "apply <script.yaml>",
		Short: "Run an operation script and save the result as a snapshot",
		Long: `Apply parses a YAML operation script, validates it against the script
schema, and runs every op against the container held in the named snapshot.
If the snapshot does not exist yet the script starts from an empty container.
The resulting container is saved back under the same name.

Example:
  stockpile apply camp.yaml --snapshot camp
  stockpile apply camp.yaml --snapshot camp --metrics --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, args[0], af)
		},
	}
	cmd.Flags().StringVar(&af.snapshot, "snapshot", "", "snapshot to load and save (required)")
	cmd.Flags().BoolVar(&af.metrics, "metrics", false, "print container metrics after the run")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}

type applyOutput struct {
	Snapshot string          `json:"snapshot"`
	Restored bool            `json:"restored"`
	Results  []script.Result `json:"results"`
	Metrics  []metricSample  `json:"metrics,omitempty"`
}

func runApply(cmd *cobra.Command, path string, af applyFlags) error {
	if err := types.ValidateName(af.snapshot); err != nil {
		return userError("%w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return userError("read script: %w", err)
	}
	s, err := script.Parse(data)
	if err != nil {
		return userError("%w", err)
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.close()

	var reg *prometheus.Registry
	if af.metrics {
		reg = prometheus.NewRegistry()
	}
	p, restored, err := e.loadPile(af.snapshot, types.ContainerID(s.Container), registerer(reg))
	if err != nil {
		return sysError("load %q: %w", af.snapshot, err)
	}

	opts := []script.RunnerOption{script.WithMetadata(p.meta), script.WithLogger(e.log)}
	if p.grid != nil {
		opts = append(opts, script.WithGrid(p.grid))
	}
	results, err := script.NewRunner(p.storage, opts...).Run(cmd.Context(), s)
	if err != nil {
		return sysError("run script: %w", err)
	}

	snap, err := p.storage.Snapshot(af.snapshot, nil)
	if err != nil {
		return sysError("snapshot: %w", err)
	}
	if err := e.store.Save(snap); err != nil {
		return sysError("save %q: %w", af.snapshot, err)
	}
	e.log.Info("script applied", "snapshot", af.snapshot, "ops", len(results), "restored", restored)

	out := applyOutput{Snapshot: af.snapshot, Restored: restored, Results: results}
	if reg != nil {
		if out.Metrics, err = gatherMetrics(reg); err != nil {
			return sysError("gather metrics: %w", err)
		}
	}
	if flags.jsonMode {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	printApply(cmd.OutOrStdout(), out)
	return nil
}

// registerer avoids handing a typed nil to newPile.
func registerer(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}

func printApply(w io.Writer, out applyOutput) {
	for _, r := range out.Results {
		fmt.Fprintln(w, r.String())
	}
	failed := 0
	for _, r := range out.Results {
		if !r.Success {
			failed++
		}
	}
	fmt.Fprintf(w, "saved %s: %d ops, %d failed\n", out.Snapshot, len(out.Results), failed)
	for _, m := range out.Metrics {
		fmt.Fprintln(w, m.String())
	}
}

// metricSample is one gathered counter or gauge value.
type metricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

func (m metricSample) String() string {
	if len(m.Labels) == 0 {
		return fmt.Sprintf("%s %g", m.Name, m.Value)
	}
	keys := make([]string, 0, len(m.Labels))
	for k := range m.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, m.Labels[k]))
	}
	return fmt.Sprintf("%s{%s} %g", m.Name, strings.Join(pairs, ","), m.Value)
}

func gatherMetrics(g prometheus.Gatherer) ([]metricSample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var out []metricSample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			s := metricSample{Name: mf.GetName()}
			for _, lp := range m.GetLabel() {
				if s.Labels == nil {
					s.Labels = make(map[string]string)
				}
				s.Labels[lp.GetName()] = lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				s.Value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				s.Value = m.GetGauge().GetValue()
			default:
				continue
			}
			out = append(out, s)
		}
	}
	return out, nil
}
