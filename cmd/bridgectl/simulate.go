package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	authbridge "github.com/goliatone/go-authbridge"
	bridgeprom "github.com/goliatone/go-authbridge/adapters/prometheus"
	"github.com/goliatone/go-authbridge/adapters/tomlconfig"
	bridgecommand "github.com/goliatone/go-authbridge/command"
	"github.com/goliatone/go-authbridge/core"
	bridgequery "github.com/goliatone/go-authbridge/query"
	sqlstore "github.com/goliatone/go-authbridge/store/sql"
	gocmd "github.com/goliatone/go-command"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	preset         string
	viewID         string
	terminateAfter time.Duration
	launchToken    string
	launchUsername string
	failTarget     string
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one visible, waves, terminate cycle on a virtual clock",
		Long: `Run the bridge against the configured store with a logging message sink.
The view becomes visible, waves fire on a virtual clock and the view is
terminated after --terminate-after (or once every wave has fired). The
session snapshot, the runtime settings and the exported metrics are printed.

Examples:
  # Full exhaustive cycle from whatever credential is stored
  bridgectl simulate

  # Cut the session short and fall back to a launch payload
  bridgectl simulate --terminate-after 2s --launch-token tok2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.preset, "preset", "", "policy preset: exhaustive or conservative")
	cmd.Flags().StringVar(&opts.viewID, "view", "game", "view id")
	cmd.Flags().DurationVar(&opts.terminateAfter, "terminate-after", 0, "virtual time before the view terminates (0 runs every wave)")
	cmd.Flags().StringVar(&opts.launchToken, "launch-token", "", "arm a launch payload with this token before the view is visible")
	cmd.Flags().StringVar(&opts.launchUsername, "launch-username", "", "username carried by the launch payload")
	cmd.Flags().StringVar(&opts.failTarget, "fail-target", "", "make every send to this target name fail")
	return cmd
}

// loggingSink records sends per target and optionally prints each one.
type loggingSink struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	fail    string
	counts  map[string]int
}

func (s *loggingSink) Send(target core.InjectionTarget, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := target.Name + "." + target.Action
	s.counts[key]++
	if s.verbose {
		fmt.Fprintf(s.out, "send %s bytes=%d\n", key, len(payload))
	}
	if s.fail != "" && target.Name == s.fail {
		return fmt.Errorf("target %s unavailable", target.Name)
	}
	return nil
}

func (s *loggingSink) summary() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]string, 0, len(s.counts))
	for key, count := range s.counts {
		lines = append(lines, fmt.Sprintf("%s=%d", key, count))
	}
	sort.Strings(lines)
	return lines
}

func runSimulate(cmd *cobra.Command, root *rootOptions, opts *simulateOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	client, err := openClient(ctx, root)
	if err != nil {
		return err
	}
	defer client.Close()

	runtime := core.Config{AppID: strings.TrimSpace(root.appID)}
	runtime.Policy.Preset = strings.TrimSpace(opts.preset)

	registry := prometheus.NewRegistry()
	dispatcher := core.NewVirtualDispatcher()
	sink := &loggingSink{
		out:     out,
		verbose: root.verbose,
		fail:    strings.TrimSpace(opts.failTarget),
		counts:  map[string]int{},
	}

	serviceOpts := []core.Option{
		core.WithConfigProvider(tomlconfig.NewConfigProvider(root.configPath)),
		core.WithLogger(newLogger(out, root.verbose)),
		core.WithMetricsRecorder(bridgeprom.NewRecorder(registry)),
		core.WithPersistenceClient(client),
		core.WithRepositoryFactory(sqlstore.NewRepositoryFactory()),
		core.WithDispatcher(dispatcher),
		core.WithMessageSink(sink),
	}
	if strings.TrimSpace(root.sealKey) != "" {
		cfg, cfgErr := loadConfig(ctx, root)
		if cfgErr != nil {
			return cfgErr
		}
		store, storeErr := preferenceStore(client, cfg, root)
		if storeErr != nil {
			return storeErr
		}
		serviceOpts = append(serviceOpts, core.WithPreferenceStore(store))
	}
	service, err := authbridge.NewService(runtime, serviceOpts...)
	if err != nil {
		return err
	}
	defer service.Close()

	facade, err := authbridge.NewFacade(service)
	if err != nil {
		return err
	}
	commands := facade.Commands()
	queries := facade.Queries()
	view := core.ViewRef{ID: opts.viewID}

	if token := strings.TrimSpace(opts.launchToken); token != "" {
		payload := core.LaunchPayload{core.LaunchKeyToken: token}
		if username := strings.TrimSpace(opts.launchUsername); username != "" {
			payload[core.LaunchKeyUsername] = username
		}
		if err := commands.LaunchActivated.Execute(ctx, bridgecommand.LaunchActivatedMessage{Payload: payload}); err != nil {
			return err
		}
	}

	handleResult := gocmd.NewResult[core.SessionHandle]()
	if err := commands.ViewVisible.Execute(gocmd.ContextWithResult(ctx, handleResult), bridgecommand.ViewVisibleMessage{View: view}); err != nil {
		return err
	}
	handle, _ := handleResult.Load()
	policy := service.Policy()
	fmt.Fprintf(out, "session %s started: %d waves x %d targets\n", handle, len(policy.Delays), len(policy.Targets))

	if opts.terminateAfter > 0 {
		dispatcher.Advance(opts.terminateAfter)
	} else {
		dispatcher.RunAll()
	}
	termResult := gocmd.NewResult[bridgecommand.TerminationResult]()
	if err := commands.ViewTerminated.Execute(
		gocmd.ContextWithResult(ctx, termResult),
		bridgecommand.ViewTerminatedMessage{View: view, Reason: "simulate"},
	); err != nil {
		return err
	}
	terminatedAt := dispatcher.Now()
	dispatcher.RunAll()

	termination, _ := termResult.Load()
	snapshot, err := queries.SessionStatus.Query(ctx, bridgequery.SessionStatusMessage{View: view})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "terminated at %s cancelled=%t\n", terminatedAt, termination.Cancelled)
	fmt.Fprintf(out, "snapshot degraded=%t planned=%d fired=%d skipped=%d sends=%d failures=%d\n",
		snapshot.Degraded, snapshot.Planned, snapshot.WavesFired, snapshot.WavesSkipped,
		snapshot.Sends, snapshot.SendFailures)
	for _, line := range sink.summary() {
		fmt.Fprintf(out, "  %s\n", line)
	}

	state, err := queries.RuntimeState.Query(ctx, bridgequery.RuntimeStateMessage{})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "runtime state [%s] token=%t refresh=%t password=%t username=%q\n",
		service.Config().RuntimePrefsNamespace(), state.HasToken, state.HasRefreshToken, state.HasPassword, state.Username)

	return printMetrics(out, registry)
}

func printMetrics(out io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "metrics:")
	for _, family := range families {
		var total float64
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				total += float64(metric.GetHistogram().GetSampleCount())
			}
		}
		fmt.Fprintf(out, "  %s %g\n", family.GetName(), total)
	}
	return nil
}
