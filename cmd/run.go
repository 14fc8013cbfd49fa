package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/spaghettifunk/preloader/engine"
	"github.com/spaghettifunk/preloader/engine/assets"
	"github.com/spaghettifunk/preloader/engine/config"
	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/overlay"
	"github.com/spaghettifunk/preloader/engine/systems"
	"github.com/spaghettifunk/preloader/testbed"
)

type runFlags struct {
	manifest    string
	groups      []string
	async       bool
	watch       bool
	tui         bool
	noAudio     bool
	metricsAddr string
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Preload the groups of a manifest",
	Long: `Preload the named groups of a YAML manifest, or all of them, and exit
once every resource settled. Individual load failures are logged and do not
stop the run; an unknown resource kind does.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runPreload(cmd, cfg, runOpts)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.manifest, "manifest", "m", "manifest.yaml", "YAML manifest listing resource groups")
	f.StringSliceVarP(&runOpts.groups, "group", "g", nil, "groups to preload, in order (default all)")
	f.BoolVar(&runOpts.async, "async", false, "skip preload steps while the frame rate is low")
	f.BoolVar(&runOpts.watch, "watch", false, "drop cached files when they change on disk")
	f.BoolVar(&runOpts.tui, "tui", false, "show a loading screen")
	f.BoolVar(&runOpts.noAudio, "no-audio", false, "run without an audio subsystem")
	f.StringVar(&runOpts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	RootCmd.AddCommand(runCmd)
}

func runPreload(cmd *cobra.Command, cfg *config.Config, opts runFlags) error {
	manifest, err := assets.LoadManifest(opts.manifest)
	if err != nil {
		return err
	}
	groups, err := manifest.Select(opts.groups...)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg, runtimeOptions{watch: opts.watch, noAudio: opts.noAudio, metricsAddr: opts.metricsAddr})
	if err != nil {
		return err
	}
	defer rt.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.tui {
		return runWithOverlay(cfg, rt, groups, opts.async)
	}
	return runHeadless(ctx, cmd, cfg, rt, groups, opts.async)
}

func runHeadless(ctx context.Context, cmd *cobra.Command, cfg *config.Config, rt *runtime, groups [][]assets.Descriptor, async bool) error {
	var total int
	lg, err := testbed.NewLoadingGame(testbed.Options{
		Dispatch:     rt.dispatch,
		Groups:       groups,
		Async:        async,
		StartDelay:   cfg.StartDelay(),
		Interval:     cfg.TickInterval(),
		MinFrameRate: cfg.Preload.MinFrameRate,
		Metrics:      rt.metrics,
		OnComplete:   func(s *systems.Session) { total = s.Total() },
	})
	if err != nil {
		return err
	}

	host, err := engine.New(lg.Game)
	if err != nil {
		return err
	}
	if err := host.Initialize(); err != nil {
		return err
	}
	defer func() { _ = host.Shutdown() }()

	if err := host.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "preloaded %d resources\n", total)
	return nil
}

// runWithOverlay drives the default session from wall-clock ticks while the
// loading screen polls its percentage.
func runWithOverlay(cfg *config.Config, rt *runtime, groups [][]assets.Descriptor, async bool) error {
	ticks := systems.NewTimerScheduler()
	defer ticks.Close()
	if err := systems.ConfigureDefault(systems.SessionConfig{
		Dispatch:     rt.dispatch,
		Ticks:        ticks,
		Interval:     cfg.TickInterval(),
		MinFrameRate: cfg.Preload.MinFrameRate,
		Metrics:      rt.metrics,
	}); err != nil {
		return err
	}
	session, err := systems.Default()
	if err != nil {
		return err
	}

	var program *tea.Program
	send := func(msg tea.Msg) { program.Send(msg) }
	model := overlay.New(session.Percentage, overlayStart(session, groups, async, send), nil, overlay.WithStartDelay(cfg.StartDelay()))
	program = tea.NewProgram(model)
	// keep log lines from tearing the loading screen
	core.SetLogOutput(io.Discard)
	if _, err := program.Run(); err != nil {
		return err
	}
	return model.Err()
}

// overlayStart starts the session when the loading screen asks for it. A run
// that aborts later ends the screen through send.
func overlayStart(s *systems.Session, groups [][]assets.Descriptor, async bool, send func(tea.Msg)) overlay.StartFunc {
	return func() error {
		return s.Start(systems.Request{
			Groups: groups,
			Async:  async,
			OnComplete: func(s *systems.Session) {
				core.LogInfo("preload %s finished", s.ID())
			},
			OnError: func(_ *systems.Session, err error) {
				send(overlay.FailedMsg{Err: err})
			},
		})
	}
}
