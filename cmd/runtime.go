package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spaghettifunk/preloader/engine/assets"
	"github.com/spaghettifunk/preloader/engine/assets/loaders"
	"github.com/spaghettifunk/preloader/engine/config"
	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/systems"
)

// runtime holds everything a preload run needs besides its tick source.
type runtime struct {
	jobs     *systems.JobSystem
	images   *loaders.ImageCache
	audio    *loaders.AudioBank
	data     *loaders.DataLoader
	files    *loaders.FileCache
	fonts    *loaders.FontRegistry
	dispatch *systems.DispatchTable
	watcher  *assets.Watcher
	registry *prometheus.Registry
	metrics  *systems.PreloadMetrics
	server   *http.Server
}

type runtimeOptions struct {
	watch       bool
	noAudio     bool
	metricsAddr string
}

func newRuntime(cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	jobs, err := systems.NewJobSystem(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
	if err != nil {
		return nil, err
	}
	base := cfg.Assets.BasePath
	rt := &runtime{
		jobs:     jobs,
		images:   loaders.NewImageCache(base, jobs),
		audio:    loaders.NewAudioBank(base, jobs),
		data:     loaders.NewDataLoader(base, jobs),
		files:    loaders.NewFileCache(base, jobs),
		fonts:    loaders.NewFontRegistry(base),
		registry: prometheus.NewRegistry(),
	}

	subs := systems.Subsystems{
		Images: rt.images,
		Data:   rt.data,
		Files:  rt.files,
		Fonts:  rt.fonts,
	}
	if !opts.noAudio {
		subs.Audio = rt.audio
	}
	rt.dispatch = systems.NewDispatchTable(subs)

	rt.registry.MustRegister(collectors.NewGoCollector())
	if rt.metrics, err = systems.NewPreloadMetrics(rt.registry); err != nil {
		rt.Close()
		return nil, err
	}

	if opts.watch || cfg.Assets.Watch {
		w, err := assets.NewWatcher(base)
		if err != nil {
			rt.Close()
			return nil, err
		}
		loaders.InvalidateOnChange(w, rt.images, rt.audio, rt.data, rt.files, rt.fonts)
		if err := w.Start(); err != nil {
			_ = w.Close()
			rt.Close()
			return nil, err
		}
		rt.watcher = w
	}

	if opts.metricsAddr != "" {
		if err := rt.serveMetrics(opts.metricsAddr); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

func (rt *runtime) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	rt.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := rt.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			core.LogError("metrics server: %s", err.Error())
		}
	}()
	core.LogInfo("Serving metrics on http://%s/metrics", ln.Addr())
	return nil
}

func (rt *runtime) Close() {
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = rt.server.Shutdown(ctx)
		cancel()
	}
	if rt.watcher != nil {
		_ = rt.watcher.Close()
	}
	_ = rt.jobs.Shutdown()
}
