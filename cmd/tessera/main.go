package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/b1naryth1ef/tessera"
	"github.com/b1naryth1ef/tessera/build"
	"github.com/b1naryth1ef/tessera/coord"
)

func main() {
	configFlag := &cli.PathFlag{
		Name:  "config",
		Usage: "path to the configuration file",
		Value: "config.hcl",
	}

	app := &cli.App{
		Name:        "tessera",
		Description: "renders minecraft worlds into web map tiles",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(ctx *cli.Context) error {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if ctx.Bool("debug") {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "render",
				Usage:  "fully render worlds, resuming interrupted renders",
				Action: commandRender,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringSliceFlag{
						Name:  "world",
						Usage: "world to render, all configured worlds when omitted",
					},
				},
			},
			{
				Name:   "radius",
				Usage:  "render the area around a block",
				Action: commandRadius,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "world", Required: true},
					&cli.IntFlag{Name: "x"},
					&cli.IntFlag{Name: "z"},
					&cli.IntFlag{Name: "radius", Value: 512},
				},
			},
			{
				Name:   "watch",
				Usage:  "keep re-rendering chunks as they change",
				Action: commandWatch,
				Flags:  []cli.Flag{configFlag},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		logrus.WithError(err).Fatal("tessera failed")
	}
}

// setup loads the config, starts the metrics endpoint and opens a builder for the given worlds.
func setup(ctx *cli.Context, worlds ...string) (*build.Builder, func(), error) {
	config, err := tessera.LoadConfig(ctx.Path("config"))
	if err != nil {
		return nil, nil, err
	}

	log := logrus.StandardLogger()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	stopMetrics := serveMetrics(config.MetricsAddr, reg, log)

	b, err := build.New(ctx.Context, config, log, reg)
	if err != nil {
		stopMetrics()
		return nil, nil, err
	}
	if err := b.Open(worlds...); err != nil {
		b.Close()
		stopMetrics()
		return nil, nil, err
	}

	return b, func() {
		if err := b.Close(); err != nil {
			log.WithError(err).Error("failed to shut down cleanly")
		}
		stopMetrics()
	}, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log logrus.FieldLogger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}

func signalContext(ctx *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
}

func commandRender(ctx *cli.Context) error {
	sigCtx, stop := signalContext(ctx)
	defer stop()

	b, done, err := setup(ctx, ctx.StringSlice("world")...)
	if err != nil {
		return err
	}
	defer done()

	for _, world := range b.Manager().Worlds() {
		if err := b.RenderFull(sigCtx, world); err != nil {
			if errors.Is(err, context.Canceled) {
				logrus.WithField("world", world).Info("render interrupted, run again to resume")
				return nil
			}
			return err
		}
	}
	return nil
}

func commandRadius(ctx *cli.Context) error {
	sigCtx, stop := signalContext(ctx)
	defer stop()

	world := ctx.String("world")
	b, done, err := setup(ctx, world)
	if err != nil {
		return err
	}
	defer done()

	center := coord.Block{X: ctx.Int("x"), Z: ctx.Int("z")}
	err = b.RenderRadius(sigCtx, world, center, ctx.Int("radius"))
	if errors.Is(err, tessera.ErrRenderActive) {
		logrus.WithField("world", world).Info("an interrupted full render is resuming, waiting for it first")
		if err := b.RenderFull(sigCtx, world); err != nil {
			return err
		}
		err = b.RenderRadius(sigCtx, world, center, ctx.Int("radius"))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func commandWatch(ctx *cli.Context) error {
	sigCtx, stop := signalContext(ctx)
	defer stop()

	b, done, err := setup(ctx)
	if err != nil {
		return err
	}
	defer done()

	return b.Watch(sigCtx)
}
