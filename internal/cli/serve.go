package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aradilov/ringbus/internal/config"
	"github.com/aradilov/ringbus/internal/logger"
	"github.com/aradilov/ringbus/metrics"
	"github.com/aradilov/ringbus/shm"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Hold topics open and export their counters on /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app := fx.New(serveOptions(*cfg))
			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			<-ctx.Done()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
			defer stopCancel()
			return app.Stop(stopCtx)
		},
	}
	cmd.Flags().StringVar(&cfg.MetricsAddr, "addr", cfg.MetricsAddr, "Metrics listen address")
	cmd.Flags().StringSliceVar(&cfg.Topics, "topic", cfg.Topics, "Topics to create and hold open (repeatable)")
	return cmd
}

// serveOptions assembles the serve container: config, zap, shared registry,
// prometheus registry and the HTTP server.
func serveOptions(cfg config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			newZapLogger,
			newSharedRegistry,
			newPromRegistry,
			newMetricsServer,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(holdTopics, func(*metricsServer) {}),
	)
}

func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(cfg.LogFormat, "json") {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(zapLevelFor(cfg.LogLevel))
	return zc.Build()
}

// zapLevelFor reads the fx subsystem level from a subsystem=level,...,default
// spec. Without a spec, container events are logged from warn up.
func zapLevelFor(spec string) zapcore.Level {
	if strings.TrimSpace(spec) == "" {
		return zapcore.WarnLevel
	}
	switch level := logger.ParseConfig(spec, "").LevelFor("fx"); {
	case level < slog.LevelInfo:
		return zapcore.DebugLevel
	case level < slog.LevelWarn:
		return zapcore.InfoLevel
	case level < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func newSharedRegistry(lc fx.Lifecycle, cfg config.Config) (*shm.Registry, error) {
	reg, err := shm.NewRegistry(shm.WithDir(cfg.Dir), shm.WithSlotSize(cfg.SlotSize))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return reg.Close()
		},
	})
	return reg, nil
}

func newPromRegistry(reg *shm.Registry) (*prometheus.Registry, error) {
	pr := prometheus.NewRegistry()
	err := multierr.Combine(
		pr.Register(metrics.NewCollector(reg, prometheus.Labels{"dir": reg.Dir()})),
		pr.Register(collectors.NewGoCollector()),
	)
	if err != nil {
		return nil, err
	}
	return pr, nil
}

// holdTopics attaches to the configured topics so their segments outlive
// one-shot publishers and consumers.
func holdTopics(reg *shm.Registry, cfg config.Config, log *zap.Logger) error {
	for _, name := range cfg.Topics {
		topic, err := reg.GetByteTopic(name, cfg.Capacity)
		if err != nil {
			return err
		}
		log.Info("holding topic", zap.String("topic", name),
			zap.Int("capacity", topic.Capacity()), zap.Int("slot_size", topic.SlotSize()))
	}
	return nil
}

type metricsServer struct {
	srv *http.Server
	ln  net.Listener
	log *zap.Logger
}

// Addr returns the bound listen address, valid after start.
func (s *metricsServer) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func newMetricsServer(lc fx.Lifecycle, cfg config.Config, pr *prometheus.Registry, log *zap.Logger) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(pr, promhttp.HandlerOpts{Registry: pr}))
	s := &metricsServer{
		srv: &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", s.srv.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
			}
			s.ln = ln
			go func() {
				if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("metrics server stopped", zap.Error(err))
				}
			}()
			s.log.Info("serving metrics", zap.String("addr", s.Addr()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.srv.Shutdown(ctx)
		},
	})
	return s
}
