// cmd/founder-scheduler/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"founder-scheduler/internal/common/cache"
	"founder-scheduler/internal/common/config"
	"founder-scheduler/internal/common/database"
	"founder-scheduler/internal/common/inference"
	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/common/observability"
	"founder-scheduler/internal/orchestrator"
)

var (
	cfgPath     string
	logLevel    string
	metricsAddr string
	version     = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "founder-scheduler",
	Short: "Plan a founder's investor and event meetings",
	Long: `founder-scheduler turns a free-text request from a founder into a
conflict-free meeting schedule with investors and events.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(stagesCmd)
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromFile(cfgPath)
	}
	return config.Load()
}

// runtime is everything a command needs to talk to the stages.
type runtime struct {
	cfg    *config.Config
	zap    *zap.Logger
	log    logger.Logger
	orch   *orchestrator.Orchestrator
	obs    *observability.Observability
	redis  *database.RedisClient
	server *http.Server
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)
	rt := &runtime{cfg: cfg, zap: zapLog, log: log}

	rt.obs, err = observability.New(cfg.App.Name, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	opts := []orchestrator.Option{orchestrator.WithObservability(rt.obs)}
	if cfg.Cache.Enabled {
		rt.redis = database.NewRedis(cfg.Cache.Redis)
		if err := rt.redis.Ping(ctx); err != nil {
			log.Warn("redis unavailable, geocode cache stays in memory", map[string]interface{}{
				"address": cfg.Cache.Redis.Address,
				"error":   err.Error(),
			})
			_ = rt.redis.Close()
			rt.redis = nil
		} else {
			ttl := time.Duration(cfg.Cache.TTL) * time.Second
			opts = append(opts, orchestrator.WithGeocodeStore(cache.NewRedisStore(rt.redis, "founder-scheduler:geocode:", ttl)))
		}
	}

	backend := inference.NewClient(cfg.Inference, log)
	rt.orch = orchestrator.New(cfg, backend, log, opts...)

	addr := metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Address
	}
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		rt.server = &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := rt.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLog.Error("metrics server stopped", zap.Error(err))
			}
		}()
		zapLog.Info("metrics available", zap.String("addr", addr))
	}
	return rt, nil
}

func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if rt.server != nil {
		_ = rt.server.Shutdown(ctx)
	}
	if err := rt.obs.Shutdown(ctx); err != nil {
		rt.zap.Warn("observability shutdown", zap.Error(err))
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	_ = rt.zap.Sync()
}

// readInput returns the named file, stdin for "-", or fallback.
func readInput(path string, stdin io.Reader, fallback string) (string, error) {
	switch path {
	case "":
		return fallback, nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
