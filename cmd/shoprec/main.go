// Command shoprec 启动混合商品推荐 HTTP 服务。
//
// 配置见 config 包：默认监听 0.0.0.0:5000，必须提供 SHOPREC_CATALOG__BASE_URL。
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rushteam/shoprec/api"
	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/config"
	"github.com/rushteam/shoprec/config/builders"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/hybrid"
	"github.com/rushteam/shoprec/logging"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Caller:     cfg.Logging.Caller,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
	logging.Info().Msg("Server stopped")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := catalog.NewClient(cfg.Catalog.BaseURL,
		catalog.WithAPIKey(cfg.Catalog.APIKey),
		catalog.WithStaticToken(cfg.Catalog.StaticToken),
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithBreaker(cfg.Catalog.Breaker),
	)
	if err != nil {
		return err
	}

	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close store")
		}
	}()

	index := recall.NewContentIndex(client,
		recall.WithCatalogLimit(cfg.Content.CatalogLimit),
		recall.WithMaxAge(cfg.Content.MaxAge),
		recall.WithBuildTimeout(cfg.Content.BuildTimeout),
	)
	if cfg.Content.Warmup {
		go warmup(ctx, index, cfg.Catalog.StaticToken != "")
	}

	post, err := buildPipeline(cfg.Recommend.PipelineFile, builders.Deps{Catalog: client, Store: kv})
	if err != nil {
		return err
	}

	rec := hybrid.New(client, index,
		hybrid.WithTopN(cfg.Recommend.TopN),
		hybrid.WithWeights(cfg.Recommend.Weights.Collaborative, cfg.Recommend.Weights.Content),
		hybrid.WithRecallTimeout(cfg.Recommend.RecallTimeout),
		hybrid.WithCommunity(cfg.Recommend.IncludeCommunity),
		hybrid.WithPipeline(post),
	)

	handler := api.NewHandler(rec, api.WithRejectExpiredJWT(cfg.Auth.RejectExpiredJWT))
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitRequests: cfg.RateLimit.Requests,
		RateLimitWindow:   cfg.RateLimit.Window,
		RateLimitDisabled: !cfg.RateLimit.Enabled,
		SecureHeaders:     cfg.Server.SecureHeaders,
		CORSOrigins:       cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", server.Addr).
			Str("catalog", cfg.Catalog.BaseURL).
			Int("top_n", rec.TopN()).
			Msg("Recommendation service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// buildPipeline 加载融合后处理链；未配置文件时使用内置默认链。
func buildPipeline(path string, deps builders.Deps) (*pipeline.Pipeline, error) {
	cfg := pipeline.DefaultConfig()
	if path != "" {
		loaded, err := pipeline.LoadFromYAML(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	p, err := cfg.BuildPipeline(builders.NewFactory(deps))
	if err != nil {
		return nil, err
	}
	logging.Info().Str("pipeline", p.Name).Int("nodes", len(p.Nodes)).Msg("Post-merge pipeline ready")
	return p, nil
}

// warmup 在后台预构建内容相似度索引。没有静态 token 时 Catalog 请求不带 Authorization。
func warmup(ctx context.Context, index *recall.ContentIndex, hasToken bool) {
	start := time.Now()
	if err := index.Warmup(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		ev := logging.Warn().Err(err).Bool("static_token", hasToken)
		if core.IsUnavailable(err) {
			ev = ev.Str("hint", "catalog unavailable, index will be built on first request")
		}
		ev.Msg("Content index warmup failed")
		return
	}
	logging.Info().Int("products", index.Size()).Dur("elapsed", time.Since(start)).Msg("Content index warmed up")
}
