package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LJTian/NewsRadar/internal/app"
	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/config"
	"github.com/LJTian/NewsRadar/internal/logger"
	"github.com/LJTian/NewsRadar/internal/scheduler"
	"github.com/LJTian/NewsRadar/internal/storage"
)

// 只执行一轮采集的命令行入口：结果以 JSON 输出到 stdout，可选写入存储
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	store bool
	mode  string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "collect [id[:alias] ...]",
		Short: "Crawl the configured sources once and print the normalized result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
		SilenceUsage: true,
	}
	cmd.Flags().BoolVar(&opts.store, "store", false, "persist the result to postgres / redis")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "override CRAWL_KEY_MODE (unique|merge)")
	return cmd
}

func run(ctx context.Context, opts options, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.mode != "" {
		if cfg.KeyMode, err = collector.ParseKeyMode(opts.mode); err != nil {
			return err
		}
	}
	// 命令行参数覆盖配置中的数据源
	if len(args) > 0 {
		cfg.Sources = nil
		for _, a := range args {
			cfg.Sources = append(cfg.Sources, config.ParseSources(a)...)
		}
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	crawler, err := app.NewCrawler(cfg, log)
	if err != nil {
		return err
	}

	var sinks []scheduler.Sink
	if opts.store {
		store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, log.Named("storage"))
		if err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	s, err := scheduler.New(cfg.CronSpec, crawler, cfg.Sources, log.Named("scheduler"), sinks...)
	if err != nil {
		return err
	}
	res, err := s.RunOnce(ctx)
	if err != nil {
		return err
	}

	log.Info("crawl finished",
		zap.Strings("succeeded", res.Succeeded()),
		zap.Strings("failed", res.Failed),
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
