package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/jobmate/backend/internal/config"
	"github.com/jobmate/backend/internal/logging"
	"github.com/jobmate/backend/internal/service/feeds"
	"github.com/jobmate/backend/internal/storage"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("配置加载失败")
	}

	keywords := flag.String("keywords", strings.Join(cfg.Feeds.Keywords, ","), "职位关键字，逗号分隔")
	location := flag.String("location", cfg.Feeds.Location, "职位地点")
	newsQuery := flag.String("news", cfg.Feeds.NewsQuery, "新闻检索词，留空则跳过新闻")
	pages := flag.Int("pages", cfg.Feeds.Pages, "每个查询抓取的页数")
	pageSize := flag.Int("page-size", cfg.Feeds.PageSize, "每页条数")
	workers := flag.Int("workers", cfg.Feeds.Workers, "并发抓取数")
	dbPath := flag.String("db", cfg.Store.FeedsPath, "目录数据库路径")
	timeout := flag.Duration("timeout", 5*time.Minute, "整体超时时间")
	flag.Parse()

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: true, Output: os.Stderr})
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("未找到 .env，改用系统环境变量")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	opts := feeds.IngestorOptions{
		Workers: *workers,
		Logger:  logging.Component(logger, "feedsync"),
	}
	plan := feeds.IngestPlan{Pages: *pages, PageSize: *pageSize}

	if cfg.Feeds.JobsEnabled() {
		opts.Jobs = &feeds.JobsClient{BaseURL: cfg.Feeds.JobsBaseURL, APIKey: cfg.Feeds.JobsAPIKey}
		for _, kw := range strings.Split(*keywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				plan.Jobs = append(plan.Jobs, feeds.JobQuery{Keywords: kw, Location: *location})
			}
		}
	} else {
		logger.Warn().Msg("JOBS_API_KEY 未配置，跳过职位抓取")
	}

	if cfg.Feeds.NewsEnabled() && strings.TrimSpace(*newsQuery) != "" {
		opts.News = &feeds.NewsClient{BaseURL: cfg.Feeds.NewsBaseURL, Token: cfg.Feeds.NewsToken}
		plan.News = append(plan.News, feeds.NewsQuery{Query: strings.TrimSpace(*newsQuery)})
	} else {
		logger.Warn().Msg("新闻数据源未配置，跳过新闻抓取")
	}

	if opts.Jobs == nil && opts.News == nil {
		logger.Fatal().Msg("没有可用的数据源")
	}

	report, err := run(ctx, *dbPath, opts, plan)
	if err != nil {
		logger.Fatal().Err(err).Str("db", *dbPath).Msg("抓取失败")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}

func run(ctx context.Context, dbPath string, opts feeds.IngestorOptions, plan feeds.IngestPlan) (feeds.IngestReport, error) {
	store, err := storage.NewFeedStore(ctx, dbPath)
	if err != nil {
		return feeds.IngestReport{}, err
	}
	defer store.Close()

	return feeds.NewIngestor(store, opts).Run(ctx, plan)
}
