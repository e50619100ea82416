// Command pagefetch streams a paginated API resource to stdout as
// newline-delimited JSON, one item per line. Configuration comes from
// the environment (see internal/config).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/vlukiyanov/pagefetch/internal/config"
	"github.com/vlukiyanov/pagefetch/pkg/cache"
	"github.com/vlukiyanov/pagefetch/pkg/client"
	"github.com/vlukiyanov/pagefetch/pkg/logging"
	"github.com/vlukiyanov/pagefetch/pkg/pagination"
	"github.com/vlukiyanov/pagefetch/pkg/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("pagefetch failed")
	}
}

func run(ctx context.Context, cfg config.Config, out io.Writer) error {
	transport, err := client.NewHTTPTransport(cfg.API.BaseURL, cfg.API.UserAgent)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	limiter, err := ratelimit.NewLimiter(ratelimit.Window{
		MaxCalls: cfg.RateLimit.MaxCalls,
		Duration: cfg.RateLimit.Window,
	})
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	shape := client.FlatShape()
	if cfg.API.Namespace != "" {
		shape = client.NestedShape(cfg.API.Namespace)
	}

	clientCfg := client.Config{
		Transport: transport,
		Limiter:   limiter,
		Shape:     shape,
		CacheTTL:  cfg.Cache.TTL,
	}
	if len(cfg.API.Credentials) > 0 {
		clientCfg.Credentials = client.StaticCredentials(cfg.API.Credentials)
	}

	if cfg.Cache.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis at %s: %w", cfg.Cache.RedisAddr, err)
		}
		defer redisClient.Close()
		clientCfg.Cache = cache.NewStore(redisClient)
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Page cache enabled")
	}

	fetcher, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}

	log.Info().
		Str("resource", cfg.API.Resource).
		Int("page_size", cfg.API.PageSize).
		Msg("Streaming resource")

	stream := pagination.Paginate(ctx, fetcher, cfg.API.Resource, cfg.API.PageSize)

	var count int
	for stream.Next() {
		if _, err := out.Write(append(stream.Item(), '\n')); err != nil {
			return fmt.Errorf("write item: %w", err)
		}
		count++
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("after %d items: %w", count, err)
	}

	log.Info().
		Int("items", count).
		Int("fetches", stream.Fetches()).
		Msg("Stream complete")
	return nil
}
