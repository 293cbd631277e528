package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/echofeed/voicepipe/internal/bootstrap"
	"github.com/echofeed/voicepipe/internal/data"
	"github.com/echofeed/voicepipe/internal/domain/model"
)

const commandTimeout = 30 * time.Second

// submissionQueueKey mirrors the key the pipeline runner drains.
const submissionQueueKey = "voicepipe:submissions"

//nolint:ireturn // returning redis.UniversalClient matches the bootstrap helper.
func connectRedis(ctx context.Context, cmdCtx *commandContext) (redis.UniversalClient, error) {
	return bootstrap.ConnectRedis(ctx, cmdCtx.Config.Redis, cmdCtx.Logger)
}

func closeRedis(cmdCtx *commandContext, client redis.UniversalClient) {
	if err := client.Close(); err != nil {
		cmdCtx.Logger.Warn("redis close failed", "error", err)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return writef(os.Stdout, "%s\n", out)
}

func runStatus(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	jobID := fs.String("job", "", "job ID to inspect")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if *jobID == "" {
		return errors.New("-job is required")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, commandTimeout)
	defer cancel()

	client, err := connectRedis(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx, client)

	store := data.NewStatusStoreRepo(data.NewRedisCacheRepo(client), data.StatusStoreConfig{
		TTL: cmdCtx.Config.Cache.StatusTTL,
	})
	status, err := store.Load(ctx, *jobID)
	if err != nil {
		return fmt.Errorf("load status: %w", err)
	}
	if status == nil {
		return fmt.Errorf("no status for job %q (unknown or expired)", *jobID)
	}
	handle, err := store.LoadSubscriber(ctx, *jobID)
	if err != nil {
		return fmt.Errorf("load subscriber handle: %w", err)
	}
	return printJSON(struct {
		Status           *model.ProcessingStatus `json:"status"`
		SubscriberHandle string                  `json:"subscriber_handle,omitempty"`
	}{status, handle})
}

func runResult(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("result", flag.ContinueOnError)
	fingerprint := fs.String("fingerprint", "", "content fingerprint to inspect")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if *fingerprint == "" {
		return errors.New("-fingerprint is required")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, commandTimeout)
	defer cancel()

	client, err := connectRedis(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx, client)

	cache := data.NewResultCacheRepo(data.NewRedisCacheRepo(client), data.ResultCacheConfig{
		ResultTTL: cmdCtx.Config.Cache.ResultTTL,
		MemoTTL:   cmdCtx.Config.Cache.MemoTTL,
	})
	result, err := cache.Get(ctx, *fingerprint)
	if err != nil {
		return fmt.Errorf("get cached result: %w", err)
	}
	if result == nil {
		return fmt.Errorf("no cached result for fingerprint %q", *fingerprint)
	}
	return printJSON(result)
}

func runInvalidate(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("invalidate", flag.ContinueOnError)
	fingerprint := fs.String("fingerprint", "", "content fingerprint to invalidate")
	yes := fs.Bool("yes", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if *fingerprint == "" {
		return errors.New("-fingerprint is required")
	}
	if !*yes {
		return errors.New("refusing to delete without -yes")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, commandTimeout)
	defer cancel()

	client, err := connectRedis(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx, client)

	cache := data.NewResultCacheRepo(data.NewRedisCacheRepo(client), data.ResultCacheConfig{
		ResultTTL: cmdCtx.Config.Cache.ResultTTL,
		MemoTTL:   cmdCtx.Config.Cache.MemoTTL,
	})
	deleted, err := cache.Delete(ctx, *fingerprint)
	if err != nil {
		return fmt.Errorf("delete cached result: %w", err)
	}

	cmdCtx.Logger.Info("invalidate complete", "fingerprint", *fingerprint, "deleted", deleted)
	return nil
}

func runQueueDepth(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, commandTimeout)
	defer cancel()

	client, err := connectRedis(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx, client)

	depth, err := client.LLen(ctx, submissionQueueKey).Result()
	if err != nil {
		return fmt.Errorf("queue length: %w", err)
	}
	return writef(os.Stdout, "submission queue depth: %d\n", depth)
}

func runHealth(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, commandTimeout)
	defer cancel()

	client, err := connectRedis(ctx, cmdCtx)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeRedis(cmdCtx, client)

	if err := data.NewRedisCacheRepo(client).Health(ctx); err != nil {
		return fmt.Errorf("cache health: %w", err)
	}
	if err := writef(os.Stdout, "redis: ok\n"); err != nil {
		return err
	}

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:      &cmdCtx.Config,
		RedisClient: client,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	if err := services.Blobs.Health(ctx); err != nil {
		return fmt.Errorf("blob store health: %w", err)
	}
	return writef(os.Stdout, "blob store: ok\n")
}
