package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/database"
	"feedsync/internal/feed"
	"feedsync/internal/scheduler"
	"feedsync/internal/syncer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	client := feed.NewClient(cfg.FetchTimeout, log)
	manager := feed.NewManager(db, client, log)

	engine := syncer.New(db, client, syncer.Options{
		ItemsPerFeed:         cfg.ItemsPerFeed,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		RetentionDays:        cfg.RetentionDays,
	}, log)

	if len(os.Args) > 1 {
		if err = runCommand(ctx, os.Args[1], os.Args[2:], manager, engine); err != nil {
			log.ErrorContext(ctx, "Command failed",
				"error", err,
				"command", os.Args[1])

			os.Exit(1)
		}

		return
	}

	sched := scheduler.New(ctx, engine, cfg.SyncInterval, cfg.InitialSyncDelay, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"syncInterval", cfg.SyncInterval.String())

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"syncInterval", cfg.SyncInterval.String(),
		"initialSyncDelay", cfg.InitialSyncDelay.String())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	state := engine.State()
	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"feedsProcessed", state.FeedsProcessed,
		"itemsAdded", state.ItemsAdded,
		"uptimeSeconds", time.Since(start).Seconds())
}

func runCommand(
	ctx context.Context,
	command string,
	args []string,
	manager *feed.Manager,
	engine *syncer.Syncer,
) error {
	switch command {
	case "add":
		added, err := manager.Subscribe(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Printf("added feed %d: %s\n", added.ID, added.Title)

		return nil
	case "remove":
		feedID, err := parseFeedID(args)
		if err != nil {
			return err
		}

		return manager.Unsubscribe(ctx, feedID)
	case "enable", "disable":
		feedID, err := parseFeedID(args)
		if err != nil {
			return err
		}

		return manager.SetEnabled(ctx, feedID, command == "enable")
	case "list":
		feeds, err := manager.List(ctx)
		if err != nil {
			return err
		}

		for _, f := range feeds {
			status := "enabled"
			if !f.Enabled {
				status = "disabled"
			}
			if f.LastError != "" {
				status += ", failing"
			}

			fmt.Printf("%d\t%s\t%s\t%d items (%s)\n", f.ID, f.Title, f.URL, f.ItemCount, status)
		}

		return nil
	case "clear":
		return manager.ClearItems(ctx)
	case "sync":
		if len(args) > 0 {
			feedID, err := parseFeedID(args)
			if err != nil {
				return err
			}

			result, err := engine.SyncFeed(ctx, feedID)
			if err != nil {
				return err
			}
			if result.Err != nil {
				return result.Err
			}

			fmt.Printf("feed %d: %d items added\n", result.FeedID, result.ItemsAdded)

			return nil
		}

		result, err := engine.RunCycle(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%d feeds processed, %d items added, %d items pruned\n",
			result.FeedsProcessed, result.ItemsAdded, result.ItemsPruned)

		return nil
	case "status":
		state := engine.State()

		lastSync := "never"
		if state.LastSync != nil {
			lastSync = state.LastSync.Format(time.RFC3339)
		}

		fmt.Printf("syncing: %t, last sync: %s, last error: %q\n",
			state.Syncing, lastSync, state.LastError)

		return nil
	default:
		return errors.New("unknown command (want add, remove, enable, disable, list, clear, sync or status)")
	}
}

func parseFeedID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.New("feed id is required")
	}

	feedID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse feed id: %w", err)
	}

	return feedID, nil
}
