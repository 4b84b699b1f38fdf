package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/davidleathers/contact-compliance-backend/internal/infrastructure/cache"
	"github.com/davidleathers/contact-compliance-backend/internal/infrastructure/config"
	"github.com/davidleathers/contact-compliance-backend/internal/infrastructure/database"
	"github.com/davidleathers/contact-compliance-backend/internal/infrastructure/telemetry"
	auditsvc "github.com/davidleathers/contact-compliance-backend/internal/service/audit"
)

const usage = `auditctl - audit chain operator tool

Usage:
  auditctl verify [-config path]           verify the stored hash chain
  auditctl status [-config path]           print the chain head and last verification
  auditctl stats [-config path]            print chain statistics
  auditctl recent [-config path] [-n N]    print the N most recent entries
  auditctl archive [-config path] -before RFC3339
                                           archive entries older than the cutoff
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command := os.Args[1]
	flags := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	n := flags.Int("n", 0, "number of entries")
	before := flags.String("before", "", "archive cutoff (RFC3339)")
	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	if err := run(command, *configPath, *n, *before); err != nil {
		slog.Error("auditctl failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func run(command, configPath string, n int, before string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database url is not configured")
	}

	logger := telemetry.SetupLogger("warn")

	pool, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	var auditCache auditsvc.Cache
	if cfg.Redis.Enabled {
		client, err := cache.NewClient(&cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		c, err := cache.NewAuditCache(client, logger)
		if err != nil {
			return err
		}
		auditCache = c
	}

	log, err := auditsvc.NewLog(database.NewAuditRepository(pool), auditCache, logger, nil)
	if err != nil {
		return err
	}

	switch command {
	case "verify":
		result, err := log.VerifyChain(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		if !result.Valid {
			os.Exit(1)
		}
		return nil

	case "status":
		hash, seq, err := log.Head(ctx)
		if err != nil {
			return err
		}
		verification, err := log.LastVerification(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"headHash":     hash,
			"headSequence": seq,
			"verification": verification,
		})

	case "stats":
		stats, err := log.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)

	case "recent":
		if n <= 0 {
			n = cfg.Audit.RecentLimit
		}
		entries, err := log.Recent(ctx, n)
		if err != nil {
			return err
		}
		return printJSON(entries)

	case "archive":
		if before == "" {
			return fmt.Errorf("archive requires -before")
		}
		cutoff, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return fmt.Errorf("parsing cutoff: %w", err)
		}
		archived, anchor, err := log.ArchiveBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		if anchor == nil {
			fmt.Println("nothing to archive")
			return nil
		}
		return printJSON(map[string]any{
			"archivedEntries": len(archived),
			"anchor":          anchor,
		})

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
