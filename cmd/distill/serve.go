package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hurttlocker/distill/internal/cache"
	"github.com/hurttlocker/distill/internal/config"
	"github.com/hurttlocker/distill/internal/distill"
	"github.com/hurttlocker/distill/internal/httpapi"
	"github.com/hurttlocker/distill/internal/ingest"
	"github.com/hurttlocker/distill/internal/mcp"
	"github.com/hurttlocker/distill/internal/store"
)

// openCache connects to Redis using the resolved URL.
func openCache() (*cache.Cache, error) {
	rc, err := config.ResolveConfig(config.ResolveOptions{ConfigPath: globalConfigPath, CLIRedisURL: globalRedisURL})
	if err != nil {
		return nil, err
	}
	return cache.New(rc.RedisURL.Value)
}

func runServe(args []string) error {
	var (
		httpAddr string
		httpMode bool
		mcpMode  bool
	)
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--mcp":
			mcpMode = true
		case args[i] == "--http" && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-"):
			httpMode = true
			httpAddr = args[i+1]
			i++
		case args[i] == "--http":
			httpMode = true
		case strings.HasPrefix(args[i], "--http="):
			httpMode = true
			httpAddr = strings.TrimPrefix(args[i], "--http=")
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}
	if mcpMode && httpMode {
		return fmt.Errorf("choose one of --http or --mcp")
	}

	rc, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath:  globalConfigPath,
		CLIDBPath:   globalDBPath,
		CLIRedisURL: globalRedisURL,
		CLIHTTPAddr: httpAddr,
	})
	if err != nil {
		return err
	}
	budget, err := rc.SummaryBudget()
	if err != nil {
		return err
	}
	d := distill.New(distill.WithSummaryBudget(budget))

	s, err := store.NewStore(store.StoreConfig{DBPath: rc.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	if mcpMode {
		srv := mcp.NewServer(mcp.ServerConfig{
			Distiller: d,
			Store:     s,
			MaxTokens: budget,
			Version:   version,
		})
		return mcp.ServeStdio(srv)
	}

	log := logrus.New()
	if globalVerbose {
		log.SetLevel(logrus.DebugLevel)
	}

	// The HTTP agent reports cache reachability in /healthz, so a bad
	// Redis URL degrades health instead of blocking startup.
	var ch *cache.Cache
	if c, err := cache.New(rc.RedisURL.Value); err == nil {
		ch = c
		defer ch.Close()
	} else {
		log.WithError(err).Warn("context cache unavailable")
	}

	h := httpapi.NewHandler(httpapi.Config{
		Distiller: d,
		Store:     s,
		Cache:     ch,
		MaxTokens: budget,
		Logger:    log,
	})
	return h.Serve(rc.HTTPAddr.Value)
}

func runPublish(args []string) error {
	var path, source string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--source" && i+1 < len(args):
			source = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--source="):
			source = strings.TrimPrefix(args[i], "--source=")
		case strings.HasPrefix(args[i], "-") && args[i] != "-":
			return fmt.Errorf("unknown flag: %s", args[i])
		case path == "":
			path = args[i]
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}
	if path == "" {
		return fmt.Errorf("usage: distill publish <file|-> [--source <name>]")
	}

	text, fileSource, err := ingest.ReadInput(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("input is empty")
	}
	if source == "" {
		source = fileSource
	}

	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	key, err := c.Publish(context.Background(), cache.Entry{
		Text:      text,
		Source:    source,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publishing to context cache: %w", err)
	}
	fmt.Println(key)
	return nil
}

func runDrain(args []string) error {
	var (
		once     bool
		jsonOut  bool
		nearDup  int
		interval = 30 * time.Second
	)
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--once":
			once = true
		case args[i] == "--json":
			jsonOut = true
		case args[i] == "--interval" && i+1 < len(args):
			d, err := time.ParseDuration(args[i+1])
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid --interval %q: want a positive duration like 30s", args[i+1])
			}
			interval = d
			i++
		case strings.HasPrefix(args[i], "--interval="):
			raw := strings.TrimPrefix(args[i], "--interval=")
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid --interval %q: want a positive duration like 30s", raw)
			}
			interval = d
		case args[i] == "--near-dup" && i+1 < len(args):
			n, err := parseNearDup(args[i+1])
			if err != nil {
				return err
			}
			nearDup = n
			i++
		case strings.HasPrefix(args[i], "--near-dup="):
			n, err := parseNearDup(strings.TrimPrefix(args[i], "--near-dup="))
			if err != nil {
				return err
			}
			nearDup = n
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	d, err := newDistiller()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := ingest.Options{NearDupDistance: nearDup}
	for {
		report, err := ingest.DrainCache(ctx, s, d, c, opts)
		if err != nil {
			return fmt.Errorf("draining cache: %w", err)
		}
		if once || report.Scanned > 0 || globalVerbose {
			if err := printDrainReport(report, jsonOut); err != nil {
				return err
			}
		}
		if once {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func printDrainReport(report *ingest.Report, jsonOut bool) error {
	if jsonOut {
		return printJSON(report)
	}
	fmt.Printf("Drained %d pending: %d saved, %d duplicates, %d near-duplicates, %d empty, %d missing\n",
		report.Scanned, report.Saved, report.Duplicates, report.NearDuplicates, report.Empty, report.Missing)
	return nil
}
