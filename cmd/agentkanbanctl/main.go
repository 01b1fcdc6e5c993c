// agentkanbanctl is the local orchestration process: it serves the
// control-plane HTTP/SSE API, runs the lease sweeper and spool ingester,
// and drives a pool of worker loops that claim Ready tickets and supervise
// agent CLI processes against them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/agentkanban/agentkanban/internal/apiserver"
	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/config"
	"github.com/agentkanban/agentkanban/internal/finalize"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/reservation"
	"github.com/agentkanban/agentkanban/internal/spool"
	"github.com/agentkanban/agentkanban/internal/store"
	"github.com/agentkanban/agentkanban/internal/supervisor"
	"github.com/agentkanban/agentkanban/internal/worker"
)

func main() {
	var (
		dbPath        = flag.String("db", "agentkanban.db", "SQLite database path")
		addr          = flag.String("addr", "127.0.0.1:7432", "control-plane listen address")
		token         = flag.String("token", "", "API token; generated and printed if empty")
		board         = flag.String("board", "", "board id filter for worker claims (empty = any board)")
		repoPath      = flag.String("repo", ".", "repository path passed to supervised agent processes")
		leaseLength   = flag.Duration("lease", 30*time.Minute, "reservation lease length")
		runTimeout    = flag.Duration("run-timeout", time.Hour, "per-run supervisor timeout")
		workerSpec    = flag.String("agents", "claude:1,cursor:1", "comma-separated agentKind:count worker pool composition")
		verbose       = flag.Bool("verbose", false, "use human-readable text logging instead of JSON")
		spoolDirFlag  = flag.String("spool-dir", "", "override the platform-default spool directory")
	)
	flag.Parse()

	logger := newLogger(*verbose)

	apiToken := *token
	if apiToken == "" {
		if v, ok := os.LookupEnv("AGENT_KANBAN_API_TOKEN"); ok {
			apiToken = v
		}
	}
	if apiToken == "" {
		generated, err := apiserver.GenerateToken()
		if err != nil {
			logger.Error("failed to generate api token", "error", err)
			os.Exit(1)
		}
		apiToken = generated
		fmt.Fprintf(os.Stderr, "generated API token (save this): %s\n", apiToken)
	}

	apiURL := os.Getenv("AGENT_KANBAN_API_URL")
	if apiURL == "" {
		apiURL = "http://" + *addr
	}
	if v, ok := os.LookupEnv("AGENT_KANBAN_API_PORT"); ok {
		if _, err := strconv.Atoi(v); err == nil {
			apiURL = "http://127.0.0.1:" + v
		}
	}

	st, err := store.Open(*dbPath, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// DB-stored config values override flag defaults, never the reverse:
	// an operator can retune a running deployment without a restart-time
	// flag change by writing into the config table directly.
	cfgLoader := config.New(st)
	effectiveLease := cfgLoader.Duration("lease_length", *leaseLength)
	effectiveHeartbeat := cfgLoader.Duration("heartbeat_interval", config.DefaultHeartbeatInterval)

	b := broadcast.New(logger)
	sup := supervisor.New(logger)
	res := reservation.New(st, b, sup, logger,
		reservation.WithLeaseLength(effectiveLease),
		reservation.WithHeartbeatInterval(effectiveHeartbeat),
	)
	fin := finalize.New(st, res, b, logger)

	pool := worker.NewPool(logger)
	counts, err := parseWorkerSpec(*workerSpec)
	if err != nil {
		logger.Error("invalid -agents spec", "error", err)
		os.Exit(1)
	}
	for kind, count := range counts {
		for i := 0; i < count; i++ {
			cfg := worker.Config{
				ID:        fmt.Sprintf("%s-%d", kind, i),
				AgentKind: kind,
				Board:     *board,
				RepoPath:  *repoPath,
				APIURL:    apiURL,
				APIToken:  apiToken,
				Timeout:   *runTimeout,
			}
			pool.Add(worker.New(cfg, res, sup, fin, logger))
		}
	}

	spoolDir := *spoolDirFlag
	if spoolDir == "" {
		if d, err := spool.Dir(); err == nil {
			spoolDir = d
		} else {
			logger.Warn("failed to resolve default spool directory, ingestion disabled", "error", err)
		}
	}

	srv := apiserver.New(apiserver.Config{Addr: *addr, Token: apiToken}, st, res, b, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	go res.RunSweeper(ctx)
	if spoolDir != "" {
		ingester := spool.New(spoolDir, st, b, logger)
		go ingester.Run(ctx)
	}
	pool.Start(ctx)

	logger.Info("agentkanbanctl starting",
		"addr", *addr, "db", *dbPath, "board", *board, "workers", len(pool.Snapshot()),
	)

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("control plane exited with error", "error", err)
	}

	pool.StopAll()
	logger.Info("agentkanbanctl stopped")
}

func newLogger(verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// parseWorkerSpec parses "claude:2,cursor:1" into a count per agent kind.
func parseWorkerSpec(spec string) (map[model.AgentKind]int, error) {
	out := make(map[model.AgentKind]int)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed worker spec segment %q, want kind:count", part)
		}
		count, err := strconv.Atoi(kv[1])
		if err != nil || count < 0 {
			return nil, fmt.Errorf("malformed worker count in %q", part)
		}
		out[model.AgentKind(kv[0])] = count
	}
	return out, nil
}
