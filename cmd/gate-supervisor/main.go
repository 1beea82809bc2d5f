// gate-supervisor manages the gatekeeper containers the runner talks to.
//
// Usage:
//
//	gate-supervisor up [tool]      start one gatekeeper, or all with images configured
//	gate-supervisor down [tool]    stop one gatekeeper, or all managed containers
//	gate-supervisor status         print container state and readiness per tool
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gateclient/internal/config"
	"gateclient/internal/supervisor"
	"gateclient/internal/tool"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Supervisor failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: gate-supervisor up|down|status [tool]")
	}

	registry := tool.Defaults()
	if toolsFile := config.GetEnv("TOOLS_FILE", ""); toolsFile != "" {
		var err error
		registry, err = tool.LoadFile(toolsFile)
		if err != nil {
			return err
		}
	}

	cfg, err := supervisor.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	sup, err := supervisor.New(registry, cfg)
	if err != nil {
		return err
	}

	// Ctrl-C during a long image pull or ready wait aborts cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "up":
		if len(args) > 1 {
			return sup.Up(ctx, args[1])
		}
		return sup.UpAll(ctx)

	case "down":
		if len(args) > 1 {
			return sup.Down(ctx, args[1])
		}
		return sup.DownAll(ctx)

	case "status":
		statuses, err := sup.Status(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)

	default:
		return fmt.Errorf("unknown command %q, want up, down, or status", args[0])
	}
}
