package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/vfgtools/vfg-extract/pkg/config"
	"github.com/vfgtools/vfg-extract/pkg/cycles"
	"github.com/vfgtools/vfg-extract/pkg/extract"
	"github.com/vfgtools/vfg-extract/pkg/logging"
	"github.com/vfgtools/vfg-extract/pkg/output"
	"github.com/vfgtools/vfg-extract/pkg/vfg"
	"github.com/vfgtools/vfg-extract/pkg/watcher"
	"github.com/vfgtools/vfg-extract/pkg/web"
)

func main() {
	f := pflag.NewFlagSet("vfg-extract", pflag.ExitOnError)
	f.String("input", "vfg.dot", "Path to the VFG DOT file produced by the analysis tool")
	f.String("output", "model.dot", "Path for the extracted model DOT file")
	f.String("subgraph", "", "Optional path to also dump the sliced sub-VFG")
	f.String("seeds", "", "Comma-separated seed node ids, e.g. 664,668")
	f.String("title", "model", "Title rendered into the output graph")
	f.Bool("paths", false, "Use path-enumeration model building instead of fusion passes")
	f.Bool("load-fusion", false, "Also fuse successive load chains")
	f.Bool("web", false, "Serve the model over HTTP instead of exiting")
	f.Int("port", 8080, "Port for the web server (only used with --web)")
	f.Bool("watch", false, "Re-extract when the input file changes (implies --web)")
	f.String("verbosity", "", "Log level: debug, info, warn, error")
	f.Bool("json-logs", false, "Emit logs as JSON instead of the compact format")
	if err := f.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	configureLogging(cfg)

	seeds, err := cfg.SeedIDs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.WebMode || cfg.Watch {
		runServer(cfg, seeds)
		return
	}

	if err := runOnce(cfg, seeds, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configureLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.Verbosity {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}
}

// runOnce loads the VFG, extracts the model and writes it. When server
// is non-nil the result is also published to web subscribers.
func runOnce(cfg *config.Config, seeds []uint64, server *web.Server) error {
	publish := func(state, message string) {
		if server != nil {
			if err := server.PublishStatus(state, message, cfg.Input); err != nil {
				logging.Warn("failed to publish status", "error", err)
			}
		}
	}

	publish("loading", "loading VFG")
	g, err := vfg.Load(cfg.Input)
	if err != nil {
		publish("error", err.Error())
		return err
	}
	vfgNodes, vfgEdges := g.NodeCount(), g.EdgeCount()

	found := cycles.FindCycles(g)
	for _, c := range found {
		logging.Warn("value-flow cycle", "nodes", len(c.Nodes))
	}

	publish("extracting", "extracting model")
	var model *extract.Model
	if cfg.PathsMode {
		model, err = extract.BuildPathModel(g, seeds, cfg.Title, cfg.Title)
		if err != nil {
			publish("error", err.Error())
			return err
		}
	} else {
		var opts []extract.Option
		if cfg.LoadFusion {
			opts = append(opts, extract.WithLoadLoadFusion())
		}
		sub, err := extract.Extract(g, seeds, opts...)
		if err != nil {
			publish("error", err.Error())
			return err
		}
		if cfg.Subgraph != "" {
			if err := sub.WriteDot(cfg.Subgraph, cfg.Title, cfg.Title); err != nil {
				logging.Warn("failed to write subgraph dump", "error", err)
			}
		}
		model = extract.NewModel(sub, cfg.Title, cfg.Title)
	}

	if err := model.WriteFile(cfg.Output); err != nil {
		publish("error", err.Error())
		return err
	}

	if server != nil {
		server.SetModel(model)
		publish("ready", "model ready")
		if err := server.PublishModel("ready", true); err != nil {
			logging.Warn("failed to publish model", "error", err)
		}
	} else {
		output.PrintExtractionReport(cfg.Input, cfg.Output, vfgNodes, vfgEdges, model, found)
	}
	return nil
}

func runServer(cfg *config.Config, seeds []uint64) {
	server := web.NewServer()

	go func() {
		if err := server.Start(cfg.Port); err != nil {
			logging.Error("web server failed", "error", err)
			os.Exit(1)
		}
	}()

	if err := runOnce(cfg, seeds, server); err != nil {
		logging.Error("extraction failed", "error", err)
	}

	if !cfg.Watch {
		select {}
	}

	ctx := context.Background()
	fw, err := watcher.NewFileWatcher(cfg.Input)
	if err != nil {
		logging.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}
	if err := fw.Start(ctx); err != nil {
		logging.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 500*time.Millisecond, 5*time.Second)
	debouncer.Start(ctx)

	for range debouncer.Output() {
		logging.Info("input changed, re-extracting", "path", cfg.Input)
		if err := runOnce(cfg, seeds, server); err != nil {
			logging.Error("re-extraction failed", "error", err)
		}
	}
}
