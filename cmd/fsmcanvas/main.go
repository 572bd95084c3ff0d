// Command fsmcanvas exposes the workflow canvas engine on the command line:
// transition ids, layout reconciliation, per-session undo/redo timelines and
// timeline settings.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/pschleger/workflow-canvas-sub000/appconfig"
	"github.com/pschleger/workflow-canvas-sub000/logging"
)

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("fsmcanvas"),
		kong.Description("Workflow canvas versioning and consistency tools."),
		kong.UsageOnError(),
	)

	cfg, err := appconfig.Load(cli.Config)
	if err != nil {
		die(err)
	}
	if cli.Session != "" {
		cfg.Session.ID = cli.Session
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}

	logger := logging.NewGlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	app, err := openApp(context.Background(), cfg, os.Stdout, logger)
	if err != nil {
		die(err)
	}
	defer app.Close()

	if err := kctx.Run(app); err != nil {
		logger.Error("fsmcanvas: %s failed: %v", kctx.Command(), err)
		app.Close()
		os.Exit(1)
	}
}

func die(err error) {
	fmt.Fprintf(os.Stderr, "fsmcanvas: %v\n", err)
	os.Exit(1)
}
