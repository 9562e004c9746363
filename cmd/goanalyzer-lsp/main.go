// Command goanalyzer-lsp is the primary entrypoint: an LSP server speaking
// Content-Length-framed JSON-RPC over stdin/stdout, with an optional
// secondary MCP surface for editors/agents that prefer tool calls over the
// LSP protocol. Flag/command scaffolding follows the teacher's cmd/lci
// App/Commands structure.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/goanalyzer/internal/config"
	"github.com/standardbeagle/goanalyzer/internal/lspserver"
	"github.com/standardbeagle/goanalyzer/internal/logging"
	"github.com/standardbeagle/goanalyzer/internal/mcpsurface"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:                   "goanalyzer-lsp",
		Usage:                  "alias/closure/concurrent-use decoration server for Go source",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (for config discovery)",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override configured log level (debug|info|warn|error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the LSP server on stdin/stdout",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Run the secondary MCP tool surface over stdio",
				Action: runMCP,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("root"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = config.LogLevel(lvl)
	}
	return cfg, nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logging.Init(string(cfg.LogLevel), os.Stderr)
	log := logging.Root()

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	transport := lspserver.NewTransport(os.Stdin, os.Stdout)
	server := lspserver.New(cfg, transport)

	log.Info("starting goanalyzer-lsp", "version", Version)
	if err := server.Serve(ctx); err != nil {
		log.Error("server exited", "err", err)
		return err
	}
	return nil
}

func runMCP(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logging.Init(string(cfg.LogLevel), os.Stderr)
	log := logging.Root()

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The MCP surface reuses the same analysis pipeline as serve, driven
	// through the transport-agnostic lspserver.Server wrapped as an
	// mcpsurface.Analyzer; it doesn't share the JSON-RPC transport above,
	// which stays unused in this mode.
	transport := lspserver.NewTransport(os.Stdin, os.Stdout)
	server := lspserver.New(cfg, transport)
	mcpServer := mcpsurface.New(server)

	log.Info("starting goanalyzer MCP surface over stdio")
	return mcpServer.Run(ctx, &mcp.StdioTransport{})
}
