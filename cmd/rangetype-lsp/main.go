// Command rangetype-lsp is a Language Server Protocol server that decorates
// Haskell selections with their GHCi type.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rlch/rangetype"
	"github.com/rlch/rangetype/lsp"
)

var version = "dev"

func main() {
	app := &cli.Command{
		Name:    "rangetype-lsp",
		Version: version,
		Usage:   "Language server showing GHCi types of selected expressions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("RANGETYPE_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "config file (default: .rangetype.yaml found from the workspace root)",
			},
		},
		Action: serve,
	}

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	level, err := zapcore.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	// Set up logging to stderr (stdout is for LSP communication)
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(level)

	logger, err := config.Build()
	if err != nil {
		return err
	}

	defer func() {
		_ = logger.Sync()
	}()

	var opts []lsp.Option

	if path := cmd.String("config"); path != "" {
		cfg, err := rangetype.LoadConfigFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		opts = append(opts, lsp.WithConfig(cfg))
	}

	logger.Info("Starting rangetype-lsp server", zap.String("version", version))

	return run(ctx, logger, os.Stdin, os.Stdout, opts...)
}

func run(ctx context.Context, logger *zap.Logger, in io.Reader, out io.Writer, opts ...lsp.Option) error {
	// Create a JSON-RPC stream connection over stdio
	stream := jsonrpc2.NewStream(&readWriteCloser{in, out})
	conn := jsonrpc2.NewConn(stream)

	// Create a client to send notifications to the editor
	client := protocol.ClientDispatcher(conn, logger)

	// The connection itself carries the custom decoration notifications
	server := lsp.NewServer(client, conn, logger, opts...)

	// Register the server handler with the connection
	conn.Go(ctx, lsp.Handler(server))

	// Wait for the connection to close
	<-conn.Done()

	return conn.Err()
}

// readWriteCloser wraps separate reader/writer into io.ReadWriteCloser.
type readWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *readWriteCloser) Close() error {
	// Close writer if it's closeable
	if c, ok := rwc.Writer.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
