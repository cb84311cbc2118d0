package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rlch/rangetype"
	"github.com/rlch/rangetype/document"
	"github.com/rlch/rangetype/ghci"
	"github.com/rlch/rangetype/typeat"
)

var (
	ErrUsage      = errors.New("usage: rangetype type-at FILE LINE COL [ENDLINE ENDCOL]")
	ErrOutOfRange = errors.New("position is outside the file")
	ErrNoType     = errors.New("no type at this position")
)

// closeTimeout bounds stopping GHCi after the query.
const closeTimeout = 5 * time.Second

func typeAtCommand() *cli.Command {
	return &cli.Command{
		Name:      "type-at",
		Usage:     "Print the type of the expression at a position",
		ArgsUsage: "FILE LINE COL [ENDLINE ENDCOL]",
		Description: "Positions are 1-based. A single position is widened to the word under it,\n" +
			"a range is sent as is (plus any qualifier it touches).",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "disable colors and the spinner",
			},
			&cli.StringFlag{
				Name:  "ghci",
				Usage: "command that starts GHCi (overrides config and project detection)",
			},
		},
		Action: runTypeAt,
	}
}

// typeAtArgs are the parsed positional arguments of type-at.
type typeAtArgs struct {
	File  string
	Range document.Range
}

// parseTypeAtArgs parses FILE LINE COL [ENDLINE ENDCOL] with 1-based numbers.
func parseTypeAtArgs(args []string) (typeAtArgs, error) {
	if len(args) != 3 && len(args) != 5 {
		return typeAtArgs{}, ErrUsage
	}

	nums := make([]int, len(args)-1)

	for i, a := range args[1:] {
		n, err := strconv.Atoi(a)
		if err != nil || n < 1 {
			return typeAtArgs{}, fmt.Errorf("%w: %q is not a positive number", ErrUsage, a)
		}

		nums[i] = n - 1
	}

	start := document.Position{Line: nums[0], Column: nums[1]}
	end := start

	if len(nums) == 4 {
		end = document.Position{Line: nums[2], Column: nums[3]}
	}

	if end.Before(start) {
		start, end = end, start
	}

	return typeAtArgs{File: args[0], Range: document.Range{Start: start, End: end}}, nil
}

func runTypeAt(ctx context.Context, cmd *cli.Command) error {
	args, err := parseTypeAtArgs(cmd.Args().Slice())
	if err != nil {
		return err
	}

	path, err := filepath.Abs(args.File)
	if err != nil {
		return err
	}

	text, err := os.ReadFile(path) //nolint:gosec // G304: the user names the file
	if err != nil {
		return err
	}

	doc := document.New(string(text))
	if !doc.Valid(args.Range.Start) || !doc.Valid(args.Range.End) {
		return fmt.Errorf("%w: %s has %d lines", ErrOutOfRange, args.File, doc.LineCount())
	}

	cfg, err := rangetype.LoadConfigOrDefault(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if command := cmd.String("ghci"); command != "" {
		cfg.GHCi.Command = strings.Fields(command)
	}

	logger, err := newLogger(cmd.Root().String("log-level"))
	if err != nil {
		return err
	}

	defer func() { _ = logger.Sync() }()

	manager := ghci.NewManager(logger, ghci.ManagerOptions{
		Command:        cfg.GHCi.Command,
		Env:            cfg.GHCi.Env,
		StartupTimeout: cfg.GHCi.StartupTimeout,
		CommandTimeout: cfg.GHCi.CommandTimeout,
	})

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()

		if err := manager.CloseAll(closeCtx); err != nil {
			logger.Warn("Failed to stop GHCi", zap.Error(err))
		}
	}()

	session := manager.SessionFor(path)

	var (
		res typeat.Result
		ok  bool
	)

	query := func(ctx context.Context) error {
		var err error

		res, ok, err = typeat.Query(ctx, session, path, doc, args.Range)

		return err
	}

	styles := PlainStyles()
	interactive := !cmd.Bool("plain") && isTerminal(os.Stderr)

	if !cmd.Bool("plain") && isTerminal(os.Stdout) {
		styles = DefaultStyles()
	}

	if interactive {
		err = withSpinner(ctx, os.Stderr, "Loading "+session.Key, styles, query)
	} else {
		err = query(ctx)
	}

	if err != nil {
		return err
	}

	if !ok {
		return ErrNoType
	}

	return printType(os.Stdout, styles, doc.Text(res.Range), res.Type)
}

// printType writes "<expr> :: <type>" on one line.
func printType(w io.Writer, styles *Styles, expr, typ string) error {
	_, err := fmt.Fprintln(w, styles.renderType(expr, typ))

	return err
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
