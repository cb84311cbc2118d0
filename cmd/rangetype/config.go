package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/rlch/rangetype"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:      "config",
		Usage:     "Print the effective configuration as YAML",
		ArgsUsage: "[dir]",
		Action:    runConfig,
	}
}

func runConfig(_ context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		dir = "."
	}

	path, err := rangetype.FindConfig(dir)
	if err != nil {
		path = ""
	}

	cfg, err := rangetype.LoadConfigOrDefault(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if path != "" {
		fmt.Fprintf(os.Stderr, "# %s\n", path)
	} else {
		fmt.Fprintln(os.Stderr, "# defaults (no .rangetype.yaml found)")
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)

	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return enc.Close()
}
