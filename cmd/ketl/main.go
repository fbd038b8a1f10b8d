package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "./ketl.json"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to config file (.json, .yaml, .yml or .toml)",
		Value:   defaultConfigPath,
		Sources: cli.EnvVars("KETL_CONFIG"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "ketl",
		Usage: "Schedule and run dependent jobs inside execution windows",
		Commands: []*cli.Command{
			runHwd.cmd(),
			validateHwd.cmd(),
			jobsHwd.cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ketl:", err)
		os.Exit(1)
	}
}
