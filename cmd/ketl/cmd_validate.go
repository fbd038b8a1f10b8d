package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/MarkStefanovic/ketl-sub000/internal/app"
	"github.com/MarkStefanovic/ketl-sub000/internal/config"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

var validateHwd = &Validator{}

type Validator struct{}

func (v *Validator) cmd() *cli.Command {
	return &cli.Command{
		Name:   "validate",
		Usage:  "Check the config and every job, print problems and exit non-zero on errors",
		Flags:  []cli.Flag{configFlag()},
		Action: v.validate,
	}
}

func (v *Validator) validate(_ context.Context, c *cli.Command) error {
	cfg, cat, err := loadCatalog(c.String("config"))
	if err != nil {
		return err
	}
	w := c.Root().Writer
	// Validate covers every section and per-job build errors; the catalog
	// adds the cross-job checks.
	verr := config.Validate(cfg)
	if verr != nil {
		fmt.Fprintln(w, "config errors:")
		fmt.Fprintln(w, verr)
	}
	if cat.Validation.HasErrors() {
		fmt.Fprint(w, cat.Validation.Report())
	}
	if verr != nil || !cat.OK() {
		return errors.New("validation failed")
	}
	fmt.Fprintf(w, "ok: %d jobs\n", len(cat.Jobs))
	return nil
}

// loadCatalog parses the config without committing it anywhere and resolves
// the jobs, keeping the full report even when invalid jobs get dropped.
func loadCatalog(path string) (*config.Config, app.Catalog, error) {
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		return nil, app.Catalog{}, err
	}
	cat, err := app.ResolveJobs(cfg, config.PolicySkipInvalid, logx.Nop())
	if err != nil {
		return nil, app.Catalog{}, err
	}
	return cfg, cat, nil
}
