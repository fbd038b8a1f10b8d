package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

var jobsHwd = &JobLister{}

type JobLister struct{}

func (l *JobLister) cmd() *cli.Command {
	return &cli.Command{
		Name:   "jobs",
		Usage:  "List the jobs the config defines with their schedules",
		Flags:  []cli.Flag{configFlag()},
		Action: l.list,
	}
}

func (l *JobLister) list(_ context.Context, c *cli.Command) error {
	_, cat, err := loadCatalog(c.String("config"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENABLED\tTIMEOUT\tRETRIES\tDEPENDS ON\tSCHEDULE")
	for _, j := range cat.Jobs {
		timeout := "-"
		if j.Timeout() > 0 {
			timeout = j.Timeout().String()
		}
		deps := "-"
		if j.HasDependencies() {
			deps = strings.Join(j.Dependencies(), ",")
		}
		var parts []string
		for _, s := range j.Schedules() {
			for _, p := range s.Parts() {
				parts = append(parts, s.Name()+": "+p.String())
			}
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%d\t%s\t%s\n",
			j.Name(), !slices.Contains(cat.Disabled, j.Name()), timeout, j.Retries(), deps, strings.Join(parts, "; "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !cat.OK() {
		fmt.Fprintf(c.Root().Writer, "\n%d job(s) skipped, run `ketl validate` for details\n", len(cat.Skipped))
	}
	return nil
}
