package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"

	"github.com/cloudtidy/snapsweeper"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapsweeper",
		Short:         "Find and delete orphaned EBS snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSweepCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newSweepCmd() *cobra.Command {
	var (
		region          string
		dryRun          bool
		verbose         bool
		maxPages        int
		pageSize        int
		outfileSummary  string
		outfileFindings string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a sweep against the current AWS account",
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl := log15.LvlInfo
			if verbose {
				lvl = log15.LvlDebug
			}
			logger := snapsweeper.DefaultLogger(lvl)
			cfg := aws.Config{}
			if region != "" {
				cfg.Region = &region
			}
			sess, err := session.NewSession(&cfg)
			if err != nil {
				return err
			}
			in := snapsweeper.SweepInput{
				Session:         sess,
				Logger:          &logger,
				DryRun:          &dryRun,
				MaxPages:        &maxPages,
				PageSize:        &pageSize,
				OutfileSummary:  &outfileSummary,
				OutfileFindings: &outfileFindings,
			}
			swp, err := snapsweeper.New(&in)
			if err != nil {
				return err
			}
			if err := swp.Start(); err != nil {
				return err
			}
			for _, line := range swp.GetSummary() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if err := swp.ExportSummary(); err != nil {
				return err
			}
			return swp.ExportFindings()
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "AWS region (defaults to the session's resolution chain)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate and report but never delete")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	cmd.Flags().IntVar(&maxPages, "max-pages", 25, "maximum snapshot pages to process")
	cmd.Flags().IntVar(&pageSize, "page-size", 500, "snapshots per page")
	cmd.Flags().StringVar(&outfileSummary, "out-summary", "out-summary.txt", "summary output file")
	cmd.Flags().StringVar(&outfileFindings, "out-findings", "out-findings.csv", "findings CSV output file")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
