package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/inconshreveable/log15"

	"github.com/cloudtidy/snapsweeper"
)

// handleSweep runs one full sweep per scheduled invocation. The
// trigger payload carries nothing we need. Returning an error marks
// the invocation failed so the platform surfaces the fault; any
// deletions made before the fault stay committed.
func handleSweep(ctx context.Context) error {
	logger := snapsweeper.DefaultLogger(log15.LvlInfo)
	sess, err := session.NewSession()
	if err != nil {
		return err
	}
	dryRun := os.Getenv("DRY_RUN") == "true"
	in := snapsweeper.SweepInput{
		Session: sess,
		Logger:  &logger,
		DryRun:  &dryRun,
	}
	swp, err := snapsweeper.New(&in)
	if err != nil {
		return err
	}
	if err := swp.Start(); err != nil {
		return err
	}
	for _, line := range swp.GetSummary() {
		logger.Info(line)
	}
	return nil
}

func main() {
	lambda.Start(handleSweep)
}
