// Package snapsweeper seeks to save you money on your AWS bill by
// finding and deleting orphaned EBS snapshots, meaning snapshots
// whose source volume is gone or sitting unattached.
//
// EBS snapshots are billed at a GB-month rate, and when a volume is
// deleted its snapshots stick around in case you ever want to
// restore it. Most of the time people just forget to delete the
// snapshots when they tear infrastructure down, and the costs add
// up over the years.
//
// Decision Procedure
//
// Each owned snapshot is evaluated independently:
//
//   - no source volume reference: deleted
//   - source volume no longer exists: deleted
//   - source volume exists with no attachments: deleted
//   - source volume has at least one attachment: retained
//
// Only a volume not-found condition is taken as confirmation of
// orphanhood. Any other fault from the volume lookup aborts the
// sweep immediately with earlier deletions left committed, so a
// permissions or throttling problem never triggers a deletion.
//
// The set of running instances is collected and reported but is not
// an input to the verdict; a volume attached to a stopped instance
// still protects its snapshots.
//
// Usage
//
// Create a snapsweeper.Sweep and call the Start() method on it.
// After the sweep is complete you can collect a summary by calling
// GetSummary() and export the per-snapshot verdicts to CSV with
// ExportFindings().
//
// Sample
//
// Below is a sample main package you could use to run a sweep.
//
//   package main
//
//   import (
//   	"fmt"
//
//   	"github.com/aws/aws-sdk-go/aws/session"
//   	"github.com/cloudtidy/snapsweeper"
//   	"github.com/inconshreveable/log15"
//   )
//
//   func main() {
//   	sess := session.Must(session.NewSession())
//   	logger := log15.New()
//   	in := snapsweeper.SweepInput{
//   		Session: sess,
//   		Logger:  &logger,
//   	}
//   	swp, err := snapsweeper.New(&in)
//   	if err != nil { panic(err) }
//   	err = swp.Start()
//   	if err != nil { panic(err) }
//   	for _, line := range swp.GetSummary() {
//   		fmt.Println(line)
//   	}
//   }
//
// This package also ships two entrypoints: a cobra CLI under
// cmd/snapsweeper for ad-hoc runs and a Lambda handler under
// cmd/snapsweeper-lambda for scheduled invocation.
package snapsweeper
