package snapsweeper

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/inconshreveable/log15"
)

// Deletion reasons recorded on findings and log lines.
const (
	ReasonNoVolume    = "not attached to any volume"
	ReasonVolumeIdle  = "volume not attached to any running instance"
	ReasonVolumeGone  = "associated volume was not found"
	reasonVolumeInUse = "volume still attached"
)

// Finding is the verdict for a single snapshot: whether it was
// eligible for deletion, whether it was actually deleted, and why.
type Finding struct {
	// original snapshot as listed from the inventory
	Snap Snapshot

	// whether the snapshot met the deletion criteria
	Eligible bool

	// whether the delete call was actually made and succeeded
	// (false for retained snapshots and for dry runs)
	Deleted bool

	// reason tag for the verdict
	Reason string
}

// A Sweep contains the properties and methods necessary to analyze
// the snapshots in an account and delete the orphaned ones. Create a
// SweepInput object and pass it to this package's New method to get
// a new Sweep. From there call the Start method. When that is
// complete the findings can be exported using other methods.
type Sweep struct {
	// Findings holds the per-snapshot verdicts from the last Start.
	// This property is exported so that it could be marshalled to
	// another format if the ExportFindings CSV format is not ideal
	Findings []*Finding

	inventory       Inventory
	session         *session.Session
	log             log15.Logger
	dryRun          bool
	maxPages        int
	pageSize        int
	snapRate        float64
	outfileSummary  string
	outfileFindings string
	summary         []string
	deleted         []string
	runningIds      []string
	alreadyGone     int
	retained        int
}

// Start kicks off the sweep. After this completes the findings can
// be exported. Deletions are not transactional: a fault partway
// through leaves earlier deletions committed and surfaces the error
// to the caller.
func (s *Sweep) Start() (err error) {
	snaps, err := s.inventory.ListSnapshots()
	if err != nil {
		return err
	}
	instances, err := s.inventory.ListRunningInstances()
	if err != nil {
		return err
	}
	// The running set is collected for the summary only. The verdict
	// below looks at volume attachment presence, not at whether the
	// attached instance is actually running.
	var ids []string
	for _, inst := range instances {
		ids = append(ids, inst.InstanceId)
	}
	s.runningIds = dedupeString(ids)
	s.log.Info("inventory collected", "snapshots", len(snaps), "running_instances", len(s.runningIds))
	for _, snap := range snaps {
		err = s.evaluate(snap)
		if err != nil {
			return err
		}
	}
	s.setSummary()
	return err
}

// evaluate decides the fate of one snapshot and performs the delete
// when it is eligible. Only a volume not-found condition counts as
// confirmation of orphanhood; any other lookup fault aborts the run.
func (s *Sweep) evaluate(snap Snapshot) error {
	f := Finding{Snap: snap}
	s.Findings = append(s.Findings, &f)
	switch {
	case snap.VolumeId == "":
		f.Eligible = true
		f.Reason = ReasonNoVolume
	default:
		vol, err := s.inventory.DescribeVolume(snap.VolumeId)
		var notFound *VolumeNotFoundError
		switch {
		case errors.As(err, &notFound):
			f.Eligible = true
			f.Reason = ReasonVolumeGone
		case err != nil:
			s.log.Error("volume lookup failed, aborting sweep",
				"snapshot", snap.SnapshotId, "volume", snap.VolumeId, "error", err.Error())
			return err
		case len(vol.Attachments) == 0:
			f.Eligible = true
			f.Reason = ReasonVolumeIdle
		default:
			f.Reason = reasonVolumeInUse
			s.retained++
		}
	}
	if !f.Eligible {
		return nil
	}
	if s.dryRun {
		s.log.Info("would delete snapshot (dry run)",
			"snapshot", snap.SnapshotId, "reason", f.Reason)
		return nil
	}
	err := s.inventory.DeleteSnapshot(snap.SnapshotId)
	var gone *SnapshotNotFoundError
	if errors.As(err, &gone) {
		// an overlapping run beat us to it, which is fine
		s.log.Debug("snapshot already deleted", "snapshot", snap.SnapshotId)
		s.alreadyGone++
		return nil
	}
	if err != nil {
		return err
	}
	f.Deleted = true
	s.deleted = append(s.deleted, snap.SnapshotId)
	s.log.Info("deleted snapshot", "snapshot", snap.SnapshotId, "reason", f.Reason)
	return nil
}

// DeletedSnapshotIds returns the IDs of the snapshots deleted by the
// last Start, in deletion order.
func (s *Sweep) DeletedSnapshotIds() []string {
	return dedupeString(s.deleted)
}

// GetSummary returns a string slice describing the outcome of the
// last Start.
func (s *Sweep) GetSummary() (msg []string) {
	return s.summary
}

// setSummary builds the human readable outcome report from the
// findings of the run.
func (s *Sweep) setSummary() {
	var msg []string
	counts := map[string]int{}
	var eligible int
	var totalGbs int64
	for _, f := range s.Findings {
		if f.Eligible {
			eligible++
			counts[f.Reason]++
			totalGbs += f.Snap.Size
		}
	}
	verb := "were deleted"
	if s.dryRun {
		verb = "would be deleted (dry run)"
	}
	intro := fmt.Sprintf("After analyzing the account we found %d snapshots "+
		"out of %d that are orphaned. They %s:\n",
		eligible, len(s.Findings), verb)
	msg = append(msg, intro)
	for _, reason := range []string{ReasonNoVolume, ReasonVolumeGone, ReasonVolumeIdle} {
		if counts[reason] > 0 {
			msg = append(msg, fmt.Sprintf("\t%d because %s", counts[reason], reason))
		}
	}
	msg = append(msg, fmt.Sprintf(
		"%d snapshots were spared because their EBS volume still exists and is attached",
		s.retained,
	))
	if s.alreadyGone > 0 {
		msg = append(msg, fmt.Sprintf(
			"%d snapshots were already gone when we tried to delete them",
			s.alreadyGone,
		))
	}
	msg = append(msg, fmt.Sprintf(
		"%d instances were running at the time of the sweep (informational only, "+
			"the verdict checks volume attachment, not instance state)",
		len(s.runningIds),
	))
	totalSavings := float64(totalGbs) * s.snapRate
	msg = append(msg, fmt.Sprintf(
		"Total size of deleted snapshots is %d GB. At a per GB-month rate of $%f "+
			"there is a monthly savings of $%f",
		totalGbs, s.snapRate, totalSavings))
	s.summary = msg
}

// ExportSummary takes the current summary and writes it to outfile.
func (s *Sweep) ExportSummary() (err error) {
	file, err := os.Create(s.outfileSummary)
	if err != nil {
		return err
	}
	defer file.Close()
	for _, line := range s.GetSummary() {
		_, err = file.WriteString(line + "\n")
		if err != nil {
			return err
		}
	}
	s.log.Info("wrote summary to file", "filename", s.outfileSummary)
	return err
}

// ExportFindings takes all of the findings associated with the
// current Sweep and writes them to a csv of the filename that's set
// upon Sweep creation.
func (s *Sweep) ExportFindings() (err error) {
	csvfile, err := os.Create(s.outfileFindings)
	if err != nil {
		return err
	}
	csvwriter := csv.NewWriter(csvfile)
	header := []string{
		"SnapshotId", "VolumeId", "StartTime", "VolumeSize",
		"Eligible", "Deleted", "Reason", "Description"}
	csvwriter.Write(header)
	for _, f := range s.Findings {
		row := f.dumpString()
		csvwriter.Write(row)
	}
	csvwriter.Flush()
	csvfile.Close()
	s.log.Info("wrote findings to file", "filename", s.outfileFindings)
	return err
}

// dumpString is a method to export the Finding object as a CSV string
func (f *Finding) dumpString() (s []string) {
	s = []string{
		f.Snap.SnapshotId,
		f.Snap.VolumeId,
		f.Snap.StartTime.Format("2006-01-02"),
		strconv.FormatInt(f.Snap.Size, 10),
		strconv.FormatBool(f.Eligible),
		strconv.FormatBool(f.Deleted),
		f.Reason,
		f.Snap.Description,
	}
	return s
}

// DefaultLogger sets up a log15 logger writing logfmt to stdout at
// the given level, suitable for passing to SweepInput.
func DefaultLogger(lvl log15.Lvl) log15.Logger {
	logger := log15.New()
	logger.SetHandler(
		log15.LvlFilterHandler(
			lvl,
			log15.StreamHandler(os.Stdout, log15.LogfmtFormat()),
		),
	)
	return logger
}

// SweepInput provides configuration inputs for starting a new Sweep
// of orphaned snapshots.
type SweepInput struct {
	// AWS Session to use for credentials for this sweep.
	//
	// Session is required unless Inventory is provided
	Session *session.Session

	// Inventory overrides the AWS-backed inventory built from
	// Session. Mainly useful for substituting a fake in tests.
	Inventory Inventory

	// When true the sweep evaluates and reports verdicts but never
	// calls delete.
	// Default: false
	DryRun *bool

	// Maximum number of pages of snapshots to process from the
	// snapshot listing operation
	// Default: 25
	MaxPages *int

	// Maximum number of snapshots per page
	// Default: 500
	PageSize *int

	// This is the EBS snapshot storage rate used in calculating
	// the savings estimate.
	// Default: 0.05
	SnapshotRate *float64

	// If the ExportSummary method is called on the returned Sweep
	// it will write an outcome summary to the OutfileSummary
	// filename in text format.
	// Default: "out-summary.txt"
	OutfileSummary *string

	// If the ExportFindings method is called on the returned Sweep
	// it will write all findings (per-snapshot verdicts) to the
	// OutfileFindings filename in csv format.
	// Default: "out-findings.csv"
	OutfileFindings *string

	// Sweep uses log15 (https://github.com/inconshreveable/log15)
	// as an opinionated logging framework.
	//
	// Logger is a required field
	Logger *log15.Logger
}

// New returns a Sweep object whose methods can be called to perform
// an orphaned snapshot cleanup. This method accepts a SweepInput
// struct which can be used to set up the Sweep inputs. This method
// will set any default values for any property that was not
// specified in the SweepInput object.
func New(input *SweepInput) (swp *Sweep, err error) {
	var s Sweep

	DefaultDryRun := false
	if input.DryRun == nil {
		input.DryRun = &DefaultDryRun
	}
	s.dryRun = *input.DryRun

	DefaultMaxPages := 25
	if input.MaxPages == nil {
		input.MaxPages = &DefaultMaxPages
	}
	s.maxPages = *input.MaxPages

	DefaultPageSize := 500
	if input.PageSize == nil {
		input.PageSize = &DefaultPageSize
	}
	s.pageSize = *input.PageSize

	DefaultSnapshotRate := 0.05
	if input.SnapshotRate == nil {
		input.SnapshotRate = &DefaultSnapshotRate
	}
	s.snapRate = *input.SnapshotRate

	DefaultOutfileSummary := "out-summary.txt"
	if input.OutfileSummary == nil {
		input.OutfileSummary = &DefaultOutfileSummary
	}
	s.outfileSummary = *input.OutfileSummary

	DefaultOutfileFindings := "out-findings.csv"
	if input.OutfileFindings == nil {
		input.OutfileFindings = &DefaultOutfileFindings
	}
	s.outfileFindings = *input.OutfileFindings

	if input.Logger == nil {
		err = errors.New("log15 logger is required")
		return &s, err
	}
	s.log = *input.Logger

	if input.Inventory != nil {
		s.inventory = input.Inventory
		return &s, err
	}
	if input.Session == nil {
		err = errors.New("Session is required when no Inventory is provided")
		return &s, err
	}
	s.session = input.Session
	s.inventory = NewAWSInventory(s.session, s.log, s.maxPages, s.pageSize)
	return &s, err
}
