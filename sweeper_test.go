package snapsweeper

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() log15.Logger {
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())
	return logger
}

func newTestSweep(t *testing.T, fake *FakeInventory, opts func(*SweepInput)) *Sweep {
	t.Helper()
	logger := testLogger()
	in := SweepInput{
		Inventory: fake,
		Logger:    &logger,
	}
	if opts != nil {
		opts(&in)
	}
	swp, err := New(&in)
	require.NoError(t, err)
	return swp
}

func seedScenario(fake *FakeInventory) {
	fake.SnapshotsMap["snap-1"] = Snapshot{SnapshotId: "snap-1", Size: 8}
	fake.SnapshotsMap["snap-2"] = Snapshot{SnapshotId: "snap-2", VolumeId: "vol-1", Size: 100}
	fake.SnapshotsMap["snap-3"] = Snapshot{SnapshotId: "snap-3", VolumeId: "vol-2", Size: 20}
	fake.SnapshotsMap["snap-4"] = Snapshot{SnapshotId: "snap-4", VolumeId: "vol-3", Size: 50}
	fake.VolumesMap["vol-1"] = Volume{
		VolumeId: "vol-1",
		Size:     100,
		State:    "in-use",
		Attachments: []Attachment{
			{InstanceId: "i-1", Device: "/dev/xvda"},
		},
	}
	fake.VolumesMap["vol-2"] = Volume{VolumeId: "vol-2", Size: 20, State: "available"}
	// vol-3 intentionally absent
	fake.Instances = []Instance{
		{InstanceId: "i-1", State: "running"},
		{InstanceId: "i-2", State: "stopped"},
	}
}

func TestSweepVerdicts(t *testing.T) {
	fake := NewFake()
	seedScenario(fake)
	swp := newTestSweep(t, fake, nil)

	require.NoError(t, swp.Start())

	assert.ElementsMatch(t, []string{"snap-1", "snap-3", "snap-4"}, swp.DeletedSnapshotIds())

	reasons := map[string]string{}
	deleted := map[string]bool{}
	for _, f := range swp.Findings {
		reasons[f.Snap.SnapshotId] = f.Reason
		deleted[f.Snap.SnapshotId] = f.Deleted
	}
	assert.Equal(t, ReasonNoVolume, reasons["snap-1"])
	assert.Equal(t, reasonVolumeInUse, reasons["snap-2"])
	assert.Equal(t, ReasonVolumeIdle, reasons["snap-3"])
	assert.Equal(t, ReasonVolumeGone, reasons["snap-4"])
	assert.False(t, deleted["snap-2"])

	// only the protected snapshot survives in the inventory
	_, ok := fake.SnapshotsMap["snap-2"]
	assert.True(t, ok)
	assert.Len(t, fake.SnapshotsMap, 1)
}

func TestSweepAbortsOnLookupFault(t *testing.T) {
	fake := NewFake()
	fake.SnapshotsMap["snap-a"] = Snapshot{SnapshotId: "snap-a"}
	fake.SnapshotsMap["snap-b"] = Snapshot{SnapshotId: "snap-b", VolumeId: "vol-b"}
	fake.SnapshotsMap["snap-c"] = Snapshot{SnapshotId: "snap-c", VolumeId: "vol-c"}
	boom := errors.New("RequestLimitExceeded: rate exceeded")
	fake.LookupErrs["vol-b"] = boom

	swp := newTestSweep(t, fake, nil)
	err := swp.Start()
	require.Error(t, err)
	assert.Equal(t, boom, err)

	// snap-a was deleted before the fault and stays deleted,
	// snap-c was never evaluated
	assert.Equal(t, []string{"snap-a"}, fake.DeleteCalls)
	assert.Len(t, swp.Findings, 2)
}

func TestSweepOnlyNotFoundTriggersDeletion(t *testing.T) {
	fake := NewFake()
	fake.SnapshotsMap["snap-b"] = Snapshot{SnapshotId: "snap-b", VolumeId: "vol-b"}
	fake.LookupErrs["vol-b"] = errors.New("UnauthorizedOperation: not allowed")

	swp := newTestSweep(t, fake, nil)
	require.Error(t, swp.Start())
	assert.Empty(t, fake.DeleteCalls)
}

func TestSweepIdempotent(t *testing.T) {
	fake := NewFake()
	seedScenario(fake)

	first := newTestSweep(t, fake, nil)
	require.NoError(t, first.Start())
	require.NotEmpty(t, first.DeletedSnapshotIds())

	second := newTestSweep(t, fake, nil)
	require.NoError(t, second.Start())
	assert.Empty(t, second.DeletedSnapshotIds())
}

func TestDryRunNeverDeletes(t *testing.T) {
	fake := NewFake()
	seedScenario(fake)
	dry := true
	swp := newTestSweep(t, fake, func(in *SweepInput) {
		in.DryRun = &dry
	})

	require.NoError(t, swp.Start())

	assert.Empty(t, fake.DeleteCalls)
	assert.Empty(t, swp.DeletedSnapshotIds())
	assert.Len(t, fake.SnapshotsMap, 4)

	var eligible int
	for _, f := range swp.Findings {
		if f.Eligible {
			eligible++
			assert.False(t, f.Deleted)
		}
	}
	assert.Equal(t, 3, eligible)
}

func TestDeleteRaceIsBenign(t *testing.T) {
	fake := NewFake()
	fake.SnapshotsMap["snap-1"] = Snapshot{SnapshotId: "snap-1"}
	// simulate an overlapping run winning the delete
	fake.DeleteErrs["snap-1"] = &SnapshotNotFoundError{SnapshotId: "snap-1"}

	swp := newTestSweep(t, fake, nil)
	require.NoError(t, swp.Start())
	assert.Empty(t, swp.DeletedSnapshotIds())
	require.Len(t, swp.Findings, 1)
	assert.True(t, swp.Findings[0].Eligible)
	assert.False(t, swp.Findings[0].Deleted)
}

func TestSweepSummary(t *testing.T) {
	fake := NewFake()
	seedScenario(fake)
	swp := newTestSweep(t, fake, nil)
	require.NoError(t, swp.Start())

	summary := swp.GetSummary()
	require.NotEmpty(t, summary)
	assert.Contains(t, summary[0], "3 snapshots")
	joined := ""
	for _, line := range summary {
		joined += line + "\n"
	}
	assert.Contains(t, joined, ReasonNoVolume)
	assert.Contains(t, joined, ReasonVolumeGone)
	assert.Contains(t, joined, ReasonVolumeIdle)
	assert.Contains(t, joined, "1 snapshots were spared")
	assert.Contains(t, joined, "1 instances were running")
}

func TestNewRequiresLogger(t *testing.T) {
	_, err := New(&SweepInput{Inventory: NewFake()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger")
}

func TestNewRequiresSessionOrInventory(t *testing.T) {
	logger := testLogger()
	_, err := New(&SweepInput{Logger: &logger})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Session is required")
}

func TestExportFindings(t *testing.T) {
	fake := NewFake()
	seedScenario(fake)
	dir := t.TempDir()
	findingsFile := filepath.Join(dir, "findings.csv")
	summaryFile := filepath.Join(dir, "summary.txt")
	swp := newTestSweep(t, fake, func(in *SweepInput) {
		in.OutfileFindings = &findingsFile
		in.OutfileSummary = &summaryFile
	})
	require.NoError(t, swp.Start())
	require.NoError(t, swp.ExportFindings())
	require.NoError(t, swp.ExportSummary())

	f, err := os.Open(findingsFile)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5) // header plus one row per snapshot
	assert.Equal(t, "SnapshotId", rows[0][0])

	info, err := os.Stat(summaryFile)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
