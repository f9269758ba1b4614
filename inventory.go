package snapsweeper

import (
	"fmt"
	"time"
)

// Snapshot is a point-in-time backup of a block storage volume.
// VolumeId is empty when the snapshot carries no source volume
// reference at all.
type Snapshot struct {
	SnapshotId  string
	VolumeId    string
	Size        int64
	StartTime   time.Time
	Description string
}

// Attachment links a volume to the instance it is attached to.
type Attachment struct {
	InstanceId string
	Device     string
}

// Volume is a block storage volume. A volume with an empty
// Attachments slice is not attached to anything.
type Volume struct {
	VolumeId    string
	Size        int64
	State       string
	Attachments []Attachment
}

// Instance is a compute instance. Only the running state matters
// to this package.
type Instance struct {
	InstanceId string
	State      string
}

// Inventory is a narrow interface over the cloud inventory API.
// Keep it small and focused on what the sweep actually needs so it
// stays mockable. The AWSInventory type implements it against EC2;
// FakeInventory implements it in memory for tests.
type Inventory interface {
	// ListSnapshots returns all snapshots owned by the caller.
	ListSnapshots() ([]Snapshot, error)

	// ListRunningInstances returns all instances currently in the
	// running state.
	ListRunningInstances() ([]Instance, error)

	// DescribeVolume looks up a single volume by ID. If the volume
	// does not exist the error is a *VolumeNotFoundError; any other
	// error means the lookup itself failed.
	DescribeVolume(volumeId string) (Volume, error)

	// DeleteSnapshot deletes a single snapshot by ID. If the
	// snapshot is already gone the error is a *SnapshotNotFoundError.
	DeleteSnapshot(snapshotId string) error
}

// VolumeNotFoundError indicates a volume lookup came back with a
// not-found condition rather than a fault. For the sweep this is a
// verdict input, not a failure.
type VolumeNotFoundError struct {
	VolumeId string
}

func (e *VolumeNotFoundError) Error() string {
	return fmt.Sprintf("volume %s not found", e.VolumeId)
}

// SnapshotNotFoundError indicates a delete targeted a snapshot that
// no longer exists, e.g. because an overlapping run got there first.
type SnapshotNotFoundError struct {
	SnapshotId string
}

func (e *SnapshotNotFoundError) Error() string {
	return fmt.Sprintf("snapshot %s not found", e.SnapshotId)
}
