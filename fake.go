package snapsweeper

import "sort"

// FakeInventory is an in-memory Inventory implementation for unit
// tests. Volumes and snapshots live in maps keyed by ID; a lookup
// for an absent volume returns the same tagged not-found error the
// real inventory does. LookupErrs can inject arbitrary faults on a
// per-volume basis to exercise the abort path.
type FakeInventory struct {
	SnapshotsMap map[string]Snapshot
	VolumesMap   map[string]Volume
	Instances    []Instance

	// LookupErrs maps a volume ID to an error returned from
	// DescribeVolume instead of a real lookup.
	LookupErrs map[string]error

	// DeleteErrs maps a snapshot ID to an error returned from
	// DeleteSnapshot.
	DeleteErrs map[string]error

	// DeleteCalls records every snapshot ID passed to
	// DeleteSnapshot, in order.
	DeleteCalls []string
}

// NewFake returns an empty FakeInventory ready to be populated.
func NewFake() *FakeInventory {
	return &FakeInventory{
		SnapshotsMap: map[string]Snapshot{},
		VolumesMap:   map[string]Volume{},
		LookupErrs:   map[string]error{},
		DeleteErrs:   map[string]error{},
	}
}

func (f *FakeInventory) ListSnapshots() ([]Snapshot, error) {
	out := make([]Snapshot, 0, len(f.SnapshotsMap))
	for _, s := range f.SnapshotsMap {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotId < out[j].SnapshotId })
	return out, nil
}

func (f *FakeInventory) ListRunningInstances() ([]Instance, error) {
	var out []Instance
	for _, inst := range f.Instances {
		if inst.State == "running" {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *FakeInventory) DescribeVolume(volumeId string) (Volume, error) {
	if err, ok := f.LookupErrs[volumeId]; ok {
		return Volume{}, err
	}
	vol, ok := f.VolumesMap[volumeId]
	if !ok {
		// mimic the EC2 not-found condition
		return Volume{}, &VolumeNotFoundError{VolumeId: volumeId}
	}
	return vol, nil
}

func (f *FakeInventory) DeleteSnapshot(snapshotId string) error {
	f.DeleteCalls = append(f.DeleteCalls, snapshotId)
	if err, ok := f.DeleteErrs[snapshotId]; ok {
		return err
	}
	if _, ok := f.SnapshotsMap[snapshotId]; !ok {
		return &SnapshotNotFoundError{SnapshotId: snapshotId}
	}
	delete(f.SnapshotsMap, snapshotId)
	return nil
}
