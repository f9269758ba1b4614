package snapsweeper

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/inconshreveable/log15"
)

const (
	codeVolumeNotFound   = "InvalidVolume.NotFound"
	codeSnapshotNotFound = "InvalidSnapshot.NotFound"
)

// AWSInventory implements Inventory against the EC2 API using the
// credentials of the provided session.
type AWSInventory struct {
	session  *session.Session
	log      log15.Logger
	maxPages int
	pageSize int
	account  string
}

// NewAWSInventory returns an Inventory backed by EC2. Snapshot
// listing is owner-scoped to the account behind the session and
// paginated with the given page limits.
func NewAWSInventory(sess *session.Session, logger log15.Logger, maxPages, pageSize int) *AWSInventory {
	return &AWSInventory{
		session:  sess,
		log:      logger,
		maxPages: maxPages,
		pageSize: pageSize,
	}
}

func (inv *AWSInventory) getAccountNumber() (err error) {
	if inv.account != "" {
		return err
	}
	inv.log.Debug("getting account number")
	svcSts := sts.New(inv.session)
	gcii := sts.GetCallerIdentityInput{}
	gci, err := svcSts.GetCallerIdentity(&gcii)
	if err != nil {
		return err
	}
	inv.account = *gci.Account
	return err
}

// ListSnapshots pulls all snapshots owned by the current account,
// handling pagination up to the configured page limit.
func (inv *AWSInventory) ListSnapshots() (snaps []Snapshot, err error) {
	err = inv.getAccountNumber()
	if err != nil {
		return snaps, err
	}
	svc := ec2.New(inv.session)
	maxResults := int64(inv.pageSize)
	dsi := ec2.DescribeSnapshotsInput{
		OwnerIds:   []*string{&inv.account},
		MaxResults: &maxResults,
	}
	pageNum := 0
	err = svc.DescribeSnapshotsPages(&dsi,
		func(page *ec2.DescribeSnapshotsOutput, lastPage bool) bool {
			pageNum++
			inv.log.Debug("processing snapshot page", "page", pageNum)
			for _, snap := range page.Snapshots {
				snaps = append(snaps, Snapshot{
					SnapshotId:  aws.StringValue(snap.SnapshotId),
					VolumeId:    aws.StringValue(snap.VolumeId),
					Size:        aws.Int64Value(snap.VolumeSize),
					StartTime:   aws.TimeValue(snap.StartTime),
					Description: aws.StringValue(snap.Description),
				})
			}
			return pageNum <= inv.maxPages
		})
	if err != nil {
		return snaps, err
	}
	inv.log.Info("listed snapshots", "count", len(snaps), "pages", pageNum)
	return snaps, err
}

// ListRunningInstances pulls all instances in running state,
// handling pagination.
func (inv *AWSInventory) ListRunningInstances() (instances []Instance, err error) {
	svc := ec2.New(inv.session)
	stateName := "instance-state-name"
	running := ec2.InstanceStateNameRunning
	dii := ec2.DescribeInstancesInput{
		Filters: []*ec2.Filter{
			{
				Name:   &stateName,
				Values: []*string{&running},
			},
		},
	}
	err = svc.DescribeInstancesPages(&dii,
		func(page *ec2.DescribeInstancesOutput, lastPage bool) bool {
			for _, res := range page.Reservations {
				for _, inst := range res.Instances {
					i := Instance{
						InstanceId: aws.StringValue(inst.InstanceId),
					}
					if inst.State != nil {
						i.State = aws.StringValue(inst.State.Name)
					}
					instances = append(instances, i)
				}
			}
			return true
		})
	if err != nil {
		return instances, err
	}
	inv.log.Info("listed running instances", "count", len(instances))
	return instances, err
}

// DescribeVolume looks up a single volume. Volumes have to be
// described individually because AWS fails a bulk request if even
// one volume in it is missing, and the sweep needs not-found on a
// per-volume basis anyway.
func (inv *AWSInventory) DescribeVolume(volumeId string) (vol Volume, err error) {
	svc := ec2.New(inv.session)
	dvi := ec2.DescribeVolumesInput{
		VolumeIds: []*string{&volumeId},
	}
	r, err := svc.DescribeVolumes(&dvi)
	if err != nil {
		return vol, tagVolumeError(err, volumeId)
	}
	if len(r.Volumes) == 0 {
		return vol, &VolumeNotFoundError{VolumeId: volumeId}
	}
	raw := r.Volumes[0]
	vol = Volume{
		VolumeId: aws.StringValue(raw.VolumeId),
		Size:     aws.Int64Value(raw.Size),
		State:    aws.StringValue(raw.State),
	}
	for _, att := range raw.Attachments {
		vol.Attachments = append(vol.Attachments, Attachment{
			InstanceId: aws.StringValue(att.InstanceId),
			Device:     aws.StringValue(att.Device),
		})
	}
	return vol, err
}

// DeleteSnapshot deletes a single snapshot.
func (inv *AWSInventory) DeleteSnapshot(snapshotId string) error {
	svc := ec2.New(inv.session)
	dsi := ec2.DeleteSnapshotInput{
		SnapshotId: &snapshotId,
	}
	_, err := svc.DeleteSnapshot(&dsi)
	if err != nil {
		return tagSnapshotError(err, snapshotId)
	}
	return nil
}

// tagVolumeError converts the EC2 not-found error code into the
// package's tagged variant so callers never match error strings.
// Everything else passes through untouched.
func tagVolumeError(err error, volumeId string) error {
	if aerr, ok := err.(awserr.Error); ok {
		if aerr.Code() == codeVolumeNotFound {
			return &VolumeNotFoundError{VolumeId: volumeId}
		}
	}
	return err
}

// tagSnapshotError does the same for the snapshot not-found code.
func tagSnapshotError(err error, snapshotId string) error {
	if aerr, ok := err.(awserr.Error); ok {
		if aerr.Code() == codeSnapshotNotFound {
			return &SnapshotNotFoundError{SnapshotId: snapshotId}
		}
	}
	return err
}
