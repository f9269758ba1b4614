package snapsweeper

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagVolumeError(t *testing.T) {
	aerr := awserr.New(codeVolumeNotFound, "The volume 'vol-9' does not exist.", nil)
	err := tagVolumeError(aerr, "vol-9")
	var notFound *VolumeNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "vol-9", notFound.VolumeId)
}

func TestTagVolumeErrorPassesThroughOtherCodes(t *testing.T) {
	aerr := awserr.New("RequestLimitExceeded", "rate exceeded", nil)
	err := tagVolumeError(aerr, "vol-9")
	var notFound *VolumeNotFoundError
	assert.False(t, errors.As(err, &notFound))
	assert.Equal(t, aerr, err)
}

func TestTagVolumeErrorPassesThroughPlainErrors(t *testing.T) {
	plain := errors.New("connection reset")
	assert.Equal(t, plain, tagVolumeError(plain, "vol-9"))
}

func TestTagSnapshotError(t *testing.T) {
	aerr := awserr.New(codeSnapshotNotFound, "The snapshot 'snap-9' does not exist.", nil)
	err := tagSnapshotError(aerr, "snap-9")
	var notFound *SnapshotNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "snap-9", notFound.SnapshotId)

	other := awserr.New("UnauthorizedOperation", "not allowed", nil)
	assert.Equal(t, other, tagSnapshotError(other, "snap-9"))
}
