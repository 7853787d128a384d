package utils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"survivor-pool/models"
	"survivor-pool/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestR2ConfigEnabled(t *testing.T) {
	full := R2Config{AccountID: "acc", AccessKeyID: "id", AccessKeySecret: "secret", Bucket: "pool"}
	assert.True(t, full.Enabled())

	missing := full
	missing.Bucket = ""
	assert.False(t, missing.Enabled())
}

func TestArchiveStandings(t *testing.T) {
	putter := &fakePutter{}
	archive := NewR2StandingsArchive(putter, R2Config{AccountID: "acc", Bucket: "pool", CDNBaseURL: "https://cdn.example/"})

	winner := "u1"
	c := &models.Competition{ID: "c1", Name: "Copa", Slug: "copa", TotalWeeks: 3, WinnerUserID: &winner}
	standings := []services.Standing{
		{Rank: 1, UserID: "u1", LivesRemaining: 2, TotalPoints: 30},
		{Rank: 2, UserID: "u2", TotalPoints: 20, IsEliminated: true},
	}

	url, err := archive.ArchiveStandings(context.Background(), c, standings)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/competitions/c1/standings.json", url)

	require.NotNil(t, putter.input)
	assert.Equal(t, "pool", aws.ToString(putter.input.Bucket))
	assert.Equal(t, StandingsKey(c), aws.ToString(putter.input.Key))
	assert.Equal(t, "application/json", aws.ToString(putter.input.ContentType))

	var doc standingsDocument
	require.NoError(t, json.Unmarshal(putter.body, &doc))
	assert.Equal(t, "Copa", doc.CompetitionName)
	require.Len(t, doc.Standings, 2)
	assert.Equal(t, "u2", doc.Standings[1].UserID)
}

func TestArchiveStandingsDefaultURLAndFailure(t *testing.T) {
	putter := &fakePutter{err: errors.New("denied")}
	archive := NewR2StandingsArchive(putter, R2Config{AccountID: "acc", Bucket: "pool"})
	assert.Equal(t, "https://acc.r2.cloudflarestorage.com/pool", archive.cdnBaseURL)

	_, err := archive.ArchiveStandings(context.Background(), &models.Competition{ID: "c1"}, nil)
	assert.ErrorContains(t, err, "denied")
}
