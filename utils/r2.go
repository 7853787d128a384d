// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"survivor-pool/models"
	"survivor-pool/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Config holds the Cloudflare R2 credentials.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled is false when any required credential is missing.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

// ObjectPutter is the subset of the S3 client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2StandingsArchive uploads final leaderboards as JSON documents.
type R2StandingsArchive struct {
	client     ObjectPutter
	bucket     string
	cdnBaseURL string
}

// NewR2Client builds an S3 client pointed at the account's R2 endpoint.
func NewR2Client(ctx context.Context, cfg R2Config) (*s3.Client, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	}), nil
}

func NewR2StandingsArchive(client ObjectPutter, cfg R2Config) *R2StandingsArchive {
	base := strings.TrimRight(cfg.CDNBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", cfg.AccountID, cfg.Bucket)
	}
	return &R2StandingsArchive{client: client, bucket: cfg.Bucket, cdnBaseURL: base}
}

type standingsDocument struct {
	CompetitionID   string              `json:"competition_id"`
	CompetitionName string              `json:"competition_name"`
	Slug            string              `json:"slug"`
	TotalWeeks      int                 `json:"total_weeks"`
	WinnerUserID    *string             `json:"winner_user_id"`
	CompletedAt     *time.Time          `json:"completed_at"`
	Standings       []services.Standing `json:"standings"`
}

// StandingsKey is the object key for a competition's archive.
func StandingsKey(c *models.Competition) string {
	return fmt.Sprintf("competitions/%s/standings.json", c.ID)
}

// ArchiveStandings uploads the document and returns its public URL.
func (a *R2StandingsArchive) ArchiveStandings(ctx context.Context, c *models.Competition, standings []services.Standing) (string, error) {
	doc := standingsDocument{
		CompetitionID:   c.ID,
		CompetitionName: c.Name,
		Slug:            c.Slug,
		TotalWeeks:      c.TotalWeeks,
		WinnerUserID:    c.WinnerUserID,
		CompletedAt:     c.CompletedAt,
		Standings:       standings,
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode standings: %w", err)
	}

	key := StandingsKey(c)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	return fmt.Sprintf("%s/%s", a.cdnBaseURL, key), nil
}
