package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/team-of-2/novelize/notes"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Config selects the bucket and key prefix for S3Store.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// S3Store keeps one JSON object per session at <prefix>/sessions/<id>.json.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds a store from the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("NewS3Store: bucket is empty")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewS3Store: load AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}
	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Store) sessionsPrefix() string {
	if s.prefix == "" {
		return "sessions/"
	}
	return s.prefix + "/sessions/"
}

func (s *S3Store) key(id string) string {
	return s.sessionsPrefix() + id + snapshotExt
}

func (s *S3Store) Load(ctx context.Context, id string) (notes.Snapshot, error) {
	if err := validateID(id); err != nil {
		return notes.Snapshot{}, fmt.Errorf("Load: %w", err)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return notes.Snapshot{}, fmt.Errorf("Load %s: %w", id, ErrNotFound)
		}
		return notes.Snapshot{}, fmt.Errorf("Load %s: get object: %w", id, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return notes.Snapshot{}, fmt.Errorf("Load %s: read body: %w", id, err)
	}
	snap, err := decodeSnapshot(b)
	if err != nil {
		return notes.Snapshot{}, fmt.Errorf("Load %s: %w", id, err)
	}
	return snap, nil
}

func (s *S3Store) Save(ctx context.Context, snap notes.Snapshot) error {
	if err := validateID(snap.ID); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	if snap.Notes == nil {
		snap.Notes = notes.Notes{}
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("Save %s: marshal: %w", snap.ID, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(snap.ID)),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"session-version": fmt.Sprintf("%d", snap.Version),
		},
	})
	if err != nil {
		return fmt.Errorf("Save %s: put object: %w", snap.ID, err)
	}
	return nil
}

// List returns stored session ids in sorted order, following continuation tokens.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	prefix := s.sessionsPrefix()
	var (
		ids   []string
		token *string
	)
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		for _, obj := range out.Contents {
			rest := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if strings.Contains(rest, "/") || !strings.HasSuffix(rest, snapshotExt) {
				continue
			}
			ids = append(ids, strings.TrimSuffix(rest, snapshotExt))
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the snapshot for id. S3 deletes are idempotent, so existence is checked first.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if _, err := s.Load(ctx, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("Delete %s: %w", id, err)
	}
	return nil
}
