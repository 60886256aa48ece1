package documents

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"dhportal/main_backend/cases"
)

// ObjectAPI is the part of the S3 client the store uses.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Config configures an S3Store.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for MinIO or LocalStack
}

// S3Store keeps case documents in one bucket.
type S3Store struct {
	client ObjectAPI
	bucket string
}

// NewS3Store loads the default AWS credential chain and builds a store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, cfg.Bucket), nil
}

func NewS3StoreWithClient(client ObjectAPI, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) objects(ctx context.Context, prefix string) ([]types.Object, error) {
	var out []types.Object
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		out = append(out, page.Contents...)
	}
	return out, nil
}

// List returns the documents present for a case.
func (s *S3Store) List(ctx context.Context, caseType cases.CaseType, caseID string) ([]cases.Attachment, error) {
	prefix, err := Prefix(caseType, caseID)
	if err != nil {
		return nil, err
	}
	objs, err := s.objects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out []cases.Attachment
	for _, o := range objs {
		key, ok := DocumentKey(prefix, aws.ToString(o.Key))
		if !ok {
			continue
		}
		out = append(out, cases.Attachment{
			Key:       key,
			CaseID:    caseID,
			CaseType:  caseType,
			Size:      aws.ToInt64(o.Size),
			UpdatedAt: aws.ToTime(o.LastModified),
		})
	}
	return out, nil
}

// deleteBatch is the DeleteObjects per-request limit.
const deleteBatch = 1000

// RemoveAll deletes every object under the case prefix. Partial failures are reported.
func (s *S3Store) RemoveAll(ctx context.Context, caseType cases.CaseType, caseID string) error {
	prefix, err := Prefix(caseType, caseID)
	if err != nil {
		return err
	}
	objs, err := s.objects(ctx, prefix)
	if err != nil {
		return err
	}
	for start := 0; start < len(objs); start += deleteBatch {
		end := min(start+deleteBatch, len(objs))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, o := range objs[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: o.Key})
		}
		res, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete s3://%s/%s: %w", s.bucket, prefix, err)
		}
		if len(res.Errors) > 0 {
			e := res.Errors[0]
			return fmt.Errorf("delete s3://%s/%s: %d objects failed, first %s: %s",
				s.bucket, prefix, len(res.Errors), aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}
