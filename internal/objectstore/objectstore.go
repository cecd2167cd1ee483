// Package objectstore keeps avatar images in S3-compatible storage and
// enforces per-object visibility.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// PathPrefix is the URL prefix under which objects are served.
const PathPrefix = "/objects/"

const avatarDir = "avatars/"

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidPath = errors.New("invalid object path")
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ACLPolicy is stored as object tags.
type ACLPolicy struct {
	Owner      int64      `json:"owner"`
	Visibility Visibility `json:"visibility"`
}

// CanRead reports whether userID may download an object under p.
func (p ACLPolicy) CanRead(userID int64, admin bool) bool {
	if p.Visibility == VisibilityPublic {
		return true
	}
	return userID != 0 && (userID == p.Owner || admin)
}

// s3Client is an interface for testability.
type s3Client interface {
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObjectTagging(ctx context.Context, input *s3.PutObjectTaggingInput, opts ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
	GetObjectTagging(ctx context.Context, input *s3.GetObjectTaggingInput, opts ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
}

type presigner interface {
	PresignPutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint     string
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	UploadExpiry time.Duration
}

type Store struct {
	client  s3Client
	presign presigner
	bucket  string
	expiry  time.Duration
	now     func() time.Time
}

// New builds a Store. Static keys are used when given; otherwise the default
// AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("object storage bucket is required")
	}

	var client *s3.Client
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts := s3.Options{
			Region:       cfg.Region,
			Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			UsePathStyle: true,
		}
		if cfg.Endpoint != "" {
			opts.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		client = s3.New(opts)
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
	}

	return newStore(client, s3.NewPresignClient(client), cfg), nil
}

func newStore(client s3Client, p presigner, cfg Config) *Store {
	expiry := cfg.UploadExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Store{
		client:  client,
		presign: p,
		bucket:  cfg.Bucket,
		expiry:  expiry,
		now:     time.Now,
	}
}

// Upload is a one-shot signed PUT target for a new avatar image.
type Upload struct {
	UploadURL  string    `json:"upload_url"`
	ObjectPath string    `json:"object_path"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// UploadURL signs a PUT for a fresh object owned by ownerID.
func (s *Store) UploadURL(ctx context.Context, ownerID int64) (*Upload, error) {
	key := fmt.Sprintf("%s%d/%s", avatarDir, ownerID, uuid.NewString())

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.expiry
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &Upload{
		UploadURL:  req.URL,
		ObjectPath: PathPrefix + key,
		ExpiresAt:  s.now().Add(s.expiry),
	}, nil
}

// Object is a downloaded object. The caller closes Body.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	ETag          string
}

// Download streams the object at an /objects/ path.
func (s *Store) Download(ctx context.Context, objectPath string) (*Object, error) {
	key, err := keyFromPath(objectPath)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}

	obj := &Object{
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
		ETag:        aws.ToString(out.ETag),
	}
	if out.ContentLength != nil {
		obj.ContentLength = *out.ContentLength
	}
	if obj.ContentType == "" {
		obj.ContentType = "application/octet-stream"
	}
	return obj, nil
}

// SetACLPolicy records owner and visibility on the object.
func (s *Store) SetACLPolicy(ctx context.Context, objectPath string, p ACLPolicy) error {
	key, err := keyFromPath(objectPath)
	if err != nil {
		return err
	}
	if p.Visibility != VisibilityPublic && p.Visibility != VisibilityPrivate {
		return fmt.Errorf("unknown visibility %q", p.Visibility)
	}

	_, err = s.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Tagging: &types.Tagging{TagSet: []types.Tag{
			{Key: aws.String("owner"), Value: aws.String(strconv.FormatInt(p.Owner, 10))},
			{Key: aws.String("visibility"), Value: aws.String(string(p.Visibility))},
		}},
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("put object tagging: %w", err)
	}
	return nil
}

// ACLPolicy reads the stored policy. Untagged objects are private with no owner.
func (s *Store) ACLPolicy(ctx context.Context, objectPath string) (*ACLPolicy, error) {
	key, err := keyFromPath(objectPath)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object tagging: %w", err)
	}

	p := &ACLPolicy{Visibility: VisibilityPrivate}
	for _, tag := range out.TagSet {
		switch aws.ToString(tag.Key) {
		case "owner":
			p.Owner, _ = strconv.ParseInt(aws.ToString(tag.Value), 10, 64)
		case "visibility":
			if Visibility(aws.ToString(tag.Value)) == VisibilityPublic {
				p.Visibility = VisibilityPublic
			}
		}
	}
	return p, nil
}

// NormalizePath turns an /objects/ path, an absolute URL of one, or the
// signed upload URL returned by UploadURL into a canonical /objects/ path.
func (s *Store) NormalizePath(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidPath
	}
	p := u.Path
	if strings.HasPrefix(p, PathPrefix) {
		p = strings.TrimPrefix(p, PathPrefix)
	} else {
		p = strings.TrimPrefix(p, "/")
		p = strings.TrimPrefix(p, s.bucket+"/")
	}
	if _, err := keyFromPath(PathPrefix + p); err != nil {
		return "", err
	}
	return PathPrefix + p, nil
}

// OwnerOf returns the user id embedded in an avatar path.
func OwnerOf(objectPath string) (int64, error) {
	key, err := keyFromPath(objectPath)
	if err != nil {
		return 0, err
	}
	rest := strings.TrimPrefix(key, avatarDir)
	idPart, _, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, ErrInvalidPath
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidPath
	}
	return id, nil
}

func keyFromPath(objectPath string) (string, error) {
	if !strings.HasPrefix(objectPath, PathPrefix) {
		return "", ErrInvalidPath
	}
	key := strings.TrimPrefix(objectPath, PathPrefix)
	if !strings.HasPrefix(key, avatarDir) || strings.Contains(key, "..") || strings.HasSuffix(key, "/") {
		return "", ErrInvalidPath
	}
	return key, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
