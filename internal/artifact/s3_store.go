package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
)

const manifestFile = "manifest.json"

// S3API is the subset of the S3 client the store needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// manifest is written last; an artifact without one is incomplete and
// invisible to List and Download.
type manifest struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

// S3Store keeps artifacts under <prefix>/<name>/ in a bucket.
type S3Store struct {
	client      S3API
	bucket      string
	prefix      string
	concurrency int
}

// NewS3Store returns a store writing to bucket under prefix.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client:      client,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		concurrency: 4,
	}
}

func (s *S3Store) key(parts ...string) string {
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return path.Join(parts...)
}

func (s *S3Store) exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name, manifestFile)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking %s: %w", name, err)
}

// Upload implements Store. Files are sent in parallel; the manifest is
// written with If-None-Match so concurrent writers of one name cannot both
// succeed.
func (s *S3Store) Upload(ctx context.Context, name string, src billy.Filesystem, files []string, opts ...UploadOption) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	o := applyUploadOptions(opts)
	if !o.overwrite {
		found, err := s.exists(ctx, name)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, f := range files {
		g.Go(func() error {
			data, err := util.ReadFile(src, f)
			if err != nil {
				return fmt.Errorf("reading %s: %w", f, err)
			}
			_, err = s.client.PutObject(gctx, &s3.PutObjectInput{
				Bucket:      aws.String(s.bucket),
				Key:         aws.String(s.key(name, "files", f)),
				Body:        bytes.NewReader(data),
				ContentType: aws.String(mimetype.Detect(data).String()),
			})
			if err != nil {
				return fmt.Errorf("uploading %s/%s: %w", name, f, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	body, err := json.Marshal(manifest{Name: name, Files: files})
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name, manifestFile)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}
	if !o.overwrite {
		input.IfNoneMatch = aws.String("*")
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		return fmt.Errorf("writing manifest for %s: %w", name, err)
	}

	ctxlog.FromContext(ctx).Debug("Stored artifact.", "artifact", name, "bucket", s.bucket, "files", len(files))
	return nil
}

// List implements Store.
func (s *S3Store) List(ctx context.Context, pattern string) ([]string, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})

	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing artifacts: %w", err)
		}
		for _, obj := range page.Contents {
			rest := strings.TrimPrefix(aws.ToString(obj.Key), listPrefix)
			name, file, ok := strings.Cut(rest, "/")
			if !ok || file != manifestFile {
				continue
			}
			match, err := path.Match(pattern, name)
			if err != nil {
				return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidName, pattern, err)
			}
			if match {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Store) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Download implements Store.
func (s *S3Store) Download(ctx context.Context, name string, dst billy.Filesystem) ([]string, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	raw, err := s.get(ctx, s.key(name, manifestFile))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("reading manifest for %s: %w", name, err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest for %s: %w", name, err)
	}

	// billy filesystems are not all safe for concurrent writes.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, f := range m.Files {
		g.Go(func() error {
			data, err := s.get(gctx, s.key(name, "files", f))
			if err != nil {
				return fmt.Errorf("downloading %s/%s: %w", name, f, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if err := util.WriteFile(dst, f, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", f, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Fetched artifact.", "artifact", name, "bucket", s.bucket, "files", len(m.Files))
	return m.Files, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		(apiErr.ErrorCode() == "PreconditionFailed" || apiErr.ErrorCode() == "ConditionalRequestConflict")
}
