package artifact

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// Open builds a store from a location string:
//
//	/var/lib/releasegrid/run-1 or file:///path   local directory
//	s3://bucket/prefix?region=eu-west-1&path_style=true
//	mem://                                        in-process, for tests
func Open(ctx context.Context, location string) (Store, error) {
	return open(ctx, location, "")
}

// OpenRun is Open with the run's artifacts kept below <location>/<runID>.
// Runs sharing a directory or bucket prefix never see each other's names,
// so write-once holds per run.
func OpenRun(ctx context.Context, location, runID string) (Store, error) {
	if err := ValidateName(runID); err != nil {
		return nil, fmt.Errorf("run namespace: %w", err)
	}
	return open(ctx, location, runID)
}

func open(ctx context.Context, location, namespace string) (Store, error) {
	if location == "" {
		return nil, fmt.Errorf("artifact location must not be empty")
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" {
		return openDir(filepath.Join(location, namespace))
	}

	switch u.Scheme {
	case "file":
		return openDir(filepath.Join(u.Path, namespace))
	case "mem":
		return NewFSStore(memfs.New()), nil
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("artifact location %q has no bucket", location)
		}
		var loadOpts []func(*awsconfig.LoadOptions) error
		if region := u.Query().Get("region"); region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS configuration: %w", err)
		}
		pathStyle := u.Query().Get("path_style") == "true"
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = pathStyle
		})
		return NewS3Store(client, u.Host, path.Join(strings.TrimPrefix(u.Path, "/"), namespace)), nil
	default:
		return nil, fmt.Errorf("unsupported artifact location scheme %q", u.Scheme)
	}
}

func openDir(dir string) (Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return NewFSStore(osfs.New(dir)), nil
}
