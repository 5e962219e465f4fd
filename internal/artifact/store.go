// Package artifact implements the write-once artifact store that carries
// build outputs from matrix jobs to the jobs that need them.
//
// An artifact is a named set of files. Names are flat (no directories) so a
// glob such as "wheels-*" selects artifacts across matrix instances, and each
// name can be written exactly once per run.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-git/go-billy/v5"
)

var (
	// ErrExists is returned when uploading to a name that is already taken.
	ErrExists = errors.New("artifact already exists")
	// ErrNotFound is returned when downloading an unknown artifact.
	ErrNotFound = errors.New("artifact not found")
	// ErrNoMatch is returned when a pattern selects no artifacts.
	ErrNoMatch = errors.New("no artifact matches pattern")
	// ErrInvalidName is returned for names that could escape the namespace.
	ErrInvalidName = errors.New("invalid artifact name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+=,-]*$`)

// Store persists artifacts between jobs.
type Store interface {
	// Upload stores files (slash separated, relative to src's root) under name.
	Upload(ctx context.Context, name string, src billy.Filesystem, files []string, opts ...UploadOption) error
	// List returns the sorted names of complete artifacts matching a glob.
	List(ctx context.Context, pattern string) ([]string, error)
	// Download writes every file of the named artifact into dst and returns
	// the relative paths written.
	Download(ctx context.Context, name string, dst billy.Filesystem) ([]string, error)
}

type uploadOptions struct {
	overwrite bool
}

// UploadOption customises a single upload.
type UploadOption func(*uploadOptions)

// Overwrite replaces an existing artifact instead of failing with ErrExists.
func Overwrite(enabled bool) UploadOption {
	return func(o *uploadOptions) { o.overwrite = enabled }
}

func applyUploadOptions(opts []UploadOption) uploadOptions {
	var o uploadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ValidateName checks that name is a single flat path element.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ValidatePattern checks a download glob. Patterns may use `*`, `?` and
// character classes but no path separators.
func ValidatePattern(pattern string) error {
	if pattern == "" || strings.ContainsAny(pattern, `/\`) {
		return fmt.Errorf("%w: pattern %q", ErrInvalidName, pattern)
	}
	return nil
}

// DownloadMatching downloads every artifact whose name matches pattern, each
// into its own directory under dst when separate is true, or merged into dst
// otherwise. It fails with ErrNoMatch when nothing matches.
func DownloadMatching(ctx context.Context, s Store, pattern string, dst billy.Filesystem, separate bool) (map[string][]string, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	names, err := s.List(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, pattern)
	}

	out := make(map[string][]string, len(names))
	for _, name := range names {
		target := dst
		if separate {
			if target, err = dst.Chroot(name); err != nil {
				return out, fmt.Errorf("preparing directory for %s: %w", name, err)
			}
		}
		files, err := s.Download(ctx, name, target)
		if err != nil {
			return out, err
		}
		out[name] = files
	}
	return out, nil
}
