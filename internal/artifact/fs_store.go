package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/fsutil"
)

// FSStore keeps artifacts as directories on a billy filesystem. All access
// is serialised: memfs is not safe for concurrent use and the existence
// check must be atomic with the write.
type FSStore struct {
	mu   sync.Mutex
	root billy.Filesystem
}

// NewFSStore returns a store rooted at root. Use osfs for a run directory or
// memfs in tests.
func NewFSStore(root billy.Filesystem) *FSStore {
	return &FSStore{root: root}
}

// Upload implements Store.
func (s *FSStore) Upload(ctx context.Context, name string, src billy.Filesystem, files []string, opts ...UploadOption) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	o := applyUploadOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.root.Stat(name); err == nil {
		if !o.overwrite {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		if err := util.RemoveAll(s.root, name); err != nil {
			return fmt.Errorf("removing previous %s: %w", name, err)
		}
	}
	if err := s.root.MkdirAll(name, 0o755); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}

	var total int64
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			_ = util.RemoveAll(s.root, name)
			return err
		}
		n, err := fsutil.CopyFile(src, f, s.root, path.Join(name, f))
		if err != nil {
			_ = util.RemoveAll(s.root, name)
			return fmt.Errorf("uploading %s: %w", name, err)
		}
		total += n
	}

	ctxlog.FromContext(ctx).Debug("Stored artifact.", "artifact", name, "files", len(files), "bytes", total)
	return nil
}

// List implements Store.
func (s *FSStore) List(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.root.ReadDir("/")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ok, err := path.Match(pattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidName, pattern, err)
		}
		if ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Download implements Store.
func (s *FSStore) Download(ctx context.Context, name string, dst billy.Filesystem) ([]string, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.root.Stat(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	files, err := fsutil.CopyTree(s.root, name, dst, "", nil)
	if err != nil {
		return files, fmt.Errorf("downloading %s: %w", name, err)
	}
	ctxlog.FromContext(ctx).Debug("Fetched artifact.", "artifact", name, "files", len(files))
	return files, nil
}
