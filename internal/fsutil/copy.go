package fsutil

import (
	"fmt"
	"io"
	"path"

	"github.com/go-git/go-billy/v5"
)

// CopyFile copies a single file between filesystems, creating parent
// directories of dstPath as needed.
func CopyFile(src billy.Filesystem, srcPath string, dst billy.Filesystem, dstPath string) (int64, error) {
	in, err := src.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer in.Close()

	if dir := path.Dir(dstPath); dir != "." && dir != "/" {
		if err := dst.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	out, err := dst.Create(dstPath)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dstPath, err)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("copying %s: %w", srcPath, err)
	}
	return n, nil
}

// CopyTree copies every file below srcRoot into dstRoot. Files for which skip
// returns true are left out; skip receives slash separated relative paths.
func CopyTree(src billy.Filesystem, srcRoot string, dst billy.Filesystem, dstRoot string, skip func(rel string) bool) ([]string, error) {
	files, err := ListFiles(src, srcRoot)
	if err != nil {
		return nil, err
	}
	var copied []string
	for _, rel := range files {
		if skip != nil && skip(rel) {
			continue
		}
		if _, err := CopyFile(src, path.Join(srcRoot, rel), dst, path.Join(dstRoot, rel)); err != nil {
			return copied, err
		}
		copied = append(copied, rel)
	}
	return copied, nil
}
