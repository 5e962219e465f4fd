package publish

import (
	"fmt"
	"strings"
)

// Package is the index metadata derived from a distribution file name.
type Package struct {
	Filename  string
	Name      string
	Version   string
	FileType  string
	PyVersion string
}

// ParseFilename reads a wheel name
// (`{name}-{version}(-{build})?-{python}-{abi}-{platform}.whl`) or an sdist
// name (`{name}-{version}.tar.gz` or `.zip`).
func ParseFilename(filename string) (Package, error) {
	switch {
	case strings.HasSuffix(filename, ".whl"):
		parts := strings.Split(strings.TrimSuffix(filename, ".whl"), "-")
		if len(parts) != 5 && len(parts) != 6 {
			return Package{}, fmt.Errorf("invalid wheel filename %q", filename)
		}
		return Package{
			Filename:  filename,
			Name:      parts[0],
			Version:   parts[1],
			FileType:  "bdist_wheel",
			PyVersion: parts[len(parts)-3],
		}, nil
	case strings.HasSuffix(filename, ".tar.gz"), strings.HasSuffix(filename, ".zip"):
		base := strings.TrimSuffix(strings.TrimSuffix(filename, ".tar.gz"), ".zip")
		i := strings.LastIndex(base, "-")
		if i <= 0 || i == len(base)-1 {
			return Package{}, fmt.Errorf("invalid sdist filename %q", filename)
		}
		return Package{
			Filename:  filename,
			Name:      base[:i],
			Version:   base[i+1:],
			FileType:  "sdist",
			PyVersion: "source",
		}, nil
	default:
		return Package{}, fmt.Errorf("unsupported package file %q", filename)
	}
}
