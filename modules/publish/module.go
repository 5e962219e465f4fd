// Package publish provides the `publish` action, which uploads package
// files to a Python package index over the legacy upload API. With
// skip_existing, files the index already holds count as skipped instead of
// failing the step, so re-running a release is harmless.
package publish

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/specialistvlad/releasegrid/internal/command"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/fsutil"
	"github.com/specialistvlad/releasegrid/internal/registry"
)

// DefaultRepositoryURL is PyPI's upload endpoint.
const DefaultRepositoryURL = "https://upload.pypi.org/legacy/"

// ErrNoPackages is returned when the files directory holds nothing to upload.
var ErrNoPackages = errors.New("no package files found")

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the publish action.
type Input struct {
	// Files is a workspace directory searched recursively.
	Files         string   `cty:"files"`
	Patterns      []string `cty:"patterns"`
	RepositoryURL string   `cty:"repository_url"`
	Username      string   `cty:"username"`
	Token         string   `cty:"token,required"`
	SkipExisting  bool     `cty:"skip_existing"`
	Timeout       string   `cty:"timeout"`

	timeout time.Duration
}

func (in *Input) SetDefaults() {
	in.Files = "dist"
	in.Patterns = []string{"*.whl", "*.tar.gz"}
	in.RepositoryURL = DefaultRepositoryURL
	in.Username = "__token__"
	in.Timeout = "5m"
}

func (in *Input) Validate() error {
	if in.Token == "" {
		return errors.New("token must not be empty")
	}
	for _, p := range in.Patterns {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	d, err := time.ParseDuration(in.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", in.Timeout, err)
	}
	in.timeout = d
	return nil
}

// OnRunPublish uploads every matching file. Outputs report how many files
// were uploaded and how many the index already had.
func OnRunPublish(ctx context.Context, sc *registry.StepContext, input *Input) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)
	redactor := command.NewRedactor(append(sc.Masked, input.Token)...)

	files, err := packageFiles(sc, input)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPackages, input.Files)
	}

	client := resty.New().
		SetBasicAuth(input.Username, input.Token).
		SetTimeout(input.timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "releasegrid").
		SetLogger(restyLogger{logger})
	defer client.Close()

	uploaded, skipped := 0, 0
	for _, rel := range files {
		pkg, err := ParseFilename(path.Base(rel))
		if err != nil {
			return nil, err
		}
		data, err := readFile(sc, path.Join(input.Files, rel))
		if err != nil {
			return nil, err
		}

		fileLogger := logger.With("file", pkg.Filename)
		resp, err := upload(ctx, client, input.RepositoryURL, pkg, data)
		if err != nil {
			return nil, fmt.Errorf("uploading %s: %s", pkg.Filename, redactor.Apply(err.Error()))
		}

		switch {
		case resp.IsSuccess():
			fileLogger.Info("Uploaded package.", "version", pkg.Version)
			uploaded++
		case AlreadyExists(resp.StatusCode(), resp.String()):
			if !input.SkipExisting {
				return nil, fmt.Errorf("uploading %s: %s already exists on the index", pkg.Filename, pkg.Version)
			}
			fileLogger.Info("Package already exists, skipping.", "version", pkg.Version)
			skipped++
		default:
			return nil, fmt.Errorf("uploading %s: index responded %s: %s",
				pkg.Filename, resp.Status(), redactor.Apply(firstLine(resp.String())))
		}
	}

	return map[string]string{
		"uploaded": strconv.Itoa(uploaded),
		"skipped":  strconv.Itoa(skipped),
	}, nil
}

// restyLogger sends the HTTP client's messages to the step logger.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) { l.logger.Error(fmt.Sprintf(format, v...)) }
func (l restyLogger) Warnf(format string, v ...any)  { l.logger.Warn(fmt.Sprintf(format, v...)) }
func (l restyLogger) Debugf(format string, v ...any) { l.logger.Debug(fmt.Sprintf(format, v...)) }

func upload(ctx context.Context, client *resty.Client, url string, pkg Package, data []byte) (*resty.Response, error) {
	digest := sha256.Sum256(data)
	return client.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			":action":          "file_upload",
			"protocol_version": "1",
			"metadata_version": "2.1",
			"name":             pkg.Name,
			"version":          pkg.Version,
			"filetype":         pkg.FileType,
			"pyversion":        pkg.PyVersion,
			"sha256_digest":    hex.EncodeToString(digest[:]),
		}).
		SetMultipartField("content", pkg.Filename, "application/octet-stream", bytes.NewReader(data)).
		Post(url)
}

// AlreadyExists recognizes the index's answers for a file it already holds:
// 409 Conflict, or 400 with "already exists" in the body.
func AlreadyExists(status int, body string) bool {
	switch status {
	case http.StatusConflict:
		return true
	case http.StatusBadRequest:
		return strings.Contains(strings.ToLower(body), "already exists")
	default:
		return false
	}
}

func packageFiles(sc *registry.StepContext, input *Input) ([]string, error) {
	all, err := fsutil.ListFiles(sc.Workspace, input.Files)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", input.Files, err)
	}
	var files []string
	for _, rel := range all {
		for _, p := range input.Patterns {
			if ok, _ := path.Match(p, path.Base(rel)); ok {
				files = append(files, rel)
				break
			}
		}
	}
	return files, nil
}

func readFile(sc *registry.StepContext, name string) ([]byte, error) {
	f, err := sc.Workspace.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("publish", registry.Action("Uploads packages to a package index.", OnRunPublish))
}
