// Package trigger describes what started a pipeline run: an event name and
// the git ref/commit it applies to. The release gate is evaluated against it.
package trigger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/zclconf/go-cty/cty"
)

// ErrNoRef is returned when a repository HEAD cannot be resolved to a ref.
var ErrNoRef = errors.New("no git ref could be resolved")

const (
	tagsPrefix  = "refs/tags/"
	headsPrefix = "refs/heads/"
)

// Event is the trigger of a run.
type Event struct {
	Name string // "push", "manual", "tag", ...
	Ref  string // fully qualified, e.g. refs/tags/v1.2.0
	SHA  string
	// TagPrefix is the pipeline's release tag prefix; empty means
	// "refs/tags/".
	TagPrefix string
}

// RefType classifies the ref as "tag", "branch" or "" for anything else.
func (e Event) RefType() string {
	switch {
	case strings.HasPrefix(e.Ref, tagsPrefix):
		return "tag"
	case strings.HasPrefix(e.Ref, headsPrefix):
		return "branch"
	default:
		return ""
	}
}

// RefName is the short name of the ref.
func (e Event) RefName() string {
	switch {
	case strings.HasPrefix(e.Ref, tagsPrefix):
		return strings.TrimPrefix(e.Ref, tagsPrefix)
	case strings.HasPrefix(e.Ref, headsPrefix):
		return strings.TrimPrefix(e.Ref, headsPrefix)
	default:
		return e.Ref
	}
}

// IsTag reports whether the ref starts with the given tag prefix.
func (e Event) IsTag(prefix string) bool {
	if prefix == "" {
		prefix = tagsPrefix
	}
	return strings.HasPrefix(e.Ref, prefix)
}

// Version parses the tag name as a semantic version. A leading "v" is
// accepted. Non-tag refs and non-semver tags yield an empty string.
func (e Event) Version() string {
	if e.RefType() != "tag" {
		return ""
	}
	v, err := semver.NewVersion(e.RefName())
	if err != nil {
		return ""
	}
	return v.String()
}

// CtyValue exposes the event to expressions as the `trigger` object.
// `is_tag` applies the pipeline's tag prefix and is the usual release gate.
func (e Event) CtyValue() cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"event":    cty.StringVal(e.Name),
		"is_tag":   cty.BoolVal(e.IsTag(e.TagPrefix)),
		"ref":      cty.StringVal(e.Ref),
		"ref_name": cty.StringVal(e.RefName()),
		"ref_type": cty.StringVal(e.RefType()),
		"sha":      cty.StringVal(e.SHA),
		"version":  cty.StringVal(e.Version()),
	})
}

func (e Event) String() string {
	if e.Ref == "" {
		return e.Name
	}
	return fmt.Sprintf("%s@%s", e.Name, e.Ref)
}

// NormalizeRef expands a short tag or branch name. Fully qualified refs are
// returned unchanged; "v1.0.0" with asTag becomes "refs/tags/v1.0.0".
func NormalizeRef(ref string, asTag bool) string {
	if ref == "" || strings.HasPrefix(ref, "refs/") {
		return ref
	}
	if asTag {
		return tagsPrefix + ref
	}
	return headsPrefix + ref
}
