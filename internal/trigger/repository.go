package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/specialistvlad/releasegrid/internal/ctxlog"
)

// FromRepository derives an event from the git repository containing path.
// A tag pointing at HEAD wins over the current branch, so a tagged checkout
// is reported as refs/tags/<tag>. Annotated tags are peeled to their commit.
func FromRepository(ctx context.Context, name, path string) (Event, error) {
	logger := ctxlog.FromContext(ctx)

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Event{}, fmt.Errorf("opening repository at %s: %w", path, err)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return Event{}, fmt.Errorf("%w: repository has no commits", ErrNoRef)
		}
		return Event{}, fmt.Errorf("resolving HEAD: %w", err)
	}

	ev := Event{Name: name, SHA: head.Hash().String()}

	tag, err := tagAt(repo, head.Hash())
	if err != nil {
		return Event{}, err
	}
	switch {
	case tag != "":
		ev.Ref = tag
	case head.Name().IsBranch():
		ev.Ref = head.Name().String()
	default:
		return Event{}, fmt.Errorf("%w: HEAD is detached at %s", ErrNoRef, head.Hash())
	}

	logger.Debug("Resolved trigger from repository.", "ref", ev.Ref, "sha", ev.SHA)
	return ev, nil
}

func tagAt(repo *git.Repository, commit plumbing.Hash) (string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return "", fmt.Errorf("listing tags: %w", err)
	}
	defer iter.Close()

	var found string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if obj, err := repo.TagObject(target); err == nil {
			target = obj.Target
		}
		if target == commit && (found == "" || ref.Name().String() > found) {
			found = ref.Name().String()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning tags: %w", err)
	}
	return found, nil
}
