package ingestion

import (
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DiscoverRevision returns the supported source files of a git revision
// (commit hash, branch, tag or expressions such as HEAD~1) without touching
// the working tree. The revision's own .gitignore is honoured.
func DiscoverRevision(repoPath, rev string, skipDirs ...string) ([]SourceFile, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", repoPath, err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving revision %s: %w", rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading tree of %s: %w", hash, err)
	}

	var ignore string
	if file, err := tree.File(".gitignore"); err == nil {
		if ignore, err = file.Contents(); err != nil {
			return nil, fmt.Errorf("reading .gitignore at %s: %w", rev, err)
		}
	} else if !errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("looking up .gitignore at %s: %w", rev, err)
	}
	f := newFilter(parseGitignore(ignore), skipDirs)

	var files []SourceFile
	err = tree.Files().ForEach(func(file *object.File) error {
		if file.Mode == filemode.Symlink || file.Mode == filemode.Submodule {
			return nil
		}
		if !f.keepFile(file.Name) {
			return nil
		}
		content, err := file.Contents()
		if err != nil {
			return fmt.Errorf("reading %s at %s: %w", file.Name, rev, err)
		}
		files = append(files, SourceFile{
			Path:     file.Name,
			Language: LanguageFor(file.Name),
			Content:  []byte(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortFiles(files)
	return files, nil
}
