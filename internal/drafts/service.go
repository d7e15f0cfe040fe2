// Package drafts versions ticket draft copy in per-ticket git repositories.
// Every save is a commit on main, so writers get full revision history and
// blame without the console growing its own versioning tables.
package drafts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Draft is the working copy attached to a ticket.
type Draft struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
	Notes    string `json:"notes,omitempty"`
}

// RevisionInfo describes one saved revision of a draft.
type RevisionInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrNoDraft is returned when a ticket has no draft repository yet.
var ErrNoDraft = errors.New("no draft for ticket")

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// SaveDraft commits the draft to the ticket's repository, creating the
// repository on first save.
func (s *Service) SaveDraft(ticketID string, draft Draft, author, message string) (RevisionInfo, error) {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(ticketID)
	if err != nil {
		return RevisionInfo{}, err
	}

	// Re-saving an identical draft returns the head revision instead of
	// minting an empty commit. On first save there is no head yet and the
	// read fails, which falls through to the commit below.
	if head, headCommit, err := headDraft(repo); err == nil && !HasChanges(head, draft) {
		return toRevisionInfo(headCommit), nil
	}

	if message == "" {
		message = "Update draft"
	}
	hash, err := s.commit(repo, draft, author, message)
	if err != nil {
		return RevisionInfo{}, err
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevisionInfo(commitObj), nil
}

// GetDraft returns the draft at the head of main.
func (s *Service) GetDraft(ticketID string) (Draft, RevisionInfo, error) {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(ticketID)
	if err != nil {
		return Draft{}, RevisionInfo{}, err
	}

	draft, commitObj, err := headDraft(repo)
	if err != nil {
		return Draft{}, RevisionInfo{}, err
	}
	return draft, toRevisionInfo(commitObj), nil
}

func headDraft(repo *git.Repository) (Draft, *object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return Draft{}, nil, fmt.Errorf("resolve main: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Draft{}, nil, fmt.Errorf("load commit object: %w", err)
	}
	draft, err := readDraftFromCommit(commitObj)
	if err != nil {
		return Draft{}, nil, err
	}
	return draft, commitObj, nil
}

// GetDraftByHash returns the draft as of a specific revision.
func (s *Service) GetDraftByHash(ticketID, hash string) (Draft, error) {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(ticketID)
	if err != nil {
		return Draft{}, err
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Draft{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Draft{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readDraftFromCommit(commitObj)
}

// History lists revisions of the ticket's draft, newest first.
func (s *Service) History(ticketID string, limit int) ([]RevisionInfo, error) {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(ticketID)
	if err != nil {
		return nil, err
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]RevisionInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevisionInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// HasChanges reports whether two drafts differ.
func HasChanges(from, to Draft) bool {
	return from.Headline != to.Headline || from.Body != to.Body || from.Notes != to.Notes
}

func (s *Service) repoPath(ticketID string) string {
	return filepath.Join(s.baseDir, ticketID)
}

func (s *Service) ticketLock(ticketID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[ticketID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[ticketID] = lock
	return lock
}

func (s *Service) open(ticketID string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(ticketID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoDraft
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit(ticketID string) (*git.Repository, error) {
	path := s.repoPath(ticketID)
	if _, err := os.Stat(path); err == nil {
		return s.open(ticketID)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) commit(repo *git.Repository, draft Draft, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal draft: %w", err)
	}

	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, "draft.json"), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write draft.json: %w", err)
	}
	if _, err := worktree.Add("draft.json"); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add draft: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.copydesk.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit draft: %w", err)
	}
	return hash, nil
}

func readDraftFromCommit(commitObj *object.Commit) (Draft, error) {
	file, err := commitObj.File("draft.json")
	if err != nil {
		return Draft{}, fmt.Errorf("load draft.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Draft{}, fmt.Errorf("open draft reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Draft{}, fmt.Errorf("read draft bytes: %w", err)
	}

	var draft Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return draft, nil
}

func toRevisionInfo(commitObj *object.Commit) RevisionInfo {
	return RevisionInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
