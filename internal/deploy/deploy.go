// Package deploy mirrors published artifacts into a git repository.
// Each tenant's artifact tree becomes a subtree of the mirror, and
// every publish batch that changes it lands as one commit, so the
// public site keeps an auditable history and can be hosted from any
// static-from-git pipeline.
package deploy

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/events"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/logfields"
	"github.com/skycms/skycms/internal/storage"
)

// pushRemote is the remote name the mirror manages for its push target.
const pushRemote = "origin"

// Mirror syncs artifact trees into a local git repository and
// optionally pushes the result to a remote.
type Mirror struct {
	cfg    config.DeployConfig
	store  storage.ArtifactStore
	logger *slog.Logger

	// go-git worktrees are not safe for concurrent mutation.
	mu sync.Mutex

	debounce time.Duration
	now      func() time.Time
}

// NewMirror validates the deploy configuration and returns a mirror.
func NewMirror(cfg config.DeployConfig, store storage.ArtifactStore, logger *slog.Logger) (*Mirror, error) {
	if cfg.RepoPath == "" {
		return nil, errors.ConfigError("deploy.repo_path is required").Build()
	}
	if cfg.Push && cfg.Remote == "" {
		return nil, errors.ConfigError("deploy.push requires deploy.remote").Build()
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = "SkyCMS"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "skycms@localhost"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Push {
		// Surface credential misconfiguration at startup, not on the
		// first push hours later.
		if _, err := authMethod(cfg.Auth); err != nil {
			return nil, err
		}
	}
	return &Mirror{cfg: cfg, store: store, logger: logger, debounce: 2 * time.Second, now: time.Now}, nil
}

// SetDebounce overrides the event coalescing window (used in tests).
func (m *Mirror) SetDebounce(d time.Duration) {
	m.debounce = d
}

// Sync mirrors one tenant's artifact tree and commits the result. It
// returns the commit hash, or an empty string when the tree was
// already up to date. A push failure is returned together with the
// hash of the commit that did land locally.
func (m *Mirror) Sync(ctx context.Context, tenantID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, err := m.openOrInit()
	if err != nil {
		return "", err
	}
	if err := m.syncTree(ctx, tenantID); err != nil {
		return "", err
	}

	w, err := repo.Worktree()
	if err != nil {
		return "", errors.StorageError("open deploy worktree").WithCause(err).Build()
	}
	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", errors.StorageError("stage deploy changes").WithCause(err).Build()
	}
	status, err := w.Status()
	if err != nil {
		return "", errors.StorageError("read deploy status").WithCause(err).Build()
	}
	if status.IsClean() {
		return "", nil
	}

	hash, err := w.Commit("sync "+tenantID+" artifacts", &git.CommitOptions{
		Author: &object.Signature{
			Name:  m.cfg.AuthorName,
			Email: m.cfg.AuthorEmail,
			When:  m.now(),
		},
	})
	if err != nil {
		return "", errors.StorageError("commit deploy changes").
			WithCause(err).
			WithContext("tenant", tenantID).
			Build()
	}
	m.logger.Info("deploy mirror committed",
		logfields.Tenant(tenantID),
		slog.String("commit", hash.String()[:8]))

	if m.cfg.Push {
		if err := m.push(ctx, repo); err != nil {
			return hash.String(), err
		}
	}
	return hash.String(), nil
}

// SyncAll mirrors every given tenant once, catching the repository up
// after downtime.
func (m *Mirror) SyncAll(ctx context.Context, tenantIDs []string) error {
	var errs []error
	for _, id := range tenantIDs {
		if _, err := m.Sync(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Run mirrors tenants as publish lifecycle events arrive. Bursts
// within the quiet window coalesce into one sync per tenant, so a
// multi-article publish lands as one commit. It blocks until ctx is
// canceled or the bus closes. Tenants still pending at shutdown are
// caught up by the next SyncAll.
func (m *Mirror) Run(ctx context.Context, bus *events.Bus) {
	published, stopPublished := events.Subscribe[events.ArticlePublished](bus, 16)
	defer stopPublished()
	unpublished, stopUnpublished := events.Subscribe[events.ArticleUnpublished](bus, 16)
	defer stopUnpublished()
	rebuilt, stopRebuilt := events.Subscribe[events.SiteRebuilt](bus, 16)
	defer stopRebuilt()

	quiet := time.NewTimer(time.Hour)
	if !quiet.Stop() {
		select {
		case <-quiet.C:
		default:
		}
	}
	defer quiet.Stop()

	pending := make(map[string]struct{})
	var quietC <-chan time.Time

	arm := func(tenantID string) {
		pending[tenantID] = struct{}{}
		if !quiet.Stop() {
			select {
			case <-quiet.C:
			default:
			}
		}
		quiet.Reset(m.debounce)
		quietC = quiet.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-published:
			if !ok {
				return
			}
			arm(evt.Tenant)
		case evt, ok := <-unpublished:
			if !ok {
				return
			}
			arm(evt.Tenant)
		case evt, ok := <-rebuilt:
			if !ok {
				return
			}
			arm(evt.Tenant)
		case <-quietC:
			quietC = nil
			for tenantID := range pending {
				delete(pending, tenantID)
				if hash, err := m.Sync(ctx, tenantID); err != nil {
					m.logger.Error("deploy sync failed", logfields.Tenant(tenantID), logfields.Error(err))
				} else if hash != "" {
					m.logger.Debug("deploy sync complete",
						logfields.Tenant(tenantID), slog.String("commit", hash[:8]))
				}
			}
		}
	}
}

// openOrInit opens the mirror repository, initializing it on the
// configured branch the first time.
func (m *Mirror) openOrInit() (*git.Repository, error) {
	repo, err := git.PlainOpen(m.cfg.RepoPath)
	if err == nil {
		return repo, nil
	}
	if !stderrors.Is(err, git.ErrRepositoryNotExists) {
		return nil, errors.StorageError("open deploy repository").
			WithCause(err).
			WithContext("path", m.cfg.RepoPath).
			Build()
	}

	if err := os.MkdirAll(m.cfg.RepoPath, 0o755); err != nil {
		return nil, errors.StorageError("create deploy repository directory").WithCause(err).Build()
	}
	repo, err = git.PlainInitWithOptions(m.cfg.RepoPath, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(m.cfg.Branch),
		},
	})
	if err != nil {
		return nil, errors.StorageError("init deploy repository").
			WithCause(err).
			WithContext("path", m.cfg.RepoPath).
			Build()
	}
	m.logger.Info("deploy repository initialized",
		logfields.Path(m.cfg.RepoPath), slog.String("branch", m.cfg.Branch))
	return repo, nil
}

// syncTree writes the tenant's artifacts under repoPath/<tenant>/ and
// removes files the store no longer has, so unpublished pages leave
// the mirror too.
func (m *Mirror) syncTree(ctx context.Context, tenantID string) error {
	paths, err := m.store.List(ctx, tenantID)
	if err != nil {
		return err
	}

	root := filepath.Join(m.cfg.RepoPath, tenantID)
	keep := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		data, err := m.store.Read(ctx, tenantID, p)
		if err != nil {
			return err
		}
		dst := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(p, "/")))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return errors.StorageError("create deploy directory").WithCause(err).Build()
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return errors.StorageError("write deploy file").
				WithCause(err).
				WithContext("path", dst).
				Build()
		}
		keep[dst] = struct{}{}
	}
	return pruneTree(root, keep)
}

// pruneTree deletes files under root that are not in keep. Empty
// directories are left alone; git does not track them.
func pruneTree(root string, keep map[string]struct{}) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := keep[path]; !ok {
			return os.Remove(path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return errors.StorageError("prune deploy tree").WithCause(err).Build()
	}
	return nil
}

// push sends the mirror branch to the configured remote.
func (m *Mirror) push(ctx context.Context, repo *git.Repository) error {
	if err := m.ensureRemote(repo); err != nil {
		return err
	}
	auth, err := authMethod(m.cfg.Auth)
	if err != nil {
		return err
	}
	err = repo.PushContext(ctx, &git.PushOptions{RemoteName: pushRemote, Auth: auth})
	if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return errors.NetworkError("push deploy mirror").
			WithCause(err).
			WithContext("remote", m.cfg.Remote).
			Build()
	}
	return nil
}

// ensureRemote creates the push remote on first use. An existing
// remote is left untouched so operators can repoint it manually.
func (m *Mirror) ensureRemote(repo *git.Repository) error {
	_, err := repo.Remote(pushRemote)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, git.ErrRemoteNotFound) {
		return errors.StorageError("inspect deploy remote").WithCause(err).Build()
	}
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: pushRemote,
		URLs: []string{m.cfg.Remote},
	})
	if err != nil {
		return errors.StorageError("create deploy remote").
			WithCause(err).
			WithContext("url", m.cfg.Remote).
			Build()
	}
	return nil
}

// authMethod builds transport credentials for pushes. A nil or "none"
// config means unauthenticated, which covers local and public remotes.
func authMethod(cfg *config.GitAuthConfig) (transport.AuthMethod, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "ssh":
		keyPath := cfg.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		keys, err := gitssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, errors.ConfigError("load deploy ssh key").
				WithCause(err).
				WithContext("key_path", keyPath).
				Build()
		}
		return keys, nil
	case "token":
		if cfg.Token == "" {
			return nil, errors.ConfigError("token auth requires deploy.auth.token").Build()
		}
		// Forges accept "token" as the username for token credentials.
		return &githttp.BasicAuth{Username: "token", Password: cfg.Token}, nil
	case "basic":
		if cfg.Username == "" || cfg.Password == "" {
			return nil, errors.ConfigError("basic auth requires username and password").Build()
		}
		return &githttp.BasicAuth{Username: cfg.Username, Password: cfg.Password}, nil
	default:
		return nil, errors.ConfigError("unknown deploy auth type").
			WithContext("type", cfg.Type).
			Build()
	}
}
