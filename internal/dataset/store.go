package dataset

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/quotegate/quotegate/internal/audit"
)

const (
	stagingDirName = "staging"
	activeDirName  = "active"
	archiveDirName = "archive"

	lockFilename = ".activate.lock"
	lockTimeout  = 5 * time.Second
	lockInterval = 50 * time.Millisecond
)

// ValidationError reports a bundle that failed validation. Activation and
// rollback return it instead of proceeding; the full issue list rides along
// so callers can render it.
type ValidationError struct {
	VersionID string
	Result    Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dataset version %s failed validation: %d error(s), %d warning(s)",
		e.VersionID, len(e.Result.Errors), len(e.Result.Warnings))
}

// Store manages dataset versions on disk. Layout under root:
//
//	staging/<version>/   uploaded files awaiting validation
//	active/              the one live bundle, plus manifest.json
//	archive/             every bundle ever displaced, never deleted
//
// Activation swaps whole directories, so the live bundle is replaced
// all-or-nothing. Every transition is written to the audit ledger before it
// is considered done.
type Store struct {
	root  string
	audit *audit.Logger
	log   zerolog.Logger
	now   func() time.Time

	mu            sync.Mutex
	cachedVersion string
	cachedBundle  *Bundle
}

func NewStore(root string, auditLog *audit.Logger, log zerolog.Logger) (*Store, error) {
	for _, sub := range []string{stagingDirName, activeDirName, archiveDirName} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s dir", sub)
		}
	}
	return &Store{root: root, audit: auditLog, log: log, now: time.Now}, nil
}

func (s *Store) stagingDir(versionID string) string {
	return filepath.Join(s.root, stagingDirName, versionID)
}

func (s *Store) activeDir() string {
	return filepath.Join(s.root, activeDirName)
}

func (s *Store) archiveDir() string {
	return filepath.Join(s.root, archiveDirName)
}

// Upload places one file into a staging version under its canonical name.
// The file lands only if the audit write succeeds.
func (s *Store) Upload(versionID, datasetType, srcPath, actor string) error {
	if strings.TrimSpace(versionID) == "" {
		return errors.New("version id is required")
	}
	filename, ok := FilenameForType(datasetType)
	if !ok {
		return errors.Errorf("unknown dataset type %q", datasetType)
	}
	if !strings.EqualFold(filepath.Ext(srcPath), ".csv") {
		return errors.Errorf("unsupported file extension %q, expected .csv", filepath.Ext(srcPath))
	}

	dir := s.stagingDir(versionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create staging dir")
	}
	dst := filepath.Join(dir, filename)
	if err := copyFile(srcPath, dst); err != nil {
		return err
	}
	checksum, err := checksumFile(dst)
	if err != nil {
		return err
	}

	_, err = s.audit.Log(audit.Action{
		ActionType: audit.ActionDataUpload,
		Actor:      actor,
		TargetType: "dataset_version",
		TargetID:   versionID,
		Meta: map[string]string{
			"dataset":  datasetType,
			"filename": filename,
			"checksum": checksum,
		},
	})
	if err != nil {
		// No trail, no upload.
		_ = os.Remove(dst)
		return errors.Wrap(err, "audit upload")
	}

	s.log.Info().Str("version", versionID).Str("dataset", datasetType).Msg("dataset file staged")
	return nil
}

// Validate runs full bundle validation on a staging version and records the
// outcome. The result is returned even when validation fails.
func (s *Store) Validate(versionID, actor string) (Result, error) {
	dir := s.stagingDir(versionID)
	if _, err := os.Stat(dir); err != nil {
		return Result{}, errors.Wrapf(err, "staging version %s not found", versionID)
	}
	res := ValidateBundle(dir)

	_, err := s.audit.Log(audit.Action{
		ActionType: audit.ActionDataValidate,
		Actor:      actor,
		TargetType: "dataset_version",
		TargetID:   versionID,
		Meta: map[string]string{
			"ok":       fmt.Sprintf("%t", res.OK),
			"errors":   fmt.Sprintf("%d", len(res.Errors)),
			"warnings": fmt.Sprintf("%d", len(res.Warnings)),
		},
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "audit validate")
	}
	return res, nil
}

// Activate promotes a staging version to active. The bundle is validated
// first; nothing moves unless it passes. The displaced active bundle goes to
// the archive, and the swap itself is two renames under an exclusive lock.
func (s *Store) Activate(versionID, actor string) error {
	staging := s.stagingDir(versionID)
	if _, err := os.Stat(staging); err != nil {
		return errors.Wrapf(err, "staging version %s not found", versionID)
	}

	res := ValidateBundle(staging)
	if !res.OK {
		return &ValidationError{VersionID: versionID, Result: res}
	}

	unlock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	oldVersion := s.readActiveVersion()

	archived := ""
	if oldVersion != "" {
		archived = filepath.Join(s.archiveDir(), archiveName(s.now(), oldVersion))
		if err := os.Rename(s.activeDir(), archived); err != nil {
			return errors.Wrap(err, "archive active bundle")
		}
	} else {
		// A fresh root has an empty active dir in the way of the rename.
		if err := os.Remove(s.activeDir()); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "clear empty active dir")
		}
	}

	if err := os.Rename(staging, s.activeDir()); err != nil {
		s.restoreActive(archived)
		return errors.Wrap(err, "promote staging bundle")
	}

	m, err := BuildManifest(s.activeDir(), versionID, actor, s.now())
	if err == nil {
		err = WriteManifest(s.activeDir(), m)
	}
	if err == nil {
		_, err = s.audit.Log(audit.Action{
			ActionType: audit.ActionDataActivate,
			Actor:      actor,
			TargetType: "dataset_version",
			TargetID:   versionID,
			OldValue:   map[string]string{"active_version": oldVersion},
			NewValue:   map[string]string{"active_version": versionID},
		})
		err = errors.Wrap(err, "audit activate")
	}
	if err != nil {
		// Undo the swap so the previous bundle stays live.
		if rerr := os.Rename(s.activeDir(), staging); rerr != nil {
			s.log.Error().Err(rerr).Msg("failed to undo activation")
		}
		s.restoreActive(archived)
		return err
	}

	s.invalidateCache()
	s.log.Info().Str("old", oldVersion).Str("new", versionID).Msg("dataset version activated")
	return nil
}

// Rollback re-activates an archived version. The archived bundle is
// revalidated under current rules first; a bundle that no longer passes
// cannot come back. The archive copy itself is never consumed.
func (s *Store) Rollback(versionID, actor, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return errors.Wrap(audit.ErrReasonRequired, "rollback")
	}
	source, err := s.findArchived(versionID)
	if err != nil {
		return err
	}

	res := ValidateBundle(source)
	if !res.OK {
		return &ValidationError{VersionID: versionID, Result: res}
	}

	unlock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	oldVersion := s.readActiveVersion()

	// Copy into a sibling temp dir so the rename below stays atomic.
	tmp := filepath.Join(s.root, ".rollback_"+randSuffix())
	if err := copyBundleDir(source, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	m, err := BuildManifest(tmp, versionID, actor, s.now())
	if err == nil {
		err = WriteManifest(tmp, m)
	}
	if err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}

	archived := ""
	if oldVersion != "" {
		archived = filepath.Join(s.archiveDir(), archiveName(s.now(), oldVersion))
		if err := os.Rename(s.activeDir(), archived); err != nil {
			_ = os.RemoveAll(tmp)
			return errors.Wrap(err, "archive active bundle")
		}
	} else {
		if err := os.Remove(s.activeDir()); err != nil && !os.IsNotExist(err) {
			_ = os.RemoveAll(tmp)
			return errors.Wrap(err, "clear empty active dir")
		}
	}

	if err := os.Rename(tmp, s.activeDir()); err != nil {
		s.restoreActive(archived)
		return errors.Wrap(err, "promote archived bundle")
	}

	_, err = s.audit.Log(audit.Action{
		ActionType: audit.ActionDataRollback,
		Actor:      actor,
		Reason:     reason,
		TargetType: "dataset_version",
		TargetID:   versionID,
		OldValue:   map[string]string{"active_version": oldVersion},
		NewValue:   map[string]string{"active_version": versionID},
	})
	if err != nil {
		if rerr := os.RemoveAll(s.activeDir()); rerr != nil {
			s.log.Error().Err(rerr).Msg("failed to undo rollback")
		}
		s.restoreActive(archived)
		return errors.Wrap(err, "audit rollback")
	}

	s.invalidateCache()
	s.log.Info().Str("old", oldVersion).Str("new", versionID).Msg("dataset version rolled back")
	return nil
}

// ActiveVersionID returns the live version id, or empty when nothing has been
// activated yet.
func (s *Store) ActiveVersionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readActiveVersion()
}

func (s *Store) readActiveVersion() string {
	m, err := ReadManifest(s.activeDir())
	if err != nil {
		return ""
	}
	return m.ActiveVersionID
}

// ActiveBundle loads the live bundle, cached per version id.
func (s *Store) ActiveBundle() (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.readActiveVersion()
	if version == "" {
		return nil, errors.New("no active dataset version")
	}
	if s.cachedBundle != nil && s.cachedVersion == version {
		return s.cachedBundle, nil
	}
	b, err := LoadBundle(s.activeDir(), version)
	if err != nil {
		return nil, err
	}
	s.cachedVersion = version
	s.cachedBundle = b
	return b, nil
}

func (s *Store) invalidateCache() {
	s.mu.Lock()
	s.cachedVersion = ""
	s.cachedBundle = nil
	s.mu.Unlock()
}

// findArchived locates the newest archive directory holding the given
// version. Archive names sort by timestamp, so a reverse scan finds it.
func (s *Store) findArchived(versionID string) (string, error) {
	entries, err := os.ReadDir(s.archiveDir())
	if err != nil {
		return "", errors.Wrap(err, "read archive dir")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	for _, name := range names {
		dir := filepath.Join(s.archiveDir(), name)
		m, err := ReadManifest(dir)
		if err != nil {
			continue
		}
		if m.ActiveVersionID == versionID {
			return dir, nil
		}
	}
	return "", errors.Errorf("version %s not found in archive", versionID)
}

// restoreActive moves an archived bundle back into the active slot after a
// failed swap. Best effort; failures are logged, not returned.
func (s *Store) restoreActive(archived string) {
	if archived == "" {
		if err := os.MkdirAll(s.activeDir(), 0o755); err != nil {
			s.log.Error().Err(err).Msg("failed to recreate active dir")
		}
		return
	}
	if err := os.Rename(archived, s.activeDir()); err != nil {
		s.log.Error().Err(err).Str("archived", archived).Msg("failed to restore active bundle")
	}
}

func (s *Store) acquireLock() (func(), error) {
	path := filepath.Join(s.root, lockFilename)
	deadline := s.now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrap(err, "create activation lock")
		}
		if s.now().After(deadline) {
			return nil, errors.New("activation lock held by another process")
		}
		time.Sleep(lockInterval)
	}
}

func archiveName(now time.Time, versionID string) string {
	return fmt.Sprintf("active_%s_%s_%s", now.UTC().Format("20060102T150405"), versionID, randSuffix())
}

func randSuffix() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304
	if err != nil {
		return errors.Wrap(err, "open source file")
	}
	defer in.Close()

	out, err := os.Create(dst) // #nosec G304
	if err != nil {
		return errors.Wrap(err, "create destination file")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrap(err, "copy file")
	}
	return errors.Wrap(out.Close(), "close destination file")
}

// copyBundleDir copies the canonical files of one bundle dir into dst.
// Manifests and strays are left behind; dst gets a fresh manifest later.
func copyBundleDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errors.Wrap(err, "create bundle copy dir")
	}
	for _, cf := range CanonicalFiles {
		from := filepath.Join(src, cf.Filename)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := copyFile(from, filepath.Join(dst, cf.Filename)); err != nil {
			return err
		}
	}
	return nil
}
