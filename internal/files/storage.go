package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	patientsDir = "patients"
	stagingDir  = ".staging"
)

// Storage keeps upload bytes under root. Callers address files by a
// slash-separated path relative to root, as stored in patient_files.
type Storage struct {
	root string
	now  func() time.Time
}

// NewStorage creates root when missing. Uploads in progress live in a
// staging directory next to patients/ so that a rename moves them in place.
func NewStorage(root string) (*Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	for _, dir := range []string{patientsDir, stagingDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0o750); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &Storage{root: abs, now: time.Now}, nil
}

func (s *Storage) Root() string { return s.root }

// NewPath returns a fresh relative path for a patient upload:
// patients/<patientID>/<unixmillis>-<8 hex><ext>.
func (s *Storage) NewPath(patientID int64, originalName string) string {
	name := fmt.Sprintf("%d-%s%s",
		s.now().UnixMilli(),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		strings.ToLower(filepath.Ext(originalName)))
	return path.Join(patientsDir, strconv.FormatInt(patientID, 10), name)
}

// resolve maps a relative path to an absolute one under root and rejects
// anything that escapes it.
func (s *Storage) resolve(relPath string) (string, error) {
	if relPath == "" || path.IsAbs(relPath) || strings.Contains(relPath, `\`) {
		return "", ErrInvalidPath
	}
	clean := path.Clean(relPath)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	if !strings.HasPrefix(clean, patientsDir+"/") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// stagedPath maps a staging name, as returned by Stage, to its absolute path.
func (s *Storage) stagedPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, stagingDir, name), nil
}

// Stage copies at most max bytes of r into a new staging file and returns
// its name and the number of bytes written. A partial file is removed on
// failure.
func (s *Storage) Stage(r io.Reader, max int64) (string, int64, error) {
	f, err := os.CreateTemp(filepath.Join(s.root, stagingDir), "upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create staging file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, max))
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("write staging file: %w", err)
	}
	return filepath.Base(f.Name()), n, nil
}

// Promote moves a staged file to relPath. relPath must not exist yet.
func (s *Storage) Promote(staged, relPath string) error {
	src, err := s.stagedPath(staged)
	if err != nil {
		return err
	}
	dst, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create patient dir: %w", err)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("promote file: %s already exists", relPath)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("promote file: %w", err)
	}
	return nil
}

// RemoveStaged deletes a staging file. One that was already promoted or
// removed is not an error.
func (s *Storage) RemoveStaged(name string) error {
	p, err := s.stagedPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove staging file: %w", err)
	}
	return nil
}

// Discard is RemoveStaged for cleanup paths; failures are logged.
func (s *Storage) Discard(name string) {
	if err := s.RemoveStaged(name); err != nil {
		log.Warn().Err(err).Str("staged", name).Msg("failed to discard staging file")
	}
}

// Open returns ErrFileContentMissing when the bytes are gone.
func (s *Storage) Open(relPath string) (*os.File, error) {
	abs, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrFileContentMissing
	}
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Remove deletes relPath. A file that is already gone is not an error.
func (s *Storage) Remove(relPath string) error {
	abs, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// StoredFile is a file found on disk by Walk.
type StoredFile struct {
	Path    string
	ModTime time.Time
}

// Walk calls fn for every regular file under the patients directory.
func (s *Storage) Walk(fn func(StoredFile) error) error {
	return s.walk(patientsDir, fn)
}

// WalkStaging calls fn for every staging file. Path is the staging name.
func (s *Storage) WalkStaging(fn func(StoredFile) error) error {
	return s.walk(stagingDir, func(f StoredFile) error {
		f.Path = path.Base(f.Path)
		return fn(f)
	})
}

func (s *Storage) walk(dir string, fn func(StoredFile) error) error {
	base := filepath.Join(s.root, dir)
	return filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		return fn(StoredFile{Path: filepath.ToSlash(rel), ModTime: info.ModTime()})
	})
}
