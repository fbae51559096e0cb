package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// ArtifactStore persists rendered artifacts on the local filesystem. Records
// hold storage-relative paths only, so the whole artifact tree can be moved
// by changing the configured root. Writes are write-once via temp+rename: a
// path either holds the complete artifact or does not exist.
type ArtifactStore struct {
	root   string
	logger arbor.ILogger
}

var _ interfaces.ArtifactStore = (*ArtifactStore)(nil)

// NewArtifactStore creates an artifact store rooted at dir
func NewArtifactStore(dir string, logger arbor.ILogger) (*ArtifactStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &ArtifactStore{root: dir, logger: logger}, nil
}

// ArtifactPath builds the storage-relative path for a report artifact. The
// random suffix makes every generation a fresh path, which keeps regeneration
// from clobbering an artifact a reader may still be downloading.
func ArtifactPath(kind models.ArtifactKind, reportID string, reportType models.ReportType) string {
	ext := "html"
	if kind == models.ArtifactKindPrintable {
		ext = "pdf"
	}
	nonce := strings.Split(uuid.New().String(), "-")[0]
	return filepath.ToSlash(filepath.Join(string(kind),
		fmt.Sprintf("%s_%s_%s.%s", reportID, reportType, nonce, ext)))
}

func (s *ArtifactStore) Write(ctx context.Context, relPath string, data []byte) error {
	full, err := s.resolve(relPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(full); err == nil {
		return models.WrapKind(models.ErrStorage, "artifact already exists: %s", relPath)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return models.WrapKind(models.ErrStorage, "failed to create artifact directory: %v", err)
	}

	// Temp in the same directory so the rename is atomic on the same
	// filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return models.WrapKind(models.ErrStorage, "failed to create temp file: %v", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return models.WrapKind(models.ErrStorage, "failed to write artifact: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return models.WrapKind(models.ErrStorage, "failed to close temp file: %v", err)
	}

	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return models.WrapKind(models.ErrStorage, "failed to finalize artifact: %v", err)
	}

	s.logger.Debug().
		Str("path", relPath).
		Int("size", len(data)).
		Msg("Artifact stored")

	return nil
}

func (s *ArtifactStore) Read(ctx context.Context, relPath string) ([]byte, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.WrapKind(models.ErrStorage, "artifact not found: %s", relPath)
		}
		return nil, models.WrapKind(models.ErrStorage, "failed to read artifact: %v", err)
	}
	return data, nil
}

func (s *ArtifactStore) Exists(ctx context.Context, relPath string) (bool, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, models.WrapKind(models.ErrStorage, "failed to stat artifact: %v", err)
	}
	return true, nil
}

func (s *ArtifactStore) Delete(ctx context.Context, relPath string) error {
	full, err := s.resolve(relPath)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return models.WrapKind(models.ErrStorage, "failed to delete artifact: %v", err)
	}
	return nil
}

// Sweep removes artifact files that are no longer referenced by any report
// record and older than minAge. Superseded generation nonces accumulate here
// because regeneration always writes fresh paths.
func (s *ArtifactStore) Sweep(ctx context.Context, referenced map[string]struct{}, minAge time.Duration) (int, error) {
	removed := 0
	cutoff := time.Now().Add(-minAge)

	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if _, ok := referenced[filepath.ToSlash(rel)]; ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("path", rel).Msg("Failed to remove orphaned artifact")
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, models.WrapKind(models.ErrStorage, "artifact sweep: %v", err)
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Orphaned artifacts collected")
	}
	return removed, nil
}

// resolve turns a storage-relative path into an absolute one, rejecting any
// path that is absolute or escapes the artifact root.
func (s *ArtifactStore) resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", models.WrapKind(models.ErrValidation, "artifact path is empty")
	}
	if filepath.IsAbs(relPath) {
		return "", models.WrapKind(models.ErrValidation, "artifact path must be relative: %s", relPath)
	}

	clean := filepath.Clean(filepath.FromSlash(relPath))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", models.WrapKind(models.ErrValidation, "artifact path escapes storage root: %s", relPath)
	}

	return filepath.Join(s.root, clean), nil
}
