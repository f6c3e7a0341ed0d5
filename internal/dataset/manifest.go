package dataset

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/quotegate/quotegate/internal/crypto"
)

const manifestFilename = "manifest.json"

// ManifestEntry binds one canonical file to its checksum and row count.
type ManifestEntry struct {
	Type       string `json:"type"`
	VersionID  string `json:"versionId"`
	Filename   string `json:"filename"`
	UploadedBy string `json:"uploadedBy"`
	UploadedAt string `json:"uploadedAt"`
	Checksum   string `json:"checksum"`
	RowCount   int    `json:"rowCount"`
}

// Manifest is the single source of truth for which version is active and what
// bytes it consists of.
type Manifest struct {
	ActiveVersionID string          `json:"activeVersionId"`
	Datasets        []ManifestEntry `json:"datasets"`
}

// BuildManifest derives a manifest from a bundle directory. Deterministic:
// checksums and row counts come from file content, only uploadedAt varies.
func BuildManifest(dir, versionID, uploadedBy string, now time.Time) (Manifest, error) {
	uploadedAt := now.UTC().Truncate(time.Second).Format(time.RFC3339)

	entries := make([]ManifestEntry, 0, len(CanonicalFiles))
	for _, cf := range CanonicalFiles {
		path := filepath.Join(dir, cf.Filename)

		checksum := ""
		rowCount := 0
		if _, err := os.Stat(path); err == nil {
			sum, err := checksumFile(path)
			if err != nil {
				return Manifest{}, err
			}
			checksum = sum
			n, err := countDataRows(path)
			if err != nil {
				return Manifest{}, err
			}
			rowCount = n
		}

		entries = append(entries, ManifestEntry{
			Type:       cf.Type,
			VersionID:  versionID,
			Filename:   cf.Filename,
			UploadedBy: uploadedBy,
			UploadedAt: uploadedAt,
			Checksum:   checksum,
			RowCount:   rowCount,
		})
	}

	return Manifest{ActiveVersionID: versionID, Datasets: entries}, nil
}

// WriteManifest writes via temp file + rename so a reader never observes a
// partially written manifest.
func WriteManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}
	data = append(data, '\n')

	tmp := filepath.Join(dir, ".manifest.json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write manifest temp")
	}
	if err := os.Rename(tmp, filepath.Join(dir, manifestFilename)); err != nil {
		return errors.Wrap(err, "rename manifest")
	}
	return nil
}

func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFilename)) // #nosec G304
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "manifest not found in %s", dir)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrap(err, "decode manifest")
	}
	if m.ActiveVersionID == "" {
		return Manifest{}, errors.New("manifest missing activeVersionId")
	}
	return m, nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", errors.Wrap(err, "open for checksum")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", errors.Wrap(err, "read for checksum")
	}
	return crypto.DigestHex(data), nil
}

// countDataRows counts rows excluding the header and empty lines.
func countDataRows(path string) (int, error) {
	rows, err := parseCSV(path)
	if err != nil {
		// An unparseable file still checksums; it simply has no countable rows.
		if errors.Is(err, ErrParse) {
			return 0, nil
		}
		return 0, err
	}
	return len(rows), nil
}
