package remote

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/rs/zerolog/log"
)

// Download fetches the archive of m into destDir and verifies its checksum
// when the manifest declares one. Returns the archive path.
func (c *Client) Download(ctx context.Context, m *mod.Mod, destDir string) (string, error) {
	name := m.Archive
	if name == "" {
		name = m.ID + ".tar.gz"
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid archive name %q", name)
	}

	resp, err := c.get(ctx, c.FileURL(m.Repo, m.ID, name))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", fmt.Errorf("downloading %s: %w", name, err)
	}

	destPath := filepath.Join(destDir, name)
	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		os.Remove(destPath)
		return "", fmt.Errorf("writing download: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("writing download: %w", err)
	}
	log.Debug().Str("mod", m.ID).Str("archive", name).Int64("bytes", n).Msg("Downloaded archive")

	if m.Checksum != "" {
		if err := VerifyChecksum(destPath, m.Checksum); err != nil {
			os.Remove(destPath)
			return "", fmt.Errorf("verifying %s: %w", name, err)
		}
	}
	return destPath, nil
}

// VerifyChecksum compares the SHA-256 of the file at path with expected.
func VerifyChecksum(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("computing checksum: %w", err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

// Extract unpacks a .zip or .tar.gz archive into destDir. Entries that would
// land outside destDir are rejected; links and special files are skipped.
func Extract(archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", destDir, err)
	}
	if strings.HasSuffix(archivePath, ".zip") {
		return extractZip(archivePath, destDir)
	}
	return extractTarGz(archivePath, destDir)
}

// entryPath joins an archive entry name onto destDir, refusing traversal.
func entryPath(destDir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return filepath.Join(destDir, clean), nil
}

func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		dest, err := entryPath(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", dest, err)
			}
		case tar.TypeReg:
			if err := writeEntry(dest, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		}
	}
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip archive: %w", err)
	}
	defer r.Close()

	for _, zf := range r.File {
		dest, err := entryPath(destDir, zf.Name)
		if err != nil {
			return err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", dest, err)
			}
			continue
		}
		if !zf.Mode().IsRegular() {
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("opening zip entry: %w", err)
		}
		err = writeEntry(dest, rc, zf.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(dest string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", dest, err)
	}
	return out.Close()
}
