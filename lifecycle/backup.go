package lifecycle

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

type BackupInfo struct {
	ArchivePath string
	Files       int
	Size        int64
	Duration    time.Duration
}

// Backup archives the storage directory into a tar.gz snapshot. A running
// container is stopped first and restarted afterwards so the archive sees
// a quiesced data dir. An empty outPath picks a timestamped name.
func (m *Manager) Backup(ctx context.Context, outPath string) (*BackupInfo, error) {
	start := time.Now()

	storage, err := m.storagePath()
	if err != nil {
		return nil, err
	}
	if stat, err := os.Stat(storage); err != nil || !stat.IsDir() {
		return nil, fmt.Errorf("storage dir %s does not exist", storage)
	}

	if outPath == "" {
		outPath = fmt.Sprintf("qdrant-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
	}
	outPath, err = filepath.Abs(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output path: %w", err)
	}

	wasRunning := m.reachable(ctx)
	if wasRunning {
		m.logger.Info("stopping qdrant for backup")
		if err := m.Stop(ctx); err != nil {
			return nil, err
		}
	}

	files, err := writeArchive(outPath, storage)
	if err != nil {
		os.Remove(outPath)
		return nil, err
	}

	if wasRunning {
		if err := m.Start(ctx); err != nil {
			return nil, fmt.Errorf("backup written to %s but qdrant did not restart: %w", outPath, err)
		}
	}

	info := &BackupInfo{
		ArchivePath: outPath,
		Files:       files,
		Duration:    time.Since(start),
	}
	if stat, err := os.Stat(outPath); err == nil {
		info.Size = stat.Size()
	}

	m.logger.Info("backup written",
		zap.String("archive", outPath),
		zap.Int("files", files),
		zap.Int64("bytes", info.Size),
	)
	return info, nil
}

// Restore replaces the storage directory with an archive's contents. The
// container must be stopped; the previous directory is kept next to it as
// <dir>.bak-<timestamp>.
func (m *Manager) Restore(ctx context.Context, archivePath string) error {
	if m.reachable(ctx) {
		return fmt.Errorf("qdrant is running, stop it before restoring")
	}

	storage, err := m.storagePath()
	if err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	defer gr.Close()

	if _, err := os.Stat(storage); err == nil {
		aside := fmt.Sprintf("%s.bak-%s", storage, time.Now().Format("20060102-150405"))
		if err := os.Rename(storage, aside); err != nil {
			return fmt.Errorf("failed to move old storage aside: %w", err)
		}
		m.logger.Info("previous storage kept", zap.String("path", aside))
	}
	if err := os.MkdirAll(storage, 0o755); err != nil {
		return fmt.Errorf("failed to create storage dir: %w", err)
	}

	tr := tar.NewReader(gr)
	restored := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive entry: %w", err)
		}

		dest, err := entryPath(storage, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := extractFile(tr, hdr, dest); err != nil {
				return fmt.Errorf("failed to restore %s: %w", hdr.Name, err)
			}
			restored++
		}
	}

	m.logger.Info("storage restored",
		zap.String("archive", archivePath),
		zap.Int("files", restored),
	)
	return nil
}

type StorageStats struct {
	Path   string
	Exists bool
	Files  int
	Size   int64
}

// StorageInfo reports where the qdrant data lives and how big it is.
func (m *Manager) StorageInfo() (*StorageStats, error) {
	storage, err := m.storagePath()
	if err != nil {
		return nil, err
	}

	stats := &StorageStats{Path: storage}
	if _, err := os.Stat(storage); err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, err
	}
	stats.Exists = true

	err = filepath.WalkDir(storage, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.Files++
		stats.Size += info.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func writeArchive(outPath, root string) (int, error) {
	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	count := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if err := writeTarFile(tw, filepath.ToSlash(rel), path); err != nil {
			return fmt.Errorf("failed to archive %s: %w", rel, err)
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := tw.Close(); err != nil {
		return 0, err
	}
	if err := gw.Close(); err != nil {
		return 0, err
	}
	return count, out.Close()
}

func writeTarFile(tw *tar.Writer, archivePath, diskPath string) error {
	fi, err := os.Stat(diskPath)
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:    archivePath,
		Mode:    int64(fi.Mode().Perm()),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	f, err := os.Open(diskPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// entryPath joins an archive entry name onto root, rejecting names that
// would escape it.
func entryPath(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes storage dir", name)
	}
	return filepath.Join(root, clean), nil
}

func extractFile(tr *tar.Reader, hdr *tar.Header, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	mode := os.FileMode(hdr.Mode)
	if mode == 0 {
		mode = 0o644
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, tr); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
