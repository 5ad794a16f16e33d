package database

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const backupLayout = "20060102_150405"

var backupName = regexp.MustCompile(`^(\d{8}_\d{6})_energiprice\.db\.zip$`)

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes a zipped snapshot of the database to the backups directory
// next to the database file and returns its path.
func (d *Database) Backup(ctx context.Context) (string, error) {
	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	snapshot := filepath.Join(dir, fmt.Sprintf("%s_energiprice.db", time.Now().Format(backupLayout)))
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return "", fmt.Errorf("vacuuming database into '%s': %w", snapshot, err)
	}

	zipPath := snapshot + ".zip"
	if err := compress(snapshot, zipPath, filepath.Base(d.path)); err != nil {
		return "", err
	}

	if err := os.Remove(snapshot); err != nil {
		d.logger.Warn("could not remove snapshot after compression", slog.Any("error", err))
	}

	d.logger.Info("database backup complete", slog.String("filename", zipPath))
	return zipPath, nil
}

func compress(src, dest, entry string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open snapshot for compression: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("get snapshot info: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer out.Close()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("create zip header: %w", err)
	}
	header.Name = entry
	header.Method = zip.Deflate

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write snapshot to zip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return out.Close()
}

// PurgeBackups removes backups older than the retention and returns how many
// were deleted. Files not written by Backup are left alone.
func (d *Database) PurgeBackups(retentionDays int) (int, error) {
	if retentionDays < 1 {
		return 0, nil
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	files, err := os.ReadDir(d.backupDir())
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	removed := 0
	for _, file := range files {
		m := backupName.FindStringSubmatch(file.Name())
		if m == nil {
			continue
		}
		t, err := time.ParseInLocation(backupLayout, m[1], time.Local)
		if err != nil || !t.Before(cutoff) {
			continue
		}
		path := filepath.Join(d.backupDir(), file.Name())
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("remove old backup '%s': %w", path, err)
		}
		d.logger.Debug("deleted old backup", slog.String("path", path))
		removed++
	}

	return removed, nil
}
