package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adiselav/CabanApp/internal/config"

	"github.com/rs/zerolog"
)

const backupPrefix = "cabanapp_"

// BackupService writes periodic online snapshots of the store with VACUUM INTO.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	logger *zerolog.Logger
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{db: db, config: cfg, logger: logger}
}

func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}
	if s.db.Path() == memoryPath {
		s.logger.Warn().Msg("Backups skipped for in-memory database")
		return
	}

	interval := s.config.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	s.logger.Info().Dur("interval", interval).Str("path", s.config.StoragePath).Msg("Backup service started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *BackupService) runOnce(ctx context.Context) {
	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Backup failed")
		return
	}
	if removed := s.CleanupOldBackups(time.Now()); removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Old backups removed")
	}
}

// PerformBackup snapshots the live database and returns the backup file path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("%s%s.db", backupPrefix, time.Now().UTC().Format("20060102_150405.000"))
	target := filepath.Join(s.config.StoragePath, name)

	// VACUUM INTO takes no bind parameters; quote the path as a string literal.
	literal := "'" + strings.ReplaceAll(target, "'", "''") + "'"
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO "+literal); err != nil {
		return "", fmt.Errorf("failed to vacuum into %s: %w", target, err)
	}

	s.logger.Info().Str("path", target).Msg("Backup completed")
	return target, nil
}

// CleanupOldBackups deletes backups older than the retention window and keeps
// at most MaxBackups of the newest ones. It returns how many files were removed.
func (s *BackupService) CleanupOldBackups(at time.Time) int {
	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return 0
	}

	type backupFile struct {
		name    string
		modTime time.Time
	}
	var files []backupFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), backupPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, backupFile{name: entry.Name(), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	var cutoff time.Time
	if s.config.RetentionDays > 0 {
		cutoff = at.AddDate(0, 0, -s.config.RetentionDays)
	}

	removed := 0
	for i, f := range files {
		expired := !cutoff.IsZero() && f.modTime.Before(cutoff)
		overflow := s.config.MaxBackups > 0 && i >= s.config.MaxBackups
		if !expired && !overflow {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, f.name)); err != nil {
			s.logger.Warn().Err(err).Str("file", f.name).Msg("Failed to delete old backup")
			continue
		}
		removed++
	}
	return removed
}
