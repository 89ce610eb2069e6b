package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/secrets"
)

// EncryptedExt marks backup files sealed with a password.
const EncryptedExt = ".enc"

// BackupService writes and restores whole-ledger backup files. Files ending
// in EncryptedExt are encrypted; anything else is a plain sqlite database.
type BackupService struct {
	Store *database.Handle
	Log   *zap.Logger
}

func encrypted(path string) bool {
	return strings.EqualFold(filepath.Ext(path), EncryptedExt)
}

// Export writes a backup to path.
func (s *BackupService) Export(ctx context.Context, path, password string) error {
	if encrypted(path) && password == "" {
		return invalid("password", "required for %s backups", EncryptedExt)
	}
	data, err := s.Store.Export(ctx)
	if err != nil {
		return err
	}
	if encrypted(path) {
		if data, err = secrets.Encrypt(data, password); err != nil {
			return fmt.Errorf("encrypt backup: %w", err)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create backup dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	logger(s.Log).Info("backup written", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// Import replaces the ledger with the backup at path. Older schemas are
// upgraded; a wrong password or a damaged file leaves the ledger untouched.
func (s *BackupService) Import(ctx context.Context, path, password string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if encrypted(path) {
		if password == "" {
			return invalid("password", "required for %s backups", EncryptedExt)
		}
		if data, err = secrets.Decrypt(data, password); err != nil {
			return err
		}
	}
	if err := s.Store.Replace(ctx, data); err != nil {
		return fmt.Errorf("import backup: %w", err)
	}
	s.Store.Touch()
	logger(s.Log).Info("backup imported", zap.String("path", path))
	return nil
}
