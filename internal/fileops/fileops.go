package fileops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sisyphus-worker/pkg/logger"
)

// Move moves a file from src to dst. A dst that is an existing directory
// receives the file under its base name.
func Move(src, dst string) error {
	if IsDir(dst) {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	// Try rename first (works if same filesystem)
	err := os.Rename(src, dst)
	if err == nil {
		logger.Debugf("📦 Moved: %s → %s", src, dst)
		return nil
	}

	// Fallback: copy then delete
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("copy for move: %w", err)
	}

	if err := os.Remove(src); err != nil {
		logger.Warnf("⚠️ Failed to remove source after copy: %v", err)
	}

	logger.Debugf("📦 Moved (copy+delete): %s → %s", src, dst)
	return nil
}

// Copy copies src to dst, creating the destination directory. A dst that is an
// existing directory receives the file under its base name.
func Copy(src, dst string) error {
	if IsDir(dst) {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	logger.Debugf("📋 Copied: %s → %s", src, dst)
	return nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0755)
}

// Exists checks if a file or directory exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path is an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile reports whether path is an existing regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes a file. A file that is already gone is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err == nil {
		logger.Debugf("🗑️ Removed: %s", path)
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// HasExtension reports whether path ends in one of exts (case-insensitive, with dot).
func HasExtension(path string, exts ...string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
