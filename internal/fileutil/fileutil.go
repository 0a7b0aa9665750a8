// Package fileutil implements the filesystem primitives the executor
// relies on: collision-safe moves, cross-filesystem move fallback, and
// move-to-trash on the three desktop platforms.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"
)

// MoveFile moves src into destDir and returns the destination path it
// chose. If a file with the same name already exists there, a counter
// suffix is appended (photo.jpg -> photo_1.jpg) rather than overwriting.
func MoveFile(src, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}

	destName := FindUniqueName(filepath.Base(src), func(name string) bool {
		_, err := os.Stat(filepath.Join(destDir, name))
		return os.IsNotExist(err)
	})

	dest := filepath.Join(destDir, destName)
	if err := moveFileAcrossFS(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// PredictDestName returns the name MoveFile would choose for src inside
// destDir right now, without moving anything. Used by dry-run reporting.
func PredictDestName(src, destDir string) string {
	return FindUniqueName(filepath.Base(src), func(name string) bool {
		_, err := os.Stat(filepath.Join(destDir, name))
		return os.IsNotExist(err)
	})
}

// FindUniqueName appends _1, _2, ... before the extension until
// isAvailable accepts the candidate.
func FindUniqueName(filename string, isAvailable func(string) bool) string {
	if isAvailable(filename) {
		return filename
	}

	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", name, counter, ext)
		if isAvailable(candidate) {
			return candidate
		}
	}
}

// moveFileAcrossFS renames, falling back to copy+delete when src and
// dest live on different filesystems.
func moveFileAcrossFS(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := copyFile(src, dest); err != nil {
			return err
		}
		return os.Remove(src)
	}

	return err
}

func copyFile(src, dest string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, srcFile); err != nil {
		os.Remove(dest)
		return err
	}

	return nil
}

// MoveToTrash moves a file to the platform trash so a deletion can be
// undone:
//   - macOS: ~/.Trash
//   - Linux: ~/.local/share/Trash (freedesktop.org spec, with .trashinfo)
//   - Windows: Recycle Bin via shell32
func MoveToTrash(src string) error {
	switch runtime.GOOS {
	case "windows":
		return moveToWindowsTrash(src)
	case "linux":
		trashDir, err := trashDir()
		if err != nil {
			return err
		}
		return moveToLinuxTrash(src, trashDir)
	default: // darwin and the rest
		dir, err := trashDir()
		if err != nil {
			return err
		}
		_, err = MoveFile(src, dir)
		return err
	}
}

func trashDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	var dir string
	switch runtime.GOOS {
	case "darwin":
		dir = filepath.Join(homeDir, ".Trash")
	case "linux":
		dir = filepath.Join(homeDir, ".local", "share", "Trash", "files")
	default:
		dir = filepath.Join(homeDir, "photoclean_trash")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create trash directory: %w", err)
	}

	return dir, nil
}

// moveToLinuxTrash writes the .trashinfo companion file the freedesktop
// spec requires so desktop environments can restore the file.
func moveToLinuxTrash(src, trashFilesDir string) error {
	homeDir, _ := os.UserHomeDir()
	trashInfoDir := filepath.Join(homeDir, ".local", "share", "Trash", "info")

	if err := os.MkdirAll(trashInfoDir, 0755); err != nil {
		return err
	}

	absPath, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	// The name must be free in both the files dir and the info dir.
	destName := FindUniqueName(filepath.Base(src), func(name string) bool {
		_, err1 := os.Stat(filepath.Join(trashFilesDir, name))
		_, err2 := os.Stat(filepath.Join(trashInfoDir, name+".trashinfo"))
		return os.IsNotExist(err1) && os.IsNotExist(err2)
	})

	dest := filepath.Join(trashFilesDir, destName)
	infoPath := filepath.Join(trashInfoDir, destName+".trashinfo")

	info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		absPath,
		time.Now().Format("2006-01-02T15:04:05"))

	if err := os.WriteFile(infoPath, []byte(info), 0644); err != nil {
		return err
	}

	if err := moveFileAcrossFS(src, dest); err != nil {
		os.Remove(infoPath)
		return err
	}

	return nil
}
