// Package embedded provides the bundled macro profiles. They are copied into an
// empty macro folder on first start so users have files to edit.
package embedded

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"macropad/internal/profile"
)

//go:embed profiles/*
var profilesFS embed.FS

// FS returns the bundled profiles with file names at the root
func FS() fs.FS {
	sub, err := fs.Sub(profilesFS, "profiles")
	if err != nil {
		// fs.Sub only fails for an invalid path
		panic(err)
	}
	return sub
}

// Seed copies the bundled profiles into dir when it holds no profile files yet.
// It returns the number of files written.
func Seed(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && profile.IsProfileFile(entry.Name()) {
			return 0, nil
		}
	}

	bundled, err := fs.ReadDir(profilesFS, "profiles")
	if err != nil {
		return 0, fmt.Errorf("failed to read bundled profiles: %w", err)
	}

	written := 0
	for _, entry := range bundled {
		if entry.IsDir() {
			continue
		}
		if err := extractFile("profiles/"+entry.Name(), filepath.Join(dir, entry.Name())); err != nil {
			return written, fmt.Errorf("failed to extract %s: %w", entry.Name(), err)
		}
		written++
	}
	log.Printf("Profiles: Seeded %d bundled profiles into %s", written, dir)
	return written, nil
}

// extractFile copies a single file out of the embedded FS
func extractFile(srcPath, dstPath string) error {
	src, err := profilesFS.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
