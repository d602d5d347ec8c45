package xforge

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"lukechampine.com/blake3"
)

// systemArch returns the host architecture normalized to pacman's naming.
func systemArch() string {
	switch hostArch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	}
	return hostArch
}

// RepoEntry represents a single archive in the generated repository index.
type RepoEntry struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Release  string   `json:"release"`
	Arch     string   `json:"arch"`
	Filename string   `json:"filename"`
	Size     int64    `json:"size"`
	B3Sum    string   `json:"b3sum"`
	Depends  []string `json:"depends,omitempty"`
}

// CatalogRepo indexes every archive present in repoDir: repo-add builds the
// pacman database, then a JSON summary index is written next to it.
func CatalogRepo(ctx context.Context, userExec *Executor, repoDir, repoName string) error {
	archives, err := repoArchives(repoDir)
	if err != nil {
		return err
	}
	if len(archives) == 0 {
		// Cataloging runs even when every build failed this run; an empty
		// repository yields an empty index and no pacman database.
		colArrow.Print("-> ")
		colWarn.Printf("no archives in %s yet\n", repoDir)
		return SaveRepoIndex(filepath.Join(repoDir, "index.json"), []RepoEntry{})
	}

	dbPath := filepath.Join(repoDir, repoName+".db.tar.gz")
	args := append([]string{"--remove", dbPath}, archives...)
	cmd := exec.CommandContext(ctx, "repo-add", args...)
	if err := userExec.Run(cmd); err != nil {
		return fmt.Errorf("repo-add: %w", err)
	}

	index, err := BuildRepoIndex(archives)
	if err != nil {
		return err
	}
	return SaveRepoIndex(filepath.Join(repoDir, "index.json"), index)
}

func repoArchives(repoDir string) ([]string, error) {
	if _, err := os.Stat(repoDir); err != nil {
		return nil, err
	}
	var archives []string
	for _, suffix := range []string{"*.pkg.tar.zst", "*.pkg.tar.xz", "*.pkg.tar.gz"} {
		matches, err := filepath.Glob(filepath.Join(repoDir, suffix))
		if err != nil {
			return nil, err
		}
		archives = append(archives, matches...)
	}
	sort.Strings(archives)
	return archives, nil
}

// BuildRepoIndex scans each archive's .PKGINFO and checksums it.
func BuildRepoIndex(archives []string) ([]RepoEntry, error) {
	index := make([]RepoEntry, 0, len(archives))
	for _, path := range archives {
		entry, err := ReadPackageMetadata(path)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", filepath.Base(path), err)
		}
		index = append(index, entry)
	}
	return index, nil
}

// ReadPackageMetadata extracts .PKGINFO fields and computes the BLAKE3
// checksum for a local archive.
func ReadPackageMetadata(path string) (RepoEntry, error) {
	entry := RepoEntry{Filename: filepath.Base(path)}

	info, err := os.Stat(path)
	if err != nil {
		return entry, err
	}
	entry.Size = info.Size()

	sum, err := computeB3Sum(path)
	if err != nil {
		return entry, fmt.Errorf("failed to compute checksum: %w", err)
	}
	entry.B3Sum = sum

	meta, deps, err := scanArchiveMetadata(path)
	if err != nil {
		return entry, err
	}

	entry.Name = meta["pkgname"]
	entry.Arch = meta["arch"]
	// pkgver in .PKGINFO carries the release counter: "25.0.0.9-1".
	if ver := meta["pkgver"]; ver != "" {
		if idx := strings.LastIndex(ver, "-"); idx > 0 {
			entry.Version = ver[:idx]
			entry.Release = ver[idx+1:]
		} else {
			entry.Version = ver
		}
	}
	entry.Depends = deps
	return entry, nil
}

// scanArchiveMetadata reads .PKGINFO out of a package archive in one pass.
// makepkg emits zstd by default; xz and gzip archives from older PKGEXT
// settings are handled too.
func scanArchiveMetadata(path string) (map[string]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var reader io.Reader
	switch {
	case strings.HasSuffix(path, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		defer zr.Close()
		reader = zr
	case strings.HasSuffix(path, ".tar.xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		reader = xr
	case strings.HasSuffix(path, ".tar.gz"):
		gr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		defer gr.Close()
		reader = gr
	default:
		return nil, nil, fmt.Errorf("unrecognized archive format: %s", path)
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if filepath.Base(header.Name) != ".PKGINFO" {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read .PKGINFO from %s: %w", path, err)
		}
		meta, deps := parsePkgInfo(data)
		return meta, deps, nil
	}
	return nil, nil, fmt.Errorf(".PKGINFO not found in %s", path)
}

// parsePkgInfo parses makepkg's "key = value" metadata lines. depend keys
// repeat, one per dependency.
func parsePkgInfo(data []byte) (map[string]string, []string) {
	meta := make(map[string]string)
	var deps []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key == "depend" {
			deps = append(deps, val)
			continue
		}
		if _, exists := meta[key]; !exists {
			meta[key] = val
		}
	}
	return meta, deps
}

func computeB3Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// SaveRepoIndex writes the index to a JSON file.
func SaveRepoIndex(path string, index []RepoEntry) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ParseRepoIndex reads the index back from JSON data.
func ParseRepoIndex(data []byte) ([]RepoEntry, error) {
	var index []RepoEntry
	if len(data) == 0 {
		return index, nil
	}
	err := json.Unmarshal(data, &index)
	return index, err
}
