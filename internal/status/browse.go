package status

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirEntry is a subdirectory in a listing.
type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// FileEntry is a file in a listing.
type FileEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Type  string `json:"type"`
	Ext   string `json:"ext"`
	Size  int64  `json:"size"`
	Mtime string `json:"mtime"`
}

// Listing is the content of one browsed directory.
type Listing struct {
	Path  string      `json:"path"`
	Files []FileEntry `json:"files"`
	Dirs  []DirEntry  `json:"dirs"`
}

// FileContent is a file preview.
type FileContent struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	Content string `json:"content"`
}

// Browse lists the directory at rel (relative to the repo root and inside a
// browse dir): directories first, then files, each in case-insensitive name order.
func (r *Reader) Browse(rel string) (*Listing, error) {
	abs, err := r.pol.ValidateBrowsePath(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("directory %s: %w", rel, ErrNotFound)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, rel)
	}

	items, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", rel, err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDir() != items[j].IsDir() {
			return items[i].IsDir()
		}
		return strings.ToLower(items[i].Name()) < strings.ToLower(items[j].Name())
	})

	root := r.pol.RepoRoot()
	listing := &Listing{Path: r.relTo(root, abs), Files: []FileEntry{}, Dirs: []DirEntry{}}
	for _, item := range items {
		full := filepath.Join(abs, item.Name())
		if item.IsDir() {
			listing.Dirs = append(listing.Dirs, DirEntry{Name: item.Name(), Path: r.relTo(root, full), Type: "dir"})
			continue
		}
		fi, err := item.Info()
		if err != nil {
			continue
		}
		listing.Files = append(listing.Files, FileEntry{
			Name:  item.Name(),
			Path:  r.relTo(root, full),
			Type:  FileType(item.Name(), "file"),
			Ext:   strings.ToLower(filepath.Ext(item.Name())),
			Size:  fi.Size(),
			Mtime: fi.ModTime().UTC().Format(time.RFC3339),
		})
	}
	return listing, nil
}

// ReadFile returns a preview of the file at rel.
func (r *Reader) ReadFile(rel string) (*FileContent, error) {
	abs, err := r.FilePath(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	return &FileContent{
		Path:    rel,
		Name:    filepath.Base(abs),
		Type:    FileType(abs, "text"),
		Size:    info.Size(),
		Content: ReadText(abs, ""),
	}, nil
}

// FilePath validates rel and returns the absolute path of a regular file
// inside one of the browse dirs.
func (r *Reader) FilePath(rel string) (string, error) {
	abs, err := r.pol.ValidateBrowsePath(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("file %s: %w", rel, ErrNotFound)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrIsDirectory, rel)
	}
	return abs, nil
}

func (r *Reader) relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
