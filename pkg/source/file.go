package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/niels/nixie/pkg/markdown"
)

// CounterFile serves the integer stored in a file
type CounterFile struct {
	path string
}

// NewCounterFile checks that path names a readable regular file
func NewCounterFile(path string) (*CounterFile, error) {
	if path == "" {
		return nil, errors.New("counter file path is required")
	}
	if err := requireFile(path); err != nil {
		return nil, err
	}
	return &CounterFile{path: path}, nil
}

// Fetch reads the file and parses its contents with newlines removed
func (c *CounterFile) Fetch(ctx context.Context) (int64, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read counter file: %w", err)
	}

	text := strings.TrimSpace(strings.ReplaceAll(string(data), "\n", ""))
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter file %s does not hold an integer: %w", c.path, err)
	}
	return value, nil
}

// DirectoryCount serves the number of entries in a directory, files and
// subdirectories alike, without recursing
type DirectoryCount struct {
	dir string
}

// NewDirectoryCount checks that dir is a directory. An empty dir means the
// current working directory.
func NewDirectoryCount(dir string) (*DirectoryCount, error) {
	if dir == "" {
		dir = "."
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &DirectoryCount{dir: dir}, nil
}

// Fetch lists the directory. Names are read unsorted since only the count matters.
func (d *DirectoryCount) Fetch(ctx context.Context) (int64, error) {
	f, err := os.Open(d.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to open directory: %w", err)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return 0, fmt.Errorf("failed to list directory: %w", err)
	}
	return int64(len(names)), nil
}

// WordCount serves the number of prose words in a Markdown file
type WordCount struct {
	path string
}

// NewWordCount checks that path names a readable regular file
func NewWordCount(path string) (*WordCount, error) {
	if path == "" {
		return nil, errors.New("markdown file path is required")
	}
	if err := requireFile(path); err != nil {
		return nil, err
	}
	return &WordCount{path: path}, nil
}

// Fetch reads the file and counts its words
func (w *WordCount) Fetch(ctx context.Context) (int64, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read markdown file: %w", err)
	}
	return int64(markdown.CountWords(string(data))), nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
