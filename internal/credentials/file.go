package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// newFileMode is used when Set creates the credential file.
const newFileMode fs.FileMode = 0600

// FileStore is a Store backed by a dotenv-style file.
type FileStore struct {
	path      string
	mu        sync.Mutex
	lookupEnv func(string) (string, bool)
}

// NewFileStore returns a FileStore for path. An empty path selects DefaultPath.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{
		path:      path,
		lookupEnv: os.LookupEnv,
	}
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether the backing file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Get implements Store. A missing file falls back to the process environment;
// any other read or parse failure is returned.
func (s *FileStore) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readValues()
	if errors.Is(err, fs.ErrNotExist) {
		v, ok := s.lookupEnv(key)
		return v, ok, nil
	}
	if err != nil {
		return "", false, err
	}

	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) readValues() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	values, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential file %s: %w", s.path, err)
	}
	return values, nil
}

// Set implements Store. The first line assigning key is replaced in place and
// any later assignments of the same key are dropped; if no line assigns key, a
// new line is appended. The file is rewritten through a temporary file and
// renamed into place.
func (s *FileStore) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("credentials: value for %s must be a single line", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mode := newFileMode
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data = nil
	case err != nil:
		return fmt.Errorf("failed to read credential file %s: %w", s.path, err)
	default:
		if info, statErr := os.Stat(s.path); statErr == nil {
			mode = info.Mode().Perm()
		}
	}

	updated := replaceLine(string(data), key, value)
	if err := writeFileAtomic(s.path, []byte(updated), mode); err != nil {
		return fmt.Errorf("failed to write credential file %s: %w", s.path, err)
	}
	return nil
}

// replaceLine rewrites content so that exactly one line assigns key. Lines
// of the form "export KEY=..." count as assignments and keep their export.
func replaceLine(content, key, value string) string {
	assignment := key + "=" + value

	if content == "" {
		return assignment + "\n"
	}

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines)+1)
	replaced := false
	for _, line := range lines {
		if exported, ok := assigns(line, key); ok {
			if replaced {
				continue
			}
			if exported {
				out = append(out, "export "+assignment)
			} else {
				out = append(out, assignment)
			}
			replaced = true
			continue
		}
		out = append(out, line)
	}

	if replaced {
		return strings.Join(out, "\n")
	}

	// out ends with "" when content had a trailing newline
	if out[len(out)-1] == "" {
		out[len(out)-1] = assignment
		out = append(out, "")
	} else {
		out = append(out, assignment, "")
	}
	return strings.Join(out, "\n")
}

// assigns reports whether line assigns key, and whether it does so with an
// "export" prefix as accepted by godotenv.
func assigns(line, key string) (exported, ok bool) {
	rest := strings.TrimLeft(line, " \t")
	if after, found := strings.CutPrefix(rest, "export"); found && after != "" && (after[0] == ' ' || after[0] == '\t') {
		rest = strings.TrimLeft(after, " \t")
		exported = true
	}
	return exported, strings.HasPrefix(rest, key+"=")
}

func writeFileAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// LoadEnvironment loads the credential file into the process environment
// without overriding variables that are already set. A missing file is not an
// error.
func LoadEnvironment(path string) error {
	if path == "" {
		path = DefaultPath
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
