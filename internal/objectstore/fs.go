package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// metaDir holds one JSON sidecar per object with its content type and
// user metadata. It is hidden from List.
const metaDir = ".objectmeta"

// FS stores objects as files under a root directory.
type FS struct {
	root string
}

type fsMeta struct {
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
}

// NewFS creates root if needed.
func NewFS(root string) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("objectstore fs: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore fs: %w", err)
	}
	return &FS{root: abs}, nil
}

func (s *FS) Container() string { return filepath.Base(s.root) }

// file maps an object path to its data file and sidecar.
func (s *FS) file(p string) (clean, name, metaName string, err error) {
	clean, err = cleanPath(p)
	if err != nil {
		return "", "", "", err
	}
	if clean == metaDir || strings.HasPrefix(clean, metaDir+"/") {
		return "", "", "", fmt.Errorf("reserved object path %q", p)
	}
	return clean,
		filepath.Join(s.root, filepath.FromSlash(clean)),
		filepath.Join(s.root, metaDir, filepath.FromSlash(clean)+".json"), nil
}

func (s *FS) Get(ctx context.Context, objectPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, name, _, err := s.file(objectPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}
	return b, err
}

// Put writes data atomically (temp file + rename) and then its sidecar.
func (s *FS) Put(ctx context.Context, objectPath string, data []byte, contentType string, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, name, metaName, err := s.file(objectPath)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = ContentType(objectPath)
	}
	sum := md5.Sum(data)
	meta, err := json.Marshal(fsMeta{ContentType: contentType, Metadata: metadata, ETag: hex.EncodeToString(sum[:])})
	if err != nil {
		return err
	}
	if err := writeAtomic(name, data); err != nil {
		return fmt.Errorf("put %s: %w", objectPath, err)
	}
	if err := writeAtomic(metaName, meta); err != nil {
		return fmt.Errorf("put %s metadata: %w", objectPath, err)
	}
	return nil
}

func writeAtomic(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), name)
}

func (s *FS) Stat(ctx context.Context, objectPath string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, name, metaName, err := s.file(objectPath)
	if err != nil {
		return nil, err
	}
	return s.stat(clean, name, metaName)
}

func (s *FS) stat(objectPath, name, metaName string) (*Info, error) {
	fi, err := os.Stat(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a prefix", ErrNotFound, objectPath)
	}
	info := &Info{
		Path:         objectPath,
		Size:         fi.Size(),
		LastModified: fi.ModTime().UTC(),
		ContentType:  ContentType(objectPath),
	}
	if raw, err := os.ReadFile(metaName); err == nil {
		var m fsMeta
		if json.Unmarshal(raw, &m) == nil {
			info.ContentType = m.ContentType
			info.Metadata = m.Metadata
			info.ETag = m.ETag
		}
	}
	return info, nil
}

// Remove deletes the object and its sidecar; missing files are ignored.
func (s *FS) Remove(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, name, metaName, err := s.file(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Remove(metaName); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FS) List(ctx context.Context, prefix string) ([]Info, error) {
	prefix = strings.TrimPrefix(filepath.ToSlash(prefix), "/")
	var out []Info
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == metaDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".tmp-") || !strings.HasPrefix(rel, prefix) {
			return nil
		}
		clean, name, metaName, err := s.file(rel)
		if err != nil {
			return nil
		}
		info, err := s.stat(clean, name, metaName)
		if err != nil {
			return err
		}
		out = append(out, *info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

var _ Store = (*FS)(nil)
