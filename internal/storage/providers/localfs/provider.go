// Package localfs implements storage.Provider on a local directory tree.
// Keys map to <root>/media/<key> with traversal outside the root rejected.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Provider stores media backups on the local filesystem.
type Provider struct {
	root    string
	baseURL string
}

// New creates a filesystem provider rooted at root. baseURL, when set, is
// prepended to keys by PublicURL.
func New(root, baseURL string) (*Provider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Provider{root: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes the blob under the key, creating parent directories as needed.
func (p *Provider) Put(_ context.Context, key string, reader io.Reader) error {
	dest, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Open reads a stored blob.
func (p *Provider) Open(_ context.Context, key string) (io.ReadCloser, error) {
	dest, err := p.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(dest)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete removes a stored blob. Missing files are not an error.
func (p *Provider) Delete(_ context.Context, key string) error {
	dest, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// PublicURL joins the configured base URL with the key. Keys are generated
// internally from hashes so no escaping is needed.
func (p *Provider) PublicURL(key string) string {
	if p.baseURL == "" {
		return ""
	}
	return p.baseURL + "/" + key
}

func (p *Provider) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("absolute key is forbidden: %s", key)
	}
	if strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("path traversal is forbidden: %s", key)
	}
	if strings.TrimSpace(clean) == "" || clean == "." {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	joined := filepath.Join(p.root, "media", clean)
	if !strings.HasPrefix(joined, p.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes storage root: %s", key)
	}
	return joined, nil
}
