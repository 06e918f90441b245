// Package media coordinates moving media blobs between the platform and the
// backup store.
package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/waverelay/waverelay/internal/logger"
	"github.com/waverelay/waverelay/internal/storage"
	"github.com/waverelay/waverelay/internal/whatsapp"
)

type platformMedia interface {
	UploadMedia(ctx context.Context, filename, mimeType string, content io.Reader) (whatsapp.UploadResult, error)
	MediaURL(ctx context.Context, mediaID string) (whatsapp.MediaInfo, error)
	DownloadMedia(ctx context.Context, mediaURL string) (io.ReadCloser, error)
}

// Coordinator uploads outgoing media to the platform and mirrors a copy into
// the backup store. The platform leg is mandatory, the backup leg is best
// effort.
type Coordinator struct {
	platform platformMedia
	backup   storage.Provider
	log      *slog.Logger
}

func NewCoordinator(platform platformMedia, backup storage.Provider) *Coordinator {
	return &Coordinator{
		platform: platform,
		backup:   backup,
		log:      logger.L.With(slog.String("service", "media")),
	}
}

// UploadInput is one outgoing media blob.
type UploadInput struct {
	Filename string
	MimeType string
	Content  []byte
}

// UploadResult carries the platform id plus whatever the backup leg managed
// to produce. BackupKey and BackupURL stay nil when the backup failed.
type UploadResult struct {
	MediaID   string
	BackupKey *string
	BackupURL *string
	Size      int64
}

// Upload runs the platform upload and the backup write concurrently and
// waits for both. A backup failure is logged and nulled out, never fatal. A
// platform failure fails the whole operation regardless of the backup
// outcome.
func (c *Coordinator) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	key := backupKey(in.Filename, in.Content)

	var (
		wg        sync.WaitGroup
		uploadRes whatsapp.UploadResult
		uploadErr error
		backupErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		uploadRes, uploadErr = c.platform.UploadMedia(ctx, in.Filename, in.MimeType, bytes.NewReader(in.Content))
	}()
	go func() {
		defer wg.Done()
		backupErr = c.backup.Put(ctx, key, bytes.NewReader(in.Content))
	}()
	wg.Wait()

	if backupErr != nil {
		c.log.Error("media backup failed",
			slog.String("key", key),
			slog.Any("error", backupErr))
	}
	if uploadErr != nil {
		return UploadResult{}, fmt.Errorf("platform upload: %w", uploadErr)
	}

	res := UploadResult{
		MediaID: uploadRes.MediaID,
		Size:    int64(len(in.Content)),
	}
	if backupErr == nil {
		res.BackupKey = &key
		if url := c.backup.PublicURL(key); url != "" {
			res.BackupURL = &url
		}
	}
	return res, nil
}

// BackupResult describes a mirrored inbound blob.
type BackupResult struct {
	Key      string
	URL      *string
	Size     int64
	MimeType string
}

// BackupInbound resolves an inbound media id, downloads the blob and mirrors
// it into the backup store. Callers treat failure as non-fatal, the message
// stays valid with only its platform reference.
func (c *Coordinator) BackupInbound(ctx context.Context, mediaID, filename string) (BackupResult, error) {
	info, err := c.platform.MediaURL(ctx, mediaID)
	if err != nil {
		return BackupResult{}, fmt.Errorf("resolve media %s: %w", mediaID, err)
	}
	rc, err := c.platform.DownloadMedia(ctx, info.URL)
	if err != nil {
		return BackupResult{}, fmt.Errorf("download media %s: %w", mediaID, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return BackupResult{}, fmt.Errorf("read media %s: %w", mediaID, err)
	}

	key := backupKey(filename, content)
	if err := c.backup.Put(ctx, key, bytes.NewReader(content)); err != nil {
		return BackupResult{}, fmt.Errorf("backup media %s: %w", mediaID, err)
	}

	res := BackupResult{
		Key:      key,
		Size:     int64(len(content)),
		MimeType: info.MimeType,
	}
	if url := c.backup.PublicURL(key); url != "" {
		res.URL = &url
	}
	return res, nil
}

// backupKey derives a content-addressed key. The hash prefix keeps directory
// fanout flat.
func backupKey(filename string, content []byte) string {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	ext := filepath.Ext(filename)
	return hash[:2] + "/" + hash + ext
}
