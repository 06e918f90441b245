package media

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waverelay/waverelay/internal/whatsapp"
)

type fakePlatform struct {
	uploadRes whatsapp.UploadResult
	uploadErr error
	mediaInfo whatsapp.MediaInfo
	mediaErr  error
	content   string
	started   chan struct{}
	release   chan struct{}
}

func (f *fakePlatform) UploadMedia(ctx context.Context, filename, mimeType string, content io.Reader) (whatsapp.UploadResult, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return f.uploadRes, f.uploadErr
}

func (f *fakePlatform) MediaURL(ctx context.Context, mediaID string) (whatsapp.MediaInfo, error) {
	return f.mediaInfo, f.mediaErr
}

func (f *fakePlatform) DownloadMedia(ctx context.Context, mediaURL string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte(f.content))), nil
}

type fakeStore struct {
	mu      sync.Mutex
	puts    map[string][]byte
	putErr  error
	baseURL string
	started chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{puts: map[string][]byte{}}
}

func (f *fakeStore) Put(ctx context.Context, key string, reader io.Reader) error {
	if f.started != nil {
		close(f.started)
	}
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[key] = data
	return nil
}

func (f *fakeStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(f.puts[key])), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeStore) PublicURL(key string) string {
	if f.baseURL == "" {
		return ""
	}
	return f.baseURL + "/" + key
}

func TestUploadBothLegsSucceed(t *testing.T) {
	platform := &fakePlatform{uploadRes: whatsapp.UploadResult{MediaID: "media-1"}}
	store := newFakeStore()
	store.baseURL = "https://backup.example"

	c := NewCoordinator(platform, store)
	res, err := c.Upload(context.Background(), UploadInput{
		Filename: "photo.jpg",
		MimeType: "image/jpeg",
		Content:  []byte("jpegbytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "media-1", res.MediaID)
	require.NotNil(t, res.BackupKey)
	require.NotNil(t, res.BackupURL)
	assert.Equal(t, int64(9), res.Size)
	assert.Contains(t, *res.BackupURL, *res.BackupKey)
	assert.Equal(t, []byte("jpegbytes"), store.puts[*res.BackupKey])
}

func TestUploadLegsRunConcurrently(t *testing.T) {
	platform := &fakePlatform{
		uploadRes: whatsapp.UploadResult{MediaID: "media-1"},
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	store := newFakeStore()
	store.started = make(chan struct{})

	c := NewCoordinator(platform, store)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Upload(context.Background(), UploadInput{Filename: "a.bin", Content: []byte("x")})
	}()

	// both legs must start while the platform leg is still blocked
	<-platform.started
	<-store.started
	close(platform.release)
	<-done
}

func TestUploadBackupFailureIsNonFatal(t *testing.T) {
	platform := &fakePlatform{uploadRes: whatsapp.UploadResult{MediaID: "media-1"}}
	store := newFakeStore()
	store.putErr = assert.AnError

	c := NewCoordinator(platform, store)
	res, err := c.Upload(context.Background(), UploadInput{Filename: "a.pdf", Content: []byte("pdf")})
	require.NoError(t, err)
	assert.Equal(t, "media-1", res.MediaID)
	assert.Nil(t, res.BackupKey)
	assert.Nil(t, res.BackupURL)
}

func TestUploadPlatformFailureIsFatal(t *testing.T) {
	platform := &fakePlatform{uploadErr: assert.AnError}
	store := newFakeStore()

	c := NewCoordinator(platform, store)
	_, err := c.Upload(context.Background(), UploadInput{Filename: "a.pdf", Content: []byte("pdf")})
	require.Error(t, err)
	// the backup leg still ran, failure of the platform leg does not undo it
	assert.Len(t, store.puts, 1)
}

func TestBackupInbound(t *testing.T) {
	platform := &fakePlatform{
		mediaInfo: whatsapp.MediaInfo{URL: "https://lookaside.example/v/m1", MimeType: "image/png"},
		content:   "pngbytes",
	}
	store := newFakeStore()
	store.baseURL = "https://backup.example"

	c := NewCoordinator(platform, store)
	res, err := c.BackupInbound(context.Background(), "m1", "pic.png")
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.Size)
	assert.Equal(t, "image/png", res.MimeType)
	require.NotNil(t, res.URL)
	assert.Equal(t, []byte("pngbytes"), store.puts[res.Key])
}

func TestBackupInboundResolveFailure(t *testing.T) {
	platform := &fakePlatform{mediaErr: assert.AnError}
	c := NewCoordinator(platform, newFakeStore())

	_, err := c.BackupInbound(context.Background(), "m1", "pic.png")
	require.Error(t, err)
}
