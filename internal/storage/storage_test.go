package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedImage(t *testing.T) {
	assert.True(t, AllowedImage("photo.PNG"))
	assert.True(t, AllowedImage("a.b.jpeg"))
	assert.True(t, AllowedImage("x.webp"))
	assert.False(t, AllowedImage("notes.txt"))
	assert.False(t, AllowedImage("noext"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFor("a.JPG"))
	assert.Equal(t, "image/gif", ContentTypeFor("a.gif"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("a.exe"))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "my_photo.png", SanitizeFileName("my photo.png"))
	assert.Equal(t, "passwd", SanitizeFileName("../../etc/passwd"))
	assert.Equal(t, "evil.png", SanitizeFileName(`C:\temp\evil.png`))
	assert.Equal(t, "file", SanitizeFileName("///"))
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC)
	assert.Equal(t, "20260304_050607_123456_shoe.png", ObjectKey(at, "shoe.png"))
}

func TestPublicURLRoundTrip(t *testing.T) {
	u := PublicURL("https://cdn.example.com/", "product-images", "20260304_050607_123456_shoe.png")
	assert.Equal(t, "https://cdn.example.com/product-images/20260304_050607_123456_shoe.png", u)
	assert.Equal(t, "20260304_050607_123456_shoe.png", KeyFromURL("product-images", u))
	assert.Equal(t, "", KeyFromURL("other", u))
}

func TestStubObjectStorage(t *testing.T) {
	ctx := context.Background()
	s := NewStubObjectStorage()
	s.FailKeys = []string{"broken"}

	u, err := s.Upload(ctx, "", "bucket", "ok.png", []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/bucket/ok.png", u)
	assert.Equal(t, 1, s.Len())

	_, err = s.Upload(ctx, "", "bucket", "broken.png", []byte("img"), "image/png")
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, "", "bucket", "ok.png"))
	assert.Equal(t, 0, s.Len())
}
