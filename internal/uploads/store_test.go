package uploads

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"go.uber.org/zap"
)

const onePixelPNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mP8/x8AAusB9Y9Zz7cAAAAASUVORK5CYII="

var storedNamePattern = regexp.MustCompile(`^[0-9a-f]{32}\.[a-z0-9]+$`)

func onePixelPNG(t *testing.T) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(onePixelPNGBase64)
	if err != nil {
		t.Fatalf("decode png fixture: %v", err)
	}
	return data
}

func newTestStore(t *testing.T, maxBytes int64) (*Store, string) {
	t.Helper()
	directory := filepath.Join(t.TempDir(), "images")
	imageStore, err := NewStore(Config{Directory: directory, MaxBytes: maxBytes, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return imageStore, directory
}

func TestSaveWritesRandomlyNamedFile(t *testing.T) {
	imageStore, directory := newTestStore(t, 0)
	payload := onePixelPNG(t)

	upload, err := imageStore.Save(context.Background(), "Pikachu.PNG", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !storedNamePattern.MatchString(upload.Name) || !strings.HasSuffix(upload.Name, ".png") {
		t.Fatalf("unexpected stored name %q", upload.Name)
	}
	if upload.URL != URLPrefix+upload.Name {
		t.Fatalf("unexpected url %q", upload.URL)
	}
	written, err := os.ReadFile(filepath.Join(directory, upload.Name))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(written, payload) {
		t.Fatalf("stored bytes differ from upload")
	}

	again, err := imageStore.Save(context.Background(), "Pikachu.PNG", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if again.Name == upload.Name {
		t.Fatalf("expected distinct names for repeated uploads")
	}
}

func TestSaveDefaultsExtension(t *testing.T) {
	imageStore, _ := newTestStore(t, 0)
	for _, originalName := range []string{"", "blob", "weird.p/ng", "bad.ext!"} {
		upload, err := imageStore.Save(context.Background(), originalName, bytes.NewReader(onePixelPNG(t)))
		if err != nil {
			t.Fatalf("save %q failed: %v", originalName, err)
		}
		if !strings.HasSuffix(upload.Name, ".png") {
			t.Fatalf("expected .png fallback for %q, got %q", originalName, upload.Name)
		}
	}
}

func TestSaveRejectsInvalidPayloads(t *testing.T) {
	imageStore, directory := newTestStore(t, 16)
	ctx := context.Background()

	if _, err := imageStore.Save(ctx, "empty.png", bytes.NewReader(nil)); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty upload, got %v", err)
	}
	if _, err := imageStore.Save(ctx, "notes.png", strings.NewReader("plain text")); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for non-image, got %v", err)
	}
	if _, err := imageStore.Save(ctx, "big.png", bytes.NewReader(onePixelPNG(t))); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for oversize upload, got %v", err)
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("read directory: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected nothing written, found %d entries", len(entries))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestSaveReportsReadFailure(t *testing.T) {
	imageStore, _ := newTestStore(t, 0)
	if _, err := imageStore.Save(context.Background(), "x.png", failingReader{}); !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected upload failure, got %v", err)
	}
}

func TestOpenServesStoredImage(t *testing.T) {
	imageStore, _ := newTestStore(t, 0)
	upload, err := imageStore.Save(context.Background(), "a.png", bytes.NewReader(onePixelPNG(t)))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reader, contentType, err := imageStore.Open(upload.Name)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer reader.Close()
	if contentType != "image/png" {
		t.Fatalf("expected image/png, got %q", contentType)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data, onePixelPNG(t)) {
		t.Fatalf("served bytes differ from stored bytes")
	}
}

func TestOpenRejectsTraversalAndMissing(t *testing.T) {
	imageStore, _ := newTestStore(t, 0)

	for _, name := range []string{"", "..", "../secret.png", "nested/a.png", `..\a.png`, ".hidden"} {
		if _, _, err := imageStore.Open(name); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", name, err)
		}
	}
	if _, _, err := imageStore.Open("missing.png"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPlaceholderSVGLabelsAndEscapes(t *testing.T) {
	svg := string(PlaceholderSVG("pikachu.png"))
	if !strings.Contains(svg, ">pikachu</text>") {
		t.Fatalf("expected label without extension, got %s", svg)
	}
	if !strings.Contains(svg, `offset="0%"`) {
		t.Fatalf("expected literal percent signs in gradient stops")
	}

	escaped := string(PlaceholderSVG("<script>.png"))
	if strings.Contains(escaped, "<script>") || !strings.Contains(escaped, "&lt;script&gt;") {
		t.Fatalf("expected escaped label, got %s", escaped)
	}

	if !strings.Contains(string(PlaceholderSVG("")), ">image</text>") {
		t.Fatalf("expected fallback label for empty name")
	}
}

func TestNewStoreRequiresDirectory(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
