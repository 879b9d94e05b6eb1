package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMaxBytes bounds a single upload when no limit is configured.
	DefaultMaxBytes int64 = 10 << 20
	// URLPrefix is the public path images are served under.
	URLPrefix = "/images/"

	defaultExtension = ".png"

	opStoreNew = "uploads.store.new"
	opSave     = "uploads.save"
	opOpen     = "uploads.open"

	reasonMissingDirectory = "missing_directory"
	reasonEmptyFile        = "empty_file"
	reasonTooLarge         = "too_large"
	reasonUnsupportedType  = "unsupported_type"
	reasonInvalidName      = "invalid_name"
	reasonImageNotFound    = "image_not_found"
	reasonReadFailed       = "read_failed"
	reasonWriteFailed      = "write_failed"
)

// ErrUploadFailed indicates the file could not be read or persisted.
var ErrUploadFailed = errors.New("uploads: upload failed")

var (
	errMissingDirectory = errors.New("image directory is required")
	extensionPattern    = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
	noOpLogger          = zap.NewNop()
)

// Config describes where images live and how large they may be.
type Config struct {
	Directory string
	MaxBytes  int64
	Logger    *zap.Logger
}

// Upload is the public reference to a stored image.
type Upload struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Store saves uploaded images under a flat directory with random names.
type Store struct {
	directory string
	maxBytes  int64
	logger    *zap.Logger
}

// NewStore ensures the image directory exists.
func NewStore(cfg Config) (*Store, error) {
	directory := strings.TrimSpace(cfg.Directory)
	if directory == "" {
		return nil, store.NewServiceError(opStoreNew, reasonMissingDirectory, errMissingDirectory)
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, store.NewServiceError(opStoreNew, reasonWriteFailed, fmt.Errorf("%w: %v", ErrUploadFailed, err))
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{directory: directory, maxBytes: maxBytes, logger: logger}, nil
}

// Save writes the image read from body and returns its public URL.
func (s *Store) Save(ctx context.Context, originalName string, body io.Reader) (Upload, error) {
	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		s.logError(opSave, reasonReadFailed, err)
		return Upload{}, store.NewServiceError(opSave, reasonReadFailed, fmt.Errorf("%w: %v", ErrUploadFailed, err))
	}
	if len(data) == 0 {
		return Upload{}, store.NewServiceError(opSave, reasonEmptyFile, store.ErrInvalidInput)
	}
	if int64(len(data)) > s.maxBytes {
		return Upload{}, store.NewServiceError(opSave, reasonTooLarge,
			fmt.Errorf("%w: exceeds %d bytes", store.ErrInvalidInput, s.maxBytes))
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return Upload{}, store.NewServiceError(opSave, reasonUnsupportedType,
			fmt.Errorf("%w: %s", store.ErrInvalidInput, detected.String()))
	}
	if err := ctx.Err(); err != nil {
		return Upload{}, err
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + fileExtension(originalName)
	if err := s.writeFile(name, data); err != nil {
		s.logError(opSave, reasonWriteFailed, err, zap.String("name", name))
		return Upload{}, store.NewServiceError(opSave, reasonWriteFailed, fmt.Errorf("%w: %v", ErrUploadFailed, err))
	}

	s.logger.Info("image stored",
		zap.String("name", name),
		zap.String("content_type", detected.String()),
		zap.Int("bytes", len(data)))
	return Upload{URL: URLPrefix + name, Name: name}, nil
}

// Open returns the stored image and its detected content type.
func (s *Store) Open(name string) (io.ReadCloser, string, error) {
	if !validName(name) {
		return nil, "", store.NewServiceError(opOpen, reasonInvalidName, store.ErrInvalidInput)
	}
	path := filepath.Join(s.directory, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return nil, "", store.NewServiceError(opOpen, reasonImageNotFound, store.ErrNotFound)
	}
	if err != nil {
		s.logError(opOpen, reasonReadFailed, err, zap.String("name", name))
		return nil, "", store.NewServiceError(opOpen, reasonReadFailed, err)
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		s.logError(opOpen, reasonReadFailed, err, zap.String("name", name))
		return nil, "", store.NewServiceError(opOpen, reasonReadFailed, err)
	}
	file, err := os.Open(path)
	if err != nil {
		s.logError(opOpen, reasonReadFailed, err, zap.String("name", name))
		return nil, "", store.NewServiceError(opOpen, reasonReadFailed, err)
	}
	return file, detected.String(), nil
}

func (s *Store) writeFile(name string, data []byte) error {
	temp, err := os.CreateTemp(s.directory, ".upload-*")
	if err != nil {
		return err
	}
	tempName := temp.Name()
	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempName)
		return err
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempName)
		return err
	}
	if err := os.Rename(tempName, filepath.Join(s.directory, name)); err != nil {
		_ = os.Remove(tempName)
		return err
	}
	return nil
}

// fileExtension keeps the caller's lower-cased extension when it is plain
// alphanumeric and falls back to .png otherwise.
func fileExtension(originalName string) string {
	extension := strings.ToLower(filepath.Ext(strings.TrimSpace(originalName)))
	if !extensionPattern.MatchString(extension) {
		return defaultExtension
	}
	return extension
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	logger := s.logger
	if logger == nil {
		logger = noOpLogger
	}
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger.Error("uploads store error", attrs...)
}
