package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"zudlik/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
)

// FileServiceConfig tunes avatar uploads.
type FileServiceConfig struct {
	UploadTimeout     time.Duration `json:"upload_timeout"`
	MaxRetries        uint64        `json:"max_retries"`
	AllowedExtensions []string      `json:"allowed_extensions"`
}

// DefaultFileServiceConfig returns production defaults.
func DefaultFileServiceConfig() *FileServiceConfig {
	return &FileServiceConfig{
		UploadTimeout:     30 * time.Second,
		MaxRetries:        3,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
	}
}

type fileService struct {
	cld    *cloudinary.Cloudinary
	folder string
	config *FileServiceConfig
	logger *zap.Logger
}

// NewFileService creates a Cloudinary-backed file store.
func NewFileService(cloudinaryConfig config.CloudinaryConfig, cfg *FileServiceConfig, logger *zap.Logger) (FileService, error) {
	if cfg == nil {
		cfg = DefaultFileServiceConfig()
	}
	cld, err := cloudinary.NewFromParams(
		cloudinaryConfig.CloudName,
		cloudinaryConfig.APIKey,
		cloudinaryConfig.APISecret,
	)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &fileService{
		cld:    cld,
		folder: cloudinaryConfig.Folder,
		config: cfg,
		logger: logger,
	}, nil
}

func (s *fileService) Upload(ctx context.Context, file io.Reader, filename string) (string, error) {
	if err := s.validateExtension(filename); err != nil {
		return "", err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.config.UploadTimeout)
	defer cancel()

	params := uploader.UploadParams{
		Folder:         s.folder,
		ResourceType:   "image",
		UseFilename:    boolPtr(false),
		UniqueFilename: boolPtr(true),
	}

	var url string
	operation := func() error {
		// Multipart uploads arrive as seekers; rewind so a retry does not
		// send a drained reader.
		if seeker, ok := file.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(err)
			}
		}
		result, err := s.cld.Upload.Upload(uploadCtx, file, params)
		if err != nil {
			return err
		}
		if result.Error.Message != "" {
			return backoff.Permanent(fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message))
		}
		url = result.SecureURL
		return nil
	}

	notify := func(err error, d time.Duration) {
		s.logger.Warn("upload failed, retrying",
			zap.String("filename", filename),
			zap.Duration("backoff", d),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.config.MaxRetries), uploadCtx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}

	s.logger.Info("file uploaded",
		zap.String("filename", filename),
		zap.String("url", url),
	)
	return url, nil
}

func (s *fileService) validateExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.config.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return NewValidationError(fmt.Sprintf("file type %q is not allowed", ext), nil)
}

func boolPtr(b bool) *bool { return &b }
