package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vidgenius/internal/metrics"
	"vidgenius/internal/models"
)

const (
	DefaultTempFileTTL             = 30 * time.Minute
	DefaultTempFileCleanupInterval = 5 * time.Minute
)

var (
	ErrUnsupportedType = errors.New("unsupported file type: expected mp4, mov or avi")
	ErrTooLarge        = errors.New("file too large")
	ErrNotFound        = errors.New("media not found")
)

var allowedExtensions = map[string]string{
	"mp4": "video/mp4",
	"mov": "video/quicktime",
	"avi": "video/x-msvideo",
}

// AllowedExtensions lists the accepted extensions in display order.
func AllowedExtensions() []string {
	return []string{"mp4", "mov", "avi"}
}

// Extension returns the normalised extension of name and its MIME type.
func Extension(name string) (string, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	mimeType, ok := allowedExtensions[ext]
	if !ok {
		return "", "", ErrUnsupportedType
	}
	return ext, mimeType, nil
}

// Store keeps uploaded videos in a scratch directory until they are released.
type Store struct {
	dir      string
	ttl      time.Duration
	maxBytes int64
	logger   *zap.Logger
	metrics  *metrics.Collector
	now      func() time.Time

	mu    sync.Mutex
	items map[string]*models.TempMedia
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates dir if needed. maxBytes <= 0 disables the size check.
func NewStore(dir string, ttl time.Duration, maxBytes int64, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if ttl <= 0 {
		ttl = DefaultTempFileTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	s := &Store{
		dir:      dir,
		ttl:      ttl,
		maxBytes: maxBytes,
		logger:   zap.NewNop(),
		now:      time.Now,
		items:    make(map[string]*models.TempMedia),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "media"))
	return s, nil
}

// Save streams r into a uniquely named temp file and registers it.
func (s *Store) Save(fileName string, r io.Reader) (*models.TempMedia, error) {
	ext, mimeType, err := Extension(fileName)
	if err != nil {
		s.metrics.RecordUpload("other", "rejected")
		return nil, err
	}

	f, err := os.CreateTemp(s.dir, "vidgenius-*."+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	written, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && written > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = RemoveFile(path)
		s.metrics.RecordUpload(ext, "failed")
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	now := s.now()
	m := &models.TempMedia{
		ID:        uuid.NewString(),
		FileName:  filepath.Base(fileName),
		Ext:       ext,
		MIMEType:  mimeType,
		Path:      path,
		Size:      written,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.items[m.ID] = m
	s.mu.Unlock()

	s.metrics.RecordUpload(ext, "ok")
	s.logger.Debug("media stored",
		zap.String("media_id", m.ID),
		zap.String("path", path),
		zap.Int64("size", written))
	return m, nil
}

// Get returns a copy of the registered upload.
func (s *Store) Get(id string) (*models.TempMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *m
	return &c, nil
}

// Release unregisters the upload and deletes its file. Only the first call
// for an id touches the disk; later calls and unknown ids are no-ops.
func (s *Store) Release(id string) error {
	return s.release(id, "deleted")
}

func (s *Store) release(id, reason string) error {
	m, ok := s.take(id)
	if !ok {
		return nil
	}
	return s.remove(m, reason)
}

// Claim hands the upload over to the caller: it leaves the registry, so
// Release, the expiry cleaner and later claims no longer see it. The caller
// must Discard it.
func (s *Store) Claim(id string) (*models.TempMedia, error) {
	m, ok := s.take(id)
	if !ok {
		return nil, ErrNotFound
	}
	s.logger.Debug("media claimed", zap.String("media_id", id))
	return m, nil
}

// Discard deletes the file of a claimed upload.
func (s *Store) Discard(m *models.TempMedia) error {
	if m == nil {
		return nil
	}
	return s.remove(m, "analysis")
}

func (s *Store) take(id string) (*models.TempMedia, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	return m, ok
}

func (s *Store) remove(m *models.TempMedia, reason string) error {
	if err := RemoveFile(m.Path); err != nil {
		s.metrics.RecordCleanup(reason, "error")
		s.logger.Warn("remove temp file failed", zap.String("path", m.Path), zap.Error(err))
		return err
	}
	s.metrics.RecordCleanup(reason, "removed")
	s.logger.Debug("media released", zap.String("media_id", m.ID), zap.String("reason", reason))
	return nil
}

// MaxBytes is the upload size ceiling; zero or less means unlimited.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Len reports the number of registered uploads.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// RemoveFile deletes path, treating an already missing file as success.
func RemoveFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// StartTempFileCleaner releases uploads that were never analysed once they expire.
func (s *Store) StartTempFileCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTempFileCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Store) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.cleanupExpired(); n > 0 {
				s.logger.Info("expired uploads released", zap.Int("count", n))
			}
		}
	}
}

func (s *Store) cleanupExpired() int {
	now := s.now()
	s.mu.Lock()
	var expired []string
	for id, m := range s.items {
		if m.Expired(now) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	released := 0
	for _, id := range expired {
		if err := s.release(id, "expired"); err == nil {
			released++
		}
	}
	return released
}
