package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flashshare/internal/pkg/metrics"
)

// Service is the file lifecycle engine. It is the only component that
// mutates a record's download counter or destroys a record+blob pair.
type Service struct {
	repo   Repository
	blobs  *BlobStore
	codes  *codeGenerator
	limits LimitsProvider
	logger *zap.Logger
}

func NewService(repo Repository, blobs *BlobStore, limits LimitsProvider, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		blobs:  blobs,
		codes:  newCodeGenerator(repo),
		limits: limits,
		logger: logger,
	}
}

// UploadRequest carries one upload. TTL and MaxDownloads may be zero,
// in which case the configured defaults apply.
type UploadRequest struct {
	OriginalName string
	Content      io.Reader
	Size         int64
	TTL          time.Duration
	MaxDownloads int
}

// Ticket is what the uploader gets back. The internal record ID never
// leaves the service.
type Ticket struct {
	OriginalName string
	ExtractCode  string
	DeleteCode   string
	ExpiresAt    time.Time
	MaxDownloads int
}

// Upload validates the request against the current limits, writes the
// blob, then inserts the record. If the insert fails the blob is
// removed again so no orphan survives a failed call.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*Ticket, error) {
	limits, err := s.limits.ShareLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("load share limits: %w", err)
	}

	if req.Size <= 0 {
		return nil, ErrEmptyFile
	}
	if req.Size > limits.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if !limits.ExtensionAllowed(req.OriginalName) {
		return nil, ErrExtensionNotAllowed
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = limits.DefaultTTL
	}
	if ttl < time.Hour || ttl > limits.MaxTTL {
		return nil, ErrInvalidTTL
	}

	maxDownloads := req.MaxDownloads
	if maxDownloads == 0 {
		maxDownloads = limits.DefaultMaxDownloads
	}
	if maxDownloads < 1 || maxDownloads > limits.MaxDownloadsLimit {
		return nil, ErrInvalidMaxDownloads
	}

	extractCode, deleteCode, err := s.codes.NewCodes(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	written, err := s.blobs.Put(id, io.LimitReader(req.Content, limits.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}
	// The declared size is what the handler saw; the bytes on disk are
	// what counts.
	if written == 0 || written > limits.MaxUploadBytes {
		_ = s.blobs.Remove(id)
		if written == 0 {
			return nil, ErrEmptyFile
		}
		return nil, ErrFileTooLarge
	}

	now := time.Now()
	rec := &FileRecord{
		ID:           id,
		OriginalName: req.OriginalName,
		ExtractCode:  extractCode,
		DeleteCode:   deleteCode,
		UploadedAt:   now,
		ExpiresAt:    now.Add(ttl),
		MaxDownloads: maxDownloads,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if removeErr := s.blobs.Remove(id); removeErr != nil && !errors.Is(removeErr, ErrNotFound) {
			s.logger.Error("rollback blob after failed insert",
				zap.String("id", id), zap.Error(removeErr))
		}
		return nil, fmt.Errorf("save share record: %w", err)
	}

	metrics.UploadsTotal.Inc()
	s.logger.Info("file shared",
		zap.String("id", id),
		zap.String("name", req.OriginalName),
		zap.Int64("size", written),
		zap.Time("expires_at", rec.ExpiresAt),
		zap.Int("max_downloads", maxDownloads),
	)

	return &Ticket{
		OriginalName: req.OriginalName,
		ExtractCode:  extractCode,
		DeleteCode:   deleteCode,
		ExpiresAt:    rec.ExpiresAt,
		MaxDownloads: maxDownloads,
	}, nil
}

// ResolutionKind tags what a submitted code turned out to be.
type ResolutionKind int

const (
	ResolveInvalid ResolutionKind = iota
	ResolveExtract
	ResolveDelete
)

type Resolution struct {
	Kind   ResolutionKind
	Record *FileRecord
}

// Resolve classifies a code from the shared namespace: delete codes are
// checked first, then extract codes. The two generation procedures make
// a cross-match practically impossible, which is what lets one endpoint
// serve both actions.
func (s *Service) Resolve(ctx context.Context, code string) (Resolution, error) {
	rec, err := s.repo.GetByDeleteCode(ctx, code)
	if err == nil {
		return Resolution{Kind: ResolveDelete, Record: rec}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Resolution{}, err
	}

	rec, err = s.repo.GetByExtractCode(ctx, code)
	if err == nil {
		return Resolution{Kind: ResolveExtract, Record: rec}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Resolution{}, err
	}

	return Resolution{Kind: ResolveInvalid}, nil
}

// DeleteByCode revokes a share early. A missing blob is logged and
// tolerated; the record is removed either way.
func (s *Service) DeleteByCode(ctx context.Context, code string) error {
	rec, err := s.repo.GetByDeleteCode(ctx, code)
	if err != nil {
		return err
	}
	s.purge(ctx, rec, metrics.ReasonDeleted)
	s.logger.Info("file revoked by owner",
		zap.String("id", rec.ID), zap.String("name", rec.OriginalName))
	return nil
}

// DownloadResult streams one download. The caller must close Content.
type DownloadResult struct {
	OriginalName string
	Size         int64
	Remaining    int
	Content      io.ReadCloser
}

// Download serves one download for an extract code. The claim on the
// counter happens before the stream is opened; a client that drops the
// connection mid-transfer has still spent its slot.
func (s *Service) Download(ctx context.Context, extractCode string) (*DownloadResult, error) {
	rec, err := s.checkedLookup(ctx, extractCode)
	if err != nil {
		return nil, err
	}

	newCount, err := s.repo.ClaimDownload(ctx, rec.ID)
	if err != nil {
		// ErrExhausted here means a concurrent caller took the last
		// slot after our pre-check; the winner still gets served.
		return nil, err
	}

	content, err := s.blobs.Open(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("open content: %w", err)
	}
	size, err := s.blobs.Size(rec.ID)
	if err != nil {
		_ = content.Close()
		return nil, fmt.Errorf("stat content: %w", err)
	}

	metrics.DownloadsTotal.Inc()
	s.logger.Info("download served",
		zap.String("id", rec.ID),
		zap.String("name", rec.OriginalName),
		zap.Int("download", newCount),
		zap.Int("max_downloads", rec.MaxDownloads),
	)

	return &DownloadResult{
		OriginalName: rec.OriginalName,
		Size:         size,
		Remaining:    rec.MaxDownloads - newCount,
		Content:      content,
	}, nil
}

// Info returns the display name for a live extract code without
// consuming a download slot.
func (s *Service) Info(ctx context.Context, extractCode string) (string, error) {
	rec, err := s.checkedLookup(ctx, extractCode)
	if err != nil {
		return "", err
	}
	return rec.OriginalName, nil
}

// checkedLookup resolves an extract code and enforces the lifecycle
// gates shared by Download and Info: expiry (with lazy purge), the
// exhaustion pre-check, and blob existence (purging dangling records).
func (s *Service) checkedLookup(ctx context.Context, extractCode string) (*FileRecord, error) {
	rec, err := s.repo.GetByExtractCode(ctx, extractCode)
	if err != nil {
		return nil, err
	}

	if rec.Expired(time.Now()) {
		s.purge(ctx, rec, metrics.ReasonExpired)
		return nil, ErrExpired
	}

	// Fast pre-check only; ClaimDownload is the point of truth.
	if rec.Exhausted() {
		return nil, ErrExhausted
	}

	exists, err := s.blobs.Exists(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("check content: %w", err)
	}
	if !exists {
		s.logger.Warn("record without content, purging",
			zap.String("id", rec.ID), zap.String("name", rec.OriginalName))
		if err := s.repo.Delete(ctx, rec.ID); err != nil {
			s.logger.Error("purge dangling record", zap.String("id", rec.ID), zap.Error(err))
		}
		metrics.ReclaimedTotal.WithLabelValues(metrics.ReasonDangling).Inc()
		return nil, ErrNotFound
	}

	return rec, nil
}

// purge removes blob then record. Destruction is never allowed to leave
// an observable record pointing at a removed blob.
func (s *Service) purge(ctx context.Context, rec *FileRecord, reason string) {
	if err := s.blobs.Remove(rec.ID); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Error("remove blob", zap.String("id", rec.ID), zap.Error(err))
		return
	}
	if err := s.repo.Delete(ctx, rec.ID); err != nil {
		s.logger.Error("remove record", zap.String("id", rec.ID), zap.Error(err))
		return
	}
	metrics.ReclaimedTotal.WithLabelValues(reason).Inc()
}
