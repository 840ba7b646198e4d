package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flashshare/internal/domain/settings"
	"flashshare/internal/domain/share"
	jwtsvc "flashshare/internal/pkg/jwt"
)

const roleAdmin = "admin"

var ErrBadPassword = errors.New("wrong password")

// Service backs the admin panel: login, configuration, statistics and
// the destructive maintenance actions.
type Service struct {
	settings  *settings.Service
	shares    share.Repository
	blobs     *share.BlobStore
	reclaimer *share.Reclaimer
	jwt       *jwtsvc.Service
	logger    *zap.Logger
}

func NewService(
	settingsSvc *settings.Service,
	shares share.Repository,
	blobs *share.BlobStore,
	reclaimer *share.Reclaimer,
	jwt *jwtsvc.Service,
	logger *zap.Logger,
) *Service {
	return &Service{
		settings:  settingsSvc,
		shares:    shares,
		blobs:     blobs,
		reclaimer: reclaimer,
		jwt:       jwt,
		logger:    logger,
	}
}

// Login checks the password and issues a session token.
func (s *Service) Login(ctx context.Context, password string) (string, error) {
	if !s.settings.VerifyAdminPassword(ctx, password) {
		return "", ErrBadPassword
	}
	token, err := s.jwt.GenerateToken(roleAdmin)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	s.logger.Info("admin logged in")
	return token, nil
}

// Stats summarises the current state of the stores.
type Stats struct {
	TotalFiles     int   `json:"total_files"`
	ActiveFiles    int   `json:"active_files"`
	ExpiredFiles   int   `json:"expired_files"`
	ExhaustedFiles int   `json:"exhausted_files"`
	TotalBytes     int64 `json:"total_bytes"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	recs, err := s.shares.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	stats := &Stats{TotalFiles: len(recs)}
	now := time.Now()
	for _, rec := range recs {
		switch {
		case rec.Expired(now):
			stats.ExpiredFiles++
		case rec.Exhausted():
			stats.ExhaustedFiles++
		default:
			stats.ActiveFiles++
		}
	}

	stats.TotalBytes, err = s.blobs.TotalBytes()
	if err != nil {
		return nil, fmt.Errorf("measure blob storage: %w", err)
	}
	return stats, nil
}

// Cleanup forces one reclaimer sweep outside the normal schedule.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	return s.reclaimer.Sweep(ctx)
}

// Reset wipes every share and restores default configuration. The
// admin password survives; the caller must have confirmed it.
func (s *Service) Reset(ctx context.Context, confirmPassword string) error {
	if !s.settings.VerifyAdminPassword(ctx, confirmPassword) {
		return ErrBadPassword
	}

	deleted, err := s.shares.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	if err := s.blobs.RemoveAll(); err != nil {
		return fmt.Errorf("delete blobs: %w", err)
	}
	if err := s.settings.Reset(ctx); err != nil {
		return fmt.Errorf("reset settings: %w", err)
	}

	s.logger.Warn("admin reset completed", zap.Int64("records_deleted", deleted))
	return nil
}

// UpdateConfig applies a batch of settings. Unknown keys fail the whole
// batch before anything is written.
func (s *Service) UpdateConfig(ctx context.Context, values map[string]string) error {
	if _, ok := values[settings.KeyAdminPasswordHash]; ok {
		return settings.ErrUnknownKey
	}
	for key := range values {
		if _, err := s.settings.Peek(key); err != nil {
			return err
		}
	}
	for key, value := range values {
		if err := s.settings.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Config(ctx context.Context) map[string]string {
	return s.settings.All(ctx)
}

// ChangePassword rotates the admin password after confirming the old
// one.
func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if !s.settings.VerifyAdminPassword(ctx, oldPassword) {
		return ErrBadPassword
	}
	if len(newPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return s.settings.SetAdminPassword(ctx, newPassword)
}
