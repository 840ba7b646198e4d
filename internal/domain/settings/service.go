package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"flashshare/internal/domain/share"
)

// Configuration keys. Every key has a default; the admin panel can only
// write keys listed here.
const (
	KeySiteTitle           = "site_title"
	KeySiteSubtitle        = "site_subtitle"
	KeyHeaderText          = "header_text"
	KeyFooterText          = "footer_text"
	KeyLogoURL             = "logo_url"
	KeyMaxUploadMB         = "max_upload_mb"
	KeyAllowedExtensions   = "allowed_extensions"
	KeyMaxDownloads        = "max_downloads"
	KeyMaxExpireHours      = "max_expire_hours"
	KeyIPAccessEnabled     = "ip_access_enabled"
	KeyDefaultAccessPolicy = "default_access_policy"
	KeyAdminPasswordHash   = "admin_password_hash"
)

// DefaultAdminPassword is only used to seed a fresh database; the hash
// is what gets stored.
const DefaultAdminPassword = "admin123"

var defaults = map[string]string{
	KeySiteTitle:           "FlashShare",
	KeySiteSubtitle:        "self-expiring file sharing",
	KeyHeaderText:          "Simple, fast and safe file transfer",
	KeyFooterText:          "Shared files are removed automatically when their lifecycle ends.",
	KeyLogoURL:             "",
	KeyMaxUploadMB:         "50",
	KeyAllowedExtensions:   "jpg,jpeg,png,gif,pdf,doc,docx,xls,xlsx,ppt,pptx,txt,zip,rar,mp4,mp3",
	KeyMaxDownloads:        "10",
	KeyMaxExpireHours:      "72",
	KeyIPAccessEnabled:     "false",
	KeyDefaultAccessPolicy: "allow",
}

var ErrUnknownKey = errors.New("unknown configuration key")

// Service reads and writes site configuration. Reads always go to
// storage so edits made through the admin panel take effect on the next
// request, without a restart.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns the stored value for key, or its default.
func (s *Service) Get(ctx context.Context, key string) string {
	setting, err := s.repo.Get(ctx, key)
	if err == nil {
		return setting.Value
	}
	if !errors.Is(err, ErrSettingNotFound) {
		s.logger.Warn("read setting", zap.String("key", key), zap.Error(err))
	}
	return defaults[key]
}

// Peek returns the default for an editable key, or ErrUnknownKey.
func (s *Service) Peek(key string) (string, error) {
	def, ok := defaults[key]
	if !ok {
		return "", ErrUnknownKey
	}
	return def, nil
}

// Set stores a value for a known key.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if _, ok := defaults[key]; !ok && key != KeyAdminPasswordHash {
		return ErrUnknownKey
	}
	return s.repo.Upsert(ctx, key, value)
}

// All returns every known key with its effective value. The password
// hash is not included.
func (s *Service) All(ctx context.Context) map[string]string {
	out := make(map[string]string, len(defaults))
	for key, def := range defaults {
		out[key] = def
	}
	stored, err := s.repo.All(ctx)
	if err != nil {
		s.logger.Warn("list settings", zap.Error(err))
		return out
	}
	for _, setting := range stored {
		if setting.Key == KeyAdminPasswordHash {
			continue
		}
		if _, ok := defaults[setting.Key]; ok {
			out[setting.Key] = setting.Value
		}
	}
	return out
}

// EnsureDefaults seeds missing keys on first boot, including the
// default admin password hash.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	for key, value := range defaults {
		if _, err := s.repo.Get(ctx, key); errors.Is(err, ErrSettingNotFound) {
			if err := s.repo.Upsert(ctx, key, value); err != nil {
				return fmt.Errorf("seed setting %s: %w", key, err)
			}
		} else if err != nil {
			return err
		}
	}
	if _, err := s.repo.Get(ctx, KeyAdminPasswordHash); errors.Is(err, ErrSettingNotFound) {
		if err := s.SetAdminPassword(ctx, DefaultAdminPassword); err != nil {
			return err
		}
		s.logger.Warn("seeded default admin password, change it after first login")
	} else if err != nil {
		return err
	}
	return nil
}

// Reset restores every setting to its default. The admin password is
// deliberately left alone.
func (s *Service) Reset(ctx context.Context) error {
	for key, value := range defaults {
		if err := s.repo.Upsert(ctx, key, value); err != nil {
			return fmt.Errorf("reset setting %s: %w", key, err)
		}
	}
	return nil
}

// SetAdminPassword stores a bcrypt hash of the password.
func (s *Service) SetAdminPassword(ctx context.Context, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	return s.repo.Upsert(ctx, KeyAdminPasswordHash, string(hash))
}

// VerifyAdminPassword checks a login attempt against the stored hash.
func (s *Service) VerifyAdminPassword(ctx context.Context, password string) bool {
	setting, err := s.repo.Get(ctx, KeyAdminPasswordHash)
	if err != nil {
		s.logger.Warn("read admin password hash", zap.Error(err))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(setting.Value), []byte(password)) == nil
}

// ShareLimits builds the upload policy snapshot the lifecycle service
// reads on every call.
func (s *Service) ShareLimits(ctx context.Context) (share.Limits, error) {
	maxMB := s.intValue(ctx, KeyMaxUploadMB)
	maxDownloads := s.intValue(ctx, KeyMaxDownloads)
	maxHours := s.intValue(ctx, KeyMaxExpireHours)

	var extensions []string
	for _, ext := range strings.Split(s.Get(ctx, KeyAllowedExtensions), ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			extensions = append(extensions, ext)
		}
	}

	maxTTL := time.Duration(maxHours) * time.Hour
	return share.Limits{
		MaxUploadBytes:      int64(maxMB) * 1024 * 1024,
		AllowedExtensions:   extensions,
		MaxTTL:              maxTTL,
		DefaultTTL:          maxTTL,
		MaxDownloadsLimit:   maxDownloads,
		DefaultMaxDownloads: maxDownloads,
	}, nil
}

// IPAccessPolicy reports whether IP filtering is on and what happens
// when no rule matches.
func (s *Service) IPAccessPolicy(ctx context.Context) (enabled, defaultAllow bool) {
	enabled = strings.EqualFold(s.Get(ctx, KeyIPAccessEnabled), "true")
	defaultAllow = !strings.EqualFold(s.Get(ctx, KeyDefaultAccessPolicy), "deny")
	return enabled, defaultAllow
}

func (s *Service) intValue(ctx context.Context, key string) int {
	raw := s.Get(ctx, key)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		s.logger.Warn("invalid numeric setting, using default",
			zap.String("key", key), zap.String("value", raw))
		n, _ = strconv.Atoi(defaults[key])
	}
	return n
}
