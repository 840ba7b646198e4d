package share

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Limits is the upload policy in force at the moment of a call. The
// service asks its provider for a fresh snapshot on every upload, so
// changes made through the admin panel apply without a restart.
type Limits struct {
	MaxUploadBytes      int64
	AllowedExtensions   []string // lowercase, without leading dot
	MaxTTL              time.Duration
	DefaultTTL          time.Duration
	MaxDownloadsLimit   int
	DefaultMaxDownloads int
}

type LimitsProvider interface {
	ShareLimits(ctx context.Context) (Limits, error)
}

// ExtensionAllowed checks the file name against the allow-list. A name
// without an extension is always rejected. An empty allow-list means
// any extension is accepted.
func (l Limits) ExtensionAllowed(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	if len(l.AllowedExtensions) == 0 {
		return true
	}
	for _, allowed := range l.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
