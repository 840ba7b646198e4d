package share

import "time"

// FileRecord is the metadata row for one shared file. The ID doubles as
// the blob key on disk; OriginalName is display-only and is never used
// as a path component.
type FileRecord struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	OriginalName  string    `gorm:"column:original_name" json:"original_name"`
	ExtractCode   string    `gorm:"column:extract_code;uniqueIndex;size:16" json:"extract_code"`
	DeleteCode    string    `gorm:"column:delete_code;uniqueIndex;size:64" json:"-"`
	UploadedAt    time.Time `gorm:"column:uploaded_at" json:"uploaded_at"`
	ExpiresAt     time.Time `gorm:"column:expires_at" json:"expires_at"`
	MaxDownloads  int       `gorm:"column:max_downloads" json:"max_downloads"`
	DownloadCount int       `gorm:"column:download_count" json:"download_count"`
}

func (FileRecord) TableName() string { return "file_records" }

// Expired reports whether the share window has closed.
func (r *FileRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Exhausted reports whether every download slot has been consumed.
func (r *FileRecord) Exhausted() bool {
	return r.DownloadCount >= r.MaxDownloads
}
