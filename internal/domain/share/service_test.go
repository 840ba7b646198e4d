package share

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type staticLimits struct {
	limits Limits
}

func (s staticLimits) ShareLimits(context.Context) (Limits, error) {
	return s.limits, nil
}

func testLimits() Limits {
	return Limits{
		MaxUploadBytes:      1024,
		AllowedExtensions:   []string{"txt", "pdf"},
		MaxTTL:              72 * time.Hour,
		DefaultTTL:          72 * time.Hour,
		MaxDownloadsLimit:   10,
		DefaultMaxDownloads: 10,
	}
}

type serviceFixture struct {
	svc   *Service
	repo  Repository
	blobs *BlobStore
	db    *gorm.DB
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := newTestDB(t)
	repo := NewRepository(db)
	blobs, err := NewBlobStore(afero.NewMemMapFs(), "uploads")
	if err != nil {
		t.Fatalf("NewBlobStore returned error: %v", err)
	}
	svc := NewService(repo, blobs, staticLimits{limits: testLimits()}, zap.NewNop())
	return &serviceFixture{svc: svc, repo: repo, blobs: blobs, db: db}
}

func (f *serviceFixture) upload(t *testing.T, name, content string, ttl time.Duration, maxDownloads int) *Ticket {
	t.Helper()
	ticket, err := f.svc.Upload(context.Background(), UploadRequest{
		OriginalName: name,
		Content:      strings.NewReader(content),
		Size:         int64(len(content)),
		TTL:          ttl,
		MaxDownloads: maxDownloads,
	})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	return ticket
}

func (f *serviceFixture) onlyRecord(t *testing.T) *FileRecord {
	t.Helper()
	recs, err := f.repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(recs))
	}
	return recs[0]
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	ticket := f.upload(t, "hello.txt", "0123456789", time.Hour, 1)
	if ticket.ExtractCode == "" || ticket.DeleteCode == "" {
		t.Fatal("expected both codes in the ticket")
	}

	result, err := f.svc.Download(ctx, ticket.ExtractCode)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	defer result.Content.Close()

	if result.OriginalName != "hello.txt" {
		t.Fatalf("expected original name hello.txt, got %s", result.OriginalName)
	}
	got, err := io.ReadAll(result.Content)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	if !bytes.Equal(got, []byte("0123456789")) {
		t.Fatalf("content mismatch: got %q", got)
	}

	// The single slot is spent: further downloads and lookups report it.
	if _, err := f.svc.Download(ctx, ticket.ExtractCode); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted on second download, got %v", err)
	}
	if _, err := f.svc.Info(ctx, ticket.ExtractCode); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted from Info, got %v", err)
	}
}

func TestUploadValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  UploadRequest
		want error
	}{
		{
			name: "empty file",
			req:  UploadRequest{OriginalName: "a.txt", Content: strings.NewReader(""), Size: 0},
			want: ErrEmptyFile,
		},
		{
			name: "too large",
			req:  UploadRequest{OriginalName: "a.txt", Content: strings.NewReader("x"), Size: 4096},
			want: ErrFileTooLarge,
		},
		{
			name: "extension not allowed",
			req:  UploadRequest{OriginalName: "a.exe", Content: strings.NewReader("x"), Size: 1},
			want: ErrExtensionNotAllowed,
		},
		{
			name: "no extension",
			req:  UploadRequest{OriginalName: "binary", Content: strings.NewReader("x"), Size: 1},
			want: ErrExtensionNotAllowed,
		},
		{
			name: "ttl above limit",
			req:  UploadRequest{OriginalName: "a.txt", Content: strings.NewReader("x"), Size: 1, TTL: 100 * time.Hour},
			want: ErrInvalidTTL,
		},
		{
			name: "downloads above limit",
			req:  UploadRequest{OriginalName: "a.txt", Content: strings.NewReader("x"), Size: 1, MaxDownloads: 50},
			want: ErrInvalidMaxDownloads,
		},
	}

	for _, tc := range cases {
		if _, err := f.svc.Upload(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	blobs, err := f.blobs.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(blobs) != 0 {
		t.Fatalf("rejected uploads must not leave blobs, found %d", len(blobs))
	}
}

func TestUploadAppliesDefaults(t *testing.T) {
	f := newServiceFixture(t)

	ticket := f.upload(t, "a.txt", "data", 0, 0)
	if ticket.MaxDownloads != testLimits().DefaultMaxDownloads {
		t.Fatalf("expected default max downloads, got %d", ticket.MaxDownloads)
	}
	wantExpiry := time.Now().Add(testLimits().DefaultTTL)
	if diff := ticket.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expected expiry near %v, got %v", wantExpiry, ticket.ExpiresAt)
	}
}

type failingCreateRepo struct {
	Repository
}

func (f failingCreateRepo) Create(context.Context, *FileRecord) error {
	return errors.New("insert failed")
}

func TestUploadRollsBackBlobWhenInsertFails(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewService(failingCreateRepo{Repository: f.repo}, f.blobs, staticLimits{limits: testLimits()}, zap.NewNop())

	_, err := svc.Upload(context.Background(), UploadRequest{
		OriginalName: "a.txt",
		Content:      strings.NewReader("data"),
		Size:         4,
	})
	if err == nil {
		t.Fatal("expected upload to fail")
	}

	blobs, err := f.blobs.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(blobs) != 0 {
		t.Fatalf("expected blob rollback, found %d blobs", len(blobs))
	}
}

func TestResolveClassifiesCodes(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	ticket := f.upload(t, "a.txt", "data", time.Hour, 1)

	res, err := f.svc.Resolve(ctx, ticket.DeleteCode)
	if err != nil || res.Kind != ResolveDelete {
		t.Fatalf("expected ResolveDelete, got kind=%d err=%v", res.Kind, err)
	}
	res, err = f.svc.Resolve(ctx, ticket.ExtractCode)
	if err != nil || res.Kind != ResolveExtract {
		t.Fatalf("expected ResolveExtract, got kind=%d err=%v", res.Kind, err)
	}
	res, err = f.svc.Resolve(ctx, "no-such-code")
	if err != nil || res.Kind != ResolveInvalid {
		t.Fatalf("expected ResolveInvalid, got kind=%d err=%v", res.Kind, err)
	}
}

func TestDeleteByCodeRevokesShare(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	ticket := f.upload(t, "a.txt", "data", time.Hour, 5)
	rec := f.onlyRecord(t)

	if err := f.svc.DeleteByCode(ctx, ticket.DeleteCode); err != nil {
		t.Fatalf("DeleteByCode returned error: %v", err)
	}

	if _, err := f.svc.Download(ctx, ticket.ExtractCode); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revocation, got %v", err)
	}
	exists, err := f.blobs.Exists(rec.ID)
	if err != nil || exists {
		t.Fatalf("expected blob removed, exists=%v err=%v", exists, err)
	}
	if err := f.svc.DeleteByCode(ctx, ticket.DeleteCode); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestExpiredDownloadPurgesLazily(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	ticket := f.upload(t, "a.txt", "data", time.Hour, 5)
	rec := f.onlyRecord(t)

	err := f.db.Model(&FileRecord{}).Where("id = ?", rec.ID).
		UpdateColumn("expires_at", time.Now().Add(-time.Minute)).Error
	if err != nil {
		t.Fatalf("backdate record: %v", err)
	}

	if _, err := f.svc.Download(ctx, ticket.ExtractCode); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// Lazy purge: both halves are gone without waiting for a sweep.
	if _, err := f.repo.GetByID(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record purged, got %v", err)
	}
	exists, err := f.blobs.Exists(rec.ID)
	if err != nil || exists {
		t.Fatalf("expected blob purged, exists=%v err=%v", exists, err)
	}
}

func TestDanglingRecordPurgedOnAccess(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	ticket := f.upload(t, "a.txt", "data", time.Hour, 5)
	rec := f.onlyRecord(t)

	if err := f.blobs.Remove(rec.ID); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}

	if _, err := f.svc.Download(ctx, ticket.ExtractCode); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for dangling record, got %v", err)
	}
	if _, err := f.repo.GetByID(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected dangling record purged, got %v", err)
	}
}

func TestInfoDoesNotConsumeSlots(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	ticket := f.upload(t, "hello.txt", "data", time.Hour, 1)

	for i := 0; i < 3; i++ {
		name, err := f.svc.Info(ctx, ticket.ExtractCode)
		if err != nil {
			t.Fatalf("Info returned error: %v", err)
		}
		if name != "hello.txt" {
			t.Fatalf("expected hello.txt, got %s", name)
		}
	}

	if _, err := f.svc.Download(ctx, ticket.ExtractCode); err != nil {
		t.Fatalf("Download after Info calls returned error: %v", err)
	}
}
