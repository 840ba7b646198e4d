package share

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type reclaimerFixture struct {
	reclaimer *Reclaimer
	repo      Repository
	blobs     *BlobStore
	fs        afero.Fs
}

func newReclaimerFixture(t *testing.T) *reclaimerFixture {
	t.Helper()
	repo := NewRepository(newTestDB(t))
	fs := afero.NewMemMapFs()
	blobs, err := NewBlobStore(fs, "uploads")
	if err != nil {
		t.Fatalf("NewBlobStore returned error: %v", err)
	}
	return &reclaimerFixture{
		reclaimer: NewReclaimer(repo, blobs, zap.NewNop(), time.Minute),
		repo:      repo,
		blobs:     blobs,
		fs:        fs,
	}
}

func (f *reclaimerFixture) seed(t *testing.T, rec *FileRecord) {
	t.Helper()
	if err := f.repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := f.blobs.Put(rec.ID, strings.NewReader("content")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
}

// ageBlob backdates a blob's mtime past the orphan grace period.
func (f *reclaimerFixture) ageBlob(t *testing.T, id string) {
	t.Helper()
	old := time.Now().Add(-10 * time.Minute)
	if err := f.fs.Chtimes(filepath.Join("uploads", id), old, old); err != nil {
		t.Fatalf("Chtimes returned error: %v", err)
	}
}

func TestSweepRemovesEndedShares(t *testing.T) {
	f := newReclaimerFixture(t)
	ctx := context.Background()

	expired := testRecord("expired", "AAAAAA", "delete-code-0001", 3)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	f.seed(t, expired)

	exhausted := testRecord("exhausted", "BBBBBB", "delete-code-0002", 2)
	exhausted.DownloadCount = 2
	f.seed(t, exhausted)

	alive := testRecord("alive", "CCCCCC", "delete-code-0003", 3)
	f.seed(t, alive)

	removed, err := f.reclaimer.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}

	for _, id := range []string{"expired", "exhausted"} {
		if _, err := f.repo.GetByID(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected record %s removed, got %v", id, err)
		}
		exists, err := f.blobs.Exists(id)
		if err != nil || exists {
			t.Fatalf("expected blob %s removed, exists=%v err=%v", id, exists, err)
		}
	}

	if _, err := f.repo.GetByID(ctx, "alive"); err != nil {
		t.Fatalf("live record must survive the sweep: %v", err)
	}
	exists, err := f.blobs.Exists("alive")
	if err != nil || !exists {
		t.Fatalf("live blob must survive the sweep, exists=%v err=%v", exists, err)
	}
}

func TestSweepRemovesAgedOrphanBlobs(t *testing.T) {
	f := newReclaimerFixture(t)

	if _, err := f.blobs.Put("orphan", strings.NewReader("content")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	f.ageBlob(t, "orphan")

	removed, err := f.reclaimer.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	exists, err := f.blobs.Exists("orphan")
	if err != nil || exists {
		t.Fatalf("expected orphan removed, exists=%v err=%v", exists, err)
	}
}

func TestSweepSparesFreshOrphanBlobs(t *testing.T) {
	f := newReclaimerFixture(t)

	// A fresh blob without a record looks like an upload in flight.
	if _, err := f.blobs.Put("inflight", strings.NewReader("content")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	removed, err := f.reclaimer.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected no removals, got %d", removed)
	}
	exists, err := f.blobs.Exists("inflight")
	if err != nil || !exists {
		t.Fatalf("expected fresh blob spared, exists=%v err=%v", exists, err)
	}
}

func TestStartupSweepDropsDanglingRecords(t *testing.T) {
	f := newReclaimerFixture(t)
	ctx := context.Background()

	dangling := testRecord("dangling", "AAAAAA", "delete-code-0001", 3)
	if err := f.repo.Create(ctx, dangling); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	healthy := testRecord("healthy", "BBBBBB", "delete-code-0002", 3)
	f.seed(t, healthy)

	if err := f.reclaimer.StartupSweep(ctx); err != nil {
		t.Fatalf("StartupSweep returned error: %v", err)
	}

	if _, err := f.repo.GetByID(ctx, "dangling"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected dangling record removed, got %v", err)
	}
	if _, err := f.repo.GetByID(ctx, "healthy"); err != nil {
		t.Fatalf("healthy record must survive startup sweep: %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newReclaimerFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.reclaimer.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
