package imaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ironsheep/image-filter-server/internal/raster"
)

func newStoreBuffer(t *testing.T, v uint8) *raster.Buffer {
	t.Helper()
	buf, err := raster.New(4, 4, raster.RGB)
	if err != nil {
		t.Fatalf("raster.New failed: %v", err)
	}
	for i := range buf.Pix() {
		buf.Pix()[i] = v
	}
	return buf
}

func TestStore_PutCurrent(t *testing.T) {
	s := NewStore(0)
	info := s.Put("a", newStoreBuffer(t, 100), "png")

	if info.ID != "a" || info.Version != 1 || info.Processed {
		t.Errorf("info: got %+v", info)
	}
	if info.Width != 4 || info.Height != 4 || info.Channels != 3 || info.Format != "png" {
		t.Errorf("info dims: got %+v", info)
	}

	buf, _, err := s.Current("a")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	buf.Pix()[0] = 0

	again, _, _ := s.Current("a")
	if again.Pix()[0] != 100 {
		t.Error("Current should return a copy, not the stored buffer")
	}
}

func TestStore_NotFound(t *testing.T) {
	s := NewStore(0)
	ctx := context.Background()

	if _, _, err := s.Current("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Current: got %v, want ErrNotFound", err)
	}
	if _, err := s.Info("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Info: got %v, want ErrNotFound", err)
	}
	if _, err := s.Reset("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reset: got %v, want ErrNotFound", err)
	}
	_, err := s.Apply(ctx, "missing", func(*raster.Buffer) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Apply: got %v, want ErrNotFound", err)
	}
	if s.Delete("missing") {
		t.Error("Delete should report false for a missing id")
	}
}

func TestStore_ApplyReadsProcessedVersion(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 100), "png")
	ctx := context.Background()

	brighten := func(b *raster.Buffer) error { b.AdjustBrightness(10); return nil }

	info, err := s.Apply(ctx, "a", brighten)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !info.Processed || info.Version != 2 {
		t.Errorf("after first apply: got %+v", info)
	}

	if _, err := s.Apply(ctx, "a", brighten); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	buf, info, _ := s.Current("a")
	if buf.Pix()[0] != 120 {
		t.Errorf("filters should chain: got %d, want 120", buf.Pix()[0])
	}
	if info.Version != 3 {
		t.Errorf("version: got %d, want 3", info.Version)
	}
}

func TestStore_ApplyShapeChange(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 100), "png")

	info, err := s.Apply(context.Background(), "a", func(b *raster.Buffer) error {
		b.Grayscale()
		return nil
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if info.Channels != 1 {
		t.Errorf("channels: got %d, want 1", info.Channels)
	}
}

func TestStore_ApplyErrorLeavesImage(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 100), "png")
	boom := errors.New("boom")

	_, err := s.Apply(context.Background(), "a", func(b *raster.Buffer) error {
		b.Invert()
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	buf, info, _ := s.Current("a")
	if buf.Pix()[0] != 100 || info.Processed || info.Version != 1 {
		t.Errorf("failed filter should not be committed: sample %d, info %+v", buf.Pix()[0], info)
	}
}

func TestStore_ApplyPanic(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 100), "png")

	_, err := s.Apply(context.Background(), "a", func(b *raster.Buffer) error {
		panic("index out of range")
	})
	if err == nil {
		t.Fatal("a panicking filter should return an error")
	}
	if info, _ := s.Info("a"); info.Processed {
		t.Error("a panicking filter should not be committed")
	}
}

func TestStore_ApplyTimeoutDiscards(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 100), "png")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	_, err := s.Apply(ctx, "a", func(b *raster.Buffer) error {
		b.Invert()
		<-release
		return nil
	})
	close(release)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}

	buf, info, _ := s.Current("a")
	if buf.Pix()[0] != 100 || info.Processed {
		t.Error("abandoned filter should not be committed")
	}
}

func TestStore_AbandonedFilterHoldsLock(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 100), "png")

	release := make(chan struct{})
	finished := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Apply(ctx, "a", func(b *raster.Buffer) error {
		<-release
		close(finished)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}

	// The first filter is still running, so a second one must wait.
	ran := false
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, err = s.Apply(ctx2, "a", func(b *raster.Buffer) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second apply: got %v, want DeadlineExceeded", err)
	}
	if ran {
		t.Fatal("second filter ran while the abandoned one still held the lock")
	}

	close(release)
	<-finished

	info, err := s.Apply(context.Background(), "a", func(b *raster.Buffer) error {
		b.Invert()
		return nil
	})
	if err != nil {
		t.Fatalf("apply after release: %v", err)
	}
	if info.Version != 2 {
		t.Errorf("version: got %d, want 2 (abandoned filter must not commit)", info.Version)
	}
	buf, _, _ := s.Current("a")
	if buf.Pix()[0] != 155 {
		t.Errorf("sample: got %d, want 155", buf.Pix()[0])
	}
}

func TestStore_ApplyCancelledContext(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 100), "png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	_, err := s.Apply(ctx, "a", func(b *raster.Buffer) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want Canceled", err)
	}
	if ran {
		t.Error("filter should not run once the context is done")
	}
}

func TestStore_ConcurrentApplyNoLostUpdates(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 0), "png")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Apply(context.Background(), "a", func(b *raster.Buffer) error {
				b.AdjustBrightness(1)
				return nil
			})
			if err != nil {
				t.Errorf("Apply failed: %v", err)
			}
		}()
	}
	wg.Wait()

	buf, info, _ := s.Current("a")
	if buf.Pix()[0] != n {
		t.Errorf("sample: got %d, want %d", buf.Pix()[0], n)
	}
	if info.Version != n+1 {
		t.Errorf("version: got %d, want %d", info.Version, n+1)
	}
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 100), "png")
	_, _ = s.Apply(context.Background(), "a", func(b *raster.Buffer) error { b.Invert(); return nil })

	info, err := s.Reset("a")
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if info.Processed || info.Version != 3 {
		t.Errorf("after reset: got %+v", info)
	}
	buf, _, _ := s.Current("a")
	if buf.Pix()[0] != 100 {
		t.Errorf("reset should restore the upload: got %d", buf.Pix()[0])
	}

	// Resetting an unprocessed image changes nothing.
	info, _ = s.Reset("a")
	if info.Version != 3 {
		t.Errorf("version after no-op reset: got %d, want 3", info.Version)
	}
}

func TestStore_PutReplaces(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 100), "png")
	_, _ = s.Apply(context.Background(), "a", func(b *raster.Buffer) error { b.Invert(); return nil })

	info := s.Put("a", newStoreBuffer(t, 7), "jpeg")
	if info.Processed || info.Format != "jpeg" || info.Version != 3 {
		t.Errorf("after re-upload: got %+v", info)
	}
	buf, _, _ := s.Current("a")
	if buf.Pix()[0] != 7 {
		t.Errorf("sample: got %d, want 7", buf.Pix()[0])
	}
}

func TestStore_DeleteClear(t *testing.T) {
	s := NewStore(0)
	s.Put("a", newStoreBuffer(t, 1), "png")
	s.Put("b", newStoreBuffer(t, 2), "png")

	if !s.Delete("a") {
		t.Error("Delete should report true for a stored id")
	}
	if _, err := s.Info("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted id: got %v, want ErrNotFound", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len: got %d, want 1", s.Len())
	}

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear: got %d, want 0", s.Len())
	}
}

func TestStore_EvictsLeastRecentlyUpdated(t *testing.T) {
	s := NewStore(2)
	s.Put("old", newStoreBuffer(t, 1), "png")
	time.Sleep(2 * time.Millisecond)
	s.Put("new", newStoreBuffer(t, 2), "png")
	time.Sleep(2 * time.Millisecond)

	// Touch "old" so "new" becomes the eviction candidate.
	if _, err := s.Apply(context.Background(), "old", func(*raster.Buffer) error { return nil }); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	s.Put("third", newStoreBuffer(t, 3), "png")

	if s.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", s.Len())
	}
	if _, err := s.Info("new"); !errors.Is(err, ErrNotFound) {
		t.Errorf("least recently updated id should be evicted, got %v", err)
	}
	if _, err := s.Info("old"); err != nil {
		t.Errorf("recently updated id should survive: %v", err)
	}
	if _, err := s.Info("third"); err != nil {
		t.Errorf("new id should be stored: %v", err)
	}
}
