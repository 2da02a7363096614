package retouch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegUploads(t testing.TB, n int, prefix string) []Upload {
	t.Helper()
	data := jpegBytes(t, 24, 16)
	out := make([]Upload, n)
	for i := range out {
		out[i] = Upload{Name: fmt.Sprintf("%s%02d.jpeg", prefix, i), Data: data}
	}
	return out
}

func TestBatchAdd(t *testing.T) {
	b := NewBatch(BatchOptions{Workers: 2})
	res, err := b.Add(ctx(), jpegUploads(t, 3, "img"))
	require.NoError(t, err)
	assert.Equal(t, []string{"img00.jpg", "img01.jpg", "img02.jpg"}, res.Added)
	assert.Empty(t, res.Excluded)
	assert.Empty(t, res.Failed)

	entries := b.Entries()
	require.Len(t, entries, 3)
	e := entries[0]
	assert.InDelta(t, DefaultQuality, e.Quality, 1e-9)
	assert.Equal(t, int64(len(e.Source)), e.OriginalSize)
	assert.Equal(t, int64(len(e.Compressed)), e.CompressedSize)
	assert.Equal(t, 24, e.Width)
	assert.Equal(t, 16, e.Height)
	assert.Greater(t, e.SSIM, 0.5)
	require.NotNil(t, e.Preview)
	assert.Equal(t, PreviewWidth, e.Preview.Width)
}

func TestBatchRejectsWholeGroupOverLimit(t *testing.T) {
	b := NewBatch(BatchOptions{})
	_, err := b.Add(ctx(), jpegUploads(t, 25, "a"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 0, b.Len())
}

func TestBatchFifteenPlusSix(t *testing.T) {
	b := NewBatch(BatchOptions{})
	_, err := b.Add(ctx(), jpegUploads(t, 15, "a"))
	require.NoError(t, err)
	before := b.Entries()

	_, err = b.Add(ctx(), jpegUploads(t, 6, "b"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, before, b.Entries())

	_, err = b.Add(ctx(), jpegUploads(t, 5, "c"))
	require.NoError(t, err)
	assert.Equal(t, MaxBatchEntries, b.Len())
}

func TestBatchExcludesOtherFormats(t *testing.T) {
	b := NewBatch(BatchOptions{Limit: 2})
	uploads := append(jpegUploads(t, 2, "j"),
		Upload{Name: "pic.png", Data: pngBytes(t, 8, 8)},
		Upload{Name: "notes.txt", Data: []byte("hello")},
	)
	// Four files, but only the two JPEGs count toward the limit of two.
	res, err := b.Add(ctx(), uploads)
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)
	assert.Equal(t, []string{"pic.png", "notes.txt"}, res.Excluded)
	assert.Equal(t, 2, b.Len())
}

func TestBatchCorruptJPEGFails(t *testing.T) {
	data := jpegBytes(t, 16, 16)
	broken := append([]byte{}, data[:len(data)/3]...)
	b := NewBatch(BatchOptions{})
	res, err := b.Add(ctx(), []Upload{{Name: "bad.jpg", Data: broken}, {Name: "good.jpg", Data: data}})
	require.NoError(t, err)
	assert.Equal(t, []string{"good.jpg"}, res.Added)
	assert.ErrorIs(t, res.Failed["bad.jpg"], ErrDecode)
}

func TestBatchSetQuality(t *testing.T) {
	b := NewBatch(BatchOptions{})
	_, err := b.Add(ctx(), []Upload{{Name: "x.jpg", Data: jpegBytes(t, 96, 64)}})
	require.NoError(t, err)
	before := b.Entries()[0]

	e, err := b.SetQuality(ctx(), 0, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, e.Quality, 1e-9)
	assert.Equal(t, int64(len(e.Compressed)), e.CompressedSize)
	assert.Equal(t, before.OriginalSize, e.OriginalSize)
	assert.LessOrEqual(t, e.CompressedSize, before.CompressedSize)

	stored := b.Entries()[0]
	assert.Equal(t, e.Compressed, stored.Compressed)
	assert.Equal(t, e.CompressedSize, stored.CompressedSize)

	_, err = b.SetQuality(ctx(), 0, 0)
	assert.ErrorIs(t, err, ErrInvalidQuality)
	_, err = b.SetQuality(ctx(), 3, 0.5)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestBatchSetQualityConcurrentReaders(t *testing.T) {
	b := NewBatch(BatchOptions{})
	_, err := b.Add(ctx(), jpegUploads(t, 1, "x"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			e := b.Entries()[0]
			assert.Equal(t, int64(len(e.Compressed)), e.CompressedSize)
		}
	}()
	for _, q := range []float64{0.1, 0.5, 0.9, 0.3} {
		_, err := b.SetQuality(ctx(), 0, q)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestBatchSetQualityOverlapping(t *testing.T) {
	b := NewBatch(BatchOptions{})
	_, err := b.Add(ctx(), []Upload{{Name: "slider.jpg", Data: jpegBytes(t, 320, 240)}})
	require.NoError(t, err)

	for range 20 {
		var wg sync.WaitGroup
		start := make(chan struct{})
		errs := make([]error, 2)
		for k, q := range []float64{0.3, 0.9} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, errs[k] = b.SetQuality(ctx(), 0, q)
			}()
		}
		close(start)
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		require.Equal(t, 1, b.Len())
		e := b.Entries()[0]
		assert.Contains(t, []float64{0.3, 0.9}, e.Quality)
		assert.Equal(t, int64(len(e.Compressed)), e.CompressedSize)
	}
}

func TestBatchStaleRecompressionDiscarded(t *testing.T) {
	b := NewBatch(BatchOptions{})
	_, err := b.Add(ctx(), jpegUploads(t, 1, "x"))
	require.NoError(t, err)

	b.mu.Lock()
	cur := b.entries[0]
	b.mu.Unlock()

	older := &batchEntry{BatchEntry: cur.BatchEntry, decoded: cur.decoded, id: cur.id, rev: 100}
	require.NoError(t, older.compress(0.2))
	newer := &batchEntry{BatchEntry: cur.BatchEntry, decoded: cur.decoded, id: cur.id, rev: 101}
	require.NoError(t, newer.compress(0.8))

	got, ok := b.replace(newer)
	require.True(t, ok)
	assert.InDelta(t, 0.8, got.Quality, 1e-9)

	// The older request finishes last and gets the newer state back.
	got, ok = b.replace(older)
	require.True(t, ok)
	assert.InDelta(t, 0.8, got.Quality, 1e-9)
	assert.InDelta(t, 0.8, b.Entries()[0].Quality, 1e-9)

	require.NoError(t, b.Remove(0))
	_, ok = b.replace(newer)
	assert.False(t, ok)
}

func TestBatchEntryNotFoundMessage(t *testing.T) {
	b := NewBatch(BatchOptions{})
	_, err := b.SetQuality(ctx(), 0, 0.5)
	require.ErrorIs(t, err, ErrEntryNotFound)
	assert.Equal(t, "entry 0: retouch: batch entry not found", err.Error())
	assert.Equal(t, "entry 2: retouch: batch entry not found", b.Remove(2).Error())
}

func TestBatchRemoveAndClear(t *testing.T) {
	b := NewBatch(BatchOptions{})
	_, err := b.Add(ctx(), jpegUploads(t, 3, "r"))
	require.NoError(t, err)

	require.NoError(t, b.Remove(1))
	names := []string{}
	for _, e := range b.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"r00.jpg", "r02.jpg"}, names)
	assert.ErrorIs(t, b.Remove(5), ErrEntryNotFound)

	b.Clear()
	assert.Equal(t, 0, b.Len())
	// Capacity is freed.
	_, err = b.Add(ctx(), jpegUploads(t, MaxBatchEntries, "n"))
	assert.NoError(t, err)
}

func TestBatchArchive(t *testing.T) {
	b := NewBatch(BatchOptions{})
	data := jpegBytes(t, 16, 16)
	_, err := b.Add(ctx(), []Upload{
		{Name: "a.jpeg", Data: data},
		{Name: "b.jpg", Data: data},
		{Name: "other/a.jpg", Data: data},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, b.WriteArchive(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	entries := b.Entries()
	require.Len(t, zr.File, 3)
	assert.Equal(t, "a.jpg", zr.File[0].Name)
	assert.Equal(t, "b.jpg", zr.File[1].Name)
	assert.Equal(t, "a (2).jpg", zr.File[2].Name)
	for i, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, entries[i].Compressed, got)
	}
}

func TestArchiveNamesNeverCollide(t *testing.T) {
	names := archiveNames([]BatchEntry{
		{Name: "a.jpg"}, {Name: "a.jpg"}, {Name: "a (2).jpg"}, {Name: "A.jpg"}, {Name: "b.jpg"},
	})
	assert.Equal(t, []string{"a.jpg", "a (2).jpg", "a (2) (2).jpg", "A (3).jpg", "b.jpg"}, names)
}

func TestBatchArchiveEmpty(t *testing.T) {
	assert.ErrorIs(t, NewBatch(BatchOptions{}).WriteArchive(io.Discard), ErrNoEntries)
}

func TestBatchProgress(t *testing.T) {
	var mu sync.Mutex
	var calls []int
	b := NewBatch(BatchOptions{
		Workers: 3,
		OnItem: func(completed, total int) {
			mu.Lock()
			calls = append(calls, completed)
			mu.Unlock()
			assert.Equal(t, 4, total)
		},
	})
	_, err := b.Add(ctx(), jpegUploads(t, 4, "p"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, calls)
}

func TestBatchCancelled(t *testing.T) {
	c, cancel := context.WithCancel(ctx())
	cancel()
	b := NewBatch(BatchOptions{})
	res, err := b.Add(c, jpegUploads(t, 2, "z"))
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.Len(t, res.Failed, 2)
	assert.Equal(t, 0, b.Len())
}

func TestBatchSummary(t *testing.T) {
	b := NewBatch(BatchOptions{})
	assert.Equal(t, BatchSummary{}, b.Summary())

	_, err := b.Add(ctx(), jpegUploads(t, 2, "s"))
	require.NoError(t, err)
	s := b.Summary()
	entries := b.Entries()
	assert.Equal(t, 2, s.Entries)
	assert.Equal(t, entries[0].OriginalSize+entries[1].OriginalSize, s.OriginalBytes)
	assert.Equal(t, entries[0].CompressedSize+entries[1].CompressedSize, s.CompressedBytes)
	assert.Contains(t, s.String(), "Batch: 2 files")
}

func TestBatchConcurrentAddsRespectLimit(t *testing.T) {
	b := NewBatch(BatchOptions{Limit: 10})
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	groups := make([][]Upload, 4)
	for i := range groups {
		groups[i] = jpegUploads(t, 4, fmt.Sprintf("g%d-", i))
	}
	for _, group := range groups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := b.Add(ctx(), group)
			if err == nil {
				mu.Lock()
				accepted += len(res.Added)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, accepted)
	assert.Equal(t, 8, b.Len())
}
