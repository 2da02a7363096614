package retouch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"github.com/samber/lo"
)

const (
	// MaxBatchEntries is the most entries a batch holds at once.
	MaxBatchEntries = 20

	// ArchiveName is the file name offered for a batch export.
	ArchiveName = "compressed_images.zip"

	batchMIME = "image/jpeg"
)

// Upload is one incoming batch file.
type Upload struct {
	Name string
	Data []byte
}

// IsJPEG reports whether the upload's content sniffs as JPEG.
func (u Upload) IsJPEG() bool {
	return http.DetectContentType(u.Data) == batchMIME
}

// BatchEntry is a snapshot of one compressed batch file.
type BatchEntry struct {
	// Name is the archive entry name, the upload's stem plus ".jpg".
	Name string
	// Source holds the uploaded bytes.
	Source []byte
	// Compressed holds the bytes produced at Quality.
	Compressed []byte
	// Quality is the factor Compressed was produced at.
	Quality float64

	OriginalSize   int64
	CompressedSize int64

	// SSIM compares the compressed result with the decoded source.
	SSIM float64

	Width, Height int

	// Preview is a thumbnail at most PreviewWidth pixels wide.
	Preview *Buffer
}

// SavingsPercent is the share of bytes saved relative to the source.
func (e BatchEntry) SavingsPercent() float64 {
	if e.OriginalSize == 0 {
		return 0
	}
	return (1 - float64(e.CompressedSize)/float64(e.OriginalSize)) * 100
}

// Ratio is OriginalSize / CompressedSize.
func (e BatchEntry) Ratio() float64 {
	if e.CompressedSize == 0 {
		return 0
	}
	return float64(e.OriginalSize) / float64(e.CompressedSize)
}

func (e BatchEntry) String() string {
	return fmt.Sprintf("%s | Q=%d | %dx%d | %s → %s | SSIM: %.4f | Saved: %.1f%%",
		e.Name, jpegQuality(e.Quality), e.Width, e.Height,
		humanBytes(e.OriginalSize), humanBytes(e.CompressedSize),
		e.SSIM, e.SavingsPercent())
}

// BatchOptions configures a Batch.
type BatchOptions struct {
	// Workers is the number of concurrent compressions. 0 = runtime.NumCPU().
	Workers int
	// DefaultQuality applies to newly added entries. 0 = DefaultQuality.
	DefaultQuality float64
	// Limit caps the number of entries. 0 = MaxBatchEntries.
	Limit int
	// OnItem is called after each file of an Add completes.
	OnItem func(completed, total int)
}

// AddResult reports what happened to an upload group.
type AddResult struct {
	// Added lists the names of new entries, in upload order.
	Added []string
	// Excluded lists uploads dropped because they are not JPEG.
	Excluded []string
	// Failed maps upload names that sniffed as JPEG but could not be
	// decoded or compressed to the reason.
	Failed map[string]error
}

// Batch is a bounded set of independently compressed JPEG files. It is safe
// for concurrent use.
type Batch struct {
	opts BatchOptions

	mu      sync.Mutex
	entries []*batchEntry
	pending int    // slots reserved by in-flight Add calls
	seq     uint64 // source of entry ids and recompression revisions
}

type batchEntry struct {
	BatchEntry
	decoded *Buffer

	id  uint64 // stable across recompressions
	rev uint64 // request that produced the current bytes
}

// NewBatch returns an empty batch.
func NewBatch(opts BatchOptions) *Batch {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if !ValidQuality(opts.DefaultQuality) {
		opts.DefaultQuality = DefaultQuality
	}
	if opts.Limit <= 0 {
		opts.Limit = MaxBatchEntries
	}
	return &Batch{opts: opts}
}

// Add compresses a group of uploads at the default quality. Non-JPEG uploads
// are excluded and do not count toward the limit. If the JPEG uploads would
// push the batch past its limit, the whole group is refused with
// ErrCapacityExceeded and the batch is left untouched.
func (b *Batch) Add(ctx context.Context, uploads []Upload) (AddResult, error) {
	jpegs, others := lo.FilterReject(uploads, func(u Upload, _ int) bool {
		return u.IsJPEG()
	})
	res := AddResult{
		Excluded: lo.Map(others, func(u Upload, _ int) string { return u.Name }),
		Failed:   map[string]error{},
	}

	b.mu.Lock()
	held := len(b.entries) + b.pending
	if held+len(jpegs) > b.opts.Limit {
		b.mu.Unlock()
		Logger().Warn("batch group rejected",
			"incoming", len(jpegs), "held", held, "limit", b.opts.Limit)
		return res, fmt.Errorf("add %d files to %d of %d: %w",
			len(jpegs), held, b.opts.Limit, ErrCapacityExceeded)
	}
	b.pending += len(jpegs)
	b.mu.Unlock()

	quality := b.opts.DefaultQuality
	built := make([]*batchEntry, len(jpegs))
	errs := make([]error, len(jpegs))
	runPool(ctx, len(jpegs), b.opts.Workers, func(i int) {
		built[i], errs[i] = buildEntry(jpegs[i], quality)
	}, b.opts.OnItem, errs)

	b.mu.Lock()
	b.pending -= len(jpegs)
	for i, e := range built {
		if errs[i] != nil {
			res.Failed[jpegs[i].Name] = errs[i]
			continue
		}
		b.seq++
		e.id, e.rev = b.seq, b.seq
		b.entries = append(b.entries, e)
		res.Added = append(res.Added, e.Name)
	}
	b.mu.Unlock()

	Logger().Info("batch group added",
		"added", len(res.Added), "excluded", len(res.Excluded), "failed", len(res.Failed))
	return res, nil
}

func buildEntry(u Upload, quality float64) (*batchEntry, error) {
	src, err := Decode(bytes.NewReader(u.Data))
	if err != nil {
		return nil, err
	}
	e := &batchEntry{
		BatchEntry: BatchEntry{
			Name:         JPEGName(u.Name),
			Source:       u.Data,
			OriginalSize: int64(len(u.Data)),
			Width:        src.Width,
			Height:       src.Height,
			Preview:      Preview(src, PreviewWidth),
		},
		decoded: src,
	}
	if err := e.compress(quality); err != nil {
		return nil, err
	}
	return e, nil
}

// compress refreshes Compressed, both sizes, Quality and SSIM together.
func (e *batchEntry) compress(quality float64) error {
	data, err := Compress(e.decoded, quality)
	if err != nil {
		return err
	}
	score := 0.0
	if out, err := Decode(bytes.NewReader(data)); err == nil {
		score = SSIM(e.decoded, out)
	}
	e.Compressed = data
	e.CompressedSize = int64(len(data))
	e.Quality = quality
	e.SSIM = score
	return nil
}

// SetQuality recompresses the entry at index i at quality q. The entry's
// bytes, sizes and quality are replaced together; readers never observe a
// mix of old and new values. When calls on one entry overlap, the most
// recent call wins and earlier ones return the entry as it then stands.
func (b *Batch) SetQuality(ctx context.Context, i int, q float64) (BatchEntry, error) {
	if !ValidQuality(q) {
		return BatchEntry{}, fmt.Errorf("set quality %v: %w", q, ErrInvalidQuality)
	}
	if err := ctx.Err(); err != nil {
		return BatchEntry{}, err
	}

	b.mu.Lock()
	if i < 0 || i >= len(b.entries) {
		b.mu.Unlock()
		return BatchEntry{}, fmt.Errorf("entry %d: %w", i, ErrEntryNotFound)
	}
	cur := b.entries[i]
	b.seq++
	req := b.seq
	b.mu.Unlock()

	next := &batchEntry{BatchEntry: cur.BatchEntry, decoded: cur.decoded, id: cur.id, rev: req}
	if err := next.compress(q); err != nil {
		return BatchEntry{}, err
	}

	e, ok := b.replace(next)
	if !ok {
		return BatchEntry{}, fmt.Errorf("entry %d: %w", i, ErrEntryNotFound)
	}
	return e, nil
}

// replace installs next over the entry with the same id unless that entry
// already holds a later revision, and returns what is stored afterwards.
// The entry may have moved or gone while next was being encoded.
func (b *Batch) replace(next *batchEntry) (BatchEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for j, e := range b.entries {
		if e.id != next.id {
			continue
		}
		if e.rev > next.rev {
			return e.BatchEntry, true
		}
		b.entries[j] = next
		Logger().Debug("batch quality changed",
			"name", next.Name, "quality", next.Quality, "size", next.CompressedSize)
		return next.BatchEntry, true
	}
	return BatchEntry{}, false
}

// Remove drops the entry at index i.
func (b *Batch) Remove(i int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.entries) {
		return fmt.Errorf("entry %d: %w", i, ErrEntryNotFound)
	}
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	return nil
}

// Clear drops every entry.
func (b *Batch) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

// Len returns the number of entries.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Entries returns snapshots of every entry in insertion order.
func (b *Batch) Entries() []BatchEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return lo.Map(b.entries, func(e *batchEntry, _ int) BatchEntry { return e.BatchEntry })
}

// WriteArchive writes every entry's compressed bytes into a zip archive,
// each under its display name. Repeated names get a " (n)" suffix.
func (b *Batch) WriteArchive(w io.Writer) error {
	entries := b.Entries()
	if len(entries) == 0 {
		return ErrNoEntries
	}

	zw := zip.NewWriter(w)
	for i, name := range archiveNames(entries) {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			return fmt.Errorf("retouch: archive %q: %w", name, err)
		}
		if _, err := f.Write(entries[i].Compressed); err != nil {
			return fmt.Errorf("retouch: archive %q: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("retouch: archive close: %w", err)
	}
	Logger().Info("batch archive written", "entries", len(entries))
	return nil
}

// archiveNames returns a distinct, case-insensitively unique name per entry.
func archiveNames(entries []BatchEntry) []string {
	used := make(map[string]bool, len(entries))
	return lo.Map(entries, func(e BatchEntry, _ int) string {
		name := e.Name
		stem := strings.TrimSuffix(name, ".jpg")
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s (%d).jpg", stem, n)
		}
		used[strings.ToLower(name)] = true
		return name
	})
}

// runPool runs fn for every index in [0, n) on up to workers goroutines.
// Indexes not started before ctx ends get ctx.Err() in errs.
func runPool(ctx context.Context, n, workers int, fn func(i int), onItem func(completed, total int), errs []error) {
	if n == 0 {
		return
	}
	workers = min(max(workers, 1), n)

	work := make(chan int, n)
	for i := range n {
		work <- i
	}
	close(work)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				fn(i)
				if onItem != nil {
					mu.Lock()
					completed++
					c := completed
					mu.Unlock()
					onItem(c, n)
				}
			}
		}()
	}
	wg.Wait()
}

// BatchSummary aggregates a batch's entries.
type BatchSummary struct {
	Entries         int
	OriginalBytes   int64
	CompressedBytes int64
	AvgSSIM         float64
}

// SavedBytes is OriginalBytes - CompressedBytes.
func (s BatchSummary) SavedBytes() int64 {
	return s.OriginalBytes - s.CompressedBytes
}

// SavingsPercent is the share of bytes saved across the batch.
func (s BatchSummary) SavingsPercent() float64 {
	if s.OriginalBytes == 0 {
		return 0
	}
	return float64(s.SavedBytes()) / float64(s.OriginalBytes) * 100
}

// Summary computes aggregate statistics over the current entries.
func (b *Batch) Summary() BatchSummary {
	entries := b.Entries()
	s := BatchSummary{
		Entries:         len(entries),
		OriginalBytes:   lo.SumBy(entries, func(e BatchEntry) int64 { return e.OriginalSize }),
		CompressedBytes: lo.SumBy(entries, func(e BatchEntry) int64 { return e.CompressedSize }),
	}
	if len(entries) > 0 {
		s.AvgSSIM = lo.SumBy(entries, func(e BatchEntry) float64 { return e.SSIM }) / float64(len(entries))
	}
	return s
}

func (s BatchSummary) String() string {
	return fmt.Sprintf("Batch: %d files | %s → %s | %s saved (%.1f%%) | Avg SSIM: %.4f",
		s.Entries, humanBytes(s.OriginalBytes), humanBytes(s.CompressedBytes),
		humanBytes(s.SavedBytes()), s.SavingsPercent(), s.AvgSSIM)
}
