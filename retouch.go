// Package retouch is a raster image editing engine: one-shot colour filters,
// manual adjustments, geometric transforms, an interactive crop selection,
// simulated AI enhancement, brush and text overlays, and a batch JPEG
// compressor with SSIM scoring and zip export.
//
// Images are held as straight-alpha RGBA Buffers. Every operation is pure:
// it returns a new Buffer and never touches its input, except FlipHorizontal
// which mirrors in place.
//
// A Session ties the pieces together for one image:
//
//	s := retouch.NewSession(retouch.SessionOptions{Premium: true})
//	if err := s.Load(ctx, f, "photo.jpg"); err != nil {
//		return err
//	}
//	_ = s.ApplyFilter(retouch.Sepia)
//	_ = s.Rotate(90)
//	_, err := s.Download(ctx, w) // PNG, logged to history
//
// A Batch compresses up to MaxBatchEntries JPEG uploads concurrently and
// writes them to a zip archive:
//
//	b := retouch.NewBatch(retouch.BatchOptions{Workers: 4})
//	res, err := b.Add(ctx, uploads)
//	err = b.WriteArchive(out)
//
// The package logs through log/slog. It is silent until SetLogger is
// called.
package retouch
