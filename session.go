package retouch

import (
	"context"
	"fmt"
	"image"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Labels recorded in the operation log for operations that are not filters.
const (
	LabelAdjust      = "Manual Adjustments"
	LabelRotateRight = "Rotate Right"
	LabelRotateLeft  = "Rotate Left"
	LabelFlip        = "Flip Horizontal"
	LabelCrop        = "Crop"
	LabelAutoEnhance = "AI Auto-Enhance"
	LabelUpscale     = "AI Upscale"
	LabelBrush       = "Brush Tool"
	LabelText        = "Text Tool"
)

// RotateLabel returns the log label for a rotation by degrees.
func RotateLabel(degrees float64) string {
	switch degrees {
	case 90:
		return LabelRotateRight
	case -90, 270:
		return LabelRotateLeft
	default:
		return fmt.Sprintf("Rotate %g°", degrees)
	}
}

// ResizeLabel returns the log label for a resize to percent of the original.
func ResizeLabel(percent int) string {
	return fmt.Sprintf("Resize to %d%%", percent)
}

// HistoryRecord is emitted after a download: which image was exported and
// the operations applied to it, in order.
type HistoryRecord struct {
	SessionID  string
	ImageName  string
	Operations []string
	CreatedAt  time.Time
}

// HistoryRecorder receives download notifications.
type HistoryRecorder interface {
	Record(ctx context.Context, rec HistoryRecord) error
}

// HistoryFunc adapts a function to HistoryRecorder.
type HistoryFunc func(ctx context.Context, rec HistoryRecord) error

// Record calls f(ctx, rec).
func (f HistoryFunc) Record(ctx context.Context, rec HistoryRecord) error { return f(ctx, rec) }

// SessionOptions configures a Session.
type SessionOptions struct {
	// Premium unlocks Upscale, Paint and AddText.
	Premium bool
	// Enhancer runs the simulated enhancement operations.
	// Default: DefaultEnhancer().
	Enhancer *Enhancer
	// History is notified after each Download. Optional.
	History HistoryRecorder
}

// Session is a single-image editing session: the original buffer as
// loaded, the working buffer every operation replaces, and the ordered log
// of applied operations.
//
// Mutating calls are strictly sequential. A mutating call that arrives while
// another is pending fails immediately with ErrBusy. Accessors never block on
// a pending operation.
type Session struct {
	opts SessionOptions
	busy atomic.Bool

	mu       sync.RWMutex
	id       string
	name     string
	original *Buffer
	working  *Buffer
	ops      []string
	crop     *Cropper
}

// NewSession returns an empty session.
func NewSession(opts SessionOptions) *Session {
	if opts.Enhancer == nil {
		opts.Enhancer = DefaultEnhancer()
	}
	return &Session{opts: opts, id: uuid.NewString()}
}

// Premium reports whether premium operations are unlocked.
func (s *Session) Premium() bool { return s.opts.Premium }

// ID identifies the currently loaded image. It changes on every load.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Name returns the loaded image's display name.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Loaded reports whether an image is loaded.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working != nil
}

// Working returns a copy of the working buffer, or nil with no image.
func (s *Session) Working() *Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.working == nil {
		return nil
	}
	return s.working.Clone()
}

// Original returns a copy of the buffer as loaded, or nil with no image.
func (s *Session) Original() *Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.original == nil {
		return nil
	}
	return s.original.Clone()
}

// Operations returns the operation log.
func (s *Session) Operations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ops)
}

// Size returns the working buffer's dimensions, 0×0 with no image.
func (s *Session) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.working == nil {
		return 0, 0
	}
	return s.working.Width, s.working.Height
}

// DisplaySize returns the working buffer's dimensions scaled to fit
// maxW×maxH.
func (s *Session) DisplaySize(maxW, maxH int) (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.working == nil {
		return 0, 0
	}
	return FitWithin(s.working.Width, s.working.Height, maxW, maxH)
}

func (s *Session) acquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (s *Session) release() { s.busy.Store(false) }

// Busy reports whether a mutating operation is pending.
func (s *Session) Busy() bool { return s.busy.Load() }

// Load decodes r and replaces any loaded image, starting a fresh log. On
// failure the session is unchanged.
func (s *Session) Load(ctx context.Context, r io.Reader, name string) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	b, err := Decode(r)
	if err != nil {
		Logger().Warn("load failed", "name", name, "err", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.install(b, name)
	return nil
}

// LoadBuffer replaces any loaded image with a copy of b.
func (s *Session) LoadBuffer(b *Buffer, name string) error {
	if !b.Valid() || b.Empty() {
		return fmt.Errorf("load %q: %w", name, ErrNoImage)
	}
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	s.install(b.Clone(), name)
	return nil
}

func (s *Session) install(b *Buffer, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCropLocked()
	s.id = uuid.NewString()
	s.name = name
	s.original = b
	s.working = b.Clone()
	s.ops = nil
	Logger().Info("image loaded", "name", name, "width", b.Width, "height", b.Height)
}

// apply runs fn against the working buffer and installs its result under
// label. The caller holds the busy guard.
func (s *Session) apply(label string, fn func(working, original *Buffer) (*Buffer, error)) error {
	s.mu.RLock()
	working, original := s.working, s.original
	s.mu.RUnlock()
	if working == nil {
		return ErrNoImage
	}

	start := time.Now()
	out, err := fn(working, original)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCropLocked()
	s.working = out
	s.ops = append(s.ops, label)
	Logger().Debug("operation applied", "op", label,
		"width", out.Width, "height", out.Height, "elapsed", time.Since(start))
	return nil
}

// mutate acquires the busy guard around apply.
func (s *Session) mutate(label string, fn func(working, original *Buffer) (*Buffer, error)) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	return s.apply(label, fn)
}

// ApplyFilter applies a one-shot colour filter.
func (s *Session) ApplyFilter(f Filter) error {
	if !f.Valid() {
		return fmt.Errorf("retouch: unknown filter %q", f)
	}
	return s.mutate(f.Label(), func(w, _ *Buffer) (*Buffer, error) {
		return ApplyFilter(w, f), nil
	})
}

// Adjust applies manual brightness, contrast, saturation and exposure in one
// pass. Values are clamped to [-100, 100].
func (s *Session) Adjust(adj Adjustments) error {
	return s.mutate(LabelAdjust, func(w, _ *Buffer) (*Buffer, error) {
		return ApplyAdjustments(w, adj), nil
	})
}

// Rotate turns the image clockwise by degrees.
func (s *Session) Rotate(degrees float64) error {
	return s.mutate(RotateLabel(degrees), func(w, _ *Buffer) (*Buffer, error) {
		return Rotate(w, degrees), nil
	})
}

// Flip mirrors the image horizontally.
func (s *Session) Flip() error {
	return s.mutate(LabelFlip, func(w, _ *Buffer) (*Buffer, error) {
		return FlipHorizontal(w.Clone()), nil
	})
}

// Resize replaces the working buffer with the original scaled to percent.
// Earlier edits are discarded, so resizes never compound.
func (s *Session) Resize(percent int) error {
	if percent <= 0 {
		return fmt.Errorf("retouch: resize to %d%%: percentage must be positive", percent)
	}
	return s.mutate(ResizeLabel(percent), func(_, o *Buffer) (*Buffer, error) {
		return ResizePercent(o, percent), nil
	})
}

// AutoEnhance runs the simulated auto-enhance and blocks until it completes.
func (s *Session) AutoEnhance(ctx context.Context) error {
	return s.AutoEnhanceAsync(ctx).Wait()
}

// AutoEnhanceAsync starts auto-enhance and returns immediately. The session
// stays busy until the returned task completes.
func (s *Session) AutoEnhanceAsync(ctx context.Context) *Task {
	return s.start(ctx, LabelAutoEnhance, s.opts.Enhancer.AutoEnhance)
}

// Upscale runs the simulated upscale and blocks until it completes. Without
// the premium capability it fails with ErrPermissionDenied.
func (s *Session) Upscale(ctx context.Context) error {
	return s.UpscaleAsync(ctx).Wait()
}

// UpscaleAsync starts the upscale and returns immediately.
func (s *Session) UpscaleAsync(ctx context.Context) *Task {
	if err := s.requirePremium(LabelUpscale); err != nil {
		return failedTask(err)
	}
	return s.start(ctx, LabelUpscale, s.opts.Enhancer.Upscale)
}

func (s *Session) start(ctx context.Context, label string, run func(context.Context, *Buffer) (*Buffer, error)) *Task {
	if err := s.acquire(); err != nil {
		return failedTask(err)
	}
	if !s.Loaded() {
		s.release()
		return failedTask(ErrNoImage)
	}

	t := newTask()
	go func() {
		defer s.release()
		t.finish(s.apply(label, func(w, _ *Buffer) (*Buffer, error) {
			return run(ctx, w)
		}))
	}()
	return t
}

func (s *Session) requirePremium(label string) error {
	if s.opts.Premium {
		return nil
	}
	Logger().Warn("premium operation refused", "op", label)
	return fmt.Errorf("%s: %w", label, ErrPermissionDenied)
}

// Paint draws brush strokes along paths. Premium only.
func (s *Session) Paint(brush BrushSettings, paths ...[]image.Point) error {
	if err := s.requirePremium(LabelBrush); err != nil {
		return err
	}
	return s.mutate(LabelBrush, func(w, _ *Buffer) (*Buffer, error) {
		out := w.Clone()
		Stroke(out, brush, paths...)
		return out, nil
	})
}

// AddText draws a centred text overlay. Premium only. Empty text is a no-op
// and is not logged.
func (s *Session) AddText(text TextSettings) error {
	if err := s.requirePremium(LabelText); err != nil {
		return err
	}
	if text.Text == "" {
		return nil
	}
	return s.mutate(LabelText, func(w, _ *Buffer) (*Buffer, error) {
		out := w.Clone()
		if err := DrawText(out, text); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// StartCrop enters crop mode. It is a no-op while a crop is already active.
func (s *Session) StartCrop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.working == nil {
		return ErrNoImage
	}
	if s.crop != nil {
		return nil
	}
	s.crop = NewCropper(s.working.Width, s.working.Height, func() { s.crop = nil })
	return nil
}

// Cropping reports whether crop mode is active.
func (s *Session) Cropping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crop != nil
}

// CropState returns the crop phase, CropIdle outside crop mode.
func (s *Session) CropState() CropState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.crop == nil {
		return CropIdle
	}
	return s.crop.State()
}

// CropRect returns the current selection.
func (s *Session) CropRect() Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.crop == nil {
		return Rect{}
	}
	return s.crop.Rect()
}

// HandlePointer feeds a pointer event to the active crop.
func (s *Session) HandlePointer(ev PointerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crop == nil {
		return ErrNotCropping
	}
	s.crop.Handle(ev)
	return nil
}

// CropPreview renders the working buffer with the live selection overlay.
// The working buffer is not modified.
func (s *Session) CropPreview() (*image.NRGBA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.crop == nil {
		return nil, ErrNotCropping
	}
	return s.crop.Overlay(s.working), nil
}

// ApplyCrop commits the selection and leaves crop mode. Without a selection
// it returns ErrEmptySelection and stays in crop mode.
func (s *Session) ApplyCrop() error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crop == nil {
		return ErrNotCropping
	}
	out, err := s.crop.Apply(s.working)
	if err != nil {
		return err
	}
	s.working = out
	s.ops = append(s.ops, LabelCrop)
	Logger().Debug("operation applied", "op", LabelCrop, "width", out.Width, "height", out.Height)
	return nil
}

// CancelCrop leaves crop mode without changing the image.
func (s *Session) CancelCrop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crop == nil {
		return ErrNotCropping
	}
	s.crop.Cancel()
	return nil
}

func (s *Session) cancelCropLocked() {
	if s.crop != nil {
		s.crop.Cancel()
	}
}

// Reset restores the working buffer to the original. The operation log is
// kept.
func (s *Session) Reset() error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.original == nil {
		return ErrNoImage
	}
	s.cancelCropLocked()
	s.working = s.original.Clone()
	return nil
}

// Remove unloads the image and clears the operation log.
func (s *Session) Remove() error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCropLocked()
	s.name = ""
	s.original = nil
	s.working = nil
	s.ops = nil
	return nil
}

// Download writes the working buffer to w as PNG and returns the file name
// to offer it under. The history recorder is then told which operations
// were applied; its failures are logged, not returned.
func (s *Session) Download(ctx context.Context, w io.Writer) (string, error) {
	s.mu.RLock()
	working := s.working
	rec := HistoryRecord{
		SessionID:  s.id,
		ImageName:  s.name,
		Operations: slices.Clone(s.ops),
		CreatedAt:  time.Now().UTC(),
	}
	s.mu.RUnlock()
	if working == nil {
		return "", ErrNoImage
	}

	if err := EncodePNG(w, working); err != nil {
		return "", err
	}
	Logger().Info("image downloaded", "name", rec.ImageName, "operations", len(rec.Operations))

	if h := s.opts.History; h != nil {
		if err := h.Record(ctx, rec); err != nil {
			Logger().Warn("history record failed", "name", rec.ImageName, "err", err)
		}
	}
	return DownloadName, nil
}
