package retouch

import (
	"context"
	"image"
	"image/color"
	"math"
	"time"

	xdraw "golang.org/x/image/draw"
)

const (
	// MaxUpscaleSide caps either side of an upscaled buffer.
	MaxUpscaleSide = 2000

	upscaleFactor   = 2.0
	upscaleContrast = 1.2

	enhanceBrightness = 25
	enhanceContrast   = 30
	enhanceSaturation = 1.4

	// Simulated latency of each operation, in Enhancer.Unit multiples.
	autoEnhanceUnits = 2
	upscaleUnits     = 3
)

// AutoEnhance applies the auto-enhance colour pass: +25 brightness, contrast
// with C=+30 and a 1.4× saturation boost, in that order, in one pass.
func AutoEnhance(b *Buffer) *Buffer {
	shift := shiftFunc(enhanceBrightness, enhanceBrightness, enhanceBrightness)
	stretch := contrastFunc(ContrastFactor(enhanceContrast))
	return mapPixels(b, func(c color.NRGBA) color.NRGBA {
		return saturate(stretch(shift(c)), enhanceSaturation)
	})
}

// UpscaleSize returns the dimensions Upscale produces for a w×h buffer. Both
// axes share one factor: 2×, reduced so neither side exceeds MaxUpscaleSide.
// Buffers already past the cap are not shrunk.
func UpscaleSize(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	scale := math.Min(upscaleFactor, float64(MaxUpscaleSide)/float64(max(w, h)))
	if scale < 1 {
		scale = 1
	}
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if scale > 1 {
		nw = min(nw, MaxUpscaleSide)
		nh = min(nh, MaxUpscaleSide)
	}
	return max(nw, 1), max(nh, 1)
}

// Upscale enlarges the buffer with Catmull-Rom resampling to UpscaleSize and
// follows with a mild 1.2× contrast boost as a sharpening approximation.
func Upscale(b *Buffer) *Buffer {
	if b.Empty() {
		return b.Clone()
	}
	w, h := UpscaleSize(b.Width, b.Height)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), b.Image(), b.Bounds(), xdraw.Src, nil)
	return mapPixels(bufferFromNRGBA(dst), contrastFunc(upscaleContrast))
}

// Waiter blocks for a simulated processing delay. Implementations return
// early with ctx.Err() when the context ends first.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// WaitFunc adapts a function to the Waiter interface.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Wait calls f(ctx, d).
func (f WaitFunc) Wait(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// Sleep is the real-time Waiter.
var Sleep Waiter = WaitFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// NoDelay completes immediately. Useful in tests.
var NoDelay Waiter = WaitFunc(func(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
})

// Enhancer runs the simulated enhancement operations: deterministic pixel
// math followed by a fixed artificial delay.
type Enhancer struct {
	// Unit is one simulated time unit. Auto-enhance takes 2 units and
	// upscale 3. Zero or negative means no delay; DefaultEnhancer uses one
	// second.
	Unit time.Duration
	// Waiter performs the delay. Default: Sleep.
	Waiter Waiter
}

// DefaultEnhancer returns an Enhancer with real one-second units.
func DefaultEnhancer() *Enhancer {
	return &Enhancer{Unit: time.Second, Waiter: Sleep}
}

// AutoEnhance computes the enhanced buffer and returns it after the
// simulated delay. A cancelled context yields ctx.Err() and no buffer.
func (e *Enhancer) AutoEnhance(ctx context.Context, b *Buffer) (*Buffer, error) {
	out := AutoEnhance(b)
	if err := e.wait(ctx, autoEnhanceUnits); err != nil {
		return nil, err
	}
	return out, nil
}

// Upscale computes the upscaled buffer and returns it after the simulated
// delay. A cancelled context yields ctx.Err() and no buffer.
func (e *Enhancer) Upscale(ctx context.Context, b *Buffer) (*Buffer, error) {
	out := Upscale(b)
	if err := e.wait(ctx, upscaleUnits); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Enhancer) wait(ctx context.Context, units int) error {
	w := e.Waiter
	if w == nil {
		w = Sleep
	}
	unit := e.Unit
	if unit < 0 {
		unit = 0
	}
	return w.Wait(ctx, time.Duration(units)*unit)
}

// Task is a pending asynchronous operation.
type Task struct {
	done chan struct{}
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// failedTask returns an already completed task carrying err.
func failedTask(err error) *Task {
	t := newTask()
	t.finish(err)
	return t
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed when the task completes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task completes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Err returns the task's error, or nil while it is still pending.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}
