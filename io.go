package retouch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// DownloadName is the file name offered for an exported edit.
const DownloadName = "edited_image.png"

// Decode reads a JPEG, PNG or GIF image into a new buffer, applying any EXIF
// orientation. Failures wrap ErrDecode.
func Decode(r io.Reader) (*Buffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return bufferFromNRGBA(imaging.Clone(img)), nil
}

// Open decodes the image file at path.
func Open(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("retouch: open %q: %w", path, err)
	}
	defer f.Close()

	b, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("retouch: %q: %w", path, err)
	}
	return b, nil
}

// EncodePNG writes b losslessly as PNG.
func EncodePNG(w io.Writer, b *Buffer) error {
	if b.Empty() {
		return ErrNoImage
	}
	if err := imaging.Encode(w, b.Image(), imaging.PNG); err != nil {
		return fmt.Errorf("retouch: png encode: %w", err)
	}
	return nil
}

// SavePNG writes b to path as PNG.
func SavePNG(path string, b *Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("retouch: create %q: %w", path, err)
	}
	if err := EncodePNG(f, b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Stem returns the file name without directory or extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// JPEGName returns the export name for an uploaded file: its stem plus ".jpg".
func JPEGName(name string) string {
	stem := Stem(name)
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "image"
	}
	return stem + ".jpg"
}
