// Command retouch edits single images and compresses JPEG batches.
//
// Usage:
//
//	retouch edit photo.jpg --filter sepia --rotate 90 -o out/
//	retouch edit photo.jpg --recipe steps.yaml
//	retouch compress photo.jpg -q 0.6
//	retouch batch *.jpg -q 0.5 -o compressed_images.zip
//	retouch history
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/shamspias/retouch/cmd/retouch/cmd"
)

var version = "dev"

func main() {
	root := cmd.NewRoot(version)
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
