// Build-time helper that fetches the jina-embeddings-v2-base-code model
// into infrastructure/provider/models/ so release builds can embed it with
// the embed_model tag.
//
// Usage: go run ./tools/download-model [dest]
package main

import (
	"fmt"
	"os"

	"github.com/knights-analytics/hugot"
)

const modelName = "jinaai/jina-embeddings-v2-base-code"

func main() {
	dest := "infrastructure/provider/models"
	if len(os.Args) > 1 {
		dest = os.Args[1]
	}

	if err := run(dest); err != nil {
		fmt.Fprintf(os.Stderr, "download-model: %v\n", err)
		os.Exit(1)
	}
}

func run(dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	fmt.Printf("Downloading %s to %s...\n", modelName, dest)

	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	modelPath, err := hugot.DownloadModel(modelName, dest, opts)
	if err != nil {
		return fmt.Errorf("download model: %w", err)
	}

	fmt.Printf("Model downloaded to %s\n", modelPath)
	return nil
}
