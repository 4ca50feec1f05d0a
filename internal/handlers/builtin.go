package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

func init() {
	Register("builtin.checksum", checksumHandler)
}

// checksumHandler computes the sha256 of the downloaded file and, when a
// progress pipe is supplied, reports it as a single completed task. It
// does not read opts.FileMetadata.
func checksumHandler(ctx context.Context, localPath string, opts Options) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	sum := hex.EncodeToString(h.Sum(nil))

	if opts.PizzaTrackerPath != "" {
		if pipe, err := os.OpenFile(opts.PizzaTrackerPath, os.O_WRONLY, 0); err == nil {
			fmt.Fprintf(pipe, "task checksum %s\n", sum)
			fmt.Fprintf(pipe, "progress 1\n")
			fmt.Fprintf(pipe, "committed 1\n")
			pipe.Close()
		}
	}

	return nil
}
