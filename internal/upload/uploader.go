// Package upload delivers finished demo files to their destination. Two
// destinations are supported, a Telegram chat and an S3 bucket, behind a
// common streaming interface.
package upload

import (
	"context"
	"io"
)

// Uploader stores the demo read from body under the given file name and
// returns a destination-specific reference, a message id for Telegram and
// an object key for S3. Body is streamed, it is never buffered whole.
type Uploader interface {
	Upload(ctx context.Context, name string, body io.Reader) (string, error)
}
