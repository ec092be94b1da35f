package resource

import (
	"context"
	"errors"
	"io"
)

// RateLimitedWriter wraps an io.Writer so writes consume IO tokens
// from a Controller before reaching the underlying writer.
type RateLimitedWriter struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

// NewRateLimitedWriter creates a new RateLimitedWriter.
func NewRateLimitedWriter(ctx context.Context, w io.Writer, rc *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{
		ctx: ctx,
		w:   w,
		rc:  rc,
	}
}

func (w *RateLimitedWriter) Write(p []byte) (int, error) {
	if err := w.rc.AcquireIO(w.ctx, int64(len(p))); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// Seek forwards to the underlying writer if it is an io.Seeker.
func (w *RateLimitedWriter) Seek(offset int64, whence int) (int64, error) {
	s, ok := w.w.(io.Seeker)
	if !ok {
		return 0, errors.New("resource: underlying writer does not support seeking")
	}
	return s.Seek(offset, whence)
}

// RateLimitedReader wraps an io.Reader so reads consume IO tokens
// from a Controller before reaching the underlying reader.
type RateLimitedReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

// NewRateLimitedReader creates a new RateLimitedReader.
func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *RateLimitedReader {
	return &RateLimitedReader{
		ctx: ctx,
		r:   r,
		rc:  rc,
	}
}

func (r *RateLimitedReader) Read(p []byte) (int, error) {
	// The eventual read size is unknown; charge for the buffer capacity.
	if err := r.rc.AcquireIO(r.ctx, int64(len(p))); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
