package create

import "log/slog"

// DefaultBufferBytes is the staging size of each writer.
const DefaultBufferBytes = 10 << 20

type options struct {
	logger      *slog.Logger
	bufferBytes int
	direct      bool
}

// Option tunes a build.
type Option func(*options)

// WithLogger sets the logger for progress lines. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBufferBytes sets the staging buffer size of both writers. The buffer
// always holds at least one record.
func WithBufferBytes(n int) Option {
	return func(o *options) { o.bufferBytes = n }
}

// WithDirectIO opens the image with O_DIRECT in CreateFile.
func WithDirectIO(on bool) Option {
	return func(o *options) { o.direct = on }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), bufferBytes: DefaultBufferBytes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
