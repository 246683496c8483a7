package dedupe

// Option configures the in-memory deduper.
type Option func(*ringDeduper)

// WithMaxSize sets how many ids are remembered. Values below one are
// raised to one.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.maxSize = maxSize
	}
}
