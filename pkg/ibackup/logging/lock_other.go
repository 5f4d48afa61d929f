//go:build !unix

package logging

// Writes are serialized by RotatingWriter.mu only.
func (w *RotatingWriter) lock() error { return nil }

func (w *RotatingWriter) unlock() {}
