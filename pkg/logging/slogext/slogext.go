package slogext

import "log/slog"

// Err renders err under the "error" key.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{Key: "error", Value: slog.StringValue("<nil>")}
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Ino renders a numeric inode under key.
func Ino[T ~uint64](key string, ino T) slog.Attr {
	return slog.Uint64(key, uint64(ino))
}
