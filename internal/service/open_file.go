package service

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/buffer"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/repository"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging/slogext"
	"github.com/docker/go-units"
)

// OpenFileService manages the write-back buffers of open files. Reads,
// writes and truncation of an open file are served locally; the remote
// store sees the content only on flush, fsync and release.
type OpenFileService interface {
	Open(ctx context.Context, ino models.InodeID, truncate bool) (*models.FileHandle, error)
	Create(ctx context.Context, parent models.InodeID, name string) (*models.FileHandle, error)
	Read(ctx context.Context, fh uint64, offset int64, length int) ([]byte, error)
	Write(ctx context.Context, fh uint64, offset int64, data []byte) (int, error)
	Truncate(ctx context.Context, fh uint64, size int64) error
	// TruncateInode resizes a file nobody named a handle for.
	TruncateInode(ctx context.Context, ino models.InodeID, size int64) error
	Flush(ctx context.Context, fh uint64, force bool) error
	Release(ctx context.Context, fh uint64) error
	ReleaseAll(ctx context.Context) int
	Handle(fh uint64) (*models.FileHandle, bool)
	HandleOf(ino models.InodeID) (*models.FileHandle, bool)
}

type openFileService struct {
	fs          FileSystemService
	handles     repository.HandleRepository
	maxFileSize int
}

func NewOpenFileService(fs FileSystemService, handles repository.HandleRepository, maxFileSize int) OpenFileService {
	return &openFileService{
		fs:          fs,
		handles:     handles,
		maxFileSize: maxFileSize,
	}
}

func (s *openFileService) Handle(fh uint64) (*models.FileHandle, bool) {
	return s.handles.Get(fh)
}

func (s *openFileService) HandleOf(ino models.InodeID) (*models.FileHandle, bool) {
	return s.handles.FindByInode(ino)
}

func (s *openFileService) handle(fh uint64) (*models.FileHandle, error) {
	h, ok := s.handles.Get(fh)
	if !ok {
		return nil, syscall.EBADF
	}
	return h, nil
}

// Open populates a new buffer from the remote store. A file the store
// refuses to read with a status is treated as not yet materialized and opens
// empty. Any other failure, an undecodable reply included, fails the open so
// that empty content is never written back over the real one. With truncate
// the remote store is not consulted and the buffer starts dirty, so that the
// truncation reaches the store.
func (s *openFileService) Open(ctx context.Context, ino models.InodeID, truncate bool) (*models.FileHandle, error) {
	const op = "service.openFileService.Open"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	var buf *buffer.Buffer
	if truncate {
		buf = buffer.New(nil, buffer.Dirty, s.maxFileSize)
	} else {
		content, err := s.fs.Read(ctx, ino)
		if err != nil {
			if _, isStatus := kerrors.StatusOf(err); !isStatus {
				logger.Error("Failed to read file on open", slogext.Err(err), slogext.Ino("ino", ino))
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			logger.Debug("File not readable, opening empty", slogext.Err(err), slogext.Ino("ino", ino))
			content = nil
		}
		buf = buffer.New(content, buffer.Clean, s.maxFileSize)
	}

	h := s.handles.Add(ino, buf)
	logger.Debug("File opened",
		slogext.Ino("ino", ino),
		slog.Uint64("fh", h.ID),
		slog.Bool("truncate", truncate),
		slog.String("size", units.BytesSize(float64(buf.Size()))),
	)
	return h, nil
}

func (s *openFileService) Create(ctx context.Context, parent models.InodeID, name string) (*models.FileHandle, error) {
	const op = "service.openFileService.Create"

	ino, err := s.fs.Create(ctx, parent, name, models.EntryTypeFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	h := s.handles.Add(ino, buffer.New(nil, buffer.Clean, s.maxFileSize))
	logging.GetLoggerFromContextWithOp(ctx, op).Debug("File created and opened",
		slogext.Ino("ino", ino),
		slog.Uint64("fh", h.ID),
	)
	return h, nil
}

func (s *openFileService) Read(ctx context.Context, fh uint64, offset int64, length int) ([]byte, error) {
	h, err := s.handle(fh)
	if err != nil {
		return nil, err
	}
	return h.Buffer.ReadAt(offset, length), nil
}

func (s *openFileService) Write(ctx context.Context, fh uint64, offset int64, data []byte) (int, error) {
	const op = "service.openFileService.Write"

	h, err := s.handle(fh)
	if err != nil {
		return 0, err
	}

	n, err := h.Buffer.WriteAt(offset, data)
	if err != nil {
		logging.GetLoggerFromContextWithOp(ctx, op).Debug("Write rejected",
			slogext.Err(err),
			slogext.Ino("ino", h.Ino),
			slog.Int64("offset", offset),
			slog.Int("len", len(data)),
		)
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *openFileService) Truncate(ctx context.Context, fh uint64, size int64) error {
	const op = "service.openFileService.Truncate"

	h, err := s.handle(fh)
	if err != nil {
		return err
	}
	if err := h.Buffer.Truncate(size); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TruncateInode goes through an open handle of ino when there is one, so
// that its buffer does not later overwrite the truncation. Otherwise the
// remote content is truncated directly: zero size is a plain empty write,
// anything else is read, resized and written back.
func (s *openFileService) TruncateInode(ctx context.Context, ino models.InodeID, size int64) error {
	const op = "service.openFileService.TruncateInode"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if size < 0 {
		return buffer.ErrInvalidOffset
	}

	if h, ok := s.handles.FindByInode(ino); ok {
		logger.Debug("Truncating through open handle", slogext.Ino("ino", ino), slog.Uint64("fh", h.ID))
		if err := h.Buffer.Truncate(size); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return s.flushHandle(ctx, h, true)
	}

	if size == 0 {
		if err := s.fs.Write(ctx, ino, nil); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	content, err := s.fs.Read(ctx, ino)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	buf := buffer.New(content, buffer.Clean, s.maxFileSize)
	if err := buf.Truncate(size); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := buf.Flush(true, func(content []byte) error {
		return s.fs.Write(ctx, ino, content)
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug("Remote file truncated", slogext.Ino("ino", ino), slog.Int64("size", size))
	return nil
}

func (s *openFileService) Flush(ctx context.Context, fh uint64, force bool) error {
	h, err := s.handle(fh)
	if err != nil {
		return err
	}
	return s.flushHandle(ctx, h, force)
}

func (s *openFileService) flushHandle(ctx context.Context, h *models.FileHandle, force bool) error {
	const op = "service.openFileService.flushHandle"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	var size int
	wrote, err := h.Buffer.Flush(force, func(content []byte) error {
		size = len(content)
		return s.fs.Write(ctx, h.Ino, content)
	})
	if err != nil {
		logger.Warn("Write-back failed, keeping dirty buffer",
			slogext.Err(err),
			slogext.Ino("ino", h.Ino),
			slog.Uint64("fh", h.ID),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	if wrote {
		logger.Debug("Buffer written back",
			slogext.Ino("ino", h.Ino),
			slog.Uint64("fh", h.ID),
			slog.String("size", units.BytesSize(float64(size))),
		)
	}
	return nil
}

// Release destroys the handle after writing back a dirty buffer. When the
// write-back fails the content is lost; the error is returned for logging
// only, since the kernel does not wait for a release result.
func (s *openFileService) Release(ctx context.Context, fh uint64) error {
	const op = "service.openFileService.Release"

	h, ok := s.handles.Delete(fh)
	if !ok {
		return syscall.EBADF
	}

	if err := s.flushHandle(ctx, h, false); err != nil {
		logging.GetLoggerFromContextWithOp(ctx, op).Error("Discarding unsaved data on release",
			slogext.Err(err),
			slogext.Ino("ino", h.Ino),
			slog.Uint64("fh", h.ID),
			slog.Int("size", h.Buffer.Size()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReleaseAll destroys every handle, writing back dirty buffers first. It
// returns how many write-backs failed.
func (s *openFileService) ReleaseAll(ctx context.Context) int {
	const op = "service.openFileService.ReleaseAll"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	failed := 0
	all := s.handles.DeleteAll()
	for _, h := range all {
		if err := s.flushHandle(ctx, h, false); err != nil {
			failed++
			logger.Error("Discarding unsaved data", slogext.Err(err), slogext.Ino("ino", h.Ino))
		}
	}

	logger.Debug("All handles released", slog.Int("handles", len(all)), slog.Int("failed", failed))
	return failed
}
