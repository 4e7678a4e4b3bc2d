package handler

import (
	"log/slog"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging/slogext"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

func (h *Handler) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	const op = "handler.Handler.Create"

	ctx := h.requestContext(cancel)

	handle, err := h.files.Create(ctx, models.InodeID(input.NodeId), name)
	if err != nil {
		return h.fail(ctx, op, err, kerrors.CreateTable)
	}

	h.fillEntry(&out.EntryOut, handle.Ino, models.EntryTypeFile, 0)
	out.Fh = handle.ID
	out.OpenFlags = h.openFlags()
	return fuse.OK
}

func (h *Handler) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	const op = "handler.Handler.Open"

	ctx := h.requestContext(cancel)
	truncate := input.Flags&unix.O_TRUNC != 0

	handle, err := h.files.Open(ctx, models.InodeID(input.NodeId), truncate)
	if err != nil {
		return h.fail(ctx, op, err, kerrors.Table{})
	}

	out.Fh = handle.ID
	out.OpenFlags = h.openFlags()
	return fuse.OK
}

func (h *Handler) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	const op = "handler.Handler.Read"

	ctx := h.requestContext(cancel)

	data, err := h.files.Read(ctx, input.Fh, int64(input.Offset), int(input.Size))
	if err != nil {
		return nil, h.fail(ctx, op, err, kerrors.Table{})
	}
	return fuse.ReadResultData(data), fuse.OK
}

func (h *Handler) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	const op = "handler.Handler.Write"

	ctx := h.requestContext(cancel)

	n, err := h.files.Write(ctx, input.Fh, int64(input.Offset), data)
	if err != nil {
		return 0, h.fail(ctx, op, err, kerrors.Table{})
	}
	return uint32(n), fuse.OK
}

// Flush runs on every close of a descriptor; a clean buffer is not sent
// again.
func (h *Handler) Flush(cancel <-chan struct{}, input *fuse.FlushIn) fuse.Status {
	const op = "handler.Handler.Flush"

	ctx := h.requestContext(cancel)

	if err := h.files.Flush(ctx, input.Fh, false); err != nil {
		return h.fail(ctx, op, err, kerrors.WriteTable)
	}
	return fuse.OK
}

func (h *Handler) Fsync(cancel <-chan struct{}, input *fuse.FsyncIn) fuse.Status {
	const op = "handler.Handler.Fsync"

	ctx := h.requestContext(cancel)

	if err := h.files.Flush(ctx, input.Fh, true); err != nil {
		return h.fail(ctx, op, err, kerrors.WriteTable)
	}
	return fuse.OK
}

func (h *Handler) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	const op = "handler.Handler.Release"

	ctx := h.requestContext(cancel)

	if err := h.files.Release(ctx, input.Fh); err != nil {
		logging.GetLoggerFromContextWithOp(ctx, op).Warn("Release failed",
			slogext.Err(err),
			slogext.Ino("ino", models.InodeID(input.NodeId)),
			slog.Uint64("fh", input.Fh),
		)
	}
}

func (h *Handler) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	const op = "handler.Handler.Unlink"

	ctx := h.requestContext(cancel)

	if err := h.fs.Unlink(ctx, models.InodeID(header.NodeId), name); err != nil {
		return h.fail(ctx, op, err, kerrors.UnlinkTable)
	}
	return fuse.OK
}
