package handler

import (
	"context"
	"log/slog"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging/slogext"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Set in GetAttrIn.Flags() when Fh() names an open handle.
const getAttrFh = 1 << 0

// Lookup reports size 0 for files that are not open here: the remote store
// only reveals the size by reading the file.
func (h *Handler) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	const op = "handler.Handler.Lookup"

	ctx := h.requestContext(cancel)

	info, err := h.fs.Lookup(ctx, models.InodeID(header.NodeId), name)
	if err != nil {
		return h.fail(ctx, op, err, kerrors.LookupTable)
	}

	var size uint64
	if !info.Type.IsDir() {
		size = h.openSize(info.Ino)
	}
	h.fillEntry(out, info.Ino, info.Type, size)
	return fuse.OK
}

func (h *Handler) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	ctx := h.requestContext(cancel)

	var fh uint64
	if input.Flags()&getAttrFh != 0 {
		fh = input.Fh()
	}
	return h.getAttr(ctx, models.InodeID(input.NodeId), fh, out)
}

// getAttr answers from an open handle when there is one, preferring fh.
// Otherwise the remote store is asked for a listing: success means a
// directory, "not a directory" means a file of unknown size.
func (h *Handler) getAttr(ctx context.Context, ino models.InodeID, fh uint64, out *fuse.AttrOut) fuse.Status {
	const op = "handler.Handler.getAttr"

	handle, ok := h.files.Handle(fh)
	if !ok || handle.Ino != ino {
		handle, ok = h.files.HandleOf(ino)
	}
	if ok {
		h.fillAttr(&out.Attr, ino, models.EntryTypeFile, uint64(handle.Buffer.Size()))
		out.SetTimeout(h.opts.AttrTimeout)
		return fuse.OK
	}

	_, err := h.fs.List(ctx, ino)
	if err == nil {
		h.fillAttr(&out.Attr, ino, models.EntryTypeDir, 0)
		out.SetTimeout(h.opts.AttrTimeout)
		return fuse.OK
	}

	status, isStatus := kerrors.StatusOf(err)
	switch {
	case isStatus && status == kerrors.StatusNotDir:
		h.fillAttr(&out.Attr, ino, models.EntryTypeFile, 0)
		out.SetTimeout(h.opts.AttrTimeout)
		return fuse.OK
	case isStatus:
		logging.GetLoggerFromContextWithOp(ctx, op).Debug("Listing found no entry",
			slogext.Ino("ino", ino),
			slog.String("status", status.String()),
		)
		return fuse.ENOENT
	default:
		return h.fail(ctx, op, err, kerrors.Table{})
	}
}

// SetAttr honors only the size. Other changes are accepted and ignored, and
// the reply carries the current attributes.
func (h *Handler) SetAttr(cancel <-chan struct{}, input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	const op = "handler.Handler.SetAttr"

	ctx := h.requestContext(cancel)
	ino := models.InodeID(input.NodeId)
	fh, hasFh := input.GetFh()

	size, hasSize := input.GetSize()
	if !hasSize {
		return h.getAttr(ctx, ino, fh, out)
	}

	var err error
	if handle, ok := h.files.Handle(fh); hasFh && ok && handle.Ino == ino {
		err = h.files.Truncate(ctx, fh, int64(size))
	} else {
		err = h.files.TruncateInode(ctx, ino, int64(size))
	}
	if err != nil {
		return h.fail(ctx, op, err, kerrors.TruncateTable)
	}

	logging.GetLoggerFromContextWithOp(ctx, op).Debug("Size set", slogext.Ino("ino", ino), slog.Uint64("size", size))

	h.fillAttr(&out.Attr, ino, models.EntryTypeFile, size)
	out.SetTimeout(h.opts.AttrTimeout)
	return fuse.OK
}
