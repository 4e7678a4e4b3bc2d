package handler

import (
	"log/slog"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging/slogext"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// dirEntrySink receives readdir records until it runs out of room.
// *fuse.DirEntryList implements it.
type dirEntrySink interface {
	AddDirEntry(e fuse.DirEntry) bool
}

func (h *Handler) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	const op = "handler.Handler.Mkdir"

	ctx := h.requestContext(cancel)

	ino, err := h.fs.Create(ctx, models.InodeID(input.NodeId), name, models.EntryTypeDir)
	if err != nil {
		return h.fail(ctx, op, err, kerrors.CreateTable)
	}

	h.fillEntry(out, ino, models.EntryTypeDir, 0)
	return fuse.OK
}

func (h *Handler) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	const op = "handler.Handler.Rmdir"

	ctx := h.requestContext(cancel)

	if err := h.fs.Rmdir(ctx, models.InodeID(header.NodeId), name); err != nil {
		return h.fail(ctx, op, err, kerrors.RmdirTable)
	}
	return fuse.OK
}

// OpenDir keeps no per-directory state: every ReadDir lists afresh.
func (h *Handler) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	return fuse.OK
}

func (h *Handler) ReleaseDir(input *fuse.ReleaseIn) {}

func (h *Handler) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	return h.readDir(cancel, input, out)
}

// readDir emits the listing from the entry after cookie input.Offset. The
// cookie of every entry is its 1-based index in the listing, so a page cut
// short by the sink resumes exactly where it stopped.
func (h *Handler) readDir(cancel <-chan struct{}, input *fuse.ReadIn, out dirEntrySink) fuse.Status {
	const op = "handler.Handler.ReadDir"

	ctx := h.requestContext(cancel)
	ino := models.InodeID(input.NodeId)

	listing, err := h.fs.List(ctx, ino)
	if err != nil {
		return h.fail(ctx, op, err, kerrors.ListTable)
	}

	start := input.Offset
	if start > uint64(listing.Len()) {
		start = uint64(listing.Len())
	}

	emitted := 0
	for i := start; i < uint64(listing.Len()); i++ {
		entry := listing.Entries[i]
		if !out.AddDirEntry(fuse.DirEntry{
			Mode: entry.Type.Mode(),
			Name: entry.Name,
			Ino:  uint64(entry.Ino),
			Off:  i + 1,
		}) {
			break
		}
		emitted++
	}

	logging.GetLoggerFromContextWithOp(ctx, op).Debug("Directory page",
		slogext.Ino("ino", ino),
		slog.Uint64("offset", input.Offset),
		slog.Int("emitted", emitted),
	)
	return fuse.OK
}
