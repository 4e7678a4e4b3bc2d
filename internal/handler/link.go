package handler

import (
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/pkg/kerrors"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Link replies with the source entry and a link count of at least two.
// Directories cannot be linked by the remote store.
func (h *Handler) Link(cancel <-chan struct{}, input *fuse.LinkIn, name string, out *fuse.EntryOut) fuse.Status {
	const op = "handler.Handler.Link"

	ctx := h.requestContext(cancel)
	source := models.InodeID(input.Oldnodeid)

	if err := h.fs.Link(ctx, source, models.InodeID(input.NodeId), name); err != nil {
		return h.fail(ctx, op, err, kerrors.LinkTable)
	}

	h.fillEntry(out, source, models.EntryTypeFile, h.openSize(source))
	out.Nlink = models.EntryTypeFile.LinkCount() + 1
	return fuse.OK
}
