package handler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/buffer"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/middleware"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/remote"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/service"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging/slogext"
	"github.com/hanwen/go-fuse/v2/fuse"
)

type Options struct {
	// AttrTimeout is how long the kernel may cache getattr replies.
	AttrTimeout time.Duration
	// EntryTimeout applies to both the name and the attributes of lookup
	// replies.
	EntryTimeout time.Duration
	// PageCache lets the kernel cache file content instead of sending every
	// read and write here.
	PageCache bool

	Uid uint32
	Gid uint32
}

// DefaultOptions reports files as owned by the current process.
func DefaultOptions() Options {
	return Options{
		AttrTimeout: time.Second,
		Uid:         uint32(os.Getuid()),
		Gid:         uint32(os.Getgid()),
	}
}

// Handler answers kernel requests for one mounted session. Operations it
// does not override fall through to the default implementation, which
// replies ENOSYS.
type Handler struct {
	fuse.RawFileSystem

	ctx     context.Context
	session *models.Session
	fs      service.FileSystemService
	files   service.OpenFileService
	opts    Options

	unmountOnce sync.Once
}

var _ fuse.RawFileSystem = (*Handler)(nil)

// NewHandler returns a handler whose requests inherit the values of ctx,
// its logger in particular.
func NewHandler(
	ctx context.Context,
	session *models.Session,
	fs service.FileSystemService,
	files service.OpenFileService,
	opts Options,
) *Handler {
	return &Handler{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		ctx:           ctx,
		session:       session,
		fs:            fs,
		files:         files,
		opts:          opts,
	}
}

func (h *Handler) String() string {
	return "networkfs"
}

func (h *Handler) requestContext(cancel <-chan struct{}) context.Context {
	return middleware.NewRequestContext(h.ctx, cancel)
}

// errno picks the reply for a failed operation. Local failures have fixed
// meanings; remote ones go through the operation's table.
func errno(ctx context.Context, err error, table kerrors.Table) syscall.Errno {
	switch {
	case errors.Is(err, buffer.ErrFileTooLarge):
		return syscall.EFBIG
	case errors.Is(err, buffer.ErrInvalidOffset):
		return syscall.EINVAL
	case errors.Is(err, service.ErrSessionClosed):
		return syscall.ENOTCONN
	case kerrors.IsTransport(err) && remote.IsCanceled(ctx, err):
		return syscall.EINTR
	}
	return kerrors.ToErrno(err, table)
}

func (h *Handler) fail(ctx context.Context, op string, err error, table kerrors.Table) fuse.Status {
	e := errno(ctx, err, table)

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	if e == syscall.EIO {
		logger.Warn("Operation failed", slogext.Err(err))
	} else {
		logger.Debug("Operation failed", slogext.Err(err), slog.String("errno", e.Error()))
	}
	return fuse.Status(e)
}

func (h *Handler) fillAttr(attr *fuse.Attr, ino models.InodeID, entryType models.EntryType, size uint64) {
	attr.Ino = uint64(ino)
	attr.Mode = entryType.Mode()
	attr.Nlink = entryType.LinkCount()
	attr.Size = size
	attr.Blocks = (size + 511) / 512
	attr.Owner = fuse.Owner{Uid: h.opts.Uid, Gid: h.opts.Gid}
}

func (h *Handler) fillEntry(out *fuse.EntryOut, ino models.InodeID, entryType models.EntryType, size uint64) {
	out.NodeId = uint64(ino)
	out.Generation = 0
	h.fillAttr(&out.Attr, ino, entryType, size)
	out.SetEntryTimeout(h.opts.EntryTimeout)
	out.SetAttrTimeout(h.opts.EntryTimeout)
}

// openSize is the size of ino as seen through an open handle, if any.
func (h *Handler) openSize(ino models.InodeID) uint64 {
	if handle, ok := h.files.HandleOf(ino); ok {
		return uint64(handle.Buffer.Size())
	}
	return 0
}

func (h *Handler) openFlags() uint32 {
	if h.opts.PageCache {
		return 0
	}
	return fuse.FOPEN_DIRECT_IO
}

func (h *Handler) Init(server *fuse.Server) {
	logging.GetLoggerFromContextWithOp(h.ctx, "handler.Handler.Init").Info("Filesystem session started")
}

// OnUnmount writes back and destroys every open handle, then clears the
// session credential. Later calls do nothing.
func (h *Handler) OnUnmount() {
	const op = "handler.Handler.OnUnmount"

	h.unmountOnce.Do(func() {
		logger := logging.GetLoggerFromContextWithOp(h.ctx, op)

		if failed := h.files.ReleaseAll(h.ctx); failed > 0 {
			logger.Error("Unsaved data lost on unmount", slog.Int("handles", failed))
		}
		h.session.Close()

		logger.Info("Filesystem session ended")
	})
}

func (h *Handler) StatFs(cancel <-chan struct{}, header *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	out.Bsize = 512
	out.Frsize = 512
	out.NameLen = models.MaxNameLen
	return fuse.OK
}

func (h *Handler) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	return fuse.OK
}

func (h *Handler) Forget(nodeID, nLookup uint64) {}
