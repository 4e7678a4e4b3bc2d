package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"syscall"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/remote"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/binary"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging/slogext"
)

// ErrSessionClosed is returned once the session credential has been cleared.
var ErrSessionClosed = errors.New("session closed")

// FileSystemService exposes the remote store's operations with typed
// arguments and decoded replies. A non-success remote status comes back as
// a *kerrors.StatusError.
type FileSystemService interface {
	Lookup(ctx context.Context, parent models.InodeID, name string) (models.EntryInfo, error)
	List(ctx context.Context, ino models.InodeID) (*models.DirectoryListing, error)
	Create(ctx context.Context, parent models.InodeID, name string, entryType models.EntryType) (models.InodeID, error)
	Read(ctx context.Context, ino models.InodeID) ([]byte, error)
	Write(ctx context.Context, ino models.InodeID, content []byte) error
	Unlink(ctx context.Context, parent models.InodeID, name string) error
	Rmdir(ctx context.Context, parent models.InodeID, name string) error
	Link(ctx context.Context, source, parent models.InodeID, name string) error
}

type fileSystemService struct {
	session *models.Session
	caller  remote.Caller
}

func NewFileSystemService(session *models.Session, caller remote.Caller) FileSystemService {
	return &fileSystemService{
		session: session,
		caller:  caller,
	}
}

// call performs req and turns a non-success status into a StatusError.
func (s *fileSystemService) call(ctx context.Context, req *remote.Request) ([]byte, error) {
	token := s.session.Token()
	if token == "" {
		return nil, ErrSessionClosed
	}

	resp, err := s.caller.Call(ctx, token, req)
	if err != nil {
		return nil, err
	}
	if resp.Status != kerrors.StatusOK {
		return nil, &kerrors.StatusError{Op: req.Operation, Status: resp.Status}
	}
	return resp.Payload, nil
}

func checkName(name string) error {
	if len(name) > models.MaxNameLen {
		return syscall.ENAMETOOLONG
	}
	return nil
}

func entryParams(parent models.InodeID, name string) url.Values {
	return url.Values{
		"parent": {binary.FormatInode(parent)},
		"name":   {name},
	}
}

func (s *fileSystemService) Lookup(ctx context.Context, parent models.InodeID, name string) (models.EntryInfo, error) {
	const op = "service.fileSystemService.Lookup"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Lookup", slogext.Ino("parent_ino", parent), slog.String("name", name))

	if err := checkName(name); err != nil {
		return models.EntryInfo{}, err
	}

	payload, err := s.call(ctx, &remote.Request{
		Operation: remote.OpLookup,
		Params:    entryParams(parent, name),
		Capacity:  binary.EntryInfoSize,
	})
	if err != nil {
		return models.EntryInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	info, err := binary.DecodeEntryInfo(payload)
	if err != nil {
		logger.Error("Failed to decode lookup reply", slogext.Err(err))
		return models.EntryInfo{}, fmt.Errorf("%s: %w", op, err)
	}
	if info.Type != models.EntryTypeDir && info.Type != models.EntryTypeFile {
		logger.Error("Lookup reply carries unknown entry type", slog.Int("type", int(info.Type)))
		return models.EntryInfo{}, fmt.Errorf("%s: %w: entry type %d", op, binary.ErrMalformed, info.Type)
	}

	logger.Debug("Lookup successful", slogext.Ino("ino", info.Ino), slog.String("type", info.Type.String()))
	return info, nil
}

func (s *fileSystemService) List(ctx context.Context, ino models.InodeID) (*models.DirectoryListing, error) {
	const op = "service.fileSystemService.List"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("List", slogext.Ino("ino", ino))

	payload, err := s.call(ctx, &remote.Request{
		Operation: remote.OpList,
		Params:    url.Values{"inode": {binary.FormatInode(ino)}},
		Capacity:  binary.ListingSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	listing, declared, err := binary.DecodeListing(payload)
	if err != nil {
		logger.Error("Failed to decode listing", slogext.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if declared != uint64(listing.Len()) {
		logger.Warn("Listing clamped; directories over 16 entries are not supported",
			slog.Uint64("declared", declared),
			slog.Int("decoded", listing.Len()),
		)
	}

	logger.Debug("List successful", slog.Int("entries", listing.Len()))
	return listing, nil
}

func (s *fileSystemService) Create(ctx context.Context, parent models.InodeID, name string, entryType models.EntryType) (models.InodeID, error) {
	const op = "service.fileSystemService.Create"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Create",
		slogext.Ino("parent_ino", parent),
		slog.String("name", name),
		slog.String("type", entryType.String()),
	)

	if err := checkName(name); err != nil {
		return 0, err
	}

	params := entryParams(parent, name)
	if entryType.IsDir() {
		params.Set("type", "directory")
	} else {
		params.Set("type", "file")
	}

	payload, err := s.call(ctx, &remote.Request{
		Operation: remote.OpCreate,
		Params:    params,
		Capacity:  binary.WordSize,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	ino, err := binary.DecodeInode(payload)
	if err != nil {
		logger.Error("Failed to decode create reply", slogext.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug("Create successful", slogext.Ino("ino", ino))
	return ino, nil
}

func (s *fileSystemService) Read(ctx context.Context, ino models.InodeID) ([]byte, error) {
	const op = "service.fileSystemService.Read"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	payload, err := s.call(ctx, &remote.Request{
		Operation: remote.OpRead,
		Params:    url.Values{"inode": {binary.FormatInode(ino)}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	content, err := binary.DecodeContent(payload)
	if err != nil {
		logger.Error("Failed to decode read reply", slogext.Err(err), slogext.Ino("ino", ino))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug("Read successful", slogext.Ino("ino", ino), slog.Int("size", len(content)))
	return content, nil
}

func (s *fileSystemService) Write(ctx context.Context, ino models.InodeID, content []byte) error {
	const op = "service.fileSystemService.Write"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	_, err := s.call(ctx, &remote.Request{
		Operation: remote.OpWrite,
		Params: url.Values{
			"inode":   {binary.FormatInode(ino)},
			"content": {string(content)},
		},
	})
	if err != nil {
		logger.Warn("Write failed", slogext.Err(err), slogext.Ino("ino", ino))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug("Write successful", slogext.Ino("ino", ino), slog.Int("size", len(content)))
	return nil
}

func (s *fileSystemService) Unlink(ctx context.Context, parent models.InodeID, name string) error {
	const op = "service.fileSystemService.Unlink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Unlink", slogext.Ino("parent_ino", parent), slog.String("name", name))

	if err := checkName(name); err != nil {
		return err
	}

	if _, err := s.call(ctx, &remote.Request{Operation: remote.OpUnlink, Params: entryParams(parent, name)}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *fileSystemService) Rmdir(ctx context.Context, parent models.InodeID, name string) error {
	const op = "service.fileSystemService.Rmdir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Rmdir", slogext.Ino("parent_ino", parent), slog.String("name", name))

	if err := checkName(name); err != nil {
		return err
	}

	if _, err := s.call(ctx, &remote.Request{Operation: remote.OpRmdir, Params: entryParams(parent, name)}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *fileSystemService) Link(ctx context.Context, source, parent models.InodeID, name string) error {
	const op = "service.fileSystemService.Link"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Link",
		slogext.Ino("source_ino", source),
		slogext.Ino("parent_ino", parent),
		slog.String("name", name),
	)

	if err := checkName(name); err != nil {
		return err
	}

	params := entryParams(parent, name)
	params.Set("source", binary.FormatInode(source))

	if _, err := s.call(ctx, &remote.Request{Operation: remote.OpLink, Params: params}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
