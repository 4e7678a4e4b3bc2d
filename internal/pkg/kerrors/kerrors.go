package kerrors

import (
	"errors"
	"fmt"
	"syscall"
)

// Status is the filesystem-level code the remote store puts in front of
// every reply body.
type Status int64

// Remote status codes
const (
	StatusOK          Status = 0
	StatusNoInode     Status = 1 // No entry with such inode
	StatusNotFile     Status = 2 // Entry is not a file
	StatusNotDir      Status = 3 // Entry is not a directory
	StatusNoName      Status = 4 // No entry with such name in directory
	StatusExists      Status = 5 // Entry with such name already exists
	StatusFileTooBig  Status = 6 // File content exceeds the store limit
	StatusDirFull     Status = 7 // Directory entry limit reached
	StatusNotEmpty    Status = 8 // Directory is not empty
	StatusNameTooLong Status = 9 // Name exceeds the store limit
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoInode:
		return "ENOENT"
	case StatusNotFile:
		return "ENOTFILE"
	case StatusNotDir:
		return "ENOTDIR"
	case StatusNoName:
		return "ENOENT_DIR"
	case StatusExists:
		return "EEXIST"
	case StatusFileTooBig:
		return "EFBIG"
	case StatusDirFull:
		return "ENOSPC_DIR"
	case StatusNotEmpty:
		return "ENOTEMPTY"
	case StatusNameTooLong:
		return "ENAMETOOLONG"
	default:
		return fmt.Sprintf("STATUS_%d", int64(s))
	}
}

// StatusError is a non-success status returned by the remote store.
type StatusError struct {
	Op     string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote %s: status %s", e.Op, e.Status)
}

// TransportError means no usable reply was obtained: the request failed, the
// HTTP status was not 200 or the body was too short to carry a status.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusOf extracts the remote status from err. ok is false for transport
// and local errors.
func StatusOf(err error) (Status, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Table maps the remote statuses meaningful to one operation onto errno
// values. Any other status collapses to Default, or EIO when Default is unset.
type Table struct {
	Codes   map[Status]syscall.Errno
	Default syscall.Errno
}

// Per-operation translation tables
var (
	LookupTable = Table{Codes: map[Status]syscall.Errno{
		StatusNoInode:     syscall.ENOENT,
		StatusNotDir:      syscall.ENOENT,
		StatusNoName:      syscall.ENOENT,
		StatusNameTooLong: syscall.ENAMETOOLONG,
	}}
	ListTable = Table{Codes: map[Status]syscall.Errno{
		StatusNoInode: syscall.ENOENT,
		StatusNotDir:  syscall.ENOTDIR,
	}}
	CreateTable = Table{Codes: map[Status]syscall.Errno{
		StatusExists:      syscall.EEXIST,
		StatusDirFull:     syscall.ENOSPC,
		StatusNameTooLong: syscall.ENAMETOOLONG,
	}}
	UnlinkTable = Table{Codes: map[Status]syscall.Errno{
		StatusNoInode: syscall.ENOENT,
		StatusNoName:  syscall.ENOENT,
		StatusNotFile: syscall.EISDIR,
	}}
	RmdirTable = Table{Codes: map[Status]syscall.Errno{
		StatusNoInode:  syscall.ENOENT,
		StatusNoName:   syscall.ENOENT,
		StatusNotDir:   syscall.ENOTDIR,
		StatusNotEmpty: syscall.ENOTEMPTY,
	}}
	TruncateTable = Table{Codes: map[Status]syscall.Errno{
		StatusNoInode:    syscall.ENOENT,
		StatusNotFile:    syscall.EISDIR,
		StatusFileTooBig: syscall.EFBIG,
	}}
	LinkTable  = Table{Default: syscall.EEXIST}
	WriteTable = Table{}
)

// ToErrno translates err for one operation. Transport failures are always
// EIO so that they are never mistaken for a definitive "not found".
func ToErrno(err error, table Table) syscall.Errno {
	if err == nil {
		return 0
	}

	// Dial failures wrap errnos such as ECONNREFUSED.
	if IsTransport(err) {
		return syscall.EIO
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	status, ok := StatusOf(err)
	if !ok {
		return syscall.EIO
	}

	if errno, ok := table.Codes[status]; ok {
		return errno
	}
	if table.Default != 0 {
		return table.Default
	}
	return syscall.EIO
}
