package models

import (
	"sync"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/buffer"
	"golang.org/x/sys/unix"
)

// InodeID is the identifier the remote store assigns to every entry.
type InodeID uint64

// RootInodeID is the well-known identifier of the root directory. It matches
// the kernel's root node id, so no translation is needed at the boundary.
const RootInodeID InodeID = 1

const (
	MaxNameLen        = 255
	MaxListingEntries = 16
)

type EntryType uint8

const (
	EntryTypeDir  EntryType = unix.DT_DIR // DT_DIR
	EntryTypeFile EntryType = unix.DT_REG // DT_REG
)

const (
	S_IFDIR = 0o040000 // Directory
	S_IFREG = 0o100000 // Regular file

	DirPerm  = 0o755
	FilePerm = 0o644
)

func (t EntryType) IsDir() bool {
	return t == EntryTypeDir
}

// Mode returns the file type and permission bits reported to the kernel.
func (t EntryType) Mode() uint32 {
	if t.IsDir() {
		return S_IFDIR | DirPerm
	}
	return S_IFREG | FilePerm
}

// LinkCount is the nominal link count: directories report 2, files 1.
func (t EntryType) LinkCount() uint32 {
	if t.IsDir() {
		return 2
	}
	return 1
}

func (t EntryType) String() string {
	switch t {
	case EntryTypeDir:
		return "directory"
	case EntryTypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// EntryInfo is the payload of a successful lookup.
type EntryInfo struct {
	Type EntryType
	Ino  InodeID
}

type DirectoryEntry struct {
	Type EntryType
	Ino  InodeID
	Name string
}

// DirectoryListing is the server-ordered content of one directory. It never
// holds more than MaxListingEntries entries.
type DirectoryListing struct {
	Entries []DirectoryEntry
}

func (l *DirectoryListing) Len() int {
	return len(l.Entries)
}

// Session holds the opaque credential of one mounted filesystem. It is
// created at mount time and cleared exactly once when the session ends.
type Session struct {
	mu    sync.RWMutex
	token string // GUARDED_BY(mu)
}

func NewSession(token string) *Session {
	return &Session{token: token}
}

// Token returns the credential, or "" after Close.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Close clears the credential. It reports whether this call did so.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return false
	}
	s.token = ""
	return true
}

// FileHandle is the state of one open instance of a file. Ino never changes
// after creation; the buffer is owned by this handle alone.
type FileHandle struct {
	ID     uint64
	Ino    InodeID
	Buffer *buffer.Buffer
}
