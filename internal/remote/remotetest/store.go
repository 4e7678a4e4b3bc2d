// Package remotetest serves an in-memory remote store over httptest, speaking
// the same wire protocol as the real networkfs backend.
package remotetest

import (
	"slices"
	"sync"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/pkg/kerrors"
)

// DefaultMaxFileSize matches the file limit of the production store.
const DefaultMaxFileSize = 512

type node struct {
	entryType models.EntryType
	content   []byte
	children  []models.DirectoryEntry
	refCount  int
}

// Store is the authoritative tree of one token. All methods are safe for
// concurrent use.
type Store struct {
	mu sync.Mutex

	nodes       map[models.InodeID]*node
	nextIno     models.InodeID
	maxFileSize int

	calls      map[string]int
	writes     []WriteCall
	injections map[string][]Injection
}

// WriteCall records one successful remote write.
type WriteCall struct {
	Ino     models.InodeID
	Content []byte
}

// Injection replaces the next reply to one operation. A non-zero HTTPStatus
// fails the call at the transport level; otherwise Status and Payload are
// sent verbatim.
type Injection struct {
	HTTPStatus int
	Status     kerrors.Status
	Payload    []byte
}

func NewStore() *Store {
	return &Store{
		nodes: map[models.InodeID]*node{
			models.RootInodeID: {entryType: models.EntryTypeDir, refCount: 1},
		},
		nextIno:     1000,
		maxFileSize: DefaultMaxFileSize,
		calls:       make(map[string]int),
		injections:  make(map[string][]Injection),
	}
}

// SetNextInode fixes the identifier the next create will return.
func (s *Store) SetNextInode(ino models.InodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextIno = ino
}

func (s *Store) SetMaxFileSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxFileSize = size
}

func (s *Store) MaxFileSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxFileSize
}

// Inject queues a canned reply for the next call of operation.
func (s *Store) Inject(operation string, injection Injection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injections[operation] = append(s.injections[operation], injection)
}

func (s *Store) takeInjection(operation string) (Injection, bool) {
	queue := s.injections[operation]
	if len(queue) == 0 {
		return Injection{}, false
	}
	s.injections[operation] = queue[1:]
	return queue[0], true
}

// Calls returns how many times operation reached the store.
func (s *Store) Calls(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[operation]
}

func (s *Store) Writes() []WriteCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.writes)
}

// Content returns a copy of a file's bytes.
func (s *Store) Content(ino models.InodeID) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[ino]
	if !ok || n.entryType != models.EntryTypeFile {
		return nil, false
	}
	return slices.Clone(n.content), true
}

// MustCreate adds an entry directly, bypassing the HTTP layer.
func (s *Store) MustCreate(parent models.InodeID, name string, entryType models.EntryType) models.InodeID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ino, status := s.create(parent, name, entryType)
	if status != kerrors.StatusOK {
		panic("remotetest: create " + name + ": " + status.String())
	}
	return ino
}

// SetContent replaces a file's bytes directly, without size checks.
func (s *Store) SetContent(ino models.InodeID, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[ino].content = slices.Clone(content)
}

func (s *Store) dir(ino models.InodeID) (*node, kerrors.Status) {
	n, ok := s.nodes[ino]
	if !ok {
		return nil, kerrors.StatusNoInode
	}
	if n.entryType != models.EntryTypeDir {
		return nil, kerrors.StatusNotDir
	}
	return n, kerrors.StatusOK
}

func (s *Store) file(ino models.InodeID) (*node, kerrors.Status) {
	n, ok := s.nodes[ino]
	if !ok {
		return nil, kerrors.StatusNoInode
	}
	if n.entryType != models.EntryTypeFile {
		return nil, kerrors.StatusNotFile
	}
	return n, kerrors.StatusOK
}

func childIndex(dir *node, name string) int {
	return slices.IndexFunc(dir.children, func(e models.DirectoryEntry) bool {
		return e.Name == name
	})
}

func (s *Store) lookup(parent models.InodeID, name string) (models.EntryInfo, kerrors.Status) {
	if len(name) > models.MaxNameLen {
		return models.EntryInfo{}, kerrors.StatusNameTooLong
	}
	dir, status := s.dir(parent)
	if status != kerrors.StatusOK {
		return models.EntryInfo{}, status
	}
	i := childIndex(dir, name)
	if i < 0 {
		return models.EntryInfo{}, kerrors.StatusNoName
	}
	return models.EntryInfo{Type: dir.children[i].Type, Ino: dir.children[i].Ino}, kerrors.StatusOK
}

func (s *Store) list(ino models.InodeID) ([]models.DirectoryEntry, kerrors.Status) {
	dir, status := s.dir(ino)
	if status != kerrors.StatusOK {
		return nil, status
	}
	return slices.Clone(dir.children), kerrors.StatusOK
}

func (s *Store) addChild(parent models.InodeID, entry models.DirectoryEntry) kerrors.Status {
	if len(entry.Name) > models.MaxNameLen {
		return kerrors.StatusNameTooLong
	}
	dir, status := s.dir(parent)
	if status != kerrors.StatusOK {
		return status
	}
	if childIndex(dir, entry.Name) >= 0 {
		return kerrors.StatusExists
	}
	if len(dir.children) >= models.MaxListingEntries {
		return kerrors.StatusDirFull
	}
	dir.children = append(dir.children, entry)
	return kerrors.StatusOK
}

func (s *Store) create(parent models.InodeID, name string, entryType models.EntryType) (models.InodeID, kerrors.Status) {
	ino := s.nextIno
	if status := s.addChild(parent, models.DirectoryEntry{Type: entryType, Ino: ino, Name: name}); status != kerrors.StatusOK {
		return 0, status
	}
	s.nodes[ino] = &node{entryType: entryType, refCount: 1}
	s.nextIno++
	return ino, kerrors.StatusOK
}

func (s *Store) read(ino models.InodeID) ([]byte, kerrors.Status) {
	f, status := s.file(ino)
	if status != kerrors.StatusOK {
		return nil, status
	}
	return f.content, kerrors.StatusOK
}

func (s *Store) write(ino models.InodeID, content []byte) kerrors.Status {
	f, status := s.file(ino)
	if status != kerrors.StatusOK {
		return status
	}
	if len(content) > s.maxFileSize {
		return kerrors.StatusFileTooBig
	}
	f.content = slices.Clone(content)
	s.writes = append(s.writes, WriteCall{Ino: ino, Content: slices.Clone(content)})
	return kerrors.StatusOK
}

func (s *Store) removeChild(parent models.InodeID, name string, wantDir bool) kerrors.Status {
	dir, status := s.dir(parent)
	if status != kerrors.StatusOK {
		return status
	}
	i := childIndex(dir, name)
	if i < 0 {
		return kerrors.StatusNoName
	}

	ino := dir.children[i].Ino
	target := s.nodes[ino]
	switch {
	case wantDir && target.entryType != models.EntryTypeDir:
		return kerrors.StatusNotDir
	case wantDir && len(target.children) > 0:
		return kerrors.StatusNotEmpty
	case !wantDir && target.entryType != models.EntryTypeFile:
		return kerrors.StatusNotFile
	}

	dir.children = slices.Delete(dir.children, i, i+1)
	target.refCount--
	if target.refCount == 0 {
		delete(s.nodes, ino)
	}
	return kerrors.StatusOK
}

func (s *Store) link(source, parent models.InodeID, name string) kerrors.Status {
	target, status := s.file(source)
	if status != kerrors.StatusOK {
		return status
	}
	if status := s.addChild(parent, models.DirectoryEntry{Type: models.EntryTypeFile, Ino: source, Name: name}); status != kerrors.StatusOK {
		return status
	}
	target.refCount++
	return kerrors.StatusOK
}
