package repository

import (
	"sync"
	"sync/atomic"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/buffer"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	handleRepositoryPrometheusMetrics sync.Once

	openFileHandles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "networkfs",
			Subsystem: "handles",
			Name:      "open_file_handles",
			Help:      "Number of file handles currently open.",
		})
)

// HandleRepository is the session's table of open files, keyed by the handle
// id given to the kernel.
type HandleRepository interface {
	Add(ino models.InodeID, buf *buffer.Buffer) *models.FileHandle
	Get(fh uint64) (*models.FileHandle, bool)
	// FindByInode returns the most recently opened handle of ino.
	FindByInode(ino models.InodeID) (*models.FileHandle, bool)
	Delete(fh uint64) (*models.FileHandle, bool)
	DeleteAll() []*models.FileHandle
	Len() int
}

type handleRepository struct {
	lastID atomic.Uint64

	mu      sync.RWMutex
	handles map[uint64]*models.FileHandle // GUARDED_BY(mu)
}

func NewHandleRepository() HandleRepository {
	handleRepositoryPrometheusMetrics.Do(func() {
		prometheus.MustRegister(openFileHandles)
	})

	return &handleRepository{handles: make(map[uint64]*models.FileHandle)}
}

// Add registers a new handle. Ids start at 1 and are never reused.
func (r *handleRepository) Add(ino models.InodeID, buf *buffer.Buffer) *models.FileHandle {
	h := &models.FileHandle{
		ID:     r.lastID.Add(1),
		Ino:    ino,
		Buffer: buf,
	}

	r.mu.Lock()
	r.handles[h.ID] = h
	r.mu.Unlock()

	openFileHandles.Inc()
	return h
}

func (r *handleRepository) Get(fh uint64) (*models.FileHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[fh]
	return h, ok
}

func (r *handleRepository) FindByInode(ino models.InodeID) (*models.FileHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.FileHandle
	for _, h := range r.handles {
		if h.Ino == ino && (found == nil || h.ID > found.ID) {
			found = h
		}
	}
	return found, found != nil
}

func (r *handleRepository) Delete(fh uint64) (*models.FileHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[fh]
	if !ok {
		return nil, false
	}
	delete(r.handles, fh)
	openFileHandles.Dec()
	return h, true
}

func (r *handleRepository) DeleteAll() []*models.FileHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*models.FileHandle, 0, len(r.handles))
	for _, h := range r.handles {
		all = append(all, h)
	}
	clear(r.handles)
	openFileHandles.Sub(float64(len(all)))
	return all
}

func (r *handleRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
