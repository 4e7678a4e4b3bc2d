package remotetest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/config"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/binary"
)

// Server exposes a Store for a single token.
type Server struct {
	*Store

	Token string
	URL   string
}

// NewServer starts an httptest server answering
// GET /{token}/fs/{operation}. It is closed when the test ends.
func NewServer(t testing.TB, token string) *Server {
	t.Helper()

	s := &Server{Store: NewStore(), Token: token}
	srv := httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(srv.Close)

	s.URL = srv.URL
	return s
}

// RemoteConfig returns a configuration pointing at the server.
func (s *Server) RemoteConfig() config.RemoteConfig {
	return config.RemoteConfig{
		BaseURL:     s.URL,
		Token:       s.Token,
		MaxFileSize: config.ByteSize(s.MaxFileSize()),
	}
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[1] != "fs" {
		http.NotFound(w, r)
		return
	}
	if parts[0] != s.Token {
		http.Error(w, "Unknown token", http.StatusUnauthorized)
		return
	}
	operation := parts[2]

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[operation]++

	if injection, ok := s.takeInjection(operation); ok {
		if injection.HTTPStatus != 0 {
			http.Error(w, "Injected failure", injection.HTTPStatus)
			return
		}
		_ = binary.WriteResponse(w, int64(injection.Status), injection.Payload)
		return
	}

	query := r.URL.Query()
	inode := func(key string) (models.InodeID, bool) {
		v, err := strconv.ParseUint(query.Get(key), 10, 64)
		return models.InodeID(v), err == nil
	}

	var (
		status  kerrors.Status
		payload []byte
	)

	switch operation {
	case "lookup":
		parent, ok := inode("parent")
		if !ok {
			http.Error(w, "Bad parent", http.StatusBadRequest)
			return
		}
		var info models.EntryInfo
		if info, status = s.lookup(parent, query.Get("name")); status == kerrors.StatusOK {
			payload, _ = binary.EncodeEntryInfo(info)
		}

	case "list":
		ino, ok := inode("inode")
		if !ok {
			http.Error(w, "Bad inode", http.StatusBadRequest)
			return
		}
		var entries []models.DirectoryEntry
		if entries, status = s.list(ino); status == kerrors.StatusOK {
			payload, _ = binary.EncodeListing(entries, uint64(len(entries)))
		}

	case "create":
		parent, ok := inode("parent")
		if !ok {
			http.Error(w, "Bad parent", http.StatusBadRequest)
			return
		}
		var entryType models.EntryType
		switch query.Get("type") {
		case "file":
			entryType = models.EntryTypeFile
		case "directory":
			entryType = models.EntryTypeDir
		default:
			http.Error(w, "Bad type", http.StatusBadRequest)
			return
		}
		var ino models.InodeID
		if ino, status = s.create(parent, query.Get("name"), entryType); status == kerrors.StatusOK {
			payload = binary.EncodeInode(ino)
		}

	case "read":
		ino, ok := inode("inode")
		if !ok {
			http.Error(w, "Bad inode", http.StatusBadRequest)
			return
		}
		var content []byte
		if content, status = s.read(ino); status == kerrors.StatusOK {
			payload = binary.EncodeContent(content)
		}

	case "write":
		ino, ok := inode("inode")
		if !ok {
			http.Error(w, "Bad inode", http.StatusBadRequest)
			return
		}
		status = s.write(ino, []byte(query.Get("content")))

	case "unlink", "rmdir":
		parent, ok := inode("parent")
		if !ok {
			http.Error(w, "Bad parent", http.StatusBadRequest)
			return
		}
		status = s.removeChild(parent, query.Get("name"), operation == "rmdir")

	case "link":
		source, ok1 := inode("source")
		parent, ok2 := inode("parent")
		if !ok1 || !ok2 {
			http.Error(w, "Bad inode", http.StatusBadRequest)
			return
		}
		status = s.link(source, parent, query.Get("name"))

	default:
		http.NotFound(w, r)
		return
	}

	_ = binary.WriteResponse(w, int64(status), payload)
}
