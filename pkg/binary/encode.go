package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/http"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
)

func EncodeEntryInfo(info models.EntryInfo) ([]byte, error) {
	buf := new(bytes.Buffer)

	// type (u8, padded to 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, uint64(info.Type)); err != nil {
		return nil, fmt.Errorf("failed to encode type: %w", err)
	}

	// ino (u64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, uint64(info.Ino)); err != nil {
		return nil, fmt.Errorf("failed to encode ino: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodeListing writes the full fixed-size list reply. count is written as
// given, which lets callers produce listings that lie about their size.
func EncodeListing(entries []models.DirectoryEntry, count uint64) ([]byte, error) {
	if len(entries) > models.MaxListingEntries {
		return nil, fmt.Errorf("listing holds at most %d entries, got %d", models.MaxListingEntries, len(entries))
	}

	buf := new(bytes.Buffer)
	buf.Grow(ListingSize)

	// entries_count (u64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, count); err != nil {
		return nil, fmt.Errorf("failed to encode count: %w", err)
	}

	for i := 0; i < models.MaxListingEntries; i++ {
		var entry models.DirectoryEntry
		if i < len(entries) {
			entry = entries[i]
		}
		if len(entry.Name) > models.MaxNameLen {
			return nil, fmt.Errorf("entry %d: name of %d bytes is too long", i, len(entry.Name))
		}

		if err := binary.Write(buf, binary.LittleEndian, uint64(entry.Type)); err != nil {
			return nil, fmt.Errorf("failed to encode type: %w", err)
		}
		if err := binary.Write(buf, binary.LittleEndian, uint64(entry.Ino)); err != nil {
			return nil, fmt.Errorf("failed to encode ino: %w", err)
		}

		// name (char[256], null-terminated, padded with zeros)
		nameBytes := make([]byte, NameFieldLen)
		copy(nameBytes, entry.Name)
		if _, err := buf.Write(nameBytes); err != nil {
			return nil, fmt.Errorf("failed to encode name: %w", err)
		}
	}

	return buf.Bytes(), nil
}

func EncodeInode(ino models.InodeID) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(ino))
}

func EncodeContent(content []byte) []byte {
	out := make([]byte, 0, WordSize+len(content))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(content)))
	return append(out, content...)
}

// WriteResponse frames data behind a status word and sends it with HTTP 200,
// the way the remote store answers every filesystem-level request.
func WriteResponse(w http.ResponseWriter, code int64, data []byte) error {
	response := new(bytes.Buffer)

	// status (i64, 8 bytes)
	if err := binary.Write(response, binary.LittleEndian, code); err != nil {
		return fmt.Errorf("failed to write response code: %w", err)
	}

	if data != nil {
		if _, err := response.Write(data); err != nil {
			return fmt.Errorf("failed to write response data: %w", err)
		}
	}

	body := response.Bytes()

	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(body)
	return err
}
