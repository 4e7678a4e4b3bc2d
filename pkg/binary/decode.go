package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
)

var ErrMalformed = errors.New("malformed payload")

// SplitResponse separates the leading status word of a reply body from its
// payload.
func SplitResponse(body []byte) (int64, []byte, error) {
	if len(body) < StatusSize {
		return 0, nil, fmt.Errorf("%w: body of %d bytes has no status", ErrMalformed, len(body))
	}

	status := int64(binary.LittleEndian.Uint64(body[:StatusSize]))
	return status, body[StatusSize:], nil
}

func DecodeEntryInfo(payload []byte) (models.EntryInfo, error) {
	if len(payload) < EntryInfoSize {
		return models.EntryInfo{}, fmt.Errorf("%w: entry info needs %d bytes, got %d", ErrMalformed, EntryInfoSize, len(payload))
	}

	return models.EntryInfo{
		// type (u8, padded to 8 bytes)
		Type: models.EntryType(payload[0]),
		// ino (u64, 8 bytes)
		Ino: models.InodeID(binary.LittleEndian.Uint64(payload[WordSize:])),
	}, nil
}

func DecodeInode(payload []byte) (models.InodeID, error) {
	if len(payload) < WordSize {
		return 0, fmt.Errorf("%w: inode needs %d bytes, got %d", ErrMalformed, WordSize, len(payload))
	}
	return models.InodeID(binary.LittleEndian.Uint64(payload)), nil
}

// DecodeContent reads a {length, bytes} read reply. The returned slice is a
// copy owned by the caller.
func DecodeContent(payload []byte) ([]byte, error) {
	if len(payload) < WordSize {
		return nil, fmt.Errorf("%w: content length needs %d bytes, got %d", ErrMalformed, WordSize, len(payload))
	}

	length := binary.LittleEndian.Uint64(payload)
	available := uint64(len(payload) - WordSize)
	if length > available {
		return nil, fmt.Errorf("%w: content length %d exceeds %d available bytes", ErrMalformed, length, available)
	}

	content := make([]byte, length)
	copy(content, payload[WordSize:])
	return content, nil
}

// DecodeListing reads a list reply. The declared entry count is returned as
// well, so callers can tell when it had to be clamped: no more than
// MaxListingEntries records, and no more than the payload physically holds,
// are ever decoded. Records beyond the count are never looked at.
func DecodeListing(payload []byte) (*models.DirectoryListing, uint64, error) {
	if len(payload) < WordSize {
		return nil, 0, fmt.Errorf("%w: listing needs %d bytes, got %d", ErrMalformed, WordSize, len(payload))
	}

	declared := binary.LittleEndian.Uint64(payload)
	records := payload[WordSize:]

	count := declared
	if count > models.MaxListingEntries {
		count = models.MaxListingEntries
	}
	if physical := uint64(len(records) / EntryRecordSize); count > physical {
		count = physical
	}

	listing := &models.DirectoryListing{Entries: make([]models.DirectoryEntry, 0, count)}
	for i := uint64(0); i < count; i++ {
		record := records[i*EntryRecordSize : (i+1)*EntryRecordSize]

		nameField := record[2*WordSize:]
		nameLen := bytes.IndexByte(nameField, 0)
		if nameLen < 0 {
			return nil, declared, fmt.Errorf("%w: entry %d: name is not terminated", ErrMalformed, i)
		}
		if nameLen == 0 {
			return nil, declared, fmt.Errorf("%w: entry %d: empty name", ErrMalformed, i)
		}

		listing.Entries = append(listing.Entries, models.DirectoryEntry{
			Type: models.EntryType(record[0]),
			Ino:  models.InodeID(binary.LittleEndian.Uint64(record[WordSize:])),
			Name: string(nameField[:nameLen]),
		})
	}

	return listing, declared, nil
}
