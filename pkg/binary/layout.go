package binary

import "github.com/S1riyS/os-course-lab-4/networkfs/internal/models"

// Wire layout of the remote replies. Every integer is little endian; the
// entry type occupies the first byte of an 8-byte slot.
const (
	StatusSize   = 8
	WordSize     = 8
	NameFieldLen = models.MaxNameLen + 1

	// ResponseCeiling bounds the payload of every reply except list.
	ResponseCeiling = 1024

	EntryInfoSize   = 2 * WordSize
	EntryRecordSize = 2*WordSize + NameFieldLen
	ListingSize     = WordSize + models.MaxListingEntries*EntryRecordSize

	// MaxContentSize is the largest file a read reply can carry.
	MaxContentSize = ResponseCeiling - WordSize
)
