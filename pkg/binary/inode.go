package binary

import (
	"strconv"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
)

// MaxInodeStringLen covers any 64-bit unsigned value plus a terminator.
const MaxInodeStringLen = 21

// FormatInode renders ino in the decimal form used by request parameters.
func FormatInode(ino models.InodeID) string {
	var buf [MaxInodeStringLen]byte
	return string(strconv.AppendUint(buf[:0], uint64(ino), 10))
}
