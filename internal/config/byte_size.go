package config

import (
	"fmt"

	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/binary"
	"github.com/docker/go-units"
)

// MaxFileSizeLimit is the largest file a read reply can carry.
const MaxFileSizeLimit = ByteSize(binary.MaxContentSize)

// ByteSize is a size written in human form in the config ("512B", "1KiB").
type ByteSize int64

func (b *ByteSize) SetValue(s string) error {
	v, err := units.RAMInBytes(s)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", s, err)
	}
	*b = ByteSize(v)
	return nil
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	return b.SetValue(string(text))
}

func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

func (b ByteSize) Int() int {
	return int(b)
}
