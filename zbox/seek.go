package zbox

import (
	"io"
	"math"

	"github.com/wippyai/zbox-host/errors"
)

// Whence selects the seek origin using the host numbering.
type Whence uint32

const (
	SeekStart   Whence = 0
	SeekEnd     Whence = 1
	SeekCurrent Whence = 2
)

func (w Whence) String() string {
	switch w {
	case SeekStart:
		return "start"
	case SeekEnd:
		return "end"
	case SeekCurrent:
		return "current"
	}
	return "unknown"
}

// io maps the origin to the io.Seeker constant.
func (w Whence) io() int {
	switch w {
	case SeekEnd:
		return io.SeekEnd
	case SeekCurrent:
		return io.SeekCurrent
	}
	return io.SeekStart
}

// SeekDirective is a validated seek request. Offsets from SeekStart are
// never negative.
type SeekDirective struct {
	Whence Whence
	Offset int64
}

// ParseSeek builds a directive from the host whence selector and offset.
func ParseSeek(whence uint32, offset int32) (SeekDirective, error) {
	w := Whence(whence)
	switch w {
	case SeekStart:
		if offset < 0 {
			return SeekDirective{}, errors.InvalidArgument("negative offset %d from start", offset)
		}
	case SeekEnd, SeekCurrent:
	default:
		return SeekDirective{}, errors.InvalidArgument("unknown seek whence %d", whence)
	}
	return SeekDirective{Whence: w, Offset: int64(offset)}, nil
}

// seekOn applies d to s and narrows the new position to the host width.
func seekOn(s io.Seeker, d SeekDirective) (uint32, error) {
	pos, err := s.Seek(d.Offset, d.Whence.io())
	if err != nil {
		return 0, err
	}
	if pos < 0 || pos > math.MaxUint32 {
		return 0, errors.Overflow(errors.PhaseHandle, pos, "uint32 position")
	}
	return uint32(pos), nil
}
