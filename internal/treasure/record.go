package treasure

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// On-disk layout of one record, little endian, 376 bytes:
//
//	offset size field
//	     0   32 id        NUL padded
//	    32   64 user      NUL padded
//	    96    8 latitude  float64
//	   104    8 longitude float64
//	   112  256 clue      NUL padded
//	   368    4 value     int32
//	   372    4 padding
const (
	IDSize     = 32
	UserSize   = 64
	ClueSize   = 256
	RecordSize = 376

	offUser  = IDSize
	offLat   = offUser + UserSize
	offLon   = offLat + 8
	offClue  = offLon + 8
	offValue = offClue + ClueSize
)

var (
	ErrShortRecord   = errors.New("short record")
	ErrFieldTooLong  = errors.New("field too long")
	ErrPartialRecord = errors.New("partial record at end of store")
)

// Record is one treasure entry.
type Record struct {
	ID        string
	User      string
	Latitude  float64
	Longitude float64
	Clue      string
	Value     int32
}

func (r Record) MarshalBinary() ([]byte, error) {
	b := make([]byte, RecordSize)
	if err := putString(b[:offUser], r.ID, "id"); err != nil {
		return nil, err
	}
	if err := putString(b[offUser:offLat], r.User, "user"); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(b[offLat:], math.Float64bits(r.Latitude))
	binary.LittleEndian.PutUint64(b[offLon:], math.Float64bits(r.Longitude))
	if err := putString(b[offClue:offValue], r.Clue, "clue"); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(b[offValue:], uint32(r.Value))
	return b, nil
}

// UnmarshalBinary decodes the first RecordSize bytes of b. Text fields end
// at the first NUL or at the field boundary, whichever comes first.
func (r *Record) UnmarshalBinary(b []byte) error {
	if len(b) < RecordSize {
		return fmt.Errorf("%w: %d bytes", ErrShortRecord, len(b))
	}
	r.ID = cString(b[:offUser])
	r.User = cString(b[offUser:offLat])
	r.Latitude = math.Float64frombits(binary.LittleEndian.Uint64(b[offLat:]))
	r.Longitude = math.Float64frombits(binary.LittleEndian.Uint64(b[offLon:]))
	r.Clue = cString(b[offClue:offValue])
	r.Value = int32(binary.LittleEndian.Uint32(b[offValue:]))
	return nil
}

func putString(dst []byte, s, name string) error {
	// one byte is kept for the terminating NUL
	if len(s) >= len(dst) {
		return fmt.Errorf("%w: %s is %d bytes, max %d", ErrFieldTooLong, name, len(s), len(dst)-1)
	}
	copy(dst, s)
	return nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
