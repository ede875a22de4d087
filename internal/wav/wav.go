// Package wav decodes the fixed 44 byte RIFF/WAVE header used by the player.
package wav

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"
)

// HeaderSize is the structural size of the minimal header. Sample content
// starts at this offset.
const HeaderSize = 44

// Chunk identifiers.
var (
	TagRIFF = [4]byte{'R', 'I', 'F', 'F'}
	TagWAVE = [4]byte{'W', 'A', 'V', 'E'}
	TagFmt  = [4]byte{'f', 'm', 't', ' '}
	TagData = [4]byte{'d', 'a', 't', 'a'}
)

// FormatPCM is the audio format code for uncompressed linear PCM.
const FormatPCM = 1

// Header holds the header fields exactly as they appear in the file.
type Header struct {
	RIFF          [4]byte
	FileSize      uint32 // total size minus 8
	WAVE          [4]byte
	FmtID         [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataID        [4]byte
	DataSize      uint32
}

// Descriptor is a parsed header plus the count of data bytes not yet
// consumed. The header is never modified after Parse; only the remaining
// count moves, and only downwards.
type Descriptor struct {
	Header

	remaining atomic.Uint32
}

// Parse decodes a header window of at least HeaderSize bytes. Parse does not
// check that the rate, channel count or bit depth are playable.
func Parse(b []byte) (*Descriptor, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrShortHeader, len(b))
	}

	if [4]byte(b[0:4]) != TagRIFF {
		return nil, tagError(ErrInvalidContainer, 0, b[0:4])
	}
	if [4]byte(b[8:12]) != TagWAVE {
		return nil, tagError(ErrInvalidContainer, 8, b[8:12])
	}
	if [4]byte(b[12:16]) != TagFmt {
		return nil, tagError(ErrMissingFormatBlock, 12, b[12:16])
	}
	if [4]byte(b[36:40]) != TagData {
		return nil, tagError(ErrMissingDataBlock, 36, b[36:40])
	}

	le := binary.LittleEndian
	d := &Descriptor{
		Header: Header{
			RIFF:          [4]byte(b[0:4]),
			FileSize:      le.Uint32(b[4:8]),
			WAVE:          [4]byte(b[8:12]),
			FmtID:         [4]byte(b[12:16]),
			FmtSize:       le.Uint32(b[16:20]),
			AudioFormat:   le.Uint16(b[20:22]),
			Channels:      le.Uint16(b[22:24]),
			SampleRate:    le.Uint32(b[24:28]),
			ByteRate:      le.Uint32(b[28:32]),
			BlockAlign:    le.Uint16(b[32:34]),
			BitsPerSample: le.Uint16(b[34:36]),
			DataID:        [4]byte(b[36:40]),
			DataSize:      le.Uint32(b[40:44]),
		},
	}
	d.remaining.Store(d.DataSize)
	return d, nil
}

// Bytes encodes the header back into its 44 byte wire form.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	le := binary.LittleEndian
	copy(b[0:4], h.RIFF[:])
	le.PutUint32(b[4:8], h.FileSize)
	copy(b[8:12], h.WAVE[:])
	copy(b[12:16], h.FmtID[:])
	le.PutUint32(b[16:20], h.FmtSize)
	le.PutUint16(b[20:22], h.AudioFormat)
	le.PutUint16(b[22:24], h.Channels)
	le.PutUint32(b[24:28], h.SampleRate)
	le.PutUint32(b[28:32], h.ByteRate)
	le.PutUint16(b[32:34], h.BlockAlign)
	le.PutUint16(b[34:36], h.BitsPerSample)
	copy(b[36:40], h.DataID[:])
	le.PutUint32(b[40:44], h.DataSize)
	return b
}

// NewPCMHeader builds a standard 16-bit PCM header for dataSize bytes of
// samples.
func NewPCMHeader(sampleRate uint32, channels uint16, dataSize uint32) Header {
	align := channels * 2
	return Header{
		RIFF:          TagRIFF,
		FileSize:      HeaderSize - 8 + dataSize,
		WAVE:          TagWAVE,
		FmtID:         TagFmt,
		FmtSize:       16,
		AudioFormat:   FormatPCM,
		Channels:      channels,
		SampleRate:    sampleRate,
		ByteRate:      sampleRate * uint32(align),
		BlockAlign:    align,
		BitsPerSample: 16,
		DataID:        TagData,
		DataSize:      dataSize,
	}
}

// FrameBytes is the number of content bytes in one sample frame.
func (h Header) FrameBytes() uint32 {
	return uint32(h.Channels) * uint32(h.BitsPerSample/8)
}

// Duration of the declared data at the declared rate.
func (h Header) Duration() time.Duration {
	if h.ByteRate == 0 {
		return 0
	}
	return time.Duration(uint64(h.DataSize) * uint64(time.Second) / uint64(h.ByteRate))
}

// Remaining returns the number of data bytes not yet consumed.
func (d *Descriptor) Remaining() uint32 {
	return d.remaining.Load()
}

// Consume subtracts n bytes from the remaining count and returns the new
// value. It reports false, leaving the count untouched, when fewer than n
// bytes remain.
func (d *Descriptor) Consume(n uint32) (uint32, bool) {
	for {
		cur := d.remaining.Load()
		if cur < n {
			return cur, false
		}
		if d.remaining.CompareAndSwap(cur, cur-n) {
			return cur - n, true
		}
	}
}

// Truncate lowers the remaining count to at most limit.
func (d *Descriptor) Truncate(limit uint32) {
	for {
		cur := d.remaining.Load()
		if cur <= limit {
			return
		}
		if d.remaining.CompareAndSwap(cur, limit) {
			return
		}
	}
}

// Drain sets the remaining count to zero.
func (d *Descriptor) Drain() {
	d.remaining.Store(0)
}

// Progress returns the consumed fraction of the data chunk in [0, 1].
func (d *Descriptor) Progress() float64 {
	if d.DataSize == 0 {
		return 1
	}
	return float64(d.DataSize-d.Remaining()) / float64(d.DataSize)
}
