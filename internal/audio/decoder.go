package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	ErrEmptySample       = errors.New("sample decoded to zero frames")
)

// Decoder turns an encoded sample into a seekable stream.
type Decoder func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

func decodeWAV(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	return wav.Decode(rc)
}

// DecoderFor picks a decoder from the extension of a sample location.
func DecoderFor(location string) (Decoder, error) {
	switch strings.ToLower(path.Ext(location)) {
	case ".mp3":
		return mp3.Decode, nil
	case ".wav":
		return decodeWAV, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, location)
}

// DecodeBuffer decodes rc fully into memory. rc is always closed.
func DecodeBuffer(rc io.ReadCloser, dec Decoder) (*beep.Buffer, beep.Format, error) {
	s, format, err := dec(rc)
	if err != nil {
		rc.Close()
		return nil, beep.Format{}, fmt.Errorf("decode: %w", err)
	}
	defer s.Close()

	buf := beep.NewBuffer(format)
	buf.Append(s)
	if err := s.Err(); err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode: %w", err)
	}
	if buf.Len() == 0 {
		return nil, beep.Format{}, ErrEmptySample
	}
	return buf, format, nil
}

// RenderFrame pulls len(buf) stereo samples from src and converts them to
// interleaved int16 PCM. Missing samples are rendered as silence.
func RenderFrame(src beep.Streamer, buf [][2]float64) []int16 {
	n, _ := src.Stream(buf)
	for i := n; i < len(buf); i++ {
		buf[i] = [2]float64{}
	}
	frame := make([]int16, len(buf)*Channels)
	for i, s := range buf {
		frame[i*2] = toInt16(s[0])
		frame[i*2+1] = toInt16(s[1])
	}
	return frame
}

func toInt16(v float64) int16 {
	v *= 32767
	// Clip to int16 range
	if v > 32767 {
		return 32767
	} else if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
