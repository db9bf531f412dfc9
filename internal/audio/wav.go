package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

const (
	formatPCM   uint16 = 1
	formatFloat uint16 = 3
)

// Format describes the fmt and data chunks of a RIFF/WAVE file.
type Format struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataSize      uint32
}

// IsPCM16Mono reports whether the file is signed 16-bit PCM, one channel, at
// the given sample rate.
func (f Format) IsPCM16Mono(sampleRate uint32) bool {
	return f.AudioFormat == formatPCM && f.BitsPerSample == 16 && f.Channels == 1 && f.SampleRate == sampleRate
}

func (f Format) Duration() time.Duration {
	frameSize := uint64(f.Channels) * uint64(f.BitsPerSample/8)
	if frameSize == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := uint64(f.DataSize) / frameSize
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// ReadWAVFormat reads only the header chunks of a WAV file.
func ReadWAVFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return Format{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	format, _, err := readChunks(f)
	return format, err
}

// readChunks walks the RIFF chunks and leaves the reader positioned after the
// last chunk. It returns the offset of the data chunk payload.
func readChunks(f io.ReadSeeker) (Format, int64, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Format{}, 0, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return Format{}, 0, fmt.Errorf("read wav header: %w", err)
	}

	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Format{}, 0, ErrInvalidWAV
	}

	var (
		format     Format
		dataOffset int64
		hasFmt     bool
		hasData    bool
	)

	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return Format{}, 0, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		skip := int64(chunkSize)
		if chunkSize%2 != 0 {
			skip++
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Format{}, 0, ErrInvalidWAV
			}

			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, buf); err != nil {
				return Format{}, 0, fmt.Errorf("read wav fmt chunk: %w", err)
			}

			format.AudioFormat = binary.LittleEndian.Uint16(buf[0:2])
			format.Channels = binary.LittleEndian.Uint16(buf[2:4])
			format.SampleRate = binary.LittleEndian.Uint32(buf[4:8])
			format.BitsPerSample = binary.LittleEndian.Uint16(buf[14:16])
			hasFmt = true

			if chunkSize%2 != 0 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return Format{}, 0, fmt.Errorf("seek wav fmt padding: %w", err)
				}
			}
		case "data":
			offset, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				return Format{}, 0, fmt.Errorf("seek wav data chunk: %w", err)
			}
			dataOffset = offset
			format.DataSize = chunkSize
			hasData = true
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return Format{}, 0, fmt.Errorf("seek wav data chunk: %w", err)
			}
		default:
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return Format{}, 0, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}
	}

	if !hasFmt || !hasData {
		return Format{}, 0, ErrInvalidWAV
	}

	return format, dataOffset, nil
}
