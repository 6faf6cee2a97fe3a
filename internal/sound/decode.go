package sound

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// pcm is signed 16-bit little-endian interleaved audio.
type pcm struct {
	SampleRate int
	Channels   int
	Data       []byte
}

// decode reads a WAV (RIFF) or MP3 file into PCM.
func decode(b []byte) (*pcm, error) {
	if len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE" {
		return decodeWAV(b)
	}
	d, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	data, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	// go-mp3 always yields 16-bit stereo.
	return &pcm{SampleRate: d.SampleRate(), Channels: 2, Data: data}, nil
}

func decodeWAV(b []byte) (*pcm, error) {
	r := bytes.NewReader(b[12:])
	out := &pcm{}
	var bitDepth uint16
	for {
		var hdr struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("wav: no data chunk")
			}
			return nil, fmt.Errorf("wav: %w", err)
		}
		switch string(hdr.ID[:]) {
		case "fmt ":
			var f struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
				return nil, fmt.Errorf("wav fmt: %w", err)
			}
			if hdr.Size > 16 {
				if _, err := r.Seek(int64(hdr.Size-16), io.SeekCurrent); err != nil {
					return nil, err
				}
			}
			out.Channels = int(f.Channels)
			out.SampleRate = int(f.SampleRate)
			bitDepth = f.BitsPerSample
		case "data":
			if out.SampleRate == 0 {
				return nil, errors.New("wav: data before fmt")
			}
			if bitDepth != 16 {
				return nil, fmt.Errorf("wav: unsupported bit depth %d", bitDepth)
			}
			out.Data = make([]byte, hdr.Size)
			if _, err := io.ReadFull(r, out.Data); err != nil {
				return nil, fmt.Errorf("wav data: %w", err)
			}
			return out, nil
		default:
			if _, err := r.Seek(int64(hdr.Size), io.SeekCurrent); err != nil {
				return nil, err
			}
		}
	}
}

// loopReader repeats data forever.
type loopReader struct {
	data []byte
	pos  int
}

func (l *loopReader) Read(p []byte) (int, error) {
	if len(l.data) == 0 {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		c := copy(p[n:], l.data[l.pos:])
		n += c
		l.pos = (l.pos + c) % len(l.data)
	}
	return n, nil
}
