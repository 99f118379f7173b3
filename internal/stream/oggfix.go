package stream

import (
	"bytes"
	"errors"
	"slices"
)

const oggHeaderSize = 16

// oggCapture is the start of a well-formed first page: capture pattern,
// version 0, beginning-of-stream flag and a zero granule position.
var oggCapture = []byte{'O', 'g', 'g', 'S', 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// fixOggHeader repairs music packed by tools that mangle the first page
// header. Data that already starts with a valid header is returned as is.
func fixOggHeader(data []byte) ([]byte, error) {
	if len(data) < oggHeaderSize {
		return nil, errors.New("not enough data, cannot fix Ogg header")
	}
	if bytes.Equal(data[:len(oggCapture)], oggCapture) {
		return data, nil
	}

	cut, zeros := 0, 0
	for i := range oggHeaderSize {
		if bytes.IndexByte([]byte("OggS"), data[i]) >= 0 {
			continue
		}
		if data[i] == 0x00 {
			zeros++
			if zeros > 9 {
				return nil, errors.New("too many zeros in the Ogg header, cannot fix")
			}
			continue
		}
		// First non-zero run after a zero gap marks where the real
		// payload (serial number) starts.
		if i > 2 && data[i-1] != 0x00 && data[i-2] == 0x00 {
			cut = i - 1
			break
		}
	}

	return append(slices.Clone(oggCapture), data[cut:]...), nil
}
