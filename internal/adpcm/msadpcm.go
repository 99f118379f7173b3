// Package adpcm decodes Microsoft ADPCM blocks to 16-bit PCM.
package adpcm

import (
	"encoding/binary"
	"fmt"
)

var adaptationTable = [16]int32{
	230, 230, 230, 230, 307, 409, 512, 614,
	768, 614, 512, 409, 307, 230, 230, 230,
}

var coef1 = [7]int32{256, 512, 0, 192, 240, 460, 392}
var coef2 = [7]int32{0, -256, 0, 64, 0, -208, -232}

type channelState struct {
	predictor uint8
	delta     int32
	sample1   int32
	sample2   int32
}

func (c *channelState) expand(nibble uint8) int16 {
	signed := int32(nibble)
	if signed >= 8 {
		signed -= 16
	}
	pred := (c.sample1*coef1[c.predictor] + c.sample2*coef2[c.predictor]) / 256
	pred += signed * c.delta
	if pred > 32767 {
		pred = 32767
	} else if pred < -32768 {
		pred = -32768
	}
	c.sample2 = c.sample1
	c.sample1 = pred
	c.delta = adaptationTable[nibble&0x0F] * c.delta / 256
	if c.delta < 16 {
		c.delta = 16
	}
	return int16(pred)
}

// HeaderSize is the per-channel block preamble length.
const HeaderSize = 7

// SamplesPerBlock returns the number of sample frames one block of
// blockAlign bytes expands to.
func SamplesPerBlock(blockAlign, channels int) int {
	if channels <= 0 || blockAlign < HeaderSize*channels {
		return 0
	}
	return (blockAlign-HeaderSize*channels)*2/channels + 2
}

// Decode expands MS-ADPCM data into interleaved 16-bit samples. A trailing
// partial block is decoded as far as its nibbles go.
func Decode(data []byte, channels, blockAlign int) ([]int16, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("unsupported ADPCM channel count %d", channels)
	}
	if blockAlign < HeaderSize*channels {
		return nil, fmt.Errorf("ADPCM block align %d too small for %d channels", blockAlign, channels)
	}

	frames := 0
	for off := 0; off < len(data); off += blockAlign {
		n := min(blockAlign, len(data)-off)
		if n < HeaderSize*channels {
			break
		}
		frames += SamplesPerBlock(n, channels)
	}

	out := make([]int16, 0, frames*channels)
	for off := 0; off < len(data); off += blockAlign {
		block := data[off:min(off+blockAlign, len(data))]
		if len(block) < HeaderSize*channels {
			break
		}
		var err error
		out, err = decodeBlock(out, block, channels)
		if err != nil {
			return nil, fmt.Errorf("block at offset %d: %w", off, err)
		}
	}
	return out, nil
}

func decodeBlock(out []int16, block []byte, channels int) ([]int16, error) {
	var st [2]channelState
	p := 0
	for ch := 0; ch < channels; ch++ {
		st[ch].predictor = block[p]
		if st[ch].predictor > 6 {
			return nil, fmt.Errorf("invalid predictor index %d", st[ch].predictor)
		}
		p++
	}
	for ch := 0; ch < channels; ch++ {
		st[ch].delta = int32(int16(binary.LittleEndian.Uint16(block[p:])))
		p += 2
	}
	for ch := 0; ch < channels; ch++ {
		st[ch].sample1 = int32(int16(binary.LittleEndian.Uint16(block[p:])))
		p += 2
	}
	for ch := 0; ch < channels; ch++ {
		st[ch].sample2 = int32(int16(binary.LittleEndian.Uint16(block[p:])))
		p += 2
	}

	// The preamble samples come out oldest first.
	for ch := 0; ch < channels; ch++ {
		out = append(out, int16(st[ch].sample2))
	}
	for ch := 0; ch < channels; ch++ {
		out = append(out, int16(st[ch].sample1))
	}

	if channels == 1 {
		for _, b := range block[p:] {
			out = append(out, st[0].expand(b>>4), st[0].expand(b&0x0F))
		}
		return out, nil
	}
	for _, b := range block[p:] {
		out = append(out, st[0].expand(b>>4), st[1].expand(b&0x0F))
	}
	return out, nil
}
