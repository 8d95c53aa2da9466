package cell

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

func dynInt(data []byte) int {
	tmp := make([]byte, 8)
	copy(tmp[8-len(data):], data)

	return int(binary.BigEndian.Uint64(tmp))
}

// FromBOC parses a single-root bag-of-cells produced by ToBOC.
func FromBOC(data []byte) (*Cell, error) {
	if len(data) < 10 {
		return nil, ErrInvalidBOC
	}

	r := &bocReader{data: data}

	if !bytes.Equal(r.mustBytes(4), magic) {
		return nil, fmt.Errorf("%w: bad magic header", ErrInvalidBOC)
	}

	flags := r.mustByte()
	cellNumSizeBytes := int(flags & 0b111)
	dataSizeBytes := int(r.mustByte())

	cellsNum, err := r.bytes(cellNumSizeBytes)
	if err != nil {
		return nil, err
	}

	rootsNum, err := r.bytes(cellNumSizeBytes)
	if err != nil {
		return nil, err
	}
	if dynInt(rootsNum) != 1 {
		return nil, ErrTooManyRootCells
	}

	// absent cells, always 0 here
	if _, err = r.bytes(cellNumSizeBytes); err != nil {
		return nil, err
	}

	dataLen, err := r.bytes(dataSizeBytes)
	if err != nil {
		return nil, err
	}

	if flags&0b0100_0000 != 0 {
		crc := crc32.Checksum(data[:len(data)-4], crc32.MakeTable(crc32.Castagnoli))
		if binary.LittleEndian.Uint32(data[len(data)-4:]) != crc {
			return nil, ErrBOCChecksum
		}
	}

	rootIndex, err := r.bytes(cellNumSizeBytes)
	if err != nil {
		return nil, err
	}
	if dynInt(rootIndex) != 0 {
		return nil, fmt.Errorf("%w: root index should be 0", ErrInvalidBOC)
	}

	payload, err := r.bytes(dynInt(dataLen))
	if err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrInvalidBOC)
	}

	return parseCells(dynInt(cellsNum), payload)
}

func parseCells(cellsNum int, data []byte) (*Cell, error) {
	r := &bocReader{data: data}

	cells := make([]*Cell, cellsNum)
	for i := range cells {
		cells[i] = &Cell{}
	}

	for i := 0; i < cellsNum; i++ {
		d1, err := r.byte()
		if err != nil {
			return nil, fmt.Errorf("%w: corrupted refs descriptor", ErrInvalidBOC)
		}

		refsNum := int(d1 & 0b111)
		if refsNum > maxRefs {
			return nil, ErrTooMuchRefs
		}

		d2, err := r.byte()
		if err != nil {
			return nil, fmt.Errorf("%w: corrupted length descriptor", ErrInvalidBOC)
		}

		// d2 counts half-bytes, odd means a completion tag is present
		oneMore := d2 % 2
		payload, err := r.bytes(int(d2/2 + oneMore))
		if err != nil {
			return nil, fmt.Errorf("%w: corrupted cell payload", ErrInvalidBOC)
		}
		payload = append([]byte{}, payload...)

		bitsSz := uint(d2) * 4
		if oneMore > 0 {
			// cut the completion tag off
			last := payload[len(payload)-1]
			tagPos := uint(0)
			for last&(1<<tagPos) == 0 && tagPos < 7 {
				tagPos++
			}
			payload[len(payload)-1] = last & (0xFF << (tagPos + 1))
			bitsSz -= tagPos + 1 - 4
		}

		refs := make([]*Cell, refsNum)
		for y := 0; y < refsNum; y++ {
			id, err := r.byte()
			if err != nil || int(id) >= cellsNum {
				return nil, fmt.Errorf("%w: corrupted ref index", ErrInvalidBOC)
			}
			refs[y] = cells[id]
		}

		cells[i].bitsSz = bitsSz
		cells[i].data = payload
		cells[i].refs = refs
	}

	return cells[0], nil
}

type bocReader struct {
	data []byte
	pos  int
}

func (r *bocReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, ErrInvalidBOC
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *bocReader) byte() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *bocReader) mustBytes(n int) []byte {
	b, err := r.bytes(n)
	if err != nil {
		panic(err)
	}
	return b
}

func (r *bocReader) mustByte() byte {
	b, err := r.byte()
	if err != nil {
		panic(err)
	}
	return b
}
