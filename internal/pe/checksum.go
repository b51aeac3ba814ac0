package pe

import (
	"encoding/binary"
	"io"
)

// ChecksumInfo contains PE checksum verification results.
type ChecksumInfo struct {
	Stored   uint32
	Computed uint32
	Valid    bool
}

// VerifyChecksum computes the image checksum and compares it with the value
// stored in the optional header. A stored value of 0 means the image is not
// checksummed and is reported as valid without computing anything.
func VerifyChecksum(img *ParsedImage, r io.ReaderAt, filesize int64) (*ChecksumInfo, error) {
	stored := img.OptionalHeader.CheckSum
	if stored == 0 {
		return &ChecksumInfo{Valid: true}, nil
	}

	computed, err := CalculatePEChecksum(r, filesize, img.Offsets.CheckSumOffset())
	if err != nil {
		return nil, err
	}

	return &ChecksumInfo{
		Stored:   stored,
		Computed: computed,
		Valid:    stored == computed,
	}, nil
}

// CalculatePEChecksum computes the PE checksum of the first filesize bytes
// of r, treating the 4 bytes at checksumOffset as zero. Pass a negative
// checksumOffset to include every byte.
func CalculatePEChecksum(r io.ReaderAt, filesize int64, checksumOffset int64) (uint32, error) {
	var checksum uint64
	buf := make([]byte, 4)

	for offset := int64(0); offset < filesize; offset += 4 {
		n, err := r.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return 0, err
		}

		// Zero-pad the last partial DWORD.
		for i := n; i < 4; i++ {
			buf[i] = 0
		}

		// The CheckSum field need not be DWORD aligned, so blank its bytes
		// wherever they fall.
		if checksumOffset >= 0 {
			for i := int64(0); i < 4; i++ {
				if pos := offset + i; pos >= checksumOffset && pos < checksumOffset+4 {
					buf[i] = 0
				}
			}
		}

		checksum += uint64(binary.LittleEndian.Uint32(buf))

		// Fold high 32 bits into low 32 bits.
		if checksum > 0xFFFFFFFF {
			checksum = (checksum & 0xFFFFFFFF) + (checksum >> 32)
		}
	}

	checksum = (checksum & 0xFFFF) + (checksum >> 16)
	checksum += checksum >> 16
	checksum &= 0xFFFF

	checksum += uint64(filesize)

	return uint32(checksum), nil
}
