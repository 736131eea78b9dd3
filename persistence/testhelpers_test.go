package persistence

import (
	"encoding/binary"
	"hash/crc64"
	"os"
)

func loadRawBytes(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func writeRawBytes(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// recomputeChecksum fixes up the trailing CRC-64 in data to match its
// (possibly just-corrupted) body, so a test can isolate a single field
// corruption without also tripping the checksum check.
func recomputeChecksum(data []byte) {
	body := data[:len(data)-8]
	crc := crc64.Checksum(body, crcTable)
	binary.LittleEndian.PutUint64(data[len(data)-8:], crc)
}
