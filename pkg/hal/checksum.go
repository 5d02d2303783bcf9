package hal

import (
	"fmt"
	"strings"
)

// crc16ccitt computes the CRC16-CCITT checksum used by the serial line
// protocol. Matches the polynomial the MCU firmware implements.
func crc16ccitt(buf []byte) uint16 {
	var crc uint16 = 0xffff
	for _, b := range buf {
		data := uint16(b)
		data ^= crc & 0xff
		data ^= (data & 0x0f) << 4
		crc = (crc >> 8) ^ (data << 8) ^ (data << 3) ^ (data >> 4)
	}
	return crc
}

// appendChecksum suffixes a protocol line body with "*XXXX", the hex
// CRC16-CCITT of the body.
func appendChecksum(body string) string {
	return fmt.Sprintf("%s*%04X", body, crc16ccitt([]byte(body)))
}

// splitChecksum separates a line into body and checksum suffix. Lines
// without a '*' are passed through unverified; a present checksum must
// match the body.
func splitChecksum(line string) (string, error) {
	idx := strings.LastIndexByte(line, '*')
	if idx < 0 {
		return line, nil
	}
	body := line[:idx]
	var got uint16
	if _, err := fmt.Sscanf(line[idx+1:], "%04X", &got); err != nil {
		return "", fmt.Errorf("bad checksum field in %q", line)
	}
	if want := crc16ccitt([]byte(body)); got != want {
		return "", fmt.Errorf("checksum mismatch in %q: got %04X want %04X", line, got, want)
	}
	return body, nil
}
