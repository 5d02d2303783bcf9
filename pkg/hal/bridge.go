package hal

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"flightctl-go-migration/pkg/errors"
)

// Bridge is an IO implementation speaking the MCU's line-oriented register
// protocol over a serial link:
//
//	host: R <channel>          mcu: V <channel> <value> | E <message>
//	host: W <channel> <value>  mcu: OK | E <message>
//
// Every request carries a trailing "*XXXX" CRC16-CCITT over the body.
// Replies may carry the same suffix; when present it is verified.
// One request/response exchange per transaction, serialized by a mutex.
type Bridge struct {
	mu sync.Mutex
	w  io.Writer
	r  *bufio.Reader
}

// NewBridge wraps a serial connection to the MCU.
func NewBridge(rw io.ReadWriter) *Bridge {
	return &Bridge{w: rw, r: bufio.NewReader(rw)}
}

// Get reads a register from the MCU.
func (b *Bridge) Get(ch Channel) (int32, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	reply, err := b.exchange(fmt.Sprintf("R %d", ch))
	if err != nil {
		return 0, err
	}

	fields := strings.Fields(reply)
	if len(fields) != 3 || fields[0] != "V" {
		return 0, errors.HALIOError("read", fmt.Errorf("malformed reply %q", reply))
	}
	value, err := strconv.ParseInt(fields[2], 10, 32)
	if err != nil {
		return 0, errors.HALIOError("read", fmt.Errorf("bad value in reply %q", reply))
	}
	return int32(value), nil
}

// Set writes a register on the MCU.
func (b *Bridge) Set(ch Channel, value int32) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	reply, err := b.exchange(fmt.Sprintf("W %d %d", ch, value))
	if err != nil {
		return err
	}
	if strings.TrimSpace(reply) != "OK" {
		return errors.HALIOError("write", fmt.Errorf("unexpected reply %q", reply))
	}
	return nil
}

func (b *Bridge) exchange(request string) (string, error) {
	if _, err := io.WriteString(b.w, appendChecksum(request)+"\n"); err != nil {
		return "", errors.HALIOError("send", err)
	}

	reply, err := b.r.ReadString('\n')
	if err != nil {
		return "", errors.HALIOError("receive", err)
	}
	reply, err = splitChecksum(strings.TrimSpace(reply))
	if err != nil {
		return "", errors.HALIOError("receive", err)
	}
	if strings.HasPrefix(reply, "E ") {
		return "", errors.HALIOError("request", fmt.Errorf("mcu: %s", reply[2:]))
	}
	return reply, nil
}
