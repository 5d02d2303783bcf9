package host

import (
	"io"
	"time"

	"github.com/tarm/serial"

	"flightctl-go-migration/pkg/errors"
)

// OpenPort opens the host-facing serial device. Reads block until data
// arrives; the command loop exits when the port closes.
func OpenPort(device string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name: device,
		Baud: baud,
	})
	if err != nil {
		return nil, errors.InitError("host port", err)
	}
	return port, nil
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
