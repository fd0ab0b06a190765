package acquire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Device reads little-endian int16 frames from an ADC bridge exposed as a
// character device or serial port (e.g. /dev/ttyACM0). One frame per sample;
// the runner paces reads, the kernel buffer absorbs jitter.
type Device struct {
	path string
	f    *os.File
	r    *bufio.Reader
}

func OpenDevice(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sample device: %w", err)
	}
	return &Device{path: path, f: f, r: bufio.NewReader(f)}, nil
}

func (d *Device) Name() string { return "device" }

func (d *Device) Read() (int, error) {
	var buf [2]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, fmt.Errorf("reading %s: %w", d.path, err)
	}
	return int(int16(binary.LittleEndian.Uint16(buf[:]))), nil
}

func (d *Device) Close() error {
	return d.f.Close()
}
