package serial

import "io"

// Device is a device that can be attached to the Controller. Transfers
// happen a whole byte at a time: the controller shifts out its data
// byte and shifts in the byte returned by the device.
type Device interface {
	Exchange(out uint8) (in uint8, err error)
}

// nullDevice is an implementation of Device that acts as if no link
// cable is plugged in, the line floats high so 0xFF is received.
type nullDevice struct{}

// Exchange discards out and returns 0xFF.
func (n nullDevice) Exchange(uint8) (uint8, error) { return 0xFF, nil }

// WriterDevice is a Device that writes every byte it receives to an
// io.Writer, such as os.Stdout. Test ROMs commonly report their results
// this way.
type WriterDevice struct {
	w io.Writer
}

// NewWriterDevice returns a WriterDevice writing to w.
func NewWriterDevice(w io.Writer) *WriterDevice {
	return &WriterDevice{w: w}
}

// Exchange writes out to the underlying writer. Nothing is connected on
// the other end, so 0xFF is received.
func (d *WriterDevice) Exchange(out uint8) (uint8, error) {
	_, err := d.w.Write([]byte{out})
	return 0xFF, err
}
