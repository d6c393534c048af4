package serial

import (
	"github.com/thelolagemann/tickboy/internal/types"
	"github.com/thelolagemann/tickboy/pkg/log"
)

const (
	// transferStart is the SC pattern that starts a transfer driven by
	// the internal clock.
	transferStart = types.Bit7 | types.Bit0
	// unusedBits are the SC bits that always read as set.
	unusedBits = 0x7E
)

// Controller is the serial controller. It owns the SB and SC registers,
// and exchanges bytes with the attached Device.
//
// Transfers complete immediately: as soon as SC is written with the
// start flag and internal clock selected, SB is sent to the device,
// replaced by the byte received, and the start flag is cleared.
type Controller struct {
	data    uint8 // SB
	control uint8 // SC

	AttachedDevice Device // the device that is attached to this controller.

	log log.Logger
}

// NewController creates a new Controller attached to d. If d is nil, the
// Controller behaves as if no device is plugged in.
func NewController(d Device, logger log.Logger) *Controller {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	c := &Controller{
		AttachedDevice: nullDevice{},
		log:            logger,
	}
	if d != nil {
		c.Attach(d)
	}
	return c
}

// Attach attaches a Device to the Controller.
func (c *Controller) Attach(d Device) {
	c.AttachedDevice = d
}

// Read returns the value of the SB or SC register.
func (c *Controller) Read(address uint16) uint8 {
	switch address {
	case types.SB:
		return c.data
	case types.SC:
		return c.control | unusedBits
	}
	return 0xFF
}

// Write writes to the SB or SC register, starting a transfer when
// requested.
func (c *Controller) Write(address uint16, value uint8) {
	switch address {
	case types.SB:
		c.data = value
	case types.SC:
		c.control = value &^ unusedBits
		if value&transferStart == transferStart {
			c.transfer()
		}
	}
}

// transfer exchanges the data register with the attached device.
func (c *Controller) transfer() {
	in, err := c.AttachedDevice.Exchange(c.data)
	if err != nil {
		c.log.Errorf("serial: transfer of 0x%02X failed: %v", c.data, err)
	}
	c.data = in
	c.control &^= types.Bit7
}
