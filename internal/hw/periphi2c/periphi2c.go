// Package periphi2c implements model.I2cTempSensor for an MCP9808 ambient
// temperature sensor over periph.io's i2c package, the same bus
// abstraction cmd/i2c-io uses.
package periphi2c

import (
	"context"
	"fmt"
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/config"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
)

const (
	regManufacturerID = 0x06
	regDeviceID       = 0x07
	regAmbientTemp    = 0x05

	wantManufacturerID = 0x0054
	wantDeviceID       = 0x0400
)

// MCP9808 reads ambient temperature from an MCP9808 sensor at addr on
// the named I2C bus.
type MCP9808 struct {
	bus i2c.BusCloser
	dev i2c.Dev
}

// Open opens busName (empty string selects periph's default bus) and
// verifies the device at addr answers as an MCP9808 by reading its
// manufacturer and device ID registers, the same probe temp_sensor.py
// performs before trusting the sensor. Up to config.TempSensorInitRetries
// attempts are made, config.TempSensorInitRetryWait apart; if all fail,
// the last attempt's error is returned.
func Open(busName string, addr uint16) (*MCP9808, error) {
	var err error
	for attempt := 1; attempt <= config.TempSensorInitRetries; attempt++ {
		var m *MCP9808
		if m, err = openOnce(busName, addr); err == nil {
			return m, nil
		}
		if attempt < config.TempSensorInitRetries {
			time.Sleep(config.TempSensorInitRetryWait)
		}
	}
	return nil, err
}

func openOnce(busName string, addr uint16) (*MCP9808, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("periphi2c: open bus %q: %w", busName, err)
	}
	dev := i2c.Dev{Bus: bus, Addr: addr}

	m := &MCP9808{bus: bus, dev: dev}
	manufID, err := m.readReg16(regManufacturerID)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("periphi2c: read manufacturer id: %w", err)
	}
	devID, err := m.readReg16(regDeviceID)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("periphi2c: read device id: %w", err)
	}
	if manufID != wantManufacturerID || devID != wantDeviceID {
		bus.Close()
		return nil, fmt.Errorf("periphi2c: unexpected chip ids manuf=0x%04X device=0x%04X", manufID, devID)
	}
	return m, nil
}

func (m *MCP9808) readReg16(reg byte) (uint16, error) {
	buf := make([]byte, 2)
	if err := m.dev.Tx([]byte{reg}, buf); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// ReadCelsius reads the ambient temperature register and decodes it per
// the MCP9808 format: bits 0-11 hold 1/16 degree increments, bit 12 is
// the sign bit.
func (m *MCP9808) ReadCelsius(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	raw, err := m.readReg16(regAmbientTemp)
	if err != nil {
		return 0, err
	}
	return decodeAmbientTemp(raw), nil
}

// decodeAmbientTemp converts the MCP9808 ambient temperature register's raw
// 16-bit value per its datasheet: bits 0-11 hold 1/16 degree increments,
// bit 12 is the sign flag.
func decodeAmbientTemp(raw uint16) float64 {
	tempC := float64(raw&0x0FFF) / 16.0
	if raw&0x1000 != 0 {
		tempC -= 256.0
	}
	return tempC
}

// Close releases the underlying I2C bus handle.
func (m *MCP9808) Close() error {
	return m.bus.Close()
}
