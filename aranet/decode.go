package aranet

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// PayloadSize is the length of the current readings characteristic value.
const PayloadSize = 13

type rawReading struct {
	CO2         uint16
	Temperature uint16
	Pressure    uint16
	Humidity    uint8
	Battery     uint8
	Status      uint8
	Interval    uint16
	Ago         uint16
}

// Decode turns the current readings characteristic value into a Reading
// stamped with the current time.
func Decode(data []byte) (Reading, error) {
	return decodeAt(data, time.Now())
}

func decodeAt(data []byte, now time.Time) (Reading, error) {
	if len(data) < PayloadSize {
		return Reading{}, &StepError{
			Kind: ErrMalformedPayload,
			Err:  errors.Errorf("got %d bytes, want %d", len(data), PayloadSize),
		}
	}

	raw := rawReading{}
	if err := binary.Read(bytes.NewReader(data[:PayloadSize]), binary.LittleEndian, &raw); err != nil {
		return Reading{}, &StepError{Kind: ErrMalformedPayload, Err: err}
	}

	return refineRawReading(raw, now), nil
}

func refineRawReading(raw rawReading, now time.Time) Reading {
	return Reading{
		CO2:         raw.CO2,
		Temperature: float32(raw.Temperature) / 20.0,
		Humidity:    raw.Humidity,
		Pressure:    raw.Pressure / 10,
		Battery:     raw.Battery,
		Timestamp:   now.Unix(),
		Status:      ParseStatus(raw.Status),
	}
}
