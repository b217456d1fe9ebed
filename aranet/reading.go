package aranet

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Reading is one decoded set of current values from an Aranet4.
type Reading struct {
	// units: ppm
	CO2 uint16 `json:"co2"`

	// units: degrees Celsius
	Temperature float32 `json:"temperature"`

	// units: % of relative Humidity, whole percent
	Humidity uint8 `json:"humidity"`

	// units: hPa, fractional part discarded
	Pressure uint16 `json:"pressure"`

	// units: %
	Battery uint8 `json:"battery"`

	// seconds since epoch, assigned when decoding completed
	Timestamp int64 `json:"timestamp"`

	Status Status `json:"status"`
}

func (r Reading) String() string {
	return fmt.Sprintf("CO2=%d ppm, Temp=%.1f°C, Humidity=%d%%, Pressure=%d hPa, Battery=%d%%, Status=%s",
		r.CO2, r.Temperature, r.Humidity, r.Pressure, r.Battery, r.Status)
}

// Status is the CO2 traffic light shown on the device.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusGreen
	StatusYellow
	StatusRed
)

// ParseStatus maps the raw status byte. Anything outside 1..3 is unknown.
func ParseStatus(b byte) Status {
	switch b {
	case 1:
		return StatusGreen
	case 2:
		return StatusYellow
	case 3:
		return StatusRed
	default:
		return StatusUnknown
	}
}

func (s Status) String() string {
	switch s {
	case StatusGreen:
		return "GREEN"
	case StatusYellow:
		return "YELLOW"
	case StatusRed:
		return "RED"
	default:
		return "UNKNOWN"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return errors.Wrap(err, "status must be a string")
	}
	parsed, err := StatusFromString(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StatusFromString is the inverse of Status.String.
func StatusFromString(label string) (Status, error) {
	switch label {
	case "GREEN":
		return StatusGreen, nil
	case "YELLOW":
		return StatusYellow, nil
	case "RED":
		return StatusRed, nil
	case "UNKNOWN":
		return StatusUnknown, nil
	}
	return StatusUnknown, errors.Errorf("unknown status %q", label)
}
