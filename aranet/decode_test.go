package aranet

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

var samplePayload = []byte{0xC8, 0x02, 0x40, 0x01, 0xC8, 0x03, 0x32, 0x55, 0x01, 0x00, 0x00, 0x00, 0x00}

func TestDecode(t *testing.T) {
	now := time.Unix(1700000000, 0)
	got, err := decodeAt(samplePayload, now)
	if err != nil {
		t.Fatalf("decodeAt() err=%v", err)
	}
	want := Reading{
		CO2:         712,
		Temperature: 16.0,
		Humidity:    50,
		Pressure:    96,
		Battery:     85,
		Timestamp:   1700000000,
		Status:      StatusGreen,
	}
	if got != want {
		t.Fatalf("decodeAt() = %+v, want %+v", got, want)
	}
}

func TestDecodeScaling(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		wantTemp float32
		wantPres uint16
		wantCO2  uint16
	}{
		{"fractional temperature", []byte{0x00, 0x00, 0x97, 0x01, 0x00, 0x00, 0, 0, 0, 0, 0, 0, 0}, 20.35, 0, 0},
		{"pressure truncated", []byte{0x00, 0x00, 0x00, 0x00, 0xE7, 0x27, 0, 0, 0, 0, 0, 0, 0}, 0, 1021, 0},
		{"max co2", []byte{0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0, 0, 0, 0, 0, 0, 0}, 0, 0, 65535},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.payload)
			if err != nil {
				t.Fatalf("Decode() err=%v", err)
			}
			if got.Temperature != tt.wantTemp || got.Pressure != tt.wantPres || got.CO2 != tt.wantCO2 {
				t.Fatalf("Decode() = %+v", got)
			}
		})
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	long := append(append([]byte{}, samplePayload...), 0xAA, 0xBB)
	got, err := Decode(long)
	if err != nil {
		t.Fatalf("Decode() err=%v", err)
	}
	if got.CO2 != 712 {
		t.Fatalf("co2 = %d, want 712", got.CO2)
	}
}

func TestDecodeTruncated(t *testing.T) {
	for n := 0; n < PayloadSize; n++ {
		_, err := Decode(samplePayload[:n])
		if !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("Decode(%d bytes) err=%v, want ErrMalformedPayload", n, err)
		}
		if KindOf(err) != "malformed_payload" {
			t.Fatalf("KindOf() = %q", KindOf(err))
		}
	}
}

func TestDecodeTimestampIsNow(t *testing.T) {
	before := time.Now().Unix()
	got, err := Decode(samplePayload)
	if err != nil {
		t.Fatalf("Decode() err=%v", err)
	}
	if got.Timestamp < before || got.Timestamp > time.Now().Unix() {
		t.Fatalf("timestamp %d not within decode call", got.Timestamp)
	}
}
