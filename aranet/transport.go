package aranet

import (
	"context"

	"github.com/google/uuid"
)

// Manager lists the local bluetooth adapters.
type Manager interface {
	Adapters(ctx context.Context) ([]Adapter, error)
}

// Adapter is one local bluetooth controller.
type Adapter interface {
	StartScan(ctx context.Context) error

	// Peripherals returns what was discovered so far, in discovery order.
	Peripherals(ctx context.Context) ([]Peripheral, error)

	StopScan(ctx context.Context) error

	// Close releases the controller. Peripherals obtained from it are
	// unusable afterwards.
	Close() error
}

// Properties are the advertised properties of a peripheral.
type Properties struct {
	LocalName string
	Address   string
	RSSI      int
}

// Peripheral is a remote device seen during a scan.
type Peripheral interface {
	Properties(ctx context.Context) (*Properties, error)
	IsConnected(ctx context.Context) (bool, error)
	Connect(ctx context.Context) error
	DiscoverCharacteristics(ctx context.Context) ([]Characteristic, error)
	Read(ctx context.Context, c Characteristic) ([]byte, error)
	Disconnect(ctx context.Context) error
}

// Characteristic is a readable GATT attribute.
type Characteristic interface {
	UUID() uuid.UUID
}
