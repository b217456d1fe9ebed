package goble

import (
	"context"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aranet4/aranet"
)

// bluetoothBase is the base UUID that 16 and 32 bit attribute UUIDs expand into.
var bluetoothBase = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

type Peripheral struct {
	dev            *linux.Device
	addr           ble.Addr
	connectTimeout time.Duration

	// guards name and rssi, shared with the scanning adapter
	mu   *sync.Mutex
	name string
	rssi int

	cln  ble.Client
	done chan struct{}
}

func (p *Peripheral) Properties(ctx context.Context) (*aranet.Properties, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &aranet.Properties{
		LocalName: p.name,
		Address:   p.addr.String(),
		RSSI:      p.rssi,
	}, nil
}

func (p *Peripheral) IsConnected(ctx context.Context) (bool, error) {
	if p.cln == nil {
		return false, nil
	}
	select {
	case <-p.done:
		return false, nil
	default:
		return true, nil
	}
}

func (p *Peripheral) Connect(ctx context.Context) error {
	log.Debugf("connecting to %s", p.addr)
	ctx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()
	cln, err := p.dev.Dial(ctx, p.addr)
	if err != nil {
		return errors.Wrap(err, "couldn't connect to ble")
	}
	p.cln = cln

	// Normally, the connection is disconnected by us after reading.
	// However, it can be asynchronously disconnected by the remote peripheral.
	// So we wait(detect) the disconnection in the go routine.
	p.done = make(chan struct{})
	go func(cln ble.Client, done chan struct{}) {
		<-cln.Disconnected()
		log.Debugf("device %s disconnected", p.addr)
		close(done)
	}(cln, p.done)
	return nil
}

func (p *Peripheral) DiscoverCharacteristics(ctx context.Context) ([]aranet.Characteristic, error) {
	if p.cln == nil {
		return nil, errors.New("not connected")
	}
	profile, err := p.cln.DiscoverProfile(true)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover profile")
	}
	var chars []aranet.Characteristic
	for _, s := range profile.Services {
		for _, c := range s.Characteristics {
			if c.Property&ble.CharRead == 0 {
				continue
			}
			id, err := toUUID(c.UUID)
			if err != nil {
				log.Debugf("skipping characteristic %s: %s", c.UUID, err)
				continue
			}
			chars = append(chars, &Characteristic{id: id, c: c})
		}
	}
	return chars, nil
}

func (p *Peripheral) Read(ctx context.Context, c aranet.Characteristic) ([]byte, error) {
	if p.cln == nil {
		return nil, errors.New("not connected")
	}
	gc, ok := c.(*Characteristic)
	if !ok {
		return nil, errors.Errorf("characteristic %s was not discovered by this transport", c.UUID())
	}
	data, err := p.cln.ReadCharacteristic(gc.c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read characteristic value")
	}
	return data, nil
}

func (p *Peripheral) Disconnect(ctx context.Context) error {
	if p.cln == nil {
		return nil
	}
	log.Debugf("closing connection")
	err := p.cln.CancelConnection()
	select {
	case <-p.done:
	case <-ctx.Done():
	case <-time.After(p.connectTimeout):
		err = errors.Errorf("device %s did not report disconnection", p.addr)
	}
	p.cln = nil
	return errors.Wrap(err, "failed to disconnect")
}

type Characteristic struct {
	id uuid.UUID
	c  *ble.Characteristic
}

func (c *Characteristic) UUID() uuid.UUID {
	return c.id
}

// toUUID converts go-ble's little endian UUID into its canonical form.
func toUUID(u ble.UUID) (uuid.UUID, error) {
	b := ble.Reverse(u)
	switch len(b) {
	case 2:
		id := bluetoothBase
		copy(id[2:4], b)
		return id, nil
	case 4:
		id := bluetoothBase
		copy(id[0:4], b)
		return id, nil
	case 16:
		return uuid.FromBytes(b)
	}
	return uuid.Nil, errors.Errorf("unexpected uuid length %d", len(b))
}
