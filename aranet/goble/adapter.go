package goble

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"

	"github.com/alepar/aranet4/aranet"
)

// Adapter is one HCI controller. The device is opened by StartScan and
// released by Close.
type Adapter struct {
	ID             int
	ConnectTimeout time.Duration

	dev *linux.Device

	mu    sync.Mutex
	seen  map[string]*Peripheral
	order []*Peripheral

	cancelScan context.CancelFunc
	scanDone   chan struct{}
	scanErr    error
}

func (a *Adapter) StartScan(ctx context.Context) error {
	if a.cancelScan != nil {
		return errors.New("scan already running")
	}
	if a.dev == nil {
		dev, err := linux.NewDevice(ble.OptDeviceID(a.ID))
		if err != nil {
			return errors.Wrapf(err, "failed to open hci%d", a.ID)
		}
		a.dev = dev
	}

	a.mu.Lock()
	a.seen = map[string]*Peripheral{}
	a.order = nil
	a.scanErr = nil
	a.mu.Unlock()

	scanCtx, cancel := context.WithCancel(ctx)
	a.cancelScan = cancel
	a.scanDone = make(chan struct{})
	go func() {
		defer close(a.scanDone)
		err := a.dev.Scan(scanCtx, false, a.handleAdvertisement)
		switch errors.Cause(err) {
		case nil, context.Canceled, context.DeadlineExceeded:
		default:
			a.mu.Lock()
			a.scanErr = errors.Wrapf(err, "scan on hci%d failed", a.ID)
			a.mu.Unlock()
		}
	}()
	return nil
}

func (a *Adapter) handleAdvertisement(adv ble.Advertisement) {
	addr := strings.ToUpper(adv.Addr().String())

	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.seen[addr]; ok {
		// the name often only arrives in the scan response
		if p.name == "" && adv.LocalName() != "" {
			p.name = adv.LocalName()
		}
		p.rssi = adv.RSSI()
		return
	}
	p := &Peripheral{
		dev:            a.dev,
		addr:           adv.Addr(),
		name:           adv.LocalName(),
		rssi:           adv.RSSI(),
		connectTimeout: a.ConnectTimeout,
		mu:             &a.mu,
	}
	a.seen[addr] = p
	a.order = append(a.order, p)
}

func (a *Adapter) Peripherals(ctx context.Context) ([]aranet.Peripheral, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scanErr != nil {
		return nil, a.scanErr
	}
	out := make([]aranet.Peripheral, 0, len(a.order))
	for _, p := range a.order {
		out = append(out, p)
	}
	return out, nil
}

func (a *Adapter) StopScan(ctx context.Context) error {
	if a.cancelScan == nil {
		return nil
	}
	a.cancelScan()
	a.cancelScan = nil
	select {
	case <-a.scanDone:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for scan to stop")
	}
}

func (a *Adapter) Close() error {
	if a.dev == nil {
		return nil
	}
	_ = a.StopScan(context.Background())
	err := a.dev.Stop()
	a.dev = nil
	return errors.Wrapf(err, "failed to close hci%d", a.ID)
}
