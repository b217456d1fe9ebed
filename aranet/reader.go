package aranet

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// CurrentReadingsUUID identifies the characteristic holding current values.
var CurrentReadingsUUID = uuid.MustParse("f0cd3001-95da-4f4b-9ac8-aa55d312af0c")

const (
	DefaultNamePrefix   = "Aranet4"
	DefaultScanDuration = 5 * time.Second
)

// Reader locates an Aranet4, reads its current values once and
// disconnects. It keeps nothing between calls and never retries.
type Reader struct {
	manager      Manager
	namePrefix   string
	scanDuration time.Duration
	log          log.FieldLogger
}

type ReaderOption func(*Reader)

func WithNamePrefix(prefix string) ReaderOption {
	return func(r *Reader) { r.namePrefix = prefix }
}

func WithScanDuration(d time.Duration) ReaderOption {
	return func(r *Reader) { r.scanDuration = d }
}

func WithLogger(l log.FieldLogger) ReaderOption {
	return func(r *Reader) { r.log = l }
}

func NewReader(manager Manager, opts ...ReaderOption) *Reader {
	r := &Reader{
		manager:      manager,
		namePrefix:   DefaultNamePrefix,
		scanDuration: DefaultScanDuration,
		log:          log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read runs one discovery, connect, read, disconnect cycle.
func (r *Reader) Read(ctx context.Context) (Reading, error) {
	r.log.Debugf("scanning for %s device", r.namePrefix)

	adapter, err := r.firstAdapter(ctx)
	if err != nil {
		return Reading{}, err
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			r.log.Warnf("failed to close adapter: %s", err)
		}
	}()

	device, err := r.find(ctx, adapter)
	if err != nil {
		return Reading{}, err
	}

	// past the scan window the cycle runs to completion
	ctx = context.WithoutCancel(ctx)

	if err := r.connect(ctx, device); err != nil {
		return Reading{}, err
	}
	defer r.disconnect(ctx, device)

	c, err := r.locate(ctx, device)
	if err != nil {
		return Reading{}, err
	}

	r.log.Debugf("reading characteristic")
	data, err := device.Read(ctx, c)
	if err != nil {
		return Reading{}, &StepError{Kind: ErrTransport, Err: errors.Wrap(err, "failed to read characteristic value")}
	}
	r.log.Debugf("read %d bytes", len(data))

	return Decode(data)
}

func (r *Reader) firstAdapter(ctx context.Context) (Adapter, error) {
	adapters, err := r.manager.Adapters(ctx)
	if err != nil {
		return nil, &StepError{Kind: ErrTransport, Err: errors.Wrap(err, "failed to list adapters")}
	}
	if len(adapters) == 0 {
		return nil, &StepError{Kind: ErrNoAdapter}
	}
	// the others are never used in this cycle
	for _, extra := range adapters[1:] {
		_ = extra.Close()
	}
	return adapters[0], nil
}

// find scans for the configured window and picks the first peripheral whose
// advertised name carries the prefix. With several matching devices the
// winner depends on discovery order.
func (r *Reader) find(ctx context.Context, adapter Adapter) (Peripheral, error) {
	if err := adapter.StartScan(ctx); err != nil {
		return nil, &StepError{Kind: ErrTransport, Err: errors.Wrap(err, "failed to start scan")}
	}

	device, findErr := r.waitAndSelect(ctx, adapter)

	if err := adapter.StopScan(context.WithoutCancel(ctx)); err != nil && findErr == nil {
		return nil, &StepError{Kind: ErrTransport, Err: errors.Wrap(err, "failed to stop scan")}
	}
	return device, findErr
}

func (r *Reader) waitAndSelect(ctx context.Context, adapter Adapter) (Peripheral, error) {
	timer := time.NewTimer(r.scanDuration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, &StepError{Kind: ErrTransport, Err: errors.Wrap(ctx.Err(), "scan interrupted")}
	}

	peripherals, err := adapter.Peripherals(ctx)
	if err != nil {
		return nil, &StepError{Kind: ErrTransport, Err: errors.Wrap(err, "failed to list peripherals")}
	}
	r.log.Debugf("found %d BLE device(s)", len(peripherals))

	for _, p := range peripherals {
		props, err := p.Properties(ctx)
		if err != nil || props == nil || props.LocalName == "" {
			continue
		}
		r.log.WithFields(log.Fields{"address": props.Address, "rssi": props.RSSI}).
			Debugf("found device: %s", props.LocalName)
		if strings.HasPrefix(props.LocalName, r.namePrefix) {
			r.log.WithField("address", props.Address).Infof("found %s", props.LocalName)
			return p, nil
		}
	}
	return nil, &StepError{Kind: ErrDeviceNotFound}
}

func (r *Reader) connect(ctx context.Context, device Peripheral) error {
	connected, err := device.IsConnected(ctx)
	if err != nil {
		return &StepError{Kind: ErrConnectFailed, Err: err}
	}
	if connected {
		return nil
	}
	r.log.Debugf("connecting to device")
	if err := device.Connect(ctx); err != nil {
		return &StepError{Kind: ErrConnectFailed, Err: err}
	}
	r.log.Debugf("connected")
	return nil
}

func (r *Reader) locate(ctx context.Context, device Peripheral) (Characteristic, error) {
	r.log.Debugf("discovering characteristics")
	chars, err := device.DiscoverCharacteristics(ctx)
	if err != nil {
		return nil, &StepError{Kind: ErrTransport, Err: errors.Wrap(err, "couldn't discover characteristics")}
	}
	for _, c := range chars {
		if c.UUID() == CurrentReadingsUUID {
			return c, nil
		}
	}
	return nil, &StepError{Kind: ErrCharacteristicNotFound}
}

func (r *Reader) disconnect(ctx context.Context, device Peripheral) {
	if err := device.Disconnect(ctx); err != nil {
		r.log.Warnf("failed to disconnect: %s", err)
		return
	}
	r.log.Debugf("disconnected")
}
