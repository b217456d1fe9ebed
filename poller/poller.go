// Package poller drives the periodic sensor reads.
package poller

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aranet4/aranet"
	"github.com/alepar/aranet4/history"
)

const DefaultInterval = 30 * time.Second

// Reader performs one complete read cycle against the device.
type Reader interface {
	Read(ctx context.Context) (aranet.Reading, error)
}

// Poller is the single writer of the latest reading and the history.
type Poller struct {
	reader   Reader
	latest   *aranet.Latest
	store    history.Store
	interval time.Duration
	log      log.FieldLogger
}

func New(reader Reader, latest *aranet.Latest, store history.Store, interval time.Duration) (*Poller, error) {
	if reader == nil || latest == nil || store == nil {
		return nil, errors.New("poller: reader, latest and store are required")
	}
	if interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	return &Poller{
		reader:   reader,
		latest:   latest,
		store:    store,
		interval: interval,
		log:      log.StandardLogger(),
	}, nil
}

// SetLogger replaces the standard logger.
func (p *Poller) SetLogger(l log.FieldLogger) {
	p.log = l
}

// Run polls until ctx is done. The interval is measured from the end of
// one cycle to the start of the next, so cycles never overlap.
func (p *Poller) Run(ctx context.Context) {
	p.log.Infof("polling every %s", p.interval)
	for {
		_ = p.PollOnce(ctx)

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.log.Info("poller stopped")
			return
		case <-timer.C:
		}
	}
}

// PollOnce runs one read cycle. A failed read leaves the latest reading
// untouched; a failed history append does not undo the latest update.
// The returned error is the read error, for callers that care.
func (p *Poller) PollOnce(ctx context.Context) error {
	start := time.Now()
	reading, err := p.reader.Read(ctx)
	readDuration.Observe(time.Since(start).Seconds())
	readCycles.WithLabelValues(aranet.KindOf(err)).Inc()

	if err != nil {
		p.log.WithField("kind", aranet.KindOf(err)).Errorf("failed to read from Aranet4: %s", err)
		return err
	}

	p.log.Infof("read from Aranet4: %s", reading)
	p.latest.Set(reading)
	observeReading(reading)

	if err := p.store.Append(context.WithoutCancel(ctx), reading); err != nil {
		appendFailures.Inc()
		p.log.Errorf("failed to store reading: %s", err)
	}
	return nil
}
