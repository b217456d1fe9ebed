package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/alepar/aranet4/aranet"
)

type result struct {
	reading aranet.Reading
	err     error
}

type fakeReader struct {
	mu      sync.Mutex
	results []result
	calls   int
	called  chan struct{}
	onRead  func()
}

func (f *fakeReader) Read(ctx context.Context) (aranet.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := f.results[f.calls%len(f.results)]
	f.calls++
	if f.onRead != nil {
		f.onRead()
	}
	if f.called != nil {
		select {
		case f.called <- struct{}{}:
		default:
		}
	}
	return res.reading, res.err
}

type fakeStore struct {
	mu       sync.Mutex
	appended []aranet.Reading
	fail     bool
}

func (s *fakeStore) Append(ctx context.Context, r aranet.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.appended = append(s.appended, r)
	return nil
}

func (s *fakeStore) Query(ctx context.Context, hours *int, limit int) ([]aranet.Reading, error) {
	return nil, nil
}

func newTestPoller(t *testing.T, r Reader, store *fakeStore) (*Poller, *aranet.Latest, *test.Hook) {
	t.Helper()
	latest := &aranet.Latest{}
	p, err := New(r, latest, store, time.Millisecond)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	logger, hook := test.NewNullLogger()
	p.SetLogger(logger)
	return p, latest, hook
}

func TestNewValidates(t *testing.T) {
	if _, err := New(&fakeReader{}, &aranet.Latest{}, &fakeStore{}, 0); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := New(nil, &aranet.Latest{}, &fakeStore{}, time.Second); err == nil {
		t.Fatalf("expected error for nil reader")
	}
}

func TestPollOnceSuccess(t *testing.T) {
	want := aranet.Reading{CO2: 712, Temperature: 16, Timestamp: 100, Status: aranet.StatusGreen}
	store := &fakeStore{}
	p, latest, hook := newTestPoller(t, &fakeReader{results: []result{{reading: want}}}, store)

	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() err=%v", err)
	}
	if got, ok := latest.Get(); !ok || got != want {
		t.Fatalf("latest = %+v,%v want %+v", got, ok, want)
	}
	if len(store.appended) != 1 || store.appended[0] != want {
		t.Fatalf("appended = %+v", store.appended)
	}
	if hook.LastEntry().Level != log.InfoLevel {
		t.Fatalf("expected info summary, got %+v", hook.LastEntry())
	}
	if testutil.ToFloat64(gaugeCo2Level) != 712 {
		t.Fatalf("co2 gauge = %v", testutil.ToFloat64(gaugeCo2Level))
	}
}

func TestPollOnceFailureKeepsLatest(t *testing.T) {
	good := aranet.Reading{CO2: 600, Timestamp: 1}
	reader := &fakeReader{results: []result{
		{reading: good},
		{err: &aranet.StepError{Kind: aranet.ErrDeviceNotFound}},
	}}
	store := &fakeStore{}
	p, latest, hook := newTestPoller(t, reader, store)

	_ = p.PollOnce(context.Background())
	before := testutil.ToFloat64(readCycles.WithLabelValues("device_not_found"))
	err := p.PollOnce(context.Background())
	if !errors.Is(err, aranet.ErrDeviceNotFound) {
		t.Fatalf("PollOnce() err=%v", err)
	}
	if got, _ := latest.Get(); got != good {
		t.Fatalf("latest = %+v, want unchanged %+v", got, good)
	}
	if len(store.appended) != 1 {
		t.Fatalf("appended %d readings, want 1", len(store.appended))
	}
	entry := hook.LastEntry()
	if entry.Level != log.ErrorLevel || entry.Data["kind"] != "device_not_found" {
		t.Fatalf("expected error log with kind, got %+v", entry)
	}
	if after := testutil.ToFloat64(readCycles.WithLabelValues("device_not_found")); after != before+1 {
		t.Fatalf("device_not_found cycles %v -> %v", before, after)
	}
}

func TestPollOnceFailureBeforeFirstReading(t *testing.T) {
	reader := &fakeReader{results: []result{{err: &aranet.StepError{Kind: aranet.ErrNoAdapter}}}}
	p, latest, _ := newTestPoller(t, reader, &fakeStore{})
	_ = p.PollOnce(context.Background())
	if _, ok := latest.Get(); ok {
		t.Fatalf("latest populated after failed read")
	}
}

func TestPollOnceAppendFailureKeepsLatest(t *testing.T) {
	want := aranet.Reading{CO2: 800, Timestamp: 5}
	p, latest, hook := newTestPoller(t, &fakeReader{results: []result{{reading: want}}}, &fakeStore{fail: true})

	before := testutil.ToFloat64(appendFailures)
	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() err=%v", err)
	}
	if got, ok := latest.Get(); !ok || got != want {
		t.Fatalf("latest = %+v,%v want %+v", got, ok, want)
	}
	if hook.LastEntry().Level != log.ErrorLevel {
		t.Fatalf("expected storage failure to be logged")
	}
	if testutil.ToFloat64(appendFailures) != before+1 {
		t.Fatalf("append failures not counted")
	}
}

func TestPollOnceStoresReadingAfterShutdownSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	want := aranet.Reading{CO2: 910, Timestamp: 7}
	store := &fakeStore{}
	p, _, _ := newTestPoller(t, &fakeReader{results: []result{{reading: want}}, onRead: cancel}, store)

	if err := p.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce() err=%v", err)
	}
	if len(store.appended) != 1 || store.appended[0] != want {
		t.Fatalf("appended = %+v, want the reading taken before cancel", store.appended)
	}
}

func TestRunKeepsGoingAfterFailures(t *testing.T) {
	reader := &fakeReader{
		results: []result{
			{err: &aranet.StepError{Kind: aranet.ErrConnectFailed}},
			{err: &aranet.StepError{Kind: aranet.ErrTransport}},
			{reading: aranet.Reading{CO2: 450, Timestamp: 9}},
		},
		called: make(chan struct{}, 1),
	}
	store := &fakeStore{}
	p, latest, _ := newTestPoller(t, reader, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for i := 0; i < 3; i++ {
		select {
		case <-reader.called:
		case <-deadline:
			t.Fatalf("only %d cycles ran", i)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	if got, ok := latest.Get(); !ok || got.CO2 != 450 {
		t.Fatalf("latest = %+v,%v", got, ok)
	}
}
