package transfers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	data []byte
	err  error
}

// fakeFactory builds transfers that all draw completions from one shared
// scripted channel, so tests can feed results without tracking which slot
// object currently waits.
type fakeFactory struct {
	results chan fakeResult

	mu       sync.Mutex
	sizes    []int
	submits  int
	cancels  int
	inFlight int
	maxIn    int
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{results: make(chan fakeResult, 64)}
}

func (ff *fakeFactory) new(endpoint uint8, size int) (Transfer, error) {
	ff.mu.Lock()
	ff.sizes = append(ff.sizes, size)
	ff.mu.Unlock()
	return &fakeTransfer{ff: ff, size: size}, nil
}

func (ff *fakeFactory) track(delta int) {
	ff.mu.Lock()
	ff.inFlight += delta
	if ff.inFlight > ff.maxIn {
		ff.maxIn = ff.inFlight
	}
	ff.mu.Unlock()
}

func (ff *fakeFactory) feed(data []byte, err error) {
	ff.results <- fakeResult{data: data, err: err}
}

type fakeTransfer struct {
	ff   *fakeFactory
	size int
}

func (f *fakeTransfer) Submit() error {
	f.ff.mu.Lock()
	f.ff.submits++
	f.ff.mu.Unlock()
	f.ff.track(1)
	return nil
}

func (f *fakeTransfer) Wait() ([]byte, error) {
	r := <-f.ff.results
	f.ff.track(-1)
	return r.data, r.err
}

func (f *fakeTransfer) Cancel() {
	f.ff.mu.Lock()
	f.ff.cancels++
	f.ff.mu.Unlock()
	select {
	case f.ff.results <- fakeResult{err: errors.New("transfer cancelled")}:
	default:
	}
}

func startPump(t *testing.T, p *Pump) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Process(ctx)
	}()
	return cancel, done
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("pump did not stop")
		return nil
	}
}

func TestPumpPoolBoundsAndDrain(t *testing.T) {
	for poolSize := 1; poolSize <= 16; poolSize++ {
		ff := newFakeFactory()
		sink := make(chan []byte, poolSize*4)
		p, err := NewPumpWithFactory(ff.new, sink, 0x81, poolSize, 1024)
		if err != nil {
			t.Fatalf("poolSize %d: newPump failed: %v", poolSize, err)
		}
		if len(ff.sizes) != poolSize {
			t.Fatalf("poolSize %d: created %d transfers", poolSize, len(ff.sizes))
		}

		cancel, done := startPump(t, p)
		for i := 0; i < poolSize; i++ {
			ff.feed([]byte{0xAB}, nil)
		}
		for i := 0; i < poolSize; i++ {
			select {
			case <-sink:
			case <-time.After(5 * time.Second):
				t.Fatalf("poolSize %d: frame %d never forwarded", poolSize, i)
			}
		}
		cancel()
		if err := waitDone(t, done); err != nil {
			t.Fatalf("poolSize %d: Process = %v, want nil on stop", poolSize, err)
		}
		if p.outstanding != 0 {
			t.Errorf("poolSize %d: %d outstanding after stop", poolSize, p.outstanding)
		}
		ff.mu.Lock()
		if ff.maxIn > poolSize {
			t.Errorf("poolSize %d: %d requests in flight", poolSize, ff.maxIn)
		}
		ff.mu.Unlock()
	}
}

func TestPumpForwardsZeroLengthFrames(t *testing.T) {
	ff := newFakeFactory()
	sink := make(chan []byte, 4)
	p, err := NewPumpWithFactory(ff.new, sink, 0x81, 1, 1024)
	if err != nil {
		t.Fatal(err)
	}
	cancel, done := startPump(t, p)
	defer waitDone(t, done)
	defer cancel()

	ff.feed([]byte{}, nil)
	select {
	case frame := <-sink:
		if len(frame) != 0 {
			t.Errorf("frame length = %d, want 0", len(frame))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("zero-length frame not forwarded")
	}
}

func TestPumpDropsOnFullSink(t *testing.T) {
	ff := newFakeFactory()
	sink := make(chan []byte) // unbuffered, nobody reading
	p, err := NewPumpWithFactory(ff.new, sink, 0x81, 1, 1024)
	if err != nil {
		t.Fatal(err)
	}
	cancel, done := startPump(t, p)

	for i := 0; i < 3; i++ {
		ff.feed([]byte{0x01}, nil)
	}
	deadline := time.Now().Add(5 * time.Second)
	for p.Stats().Dropped < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("Dropped = %d, want 3", p.Stats().Dropped)
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Errorf("Process = %v, want nil; a full sink must not kill the pump", err)
	}
	if got := p.Stats().Completed; got != 3 {
		t.Errorf("Completed = %d, want 3", got)
	}
}

func TestPumpTimeoutRetryExhausts(t *testing.T) {
	ff := newFakeFactory()
	p, err := NewPumpWithFactory(ff.new, make(chan []byte, 4), 0x81, 1, 1024)
	if err != nil {
		t.Fatal(err)
	}
	_, done := startPump(t, p)

	for i := 0; i < 6; i++ {
		ff.feed(nil, errors.New("transfer timed out"))
	}
	err = waitDone(t, done)
	if err == nil {
		t.Fatal("Process = nil, want retry exhaustion error")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("Process error = %v, want timeout class", err)
	}
	if p.outstanding != 0 {
		t.Errorf("%d outstanding after fatal stop", p.outstanding)
	}
}

func TestPumpRetryCountersResetOnSuccess(t *testing.T) {
	ff := newFakeFactory()
	sink := make(chan []byte, 16)
	p, err := NewPumpWithFactory(ff.new, sink, 0x81, 1, 1024)
	if err != nil {
		t.Fatal(err)
	}
	cancel, done := startPump(t, p)

	// Five timeouts exhaust nothing as long as a success lands between
	// batches.
	for round := 0; round < 3; round++ {
		for i := 0; i < 5; i++ {
			ff.feed(nil, errors.New("transfer timed out"))
		}
		ff.feed([]byte{0x01}, nil)
		select {
		case <-sink:
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: success frame not forwarded", round)
		}
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Errorf("Process = %v, want nil", err)
	}
	if got := p.Stats().Errored; got != 15 {
		t.Errorf("Errored = %d, want 15", got)
	}
}

func TestPumpBusyHalvesBuffer(t *testing.T) {
	ff := newFakeFactory()
	sink := make(chan []byte, 4)
	p, err := NewPumpWithFactory(ff.new, sink, 0x81, 1, 1024)
	if err != nil {
		t.Fatal(err)
	}
	cancel, done := startPump(t, p)

	for i := 0; i < 5; i++ {
		ff.feed(nil, errors.New("device busy"))
	}
	ff.feed([]byte{0x01}, nil)
	select {
	case <-sink:
	case <-time.After(5 * time.Second):
		t.Fatal("frame not forwarded after busy retries")
	}
	cancel()
	waitDone(t, done)

	ff.mu.Lock()
	defer ff.mu.Unlock()
	// Initial 1024, then halved per busy retry with a 64 byte floor, then
	// restored to full size after the success.
	want := []int{1024, 512, 256, 128, 64, 1024}
	if len(ff.sizes) != len(want) {
		t.Fatalf("created sizes = %v, want %v", ff.sizes, want)
	}
	for i := range want {
		if ff.sizes[i] != want[i] {
			t.Fatalf("created sizes = %v, want %v", ff.sizes, want)
		}
	}
}

func TestPumpFatalErrorStops(t *testing.T) {
	ff := newFakeFactory()
	p, err := NewPumpWithFactory(ff.new, make(chan []byte, 4), 0x81, 2, 1024)
	if err != nil {
		t.Fatal(err)
	}
	_, done := startPump(t, p)

	ff.feed(nil, errors.New("protocol violation"))
	err = waitDone(t, done)
	if err == nil {
		t.Fatal("Process = nil, want fatal error")
	}
	if got := p.Stats().Errored; got != 1 {
		t.Errorf("Errored = %d, want 1", got)
	}
	if p.outstanding != 0 {
		t.Errorf("%d outstanding after fatal stop", p.outstanding)
	}
}

func TestPumpShutdownOutsideProcess(t *testing.T) {
	ff := newFakeFactory()
	p, err := NewPumpWithFactory(ff.new, make(chan []byte, 4), 0x81, 3, 1024)
	if err != nil {
		t.Fatal(err)
	}
	p.Shutdown()
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.cancels != 3 {
		t.Errorf("cancels = %d, want 3", ff.cancels)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{nil, ErrorClassNone},
		{errors.New("transfer cancelled"), ErrorClassCancelled},
		{errors.New("transfer timed out"), ErrorClassTimeout},
		{errors.New("endpoint stalled"), ErrorClassPipe},
		{errors.New("broken pipe"), ErrorClassPipe},
		{errors.New("device busy"), ErrorClassBusy},
		{errors.New("cannot allocate resource"), ErrorClassBusy},
		{errors.New("protocol violation"), ErrorClassFatal},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
