// Package transfers keeps a bounded pool of asynchronous bulk-in requests
// in flight against the analyzer's capture endpoint and forwards completed
// buffers to a sink channel.
package transfers

import (
	"context"
	"fmt"
	"sync/atomic"

	usb "github.com/kevmo314/go-usb"

	"github.com/tracewire/go-usbcap/pkg/log"
)

const (
	// DefaultPoolSize is the number of queued transfers when the caller
	// does not choose one. More transfers pipeline better but hold more
	// usbfs memory.
	DefaultPoolSize = 4

	// MaxBufferLength caps the per-request buffer to stay under the
	// kernel's usbfs allocation limit, matching libusb's bulk cap.
	MaxBufferLength = 16384

	// MinBufferLength is the floor the busy-retry fallback never shrinks
	// below.
	MinBufferLength = 64
)

// Transfer is one reusable asynchronous bulk-in request.
type Transfer interface {
	Submit() error
	Wait() ([]byte, error)
	Cancel()
}

// TransferFactory creates a transfer of the given buffer size bound to an
// endpoint. The pump uses it to rebuild requests when the busy fallback
// shrinks the buffer.
type TransferFactory func(endpoint uint8, size int) (Transfer, error)

type usbTransfer struct {
	t *usb.AsyncBulkTransfer
}

func (u *usbTransfer) Submit() error         { return u.t.Submit() }
func (u *usbTransfer) Wait() ([]byte, error) { return u.t.Wait() }
func (u *usbTransfer) Cancel()               { u.t.Cancel() }

// Stats are the pump's running diagnostic counters.
type Stats struct {
	Completed uint64
	Errored   uint64
	Forwarded uint64
	Dropped   uint64
}

type completion struct {
	slot int
	data []byte
	err  error
}

// Pump owns a pool of in-flight bulk-in transfers. While Process runs it is
// the sole owner of the pool; the sink channel is the only resource shared
// with other goroutines.
type Pump struct {
	factory      TransferFactory
	sink         chan<- []byte
	endpoint     uint8
	maxBufferLen int

	transfers []Transfer
	sizes     []int

	completions chan completion
	outstanding int
	retries     map[ErrorClass]int

	completed atomic.Uint64
	errored   atomic.Uint64
	forwarded atomic.Uint64
	dropped   atomic.Uint64

	logger log.Logger
}

// NewPump creates a pump with poolSize requests pre-created and submitted
// against the endpoint.
func NewPump(handle *usb.DeviceHandle, sink chan<- []byte, endpoint uint8, poolSize, maxBufferLen int) (*Pump, error) {
	factory := func(endpoint uint8, size int) (Transfer, error) {
		t, err := handle.NewAsyncBulkTransfer(endpoint, size)
		if err != nil {
			return nil, err
		}
		return &usbTransfer{t: t}, nil
	}
	return NewPumpWithFactory(factory, sink, endpoint, poolSize, maxBufferLen)
}

// NewPumpWithFactory is NewPump over an arbitrary transfer transport.
func NewPumpWithFactory(factory TransferFactory, sink chan<- []byte, endpoint uint8, poolSize, maxBufferLen int) (*Pump, error) {
	if poolSize < 1 {
		poolSize = DefaultPoolSize
	}
	if maxBufferLen < MinBufferLength {
		maxBufferLen = MinBufferLength
	}
	if maxBufferLen > MaxBufferLength {
		maxBufferLen = MaxBufferLength
	}

	p := &Pump{
		factory:      factory,
		sink:         sink,
		endpoint:     endpoint,
		maxBufferLen: maxBufferLen,
		transfers:    make([]Transfer, poolSize),
		sizes:        make([]int, poolSize),
		completions:  make(chan completion, poolSize),
		retries:      make(map[ErrorClass]int),
		logger: log.GetLogger().WithFields(log.Fields{
			"component": "pump",
			"endpoint":  fmt.Sprintf("0x%02X", endpoint),
		}),
	}

	for i := range p.transfers {
		t, err := factory(endpoint, maxBufferLen)
		if err != nil {
			for j := 0; j < i; j++ {
				p.transfers[j].Cancel()
			}
			return nil, fmt.Errorf("creating transfer %d: %w", i, err)
		}
		p.transfers[i] = t
		p.sizes[i] = maxBufferLen
	}
	for i := range p.transfers {
		if err := p.transfers[i].Submit(); err != nil {
			for j := range p.transfers {
				p.transfers[j].Cancel()
			}
			return nil, fmt.Errorf("submitting transfer %d: %w", i, err)
		}
	}
	return p, nil
}

// Process runs the completion loop until ctx is cancelled or an
// unrecoverable transfer error occurs. Cancellation takes priority over
// pending completions and the pool is always drained to zero outstanding
// requests before Process returns; callers must treat stop as asynchronous.
// Frames reach the sink in completion order, not submission order.
func (p *Pump) Process(ctx context.Context) error {
	p.outstanding = 0
	for i := range p.transfers {
		p.await(i)
	}

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case c := <-p.completions:
			p.outstanding--
			if err := p.handleCompletion(c); err != nil {
				p.drain()
				p.logger.WithError(err).Errorf("capture stopped: %d completed, %d errored",
					p.completed.Load(), p.errored.Load())
				return err
			}
		}
	}
}

// await spawns a waiter for one submitted slot. The waiter blocks in the
// transport and reports exactly one completion.
func (p *Pump) await(slot int) {
	p.outstanding++
	t := p.transfers[slot]
	go func() {
		data, err := t.Wait()
		p.completions <- completion{slot: slot, data: data, err: err}
	}()
}

func (p *Pump) handleCompletion(c completion) error {
	if c.err != nil {
		return p.handleError(c)
	}

	p.completed.Add(1)
	for class := range p.retries {
		delete(p.retries, class)
	}

	// Zero-length frames are forwarded too; they delimit payloads. The
	// buffer is copied before resubmit so the kernel cannot scribble on
	// data the consumer is still holding.
	frame := make([]byte, len(c.data))
	copy(frame, c.data)
	select {
	case p.sink <- frame:
		p.forwarded.Add(1)
	default:
		p.dropped.Add(1)
		p.logger.Warnf("sink full, dropped %d byte frame", len(frame))
	}

	return p.resubmit(c.slot, p.maxBufferLen)
}

func (p *Pump) handleError(c completion) error {
	class := Classify(c.err)
	if class == ErrorClassCancelled {
		// A stray cancellation outside shutdown; put the slot back to
		// work without charging a retry budget.
		return p.resubmit(c.slot, p.sizes[c.slot])
	}

	p.errored.Add(1)
	budget := class.retryBudget()
	if budget == 0 {
		return fmt.Errorf("transfer failed: %w", c.err)
	}

	p.retries[class]++
	if p.retries[class] > budget {
		return fmt.Errorf("%s retry budget (%d) exhausted: %w", class, budget, c.err)
	}

	size := p.sizes[c.slot]
	if class == ErrorClassBusy {
		if size/2 >= MinBufferLength {
			size /= 2
		}
	}
	p.logger.WithError(c.err).Warnf("%s on slot %d, retry %d/%d with %d byte buffer",
		class, c.slot, p.retries[class], budget, size)
	return p.resubmit(c.slot, size)
}

// resubmit puts a slot back in flight, rebuilding the request when its
// buffer size has to change.
func (p *Pump) resubmit(slot, size int) error {
	if size != p.sizes[slot] {
		t, err := p.factory(p.endpoint, size)
		if err != nil {
			return fmt.Errorf("rebuilding transfer %d at %d bytes: %w", slot, size, err)
		}
		p.transfers[slot] = t
		p.sizes[slot] = size
	}
	if err := p.transfers[slot].Submit(); err != nil {
		return fmt.Errorf("resubmitting transfer %d: %w", slot, err)
	}
	p.await(slot)
	return nil
}

// drain cancels every outstanding request and consumes completions until
// the pool is empty. Cancellation data is discarded, not forwarded.
func (p *Pump) drain() {
	for _, t := range p.transfers {
		t.Cancel()
	}
	for p.outstanding > 0 {
		<-p.completions
		p.outstanding--
	}
}

// Shutdown cancels all outstanding requests synchronously. It is for
// forced teardown outside Process; the two must not run concurrently.
func (p *Pump) Shutdown() {
	for _, t := range p.transfers {
		t.Cancel()
	}
	for p.outstanding > 0 {
		<-p.completions
		p.outstanding--
	}
}

// Stats returns a snapshot of the diagnostic counters. Safe to call from
// any goroutine while Process runs.
func (p *Pump) Stats() Stats {
	return Stats{
		Completed: p.completed.Load(),
		Errored:   p.errored.Load(),
		Forwarded: p.forwarded.Load(),
		Dropped:   p.dropped.Load(),
	}
}
