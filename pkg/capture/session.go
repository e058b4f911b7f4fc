// Package capture runs capture sessions: it owns the transfer pump worker,
// decodes frames as they arrive and keeps the ordered record list that the
// save/load and export paths work from.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tracewire/go-usbcap/pkg/decode"
	"github.com/tracewire/go-usbcap/pkg/descriptors"
	"github.com/tracewire/go-usbcap/pkg/log"
	"github.com/tracewire/go-usbcap/pkg/transfers"
)

// Device is the slice of the analyzer a session drives.
type Device interface {
	StartCapture(speed descriptors.Speed) error
	StopCapture() error
	NewPump(sink chan<- []byte, poolSize, maxBufferLen int) (*transfers.Pump, error)
}

// Config tunes one capture session. Zero values select the defaults.
type Config struct {
	Speed         descriptors.Speed
	PoolSize      int
	BufferLen     int
	SinkDepth     int
	StartAttempts int
}

const (
	defaultSinkDepth     = 256
	defaultStartAttempts = 5
	startBackoffBase     = 100 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.PoolSize < 1 {
		c.PoolSize = transfers.DefaultPoolSize
	}
	if c.BufferLen < 1 {
		c.BufferLen = transfers.MaxBufferLength
	}
	if c.SinkDepth < 1 {
		c.SinkDepth = defaultSinkDepth
	}
	if c.StartAttempts < 1 {
		c.StartAttempts = defaultStartAttempts
	}
	return c
}

// Session is one capture run against one device.
type Session struct {
	ID uuid.UUID

	dev     Device
	cfg     Config
	decoder *decode.Decoder
	logger  log.Logger

	mu      sync.Mutex
	started time.Time
	records []Record
}

func NewSession(dev Device, cfg Config) *Session {
	id := uuid.New()
	return &Session{
		ID:      id,
		dev:     dev,
		cfg:     cfg.withDefaults(),
		decoder: decode.NewDecoder(cfg.Speed),
		logger: log.GetLogger().WithFields(log.Fields{
			"component": "session",
			"session":   id.String(),
		}),
	}
}

// Run starts capture on the device and pumps frames until ctx is cancelled
// or the transport fails unrecoverably. Each frame is decoded synchronously
// and appended to the record list. Run returns nil on a clean stop.
func (s *Session) Run(ctx context.Context) error {
	if err := s.startWithBackoff(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.dev.StopCapture(); err != nil {
			s.logger.WithError(err).Warn("stopping capture failed")
		}
	}()

	sink := make(chan []byte, s.cfg.SinkDepth)
	pump, err := s.dev.NewPump(sink, s.cfg.PoolSize, s.cfg.BufferLen)
	if err != nil {
		return fmt.Errorf("building pump: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- pump.Process(pumpCtx)
	}()

	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()
	s.logger.Infof("capture running, %s speed", s.cfg.Speed)

	for {
		select {
		case <-ctx.Done():
			cancel()
			<-pumpDone
			s.drainSink(sink)
			s.logStats(pump)
			return nil
		case err := <-pumpDone:
			s.drainSink(sink)
			s.logStats(pump)
			if err != nil {
				return fmt.Errorf("capture transport failed: %w", err)
			}
			return nil
		case frame := <-sink:
			s.append(frame)
		}
	}
}

// startWithBackoff issues the start-capture request, retrying with
// exponential backoff since the hardware rejects mode changes while it is
// still settling.
func (s *Session) startWithBackoff(ctx context.Context) error {
	delay := startBackoffBase
	for attempt := 1; ; attempt++ {
		err := s.dev.StartCapture(s.cfg.Speed)
		if err == nil {
			return nil
		}
		if attempt >= s.cfg.StartAttempts {
			return fmt.Errorf("starting capture after %d attempts: %w", attempt, err)
		}
		s.logger.WithError(err).Warnf("start capture attempt %d/%d failed, retrying in %s",
			attempt, s.cfg.StartAttempts, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (s *Session) append(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, Record{
		Timestamp: time.Since(s.started).Seconds(),
		RawData:   frame,
		Decoded:   s.decoder.Decode(frame),
	})
}

// drainSink consumes frames the pump forwarded before it stopped.
func (s *Session) drainSink(sink chan []byte) {
	for {
		select {
		case frame := <-sink:
			s.append(frame)
		default:
			return
		}
	}
}

func (s *Session) logStats(pump *transfers.Pump) {
	stats := pump.Stats()
	s.logger.Infof("capture finished: %d completed, %d errored, %d forwarded, %d dropped, %d records",
		stats.Completed, stats.Errored, stats.Forwarded, stats.Dropped, len(s.Records()))
}

// Records returns a snapshot of the captured records.
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Document packages the session for persistence.
func (s *Session) Document() *Document {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	return &Document{
		SessionID: s.ID.String(),
		Speed:     s.cfg.Speed.String(),
		StartedAt: started,
		Records:   s.Records(),
	}
}
