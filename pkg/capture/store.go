package capture

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tracewire/go-usbcap/pkg/decode"
	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

// Record is one captured frame with its decode result. RawData is the
// authoritative payload and round-trips bit-exact through the JSON form;
// Decoded is derived and can be rebuilt from it at any time.
type Record struct {
	Timestamp float64             `json:"timestamp"`
	RawData   []byte              `json:"raw_data"`
	Decoded   *decode.DecodedData `json:"decoded_data,omitempty"`
}

// Document is the self-describing persisted form of a capture.
type Document struct {
	SessionID string    `json:"session_id"`
	Speed     string    `json:"speed"`
	StartedAt time.Time `json:"started_at"`
	Records   []Record  `json:"records"`
}

// SaveJSON writes the document to w.
func (d *Document) SaveJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding capture document: %w", err)
	}
	return nil
}

// LoadJSON reads a document written by SaveJSON.
func LoadJSON(r io.Reader) (*Document, error) {
	d := &Document{}
	if err := json.NewDecoder(r).Decode(d); err != nil {
		return nil, fmt.Errorf("decoding capture document: %w", err)
	}
	return d, nil
}

// Redecode rebuilds every record's decoded data from its raw frame, using
// the speed the document was captured at. Useful after decoder improvements
// or when a capture was saved without decode output.
func (d *Document) Redecode() error {
	speed, err := descriptors.ParseSpeed(d.Speed)
	if err != nil {
		return fmt.Errorf("capture document: %w", err)
	}
	decoder := decode.NewDecoder(speed)
	for i := range d.Records {
		d.Records[i].Decoded = decoder.Decode(d.Records[i].RawData)
	}
	return nil
}
