package wanstats

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// Wire field names. Existing consumers match these byte for byte.
const (
	FieldIsConnected              = "isConnected"
	FieldTotalPublishLatencies    = "totalPublishLatencies"
	FieldTotalPublishedEventCount = "totalPublishedEventCount"
	FieldOutboundQueueSize        = "outboundQueueSize"
	FieldPaused                   = "paused"
	FieldStopped                  = "stopped"
)

// Unknown is the decoded value of a numeric field missing from a document.
const Unknown = -1

var ErrInvalidDocument = errors.New("invalid publisher status document")

// Document is the flat wire shape of a PublisherStatus. The lifecycle state
// travels as the Paused and Stopped flags, and per-object counters are not
// part of it.
type Document struct {
	IsConnected              bool  `json:"isConnected"`
	TotalPublishLatencies    int64 `json:"totalPublishLatencies"`
	TotalPublishedEventCount int64 `json:"totalPublishedEventCount"`
	OutboundQueueSize        int32 `json:"outboundQueueSize"`
	Paused                   bool  `json:"paused"`
	Stopped                  bool  `json:"stopped"`
}

// DefaultDocument holds the values used for fields absent from a document.
func DefaultDocument() Document {
	return Document{
		TotalPublishLatencies:    Unknown,
		TotalPublishedEventCount: Unknown,
		OutboundQueueSize:        Unknown,
	}
}

// State rebuilds the lifecycle state from the two flags.
func (d Document) State() PublisherState {
	return stateFromFlags(d.Paused, d.Stopped)
}

// Document encodes the current field values.
func (s *PublisherStatus) Document() Document {
	state := s.State()
	return Document{
		IsConnected:              s.IsConnected(),
		TotalPublishLatencies:    s.TotalPublishLatency(),
		TotalPublishedEventCount: s.TotalPublishedEventCount(),
		OutboundQueueSize:        s.OutboundQueueSize(),
		Paused:                   !state.ReplicatesEnqueuedEvents(),
		Stopped:                  !state.EnqueuesNewEvents(),
	}
}

// ApplyDocument overwrites every scalar field and the state from d and
// detaches the per-object counters.
func (s *PublisherStatus) ApplyDocument(d Document) {
	s.connected.Store(d.IsConnected)
	s.totalPublishLatency.Store(d.TotalPublishLatencies)
	s.totalPublishedEventCount.Store(d.TotalPublishedEventCount)
	s.outboundQueueSize.Store(d.OutboundQueueSize)
	s.state.Store(int32(d.State()))
	s.sentMapEventCounters.Store(nil)
	s.sentCacheEventCounters.Store(nil)
}

func (s *PublisherStatus) ToJSON() ([]byte, error) {
	return json.Marshal(s.Document())
}

func (s *PublisherStatus) MarshalJSON() ([]byte, error) {
	return s.ToJSON()
}

// FromJSON decodes a wire document into s. Missing fields are not an error:
// booleans default to false and numbers to Unknown.
func (s *PublisherStatus) FromJSON(data []byte) error {
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}
	s.ApplyDocument(doc)
	return nil
}

func (s *PublisherStatus) UnmarshalJSON(data []byte) error {
	return s.FromJSON(data)
}

// DecodeStatus returns a new PublisherStatus decoded from data.
func DecodeStatus(data []byte) (*PublisherStatus, error) {
	s := NewPublisherStatus()
	if err := s.FromJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseDocument reads the wire fields present in data on top of
// DefaultDocument.
func ParseDocument(data []byte) (Document, error) {
	doc := DefaultDocument()

	if !gjson.ValidBytes(data) {
		return doc, fmt.Errorf("%w: malformed json", ErrInvalidDocument)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return doc, fmt.Errorf("%w: expected an object, got %s", ErrInvalidDocument, root.Type)
	}

	if v := root.Get(FieldIsConnected); v.Exists() {
		doc.IsConnected = v.Bool()
	}
	if v := root.Get(FieldTotalPublishLatencies); v.Exists() {
		doc.TotalPublishLatencies = v.Int()
	}
	if v := root.Get(FieldTotalPublishedEventCount); v.Exists() {
		doc.TotalPublishedEventCount = v.Int()
	}
	if v := root.Get(FieldOutboundQueueSize); v.Exists() {
		n := v.Int()
		if n < math.MinInt32 || n > math.MaxInt32 {
			return doc, fmt.Errorf("%w: %s out of range: %s", ErrInvalidDocument, FieldOutboundQueueSize, v.Raw)
		}
		doc.OutboundQueueSize = int32(n)
	}
	if v := root.Get(FieldPaused); v.Exists() {
		doc.Paused = v.Bool()
	}
	if v := root.Get(FieldStopped); v.Exists() {
		doc.Stopped = v.Bool()
	}

	return doc, nil
}
