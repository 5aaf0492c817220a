// Package webhook classifies Baserow webhook deliveries.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/studentdocs/profile-service/internal/records"
)

// EventRowsCreated is the only event type that triggers provisioning.
const EventRowsCreated = "rows.created"

// Reasons reported for ignored deliveries.
const (
	ReasonNotCreation = "Not a row creation event"
	ReasonNoItems     = "No items in payload"
	ReasonTestPayload = "Row ID invalid/Webhook test successful, your pick."
)

// ErrMalformedPayload marks a body that is not a webhook payload.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Payload is the Baserow webhook body.
type Payload struct {
	EventType string           `json:"event_type"`
	TableID   json.RawMessage  `json:"table_id"`
	Items     []records.Record `json:"items"`
}

// Kind is the classification of a delivery.
type Kind int

const (
	Rejected Kind = iota
	Ignored
	Accepted
)

func (k Kind) String() string {
	switch k {
	case Ignored:
		return "ignored"
	case Accepted:
		return "accepted"
	}
	return "rejected"
}

// Decision is the result of Classify. Record, RecordID and TableID are only
// set for Accepted; Err only for Rejected.
type Decision struct {
	Kind     Kind
	Reason   string
	Err      error
	Record   records.Record
	RecordID int64
	TableID  string
	// Dropped counts items after the first, which are not processed.
	Dropped int
}

func reject(format string, v ...interface{}) Decision {
	err := fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, v...))
	return Decision{Kind: Rejected, Reason: err.Error(), Err: err}
}

func ignore(reason string) Decision {
	return Decision{Kind: Ignored, Reason: reason}
}

// Classify validates a raw delivery and extracts the record to provision.
// Only the first item is processed.
func Classify(body []byte) Decision {
	p, err := decodePayload(body)
	if err != nil {
		return reject("%v", err)
	}

	if p.EventType != EventRowsCreated {
		return ignore(ReasonNotCreation)
	}
	if len(p.Items) == 0 {
		return ignore(ReasonNoItems)
	}

	rec := p.Items[0]
	if rec == nil {
		return reject("first item is null")
	}
	id, ok := rec.ID()
	if !ok {
		return reject("first item has no integer %q field", records.IDField)
	}
	if id == 0 {
		return ignore(ReasonTestPayload)
	}

	tableID, err := normalizeTableID(p.TableID)
	if err != nil {
		return reject("%v", err)
	}

	return Decision{
		Kind:     Accepted,
		Record:   rec,
		RecordID: id,
		TableID:  tableID,
		Dropped:  len(p.Items) - 1,
	}
}

// decodePayload requires body to hold exactly one JSON object.
func decodePayload(body []byte) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(body))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return p, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return p, errors.New("unexpected data after payload object")
	}
	if raw[0] != '{' {
		return p, errors.New("payload is not a JSON object")
	}

	dec = json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return p, err
	}
	return p, nil
}

// normalizeTableID accepts a JSON number or string.
func normalizeTableID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("table_id is missing")
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("table_id: %w", err)
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("table_id: %w", err)
		}
		if _, err := n.Int64(); err != nil {
			return "", fmt.Errorf("table_id %s is not an integer", n)
		}
		s = n.String()
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("table_id is empty")
	}
	return s, nil
}
