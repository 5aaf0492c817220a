package webhook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		kind   Kind
		reason string
	}{
		{"updated event", `{"event_type":"rows.updated","table_id":7,"items":[{"id":42}]}`, Ignored, ReasonNotCreation},
		{"deleted event", `{"event_type":"rows.deleted","table_id":7,"items":[]}`, Ignored, ReasonNotCreation},
		{"missing event type", `{"table_id":7,"items":[{"id":42}]}`, Ignored, ReasonNotCreation},
		{"empty items", `{"event_type":"rows.created","table_id":7,"items":[]}`, Ignored, ReasonNoItems},
		{"missing items", `{"event_type":"rows.created","table_id":7}`, Ignored, ReasonNoItems},
		{"test payload", `{"event_type":"rows.created","table_id":7,"items":[{"id":0,"Full Name":"Test"}]}`, Ignored, ReasonTestPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Classify([]byte(tc.body))
			assert.Equal(t, tc.kind, d.Kind)
			assert.Equal(t, tc.reason, d.Reason)
			assert.Nil(t, d.Record)
			assert.NoError(t, d.Err)
		})
	}
}

func TestClassify_Rejected(t *testing.T) {
	bodies := map[string]string{
		"empty body":       ``,
		"not json":         `event_type=rows.created`,
		"array":            `[{"event_type":"rows.created"}]`,
		"items not array":  `{"event_type":"rows.created","table_id":7,"items":{"id":1}}`,
		"id missing":       `{"event_type":"rows.created","table_id":7,"items":[{"Full Name":"Ada"}]}`,
		"id not integer":   `{"event_type":"rows.created","table_id":7,"items":[{"id":"abc"}]}`,
		"null item":        `{"event_type":"rows.created","table_id":7,"items":[null]}`,
		"table id missing": `{"event_type":"rows.created","items":[{"id":42}]}`,
		"table id object":  `{"event_type":"rows.created","table_id":{"x":1},"items":[{"id":42}]}`,
		"null":             `null`,
		"string":           `"rows.created"`,
		"trailing garbage": `{"event_type":"rows.created","table_id":7,"items":[{"id":42}]} trailing`,
		"two objects":      `{"event_type":"rows.created","table_id":7,"items":[{"id":42}]}{}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			d := Classify([]byte(body))
			assert.Equal(t, Rejected, d.Kind)
			require.Error(t, d.Err)
			assert.True(t, errors.Is(d.Err, ErrMalformedPayload))
			assert.Equal(t, d.Err.Error(), d.Reason)
		})
	}
}

func TestClassify_TrailingWhitespaceAccepted(t *testing.T) {
	d := Classify([]byte("{\"event_type\":\"rows.created\",\"table_id\":7,\"items\":[{\"id\":42}]}\n\t "))
	assert.Equal(t, Accepted, d.Kind)
}

func TestClassify_AcceptsFirstItem(t *testing.T) {
	body := `{"event_type":"rows.created","table_id":7,"items":[
		{"id":42,"Full Name":"Ada Lovelace","Email":"ada@example.org"},
		{"id":43,"Full Name":"Charles Babbage"}
	]}`
	d := Classify([]byte(body))
	require.Equal(t, Accepted, d.Kind)
	assert.Equal(t, int64(42), d.RecordID)
	assert.Equal(t, "7", d.TableID)
	assert.Equal(t, "Ada Lovelace", d.Record.Text("Full Name", ""))
	assert.Equal(t, 1, d.Dropped)
}

func TestClassify_StringTableID(t *testing.T) {
	d := Classify([]byte(`{"event_type":"rows.created","table_id":"  12 ","items":[{"id":"5"}]}`))
	require.Equal(t, Accepted, d.Kind)
	assert.Equal(t, "12", d.TableID)
	assert.Equal(t, int64(5), d.RecordID)
	assert.Equal(t, 0, d.Dropped)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "ignored", Ignored.String())
	assert.Equal(t, "rejected", Rejected.String())
}
