package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_UnknownKeysSurviveRoundTrip(t *testing.T) {
	in := []byte(`{"checkout_session_id":"cs_1","campaign":"spring","nested":{"a":1}}`)

	var m Metadata
	require.NoError(t, json.Unmarshal(in, &m))
	assert.Equal(t, "cs_1", m.CheckoutSessionID)
	assert.Contains(t, m.Extra, "campaign")
	assert.Contains(t, m.Extra, "nested")

	out, err := json.Marshal(m)
	require.NoError(t, err)

	var round map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &round))
	assert.JSONEq(t, `"spring"`, string(round["campaign"]))
	assert.JSONEq(t, `{"a":1}`, string(round["nested"]))
	assert.JSONEq(t, `"cs_1"`, string(round["checkout_session_id"]))
}
