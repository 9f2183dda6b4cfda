package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	dt, ok := ParseDocumentType("bankinglaw")
	assert.True(t, ok)
	assert.Equal(t, TypeBankingLaw, dt)

	_, ok = ParseDocumentType("memo")
	assert.False(t, ok)

	st, ok := ParseSubscriptionType(" pro ")
	assert.True(t, ok)
	assert.Equal(t, SubscriptionPro, st)
}

func TestSearchable(t *testing.T) {
	d := Document{Status: StatusCompleted, Content: "text"}
	assert.True(t, d.Searchable())

	d.Content = ""
	assert.False(t, d.Searchable())

	d = Document{Status: StatusFailed, Content: "text"}
	assert.False(t, d.Searchable())
}

func TestJSONColumn(t *testing.T) {
	j, err := NewJSON(map[string]string{"court": "Yargıtay"})
	require.NoError(t, err)

	var back map[string]string
	require.NoError(t, j.Decode(&back))
	assert.Equal(t, "Yargıtay", back["court"])

	var empty JSON
	require.NoError(t, empty.Scan(nil))
	v, err := empty.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	out, err := json.Marshal(struct {
		F JSON `json:"f"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"f":null}`, string(out))
}
