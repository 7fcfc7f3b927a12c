package dice

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLegacyDocument(t *testing.T) {
	raw := `{
    "images": {"42": [{"name": "Dice#1", "url": "https://cdn/a.png"}, {"name": "Dice#2", "url": "https://cdn/b.png"}]},
    "users": {"42": {"7": {"coins": 150, "points": 20, "images": [2]}}},
    "drop_channel": {"42": 123456789012345678},
    "drop_role": {"42": "987"}
}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	doc.Normalize()

	require.Len(t, doc.Images["42"], 2)
	assert.Equal(t, 2, doc.Images["42"][1].Number)
	assert.Equal(t, Ref("123456789012345678"), doc.DropChannel["42"])
	assert.Equal(t, Ref("987"), doc.DropRole["42"])

	acc, ok := doc.LookupAccount("42", "7")
	require.True(t, ok)
	assert.True(t, acc.Owns(2))
	assert.False(t, acc.Owns(1))
}

func TestNormalizeFillsMissingMappings(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{"images": {"1": [{"name": "broken", "url": "u"}]}}`), &doc))
	doc.Normalize()

	assert.NotNil(t, doc.Users)
	assert.NotNil(t, doc.DropChannel)
	assert.NotNil(t, doc.DropRole)
	assert.Equal(t, "Dice#1", doc.Images["1"][0].Name)
	assert.Equal(t, 1, doc.Images["1"][0].Number)
}

func TestCloneIsDeep(t *testing.T) {
	doc := NewDocument()
	doc.Images["c"] = []Collectible{NewCollectible(1, "u1")}
	acc := doc.Account("c", "m")
	acc.Coins = 10
	acc.Images = append(acc.Images, 1)

	cp := doc.Clone()
	cp.Account("c", "m").Coins = 99
	cp.Account("c", "m").Images = append(cp.Account("c", "m").Images, 2)
	cp.Images["c"] = append(cp.Images["c"], NewCollectible(2, "u2"))

	assert.Equal(t, int64(10), doc.Users["c"]["m"].Coins)
	assert.Equal(t, []int{1}, doc.Users["c"]["m"].Images)
	assert.Len(t, doc.Images["c"], 1)
}

func TestParseName(t *testing.T) {
	n, err := ParseName("Dice#12")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	for _, bad := range []string{"", "Dice#", "Dice#x", "Die#3", "Dice#0", "Dice#-1"} {
		_, err := ParseName(bad)
		assert.Error(t, err, bad)
	}
}
