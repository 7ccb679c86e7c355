package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentInt64(t *testing.T) {
	doc := Document{
		"float":   float64(1700000000000),
		"int64":   int64(1700000000000),
		"uint64":  uint64(1700000000000),
		"int":     1700000000000,
		"number":  json.Number("1700000000000"),
		"decimal": json.Number("1700000000000.0"),
		"string":  "1700000000000",
	}

	for _, key := range []string{"float", "int64", "uint64", "int", "number", "decimal"} {
		t.Run(key, func(t *testing.T) {
			n, ok := doc.Int64(key)
			assert.True(t, ok)
			assert.Equal(t, int64(1700000000000), n)
		})
	}

	_, ok := doc.Int64("string")
	assert.False(t, ok)
	_, ok = doc.Int64("missing")
	assert.False(t, ok)
}

func TestDocumentStringAndBool(t *testing.T) {
	doc := Document{"email": "a@b.c", "done": true, "n": 3}
	assert.Equal(t, "a@b.c", doc.String("email"))
	assert.Equal(t, "", doc.String("n"))
	assert.True(t, doc.Bool("done"))
	assert.False(t, doc.Bool("email"))
}
