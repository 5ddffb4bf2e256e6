package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentcore/server/internal/engine/model"
)

func entitiesOfType(entities []model.Entity, t model.EntityType) []model.Entity {
	var out []model.Entity
	for _, e := range entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestEntitiesOrderID(t *testing.T) {
	got := entitiesOfType(Entities("Where is my order ORD-12345?"), model.EntityOrderID)
	require.Len(t, got, 1)
	assert.Equal(t, "ORD-12345", got[0].Value)
	assert.Equal(t, 0.95, got[0].Confidence)

	got = entitiesOfType(Entities("order #98765 has not arrived"), model.EntityOrderID)
	require.Len(t, got, 1)
	assert.Equal(t, "98765", got[0].Value)
}

func TestEntitiesTrackingNumber(t *testing.T) {
	got := entitiesOfType(Entities("tracking says 1Z999AA10123456784 is stuck"), model.EntityTrackingNumber)
	require.Len(t, got, 1)
	assert.Equal(t, "1Z999AA10123456784", got[0].Value)
}

func TestEntitiesMoneyAmount(t *testing.T) {
	got := entitiesOfType(Entities("I was charged $89.90 twice"), model.EntityMoneyAmount)
	require.Len(t, got, 1)
	assert.Equal(t, "89.90", got[0].Value)
}

func TestEntitiesSizeAndColor(t *testing.T) {
	entities := Entities("do you have this in size 10 in black")

	sizes := entitiesOfType(entities, model.EntitySize)
	require.Len(t, sizes, 1)
	assert.Equal(t, "10", sizes[0].Value)

	colors := entitiesOfType(entities, model.EntityColor)
	require.Len(t, colors, 1)
	assert.Equal(t, "black", colors[0].Value)
}

func TestEntitiesDeadline(t *testing.T) {
	got := entitiesOfType(Entities("I need it by friday, this is urgent"), model.EntityDeadline)
	require.NotEmpty(t, got)

	values := make([]string, 0, len(got))
	for _, e := range got {
		values = append(values, e.Value)
	}
	assert.Contains(t, values, "friday")
	assert.Contains(t, values, "urgent")
	for _, e := range got {
		assert.Equal(t, 0.70, e.Confidence)
	}
}

func TestEntitiesReasonLowercased(t *testing.T) {
	got := entitiesOfType(Entities("The item arrived DAMAGED and the box was broken"), model.EntityReason)
	require.Len(t, got, 2)

	values := []string{got[0].Value, got[1].Value}
	assert.Contains(t, values, "damaged")
	assert.Contains(t, values, "broken")
}

func TestEntitiesDedupe(t *testing.T) {
	// Both order patterns hit the same number; dedupe keeps one entity.
	got := entitiesOfType(Entities("order #12345, yes order number 12345"), model.EntityOrderID)
	assert.Len(t, got, 1)
}

func TestEntitiesSpanOffsets(t *testing.T) {
	text := "refund $25.00 please"
	got := entitiesOfType(Entities(text), model.EntityMoneyAmount)
	require.Len(t, got, 1)
	assert.Equal(t, "$25.00", text[got[0].Start:got[0].End])
	assert.Equal(t, "$25.00", got[0].RawSpan)
}

func TestEntitiesEmpty(t *testing.T) {
	assert.Empty(t, Entities("hello there"))
}
