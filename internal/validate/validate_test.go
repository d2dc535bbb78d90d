package validate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Label  string   `json:"label" validate:"required"`
	Images []string `json:"images" validate:"max=2"`
}

type input struct {
	UnitID string `json:"unitId" validate:"required"`
	Kind   string `json:"kind" validate:"omitempty,oneof=A B"`
	Items  []item `json:"items" validate:"max=3,dive"`
}

func TestStructOK(t *testing.T) {
	assert.NoError(t, Struct(input{UnitID: "u1", Kind: "A"}))
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(input{
		Kind:  "C",
		Items: []item{{Label: "x", Images: []string{"1", "2", "3"}}, {}},
	})
	require.Error(t, err)

	ve, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "is required", ve.Fields["unitId"])
	assert.Equal(t, "must be one of: A B", ve.Fields["kind"])
	assert.Equal(t, "must have at most 2 entries", ve.Fields["items[0].images"])
	assert.Equal(t, "is required", ve.Fields["items[1].label"])
}

func TestStructTooManyItems(t *testing.T) {
	err := Struct(input{UnitID: "u1", Items: make([]item, 4)})
	ve, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "must have at most 3 entries", ve.Fields["items"])
}

func TestAsWrapped(t *testing.T) {
	err := fmt.Errorf("creating: %w", Field("title", "is required"))
	ve, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "is required", ve.Fields["title"])

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
