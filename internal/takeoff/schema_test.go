package takeoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func columnSpecs() Specifications {
	return Specifications{
		Dimensions: &Dimensions{WidthMM: intPtr(400), LengthMM: intPtr(400), DepthMM: intPtr(3000)},
		Reinforcement: &Reinforcement{
			Side: &ReinfSpec{BarSize: "N12", SpacingMM: 200},
		},
		Concrete: &Concrete{Grade: "N40", CoverMM: intPtr(40)},
		Quantity: &Quantity{Count: intPtr(4)},
		Location: &Location{Location: "Grid A", Zone: "Zone 1", Level: "L1"},
	}
}

func TestValidateAcceptsConformingColumn(t *testing.T) {
	schema := DefaultSchemas().SchemaFor("concrete-column")
	ok, errs := schema.Validate(columnSpecs())
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateToleratesMissingGroups(t *testing.T) {
	schema := DefaultSchemas().SchemaFor("concrete-column")
	ok, errs := schema.Validate(Specifications{
		Concrete: &Concrete{Grade: "N40"},
	})
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateRejectsUnexpectedGroup(t *testing.T) {
	schema := DefaultSchemas().SchemaFor("concrete-column")
	specs := columnSpecs()
	specs.Finish = "off-form"

	ok, errs := schema.Validate(specs)
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "finish")
}

func TestValidateRejectsUnexpectedLeaf(t *testing.T) {
	schema := DefaultSchemas().SchemaFor("slab")
	ok, errs := schema.Validate(Specifications{
		Dimensions: &Dimensions{WidthMM: intPtr(400), DepthMM: intPtr(200)},
		Concrete:   &Concrete{Grade: "N32"},
	})
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "dimensions.width_mm")
}

// sanitize(E) is a field-wise subset of E, and every surviving field
// appears in the schema.
func TestSanitizeRemovesOnlyExtraFields(t *testing.T) {
	schema := DefaultSchemas().SchemaFor("concrete-column")
	specs := columnSpecs()
	specs.Finish = "off-form"
	specs.Reinforcement.Top = &ReinfSpec{FabricType: "SL82"}

	out := schema.Sanitize(specs)

	assert.Empty(t, out.Finish, "finish is not in the column schema")
	assert.Nil(t, out.Reinforcement.Top, "top reinforcement is not in the column schema")

	assert.Equal(t, specs.Dimensions, out.Dimensions)
	assert.Equal(t, specs.Concrete, out.Concrete)
	assert.Equal(t, specs.Quantity, out.Quantity)
	assert.Equal(t, specs.Location, out.Location)
	assert.Equal(t, specs.Reinforcement.Side, out.Reinforcement.Side)

	ok, errs := schema.Validate(out)
	assert.True(t, ok, "sanitized output validates cleanly: %v", errs)
}

func TestSanitizeDropsEmptiedGroups(t *testing.T) {
	schema := DefaultSchemas().SchemaFor("concrete-column")
	out := schema.Sanitize(Specifications{
		Reinforcement: &Reinforcement{Top: &ReinfSpec{FabricType: "SL82"}},
		Concrete:      &Concrete{Grade: "N40"},
	})
	assert.Nil(t, out.Reinforcement, "group with no surviving leaves is dropped")
	require.NotNil(t, out.Concrete)
}

func TestCompletenessBounds(t *testing.T) {
	schema := DefaultSchemas().SchemaFor("concrete-column")

	assert.Equal(t, 0.0, schema.Completeness(Specifications{}))
	assert.Equal(t, 1.0, schema.Completeness(columnSpecs()),
		"every schema leaf filled yields exactly 1")

	partial := schema.Completeness(Specifications{Concrete: &Concrete{Grade: "N40"}})
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)
}

func TestCompletenessCountsLeaves(t *testing.T) {
	// Column schema has 10 leaves: 3 dimensions, 1 reinforcement face,
	// 2 concrete, 1 quantity, 3 location.
	schema := DefaultSchemas().SchemaFor("concrete-column")
	got := schema.Completeness(Specifications{
		Dimensions: &Dimensions{WidthMM: intPtr(400), DepthMM: intPtr(3000)},
		Concrete:   &Concrete{Grade: "N40"},
	})
	assert.InDelta(t, 0.3, got, 1e-9)
}

func TestSchemaForNormalizesAndFallsBack(t *testing.T) {
	schemas := DefaultSchemas()
	assert.Equal(t, schemas["concrete-column"], schemas.SchemaFor("Concrete Column"))
	assert.Equal(t, schemas["beam"], schemas.SchemaFor("BEAM"))
	assert.Equal(t, schemas["default"], schemas.SchemaFor("stair"))
}
