package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
entities:
  - name: Base
    abstract: true
    columns:
      - {property: id, kind: number, primary: true}
      - {property: createdAt, alias: created_at, kind: datetime}
  - name: Branch
    table: branches
    parent: Base
    columns:
      - {property: name}
  - name: Product
    table: products
    parent: Base
    columns:
      - {property: name}
      - {property: active, kind: boolean}
    relations:
      - {property: branch, target: Branch, joinColumn: branch_id}
      - {property: movements, target: Movement, inverseColumn: product_id, many: true}
  - name: Movement
    table: movements
    parent: Base
    columns:
      - {property: quantity, kind: number}
    relations:
      - {property: product, target: Product, joinColumn: product_id}
`

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := LoadYAML(strings.NewReader(testSchema))
	require.NoError(t, err)
	return reg
}

func TestLoadYAML_Defaults(t *testing.T) {
	reg := loadTestRegistry(t)

	product, ok := reg.Entity("Product")
	require.True(t, ok)
	assert.Equal(t, "products", product.Table)

	col, ok := product.Column("name")
	require.True(t, ok)
	assert.Equal(t, "name", col.Alias)
	assert.Equal(t, KindString, col.Kind)

	byTable, ok := reg.Entity("products")
	require.True(t, ok)
	assert.Same(t, product, byTable)

	assert.Equal(t, []string{"Branch", "Movement", "Product"}, reg.Names())
	assert.True(t, reg.Linked())
}

func TestEntity_InheritedColumnsAndPrimaryKeys(t *testing.T) {
	reg := loadTestRegistry(t)
	product, _ := reg.Entity("Product")

	col, ok := product.Column("createdAt")
	require.True(t, ok)
	assert.Equal(t, "created_at", col.Alias)
	assert.True(t, col.Kind.IsDateLike())

	assert.Equal(t, []string{"id"}, product.PrimaryKeys())
	assert.Equal(t, "Base", product.ParentEntity().Name)
	assert.Len(t, product.AllColumns(), 4)
}

func TestPathHelpers(t *testing.T) {
	reg := loadTestRegistry(t)
	movement, _ := reg.Entity("Movement")

	assert.True(t, HasProperty(movement, "quantity"))
	assert.True(t, HasProperty(movement, "product.name"))
	assert.True(t, HasProperty(movement, "product.branch.name"))
	assert.True(t, HasProperty(movement, "product.branch.createdAt"))
	assert.False(t, HasProperty(movement, "product"))
	assert.False(t, HasProperty(movement, "product.unknown"))
	assert.False(t, HasProperty(movement, ""))

	assert.True(t, HasRelation(movement, "product"))
	assert.True(t, HasRelation(movement, "product.branch"))
	assert.False(t, HasRelation(movement, "product.name"))

	rel, ok := GetRelation(movement, "product.branch")
	require.True(t, ok)
	assert.Equal(t, "Branch", rel.Entity().Name)

	rels, col, ok := Walk(movement, "product.branch.name")
	require.True(t, ok)
	assert.Len(t, rels, 2)
	assert.Equal(t, "name", col.Property)

	got, ok := GetProperty(movement, "product.active")
	require.True(t, ok)
	assert.True(t, got.Kind.IsBoolean())
}

func TestParentPath(t *testing.T) {
	assert.Equal(t, "", ParentPath("name"))
	assert.Equal(t, "branch", ParentPath("branch.name"))
	assert.Equal(t, "product.branch", ParentPath("product.branch.name"))
}

func TestLink_Errors(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Entity{Name: "A", Relations: []Relation{{Property: "b", Target: "B"}}}))
	assert.ErrorContains(t, reg.Link(), "unknown target B")

	reg = NewRegistry()
	require.NoError(t, reg.Register(&Entity{Name: "A", Parent: "B"}))
	require.NoError(t, reg.Register(&Entity{Name: "B", Parent: "A"}))
	assert.ErrorContains(t, reg.Link(), "inheritance cycle")

	reg = NewRegistry()
	require.NoError(t, reg.Register(&Entity{Name: "A"}))
	assert.Error(t, reg.Register(&Entity{Name: "A"}))
	assert.Error(t, reg.Register(&Entity{}))
}

func TestLoadYAML_UnknownField(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("entities:\n  - name: A\n    colums: []\n"))
	assert.Error(t, err)
}
