package viewstate

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/dbstudio/internal/registry"
	"github.com/fyrsmithlabs/dbstudio/internal/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher struct{ meta registry.Metadata }

func (f staticFetcher) GetDatabaseDetails(context.Context, string) (registry.Metadata, error) {
	return f.meta, nil
}

func boolPtr(b bool) *bool { return &b }

func existing(name string) selection.Selection {
	return selection.Selection{Kind: selection.Existing, Name: name}
}

func TestHasFullDetails(t *testing.T) {
	reg := registry.New(staticFetcher{}, nil, nil)
	reg.BulkInitialize([]string{"name_only"})
	reg.Upsert("full", registry.Metadata{})

	assert.False(t, HasFullDetails(reg, "name_only"))
	assert.True(t, HasFullDetails(reg, "full"))
	assert.False(t, HasFullDetails(reg, "absent"))
}

func TestAwaitingDetails(t *testing.T) {
	reg := registry.New(staticFetcher{}, nil, nil)
	reg.BulkInitialize([]string{"pending"})
	reg.Upsert("full", registry.Metadata{})

	assert.True(t, AwaitingDetails(reg, existing("pending")))
	assert.False(t, AwaitingDetails(reg, existing("full")))
	assert.False(t, AwaitingDetails(reg, existing("absent")))
	assert.False(t, AwaitingDetails(reg, selection.Selection{Kind: selection.NewProject}))
	assert.False(t, AwaitingDetails(reg, selection.Selection{Kind: selection.None}))
}

func TestTablesIndexed(t *testing.T) {
	reg := registry.New(staticFetcher{}, nil, nil)
	reg.BulkInitialize([]string{"name_only"})
	reg.Upsert("with", registry.Metadata{Tables: []registry.Table{{Name: "t"}}})
	reg.Upsert("without", registry.Metadata{})

	assert.True(t, TablesIndexed(reg, "with"))
	assert.False(t, TablesIndexed(reg, "without"))
	assert.False(t, TablesIndexed(reg, "name_only"))
	assert.False(t, TablesIndexed(reg, "absent"))
}

func TestHasDescription(t *testing.T) {
	tests := []struct {
		name string
		cols []registry.ColumnDescription
		want bool
	}{
		{"one non-blank", []registry.ColumnDescription{{Description: "x"}}, true},
		{"trimmed non-blank", []registry.ColumnDescription{{Description: "  x  "}}, true},
		{"all blank", []registry.ColumnDescription{{Description: ""}, {Description: "   "}}, false},
		{"empty sequence", []registry.ColumnDescription{}, false},
		{"blank then filled", []registry.ColumnDescription{{Description: " "}, {Description: "y"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New(staticFetcher{}, nil, nil)
			reg.Upsert("d", registry.Metadata{ColumnDescriptions: tt.cols})
			assert.Equal(t, tt.want, HasDescription(reg, "d"))
		})
	}
}

func TestCanConnectUnknownUntilFull(t *testing.T) {
	reg := registry.New(staticFetcher{}, nil, nil)
	reg.BulkInitialize([]string{"pending"})

	assert.Nil(t, CanConnect(reg, "pending"))
	assert.Nil(t, CanConnect(reg, "absent"))

	reg.Upsert("pending", registry.Metadata{CanConnect: boolPtr(true)})
	got := CanConnect(reg, "pending")
	require.NotNil(t, got)
	assert.True(t, *got)
}

// Mirrors the first-load scenario: a single database whose details come
// back with empty tables and descriptions but a working connection.
func TestComputeScenarioEmptyButConnectable(t *testing.T) {
	reg := registry.New(staticFetcher{meta: registry.Metadata{
		CanConnect:         boolPtr(true),
		Tables:             []registry.Table{},
		ColumnDescriptions: []registry.ColumnDescription{},
	}}, nil, nil)

	reg.BulkInitialize([]string{"sales_db"})
	_, err := reg.FetchDetails(context.Background(), "sales_db")
	require.NoError(t, err)

	snap := Compute(reg, existing("sales_db"))
	assert.True(t, snap.HasFullDetails)
	assert.False(t, snap.AwaitingDetails)
	assert.False(t, snap.TablesIndexed)
	assert.False(t, snap.HasDescription)
	require.NotNil(t, snap.CanConnect)
	assert.True(t, *snap.CanConnect)
}

func TestComputeNonExistingSelection(t *testing.T) {
	reg := registry.New(staticFetcher{}, nil, nil)

	snap := Compute(reg, selection.Selection{Kind: selection.NewProject})
	assert.False(t, snap.HasFullDetails)
	assert.False(t, snap.AwaitingDetails)
	assert.Nil(t, snap.CanConnect)
}
