package pipeline

import (
	"testing"

	"github.com/ethpandaops/mirror/pkg/load"
	"github.com/ethpandaops/mirror/pkg/naming"
	"github.com/ethpandaops/mirror/pkg/transfer"
	"github.com/ethpandaops/mirror/pkg/transform"
	"github.com/ethpandaops/mirror/pkg/warehouse"
	"github.com/stretchr/testify/assert"
)

func validDataset() Dataset {
	return Dataset{
		Name:        "sales",
		Bucket:      "landing",
		Prefix:      "sales/{run_date}",
		FilePattern: `orders.*\.csv`,
	}
}

func TestDataset_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(d *Dataset)
		expectError error
	}{
		{name: "valid", mutate: func(*Dataset) {}},
		{name: "bad name", mutate: func(d *Dataset) { d.Name = "sales; drop" }, expectError: transform.ErrInvalidDataset},
		{name: "no bucket", mutate: func(d *Dataset) { d.Bucket = "" }, expectError: ErrBucketRequired},
		{name: "no pattern", mutate: func(d *Dataset) { d.FilePattern = "" }, expectError: ErrFilePatternRequired},
		{name: "bad mode", mutate: func(d *Dataset) { d.Mode = "upsert" }, expectError: load.ErrUnknownMode},
		{name: "bad policy", mutate: func(d *Dataset) { d.MultiMatch = "first" }, expectError: transfer.ErrUnknownPolicy},
		{name: "replace with single match", mutate: func(d *Dataset) { d.Mode = load.ModeReplace; d.MultiMatch = transfer.MultiMatchExactlyOne }},
		{name: "append with every match", mutate: func(d *Dataset) { d.Mode = load.ModeAppend; d.MultiMatch = transfer.MultiMatchAll }},
		{
			name:        "replace with every match",
			mutate:      func(d *Dataset) { d.Mode = load.ModeReplace; d.MultiMatch = transfer.MultiMatchAll },
			expectError: ErrReplaceMultiMatch,
		},
		{name: "bad stage", mutate: func(d *Dataset) { d.Stage = "STG SALES" }, expectError: warehouse.ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := validDataset()
			tt.mutate(&ds)

			err := ds.Validate()
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDatasets_Duplicate(t *testing.T) {
	err := ValidateDatasets([]Dataset{validDataset(), validDataset()})
	assert.ErrorIs(t, err, ErrDuplicateDataset)
}

func TestDataset_Names(t *testing.T) {
	ds := validDataset()
	table := naming.ResolveMirrorTable(ds.TableName())

	assert.Equal(t, "sales", ds.TableName())
	assert.Equal(t, "MIRROR_DB.MIRROR.STG_SALES", ds.StageName(table))

	ds.Table = "dwh.raw.orders"
	ds.Stage = "DWH.RAW.LANDING"
	assert.Equal(t, "dwh.raw.orders", ds.TableName())
	assert.Equal(t, "DWH.RAW.LANDING", ds.StageName(table))

	assert.False(t, ds.KeepDuplicate())
	ds.DataCheck.Enabled = true
	assert.True(t, ds.KeepDuplicate())
}
