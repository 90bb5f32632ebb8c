package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CompositionEntry records which data points a dataset version was decomposed
// into: a jsonb map of data point type to data point id. Written once at
// decomposition time, never updated.
type CompositionEntry struct {
	DatasetID  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"dataset_id"`
	DataPoints datatypes.JSON `gorm:"column:data_points;type:jsonb;not null" json:"data_points"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (CompositionEntry) TableName() string { return "composition_entry" }

func (c *CompositionEntry) DataPointIDs() (map[string]uuid.UUID, error) {
	out := map[string]uuid.UUID{}
	if len(c.DataPoints) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(c.DataPoints, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CompositionEntry) SetDataPointIDs(ids map[string]uuid.UUID) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	c.DataPoints = datatypes.JSON(raw)
	return nil
}
