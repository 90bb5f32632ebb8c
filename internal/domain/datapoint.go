package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DataPoint is the smallest independently reviewable unit of a decomposed
// dataset. Content is immutable after creation; a re-upload of the same field
// produces a new row with a new id.
type DataPoint struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DataPointType   string         `gorm:"column:data_point_type;not null;index:idx_data_point_dimensions" json:"data_point_type"`
	Content         datatypes.JSON `gorm:"column:content;type:jsonb;not null" json:"content"`
	CompanyID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_data_point_dimensions" json:"company_id"`
	ReportingPeriod string         `gorm:"column:reporting_period;not null;index:idx_data_point_dimensions" json:"reporting_period"`
	UploaderID      uuid.UUID      `gorm:"type:uuid;not null" json:"uploader_id"`
	UploadTime      int64          `gorm:"column:upload_time;not null" json:"upload_time"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (DataPoint) TableName() string { return "data_point" }
