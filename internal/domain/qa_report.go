package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DatasetQaReport is the stored QA report for a composite dataset. For
// decomposed datasets Report holds a JSON array of DataPointQaReport ids (the
// dehydrated form); legacy rows created before migration hold the monolithic
// report object instead.
type DatasetQaReport struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DatasetID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"dataset_id"`
	DataType   string         `gorm:"column:data_type;not null" json:"data_type"`
	ReporterID uuid.UUID      `gorm:"type:uuid;not null" json:"reporter_id"`
	UploadTime int64          `gorm:"column:upload_time;not null" json:"upload_time"`
	Active     bool           `gorm:"column:active;not null" json:"active"`
	Report     datatypes.JSON `gorm:"column:report;type:jsonb;not null" json:"report"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (DatasetQaReport) TableName() string { return "dataset_qa_report" }

// DataPointQaReport is the per-field QA report a dataset report dehydrates to.
type DataPointQaReport struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DataPointID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"data_point_id"`
	DataPointType string         `gorm:"column:data_point_type;not null" json:"data_point_type"`
	ReporterID    uuid.UUID      `gorm:"type:uuid;not null" json:"reporter_id"`
	UploadTime    int64          `gorm:"column:upload_time;not null" json:"upload_time"`
	Active        bool           `gorm:"column:active;not null" json:"active"`
	Verdict       QaVerdict      `gorm:"column:verdict;not null" json:"verdict"`
	Comment       *string        `gorm:"column:comment" json:"comment,omitempty"`
	CorrectedData datatypes.JSON `gorm:"column:corrected_data;type:jsonb" json:"corrected_data,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (DataPointQaReport) TableName() string { return "data_point_qa_report" }
