package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dataset is the metadata row of one uploaded composite disclosure document for
// a (company, framework, reporting period) combination. The document itself is
// decomposed into DataPoint rows at upload time; only assembled frameworks are
// handled by this service.
type Dataset struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DataType        string    `gorm:"column:data_type;not null;index:idx_dataset_dimensions" json:"data_type"`
	CompanyID       uuid.UUID `gorm:"type:uuid;not null;index:idx_dataset_dimensions" json:"company_id"`
	CompanyName     string    `gorm:"column:company_name" json:"company_name"`
	ReportingPeriod string    `gorm:"column:reporting_period;not null;index:idx_dataset_dimensions" json:"reporting_period"`
	UploaderID      uuid.UUID `gorm:"type:uuid;not null" json:"uploader_id"`
	UploadTime      int64     `gorm:"column:upload_time;not null" json:"upload_time"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Dataset) TableName() string { return "dataset" }
