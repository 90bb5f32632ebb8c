package domain

import (
	"time"

	"github.com/google/uuid"
)

// QaReviewRecord is one append-only entry of the review ledger. The ledger is
// homogeneous over composite datasets and atomic data points; SubjectType tells
// them apart and DataType carries the framework name or the data point type.
//
// There is no mutable "active" flag: the current verdict of a subject is the
// latest record for it, ordered by Timestamp and then insertion order.
type QaReviewRecord struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"subject_id"`
	SubjectType     SubjectType `gorm:"column:subject_type;not null" json:"subject_type"`
	DataType        string      `gorm:"column:data_type;not null;index:idx_qa_review_dimensions" json:"data_type"`
	CompanyID       uuid.UUID   `gorm:"type:uuid;not null;index:idx_qa_review_dimensions" json:"company_id"`
	CompanyName     string      `gorm:"column:company_name" json:"company_name"`
	ReportingPeriod string      `gorm:"column:reporting_period;not null;index:idx_qa_review_dimensions" json:"reporting_period"`
	Status          QaStatus    `gorm:"column:status;not null" json:"status"`
	Comment         *string     `gorm:"column:comment" json:"comment,omitempty"`
	ReviewerID      uuid.UUID   `gorm:"type:uuid;not null" json:"reviewer_id"`
	Timestamp       int64       `gorm:"column:timestamp;not null;index" json:"timestamp"`
	CorrelationID   uuid.UUID   `gorm:"type:uuid;not null" json:"correlation_id"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (QaReviewRecord) TableName() string { return "qa_review_record" }
