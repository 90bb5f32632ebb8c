// Package events carries the asynchronous messages exchanged between the data
// side and the QA side of the service, plus the bus they travel on.
package events

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/yungbote/esgledger-backend/internal/domain"
)

// Routing keys double as redis channels.
const (
	RoutingKeyDataPointUploaded = "data-point.uploaded"
	RoutingKeyDatasetDeleted    = "dataset.deleted"
	RoutingKeyQaStatusChanged   = "qa-status.changed"

	// Dead-lettered messages land on the source channel with this suffix.
	DeadLetterSuffix = ".dlq"
)

// Envelope is the wire frame of every message. CorrelationID ties all messages
// of one logical operation together.
type Envelope struct {
	Type          string          `json:"type"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(msgType string, correlationID uuid.UUID, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, CorrelationID: correlationID, Payload: raw}, nil
}

// InitialQa states how a freshly uploaded data point enters the review ledger:
// either with a preset status, or by inheriting the current status of the same
// field in an earlier dataset.
type InitialQa struct {
	PresetStatus      *domain.QaStatus `json:"preset_status,omitempty"`
	CopyFromDatasetID *uuid.UUID       `json:"copy_from_dataset_id,omitempty"`
}

type DataPointUploadedPayload struct {
	DataPointID     uuid.UUID `json:"data_point_id"`
	DataPointType   string    `json:"data_point_type"`
	CompanyID       uuid.UUID `json:"company_id"`
	CompanyName     string    `json:"company_name"`
	ReportingPeriod string    `json:"reporting_period"`
	UploaderID      uuid.UUID `json:"uploader_id"`
	UploadTime      int64     `json:"upload_time"`
	InitialQa       InitialQa `json:"initial_qa"`
}

type DatasetDeletedPayload struct {
	DatasetID uuid.UUID `json:"dataset_id"`
}

// QaStatusChangePayload is the outbound notification that a subject's current
// verdict changed. CurrentlyActiveID names the subject now authoritative for
// the dimensions of the changed one; nil when none is Accepted anymore.
type QaStatusChangePayload struct {
	SubjectID         uuid.UUID       `json:"subject_id"`
	UpdatedStatus     domain.QaStatus `json:"updated_status"`
	CurrentlyActiveID *uuid.UUID      `json:"currently_active_id,omitempty"`
}
