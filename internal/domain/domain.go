// Package domain holds the persisted entities of the disclosure QA backend.
package domain

// QaStatus is the reconciled review state of a subject (dataset or data point).
type QaStatus string

const (
	QaStatusPending  QaStatus = "Pending"
	QaStatusAccepted QaStatus = "Accepted"
	QaStatusRejected QaStatus = "Rejected"
)

func (s QaStatus) Valid() bool {
	switch s {
	case QaStatusPending, QaStatusAccepted, QaStatusRejected:
		return true
	}
	return false
}

// QaVerdict is the reviewer-facing verdict carried inside a QA report. Unlike
// QaStatus it can express "looked at, no decision" (QaNotAttempted), which maps
// to no ledger write at all.
type QaVerdict string

const (
	QaVerdictAccepted     QaVerdict = "QaAccepted"
	QaVerdictRejected     QaVerdict = "QaRejected"
	QaVerdictNotAttempted QaVerdict = "QaNotAttempted"
)

// ToQaStatus translates a report verdict into a ledger status. The second
// return value is false when the verdict carries no status change.
func (v QaVerdict) ToQaStatus() (QaStatus, bool) {
	switch v {
	case QaVerdictAccepted:
		return QaStatusAccepted, true
	case QaVerdictRejected:
		return QaStatusRejected, true
	default:
		return "", false
	}
}

// SubjectType discriminates ledger rows between composite datasets and atomic
// data points.
type SubjectType string

const (
	SubjectTypeDataset   SubjectType = "dataset"
	SubjectTypeDataPoint SubjectType = "data_point"
)
