package claim

import "time"

// DocumentType enumerates the document categories produced by upload.
type DocumentType string

const (
	DocPrescription DocumentType = "prescription"
	DocBill         DocumentType = "bill"
	DocReport       DocumentType = "report"
	DocPharmacyBill DocumentType = "pharmacy_bill"
	DocOther        DocumentType = "other"
)

// DocumentStatus tracks per-document extraction progress. A document is
// terminal once processed or failed; adjudication waits for all documents to
// reach a terminal status.
type DocumentStatus string

const (
	DocUploaded   DocumentStatus = "uploaded"
	DocProcessing DocumentStatus = "processing"
	DocProcessed  DocumentStatus = "processed"
	DocFailed     DocumentStatus = "failed"
)

// Terminal reports whether the document has finished extraction.
func (s DocumentStatus) Terminal() bool {
	return s == DocProcessed || s == DocFailed
}

// Claim mirrors the claims table columns touched by adjudication.
type Claim struct {
	ID              string
	PolicyHolderID  string
	ClaimedAmount   float64
	TreatmentType   string
	TreatmentDate   time.Time
	Diagnosis       string
	ProviderName    string
	ProviderNetwork bool
	PreAuthNumber   string
	SubmissionDate  time.Time
	Status          Status
	RetryEligible   bool
	CreatedAt       time.Time
}

// Document carries the extraction collaborator's output for one uploaded file.
// ExtractedData is untyped OCR output; validators access it through tolerant
// field helpers.
type Document struct {
	ID            string
	ClaimID       string
	Type          DocumentType
	ExtractedData map[string]any
	Confidence    float64
	Status        DocumentStatus
	ProcessedAt   *time.Time
}

// HistoryEntry is a prior claim of the same policy holder, used by the fraud
// detector for duplicate, frequency, and amount-anomaly checks.
type HistoryEntry struct {
	ClaimID        string
	ProviderName   string
	TreatmentType  string
	TreatmentDate  time.Time
	SubmissionDate time.Time
	ClaimedAmount  float64
}
