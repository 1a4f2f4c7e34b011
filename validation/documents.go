package validation

import (
	"regexp"

	"claimflow/claim"
)

// doctorRegPattern matches medical council registration numbers, e.g. "MH/12345/2019".
var doctorRegPattern = regexp.MustCompile(`^[A-Z]{1,3}/[0-9]+/[0-9]{4}$`)

// requiredDocs maps treatment type to the document types a claim must carry.
var requiredDocs = map[string][]claim.DocumentType{
	"consultation":         {claim.DocBill},
	"diagnostic":           {claim.DocBill, claim.DocReport},
	"pharmacy":             {claim.DocPrescription, claim.DocPharmacyBill},
	"dental":               {claim.DocBill},
	"vision":               {claim.DocBill},
	"alternative_medicine": {claim.DocPrescription, claim.DocBill},
}

// legibilityFloor is the extraction confidence below which a document is
// treated as illegible even when marked processed.
const legibilityFloor = 0.40

// Documents checks completeness and integrity of the extracted document set:
// required document types present, structured fields legible and well-formed,
// dates consistent across documents, and the patient matching the holder.
type Documents struct{}

func (Documents) Name() string { return "documents" }

func (v Documents) Validate(in Input) Finding {
	codes := make([]ReasonCode, 0, 3)

	present := make(map[claim.DocumentType]bool, len(in.Documents))
	for _, d := range in.Documents {
		if d.Status == claim.DocProcessed {
			present[d.Type] = true
		}
	}

	required, ok := requiredDocs[in.Claim.TreatmentType]
	if !ok {
		required = []claim.DocumentType{claim.DocBill}
	}
	for _, rt := range required {
		if !present[rt] {
			codes = append(codes, CodeMissingDocuments)
			break
		}
	}

	var treatmentDates []int // days since epoch, for same-day tolerance
	for _, d := range in.Documents {
		if d.Status == claim.DocFailed || (d.Status == claim.DocProcessed && d.Confidence < legibilityFloor) {
			codes = append(codes, CodeIllegibleDocuments)
			continue
		}
		if d.Status != claim.DocProcessed {
			continue
		}

		if _, ok := stringField(d.ExtractedData, "patient_name"); !ok {
			codes = append(codes, CodeIllegibleDocuments)
		} else if name, _ := stringField(d.ExtractedData, "patient_name"); !namesMatch(name, in.Holder.Name) {
			codes = append(codes, CodePatientMismatch)
		}

		if d.Type == claim.DocPrescription {
			reg, ok := stringField(d.ExtractedData, "doctor_registration_number", "doctor_reg_no")
			switch {
			case !ok:
				codes = append(codes, CodeInvalidPrescription)
			case !doctorRegPattern.MatchString(reg):
				codes = append(codes, CodeDoctorRegInvalid)
			}
		}

		if d.Type == claim.DocBill || d.Type == claim.DocPharmacyBill {
			if _, ok := numberField(d.ExtractedData, "total_amount", "amount"); !ok {
				codes = append(codes, CodeIllegibleDocuments)
			}
		}

		if date, ok := dateField(d.ExtractedData, "treatment_date", "bill_date", "date"); ok {
			treatmentDates = append(treatmentDates, int(date.Unix()/86400))
		}
	}

	// Same-day tolerance: every document date must agree with the claim's
	// treatment date to the day.
	claimDay := int(in.Claim.TreatmentDate.Unix() / 86400)
	for _, day := range treatmentDates {
		if day != claimDay {
			codes = append(codes, CodeDateMismatch)
			break
		}
	}

	if len(codes) > 0 {
		return hardFail(v.Name(), dedupe(codes)...)
	}
	return passed(v.Name())
}
