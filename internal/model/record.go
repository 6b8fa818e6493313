package model

// SchemaVersion is the current canonical record schema version.
const SchemaVersion = "1.0"

// LeaveType is the closed leave-type enumeration. Anything the models emit
// outside this set is normalized to LeaveUnknown before validation.
type LeaveType string

const (
	LeaveAnnualPaid LeaveType = "annual_paid"
	LeaveUnpaid     LeaveType = "unpaid"
	LeaveStudy      LeaveType = "study"
	LeaveMaternity  LeaveType = "maternity"
	LeaveChildcare  LeaveType = "childcare"
	LeaveOther      LeaveType = "other"
	LeaveUnknown    LeaveType = "unknown"
)

// LeaveTypes lists every canonical leave type.
var LeaveTypes = []LeaveType{
	LeaveAnnualPaid, LeaveUnpaid, LeaveStudy, LeaveMaternity,
	LeaveChildcare, LeaveOther, LeaveUnknown,
}

// Valid reports whether t is one of the canonical enum values.
func (t LeaveType) Valid() bool {
	for _, v := range LeaveTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Employee holds the employee fields read off the form. All fields are
// optional: nil means "not visible / not confident", never a guess.
type Employee struct {
	FullName        *string `json:"full_name"`
	Position        *string `json:"position"`
	Department      *string `json:"department"`
	PersonnelNumber *string `json:"personnel_number"`
}

// Manager holds the addressee (manager) fields.
type Manager struct {
	FullName *string `json:"full_name"`
	Position *string `json:"position"`
}

// LeaveInfo holds the requested leave details. Dates are ISO-8601
// (YYYY-MM-DD) strings when present.
type LeaveInfo struct {
	LeaveType LeaveType `json:"leave_type"`
	StartDate *string   `json:"start_date"`
	EndDate   *string   `json:"end_date"`
	DaysCount *int      `json:"days_count"`
	Comment   *string   `json:"comment"`
}

// Quality summarizes extraction confidence and caveats.
type Quality struct {
	OverallConfidence float64  `json:"overall_confidence"`
	MissingFields     []string `json:"missing_fields"`
	Notes             []string `json:"notes"`
}

// ExtractedRecord is the canonical output of the extraction pipeline.
type ExtractedRecord struct {
	SchemaVersion       string    `json:"schema_version"`
	EmployerName        *string   `json:"employer_name"`
	Employee            Employee  `json:"employee"`
	Manager             Manager   `json:"manager"`
	RequestDate         *string   `json:"request_date"`
	Leave               LeaveInfo `json:"leave"`
	SignaturePresent    *bool     `json:"signature_present"`
	SignatureConfidence *float64  `json:"signature_confidence"`
	RawText             *string   `json:"raw_text"`
	Quality             Quality   `json:"quality"`
}
