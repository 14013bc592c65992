package beneficiary

// FPSCategory describes whether the fair price shop serving a beneficiary is connected
type FPSCategory string

const (
	FPSCategoryOnline  FPSCategory = "Online FPS"
	FPSCategoryOffline FPSCategory = "Offline FPS"
	FPSCategoryUnknown FPSCategory = "Unknown"
)

// Record represents a single ration card group as reported by the deduplication portal.
// Members are kept in the order the portal listed them.
type Record struct {
	Details        *Details        `json:"ration_card_details"`
	Members        []*Member       `json:"members"`
	AdditionalInfo *AdditionalInfo `json:"additional_info"`
}

// Details represents the card-level information of a Record
type Details struct {
	StateName    string `json:"state_name"`
	DistrictName string `json:"district_name"`
	CardNumber   string `json:"ration_card_no"`
	SchemeName   string `json:"scheme_name"`
}

// Member represents a single member row listed on a ration card
type Member struct {
	SequenceNumber int     `json:"s_no"`
	MemberID       string  `json:"member_id"`
	MemberName     string  `json:"member_name"`
	Remark         *string `json:"remark"`
}

// AdditionalInfo holds the flags the portal reports for the searched identifier as a whole.
// The same value is attached to every Record of a single response.
type AdditionalInfo struct {
	FPSCategory                 FPSCategory `json:"fps_category"`
	TransactionAllowed          bool        `json:"impds_transaction_allowed"`
	ExistsInCentralRepository   bool        `json:"exists_in_central_repository"`
	DuplicateAadhaarBeneficiary bool        `json:"duplicate_aadhaar_beneficiary"`
}

// DefaultAdditionalInfo returns the flags used when the portal did not report anything recognizable
func DefaultAdditionalInfo() *AdditionalInfo {
	return &AdditionalInfo{
		FPSCategory: FPSCategoryUnknown,
	}
}

// MemberCount returns the total amount of members over all given records
func MemberCount(records []*Record) int {
	n := 0
	for _, record := range records {
		n += len(record.Members)
	}
	return n
}
