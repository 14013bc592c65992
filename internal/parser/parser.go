package parser

import (
	"errors"
	"fmt"
	"github.com/skybi/impds-proxy/internal/beneficiary"
	"strconv"
	"strings"
)

const (
	// tableSelector matches the data tables of a portal search response
	tableSelector = "table.table-striped.table-bordered.table-hover"
	rowSelector   = "tbody tr"
	cellSelector  = "td"

	memberRowCells = 8
	flagRowCells   = 2
)

// ErrNoDataFound is returned if the response does not contain the data tables at all.
// The portal answers searches without any match this way.
var ErrNoDataFound = errors.New("no data found")

// ParseError represents an unexpected failure while traversing a portal response
type ParseError struct {
	Cause error
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("could not parse the portal response: %v", err.Cause)
}

func (err *ParseError) Unwrap() error {
	return err.Cause
}

// Parser converts portal search responses into beneficiary records
type Parser struct {
	load Loader
}

// New creates a new parser using the given markup loader.
// If load is nil, GoqueryLoader is used.
func New(load Loader) *Parser {
	if load == nil {
		load = GoqueryLoader
	}
	return &Parser{load: load}
}

// Parse converts the raw markup of a search response into records grouped by ration card number.
// An empty, non-nil slice is returned if the tables exist but list no members.
func (parser *Parser) Parse(raw []byte) (records []*beneficiary.Record, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			records = nil
			err = &ParseError{Cause: fmt.Errorf("panic during traversal: %v", recovered)}
		}
	}()

	document, err := parser.load(raw)
	if err != nil {
		return nil, &ParseError{Cause: err}
	}

	tables := document.Find(tableSelector)
	if len(tables) < 2 {
		return nil, ErrNoDataFound
	}

	records = parseMembers(tables[0])
	info := parseAdditionalInfo(tables[1])
	for _, record := range records {
		record.AdditionalInfo = info
	}
	return records, nil
}

func parseMembers(table Node) []*beneficiary.Record {
	records := []*beneficiary.Record{}
	byCard := make(map[string]*beneficiary.Record)

	for _, row := range table.Find(rowSelector) {
		cells := row.Find(cellSelector)
		if len(cells) < memberRowCells {
			continue
		}

		// Columns: sequence, state, district, card, scheme, member ID, member name, remark
		cardNumber := cellText(cells[3])
		record, ok := byCard[cardNumber]
		if !ok {
			record = &beneficiary.Record{
				Details: &beneficiary.Details{
					StateName:    cellText(cells[1]),
					DistrictName: cellText(cells[2]),
					CardNumber:   cardNumber,
					SchemeName:   cellText(cells[4]),
				},
				Members: []*beneficiary.Member{},
			}
			byCard[cardNumber] = record
			records = append(records, record)
		}

		sequenceNumber, err := strconv.Atoi(cellText(cells[0]))
		if err != nil {
			sequenceNumber = 0
		}
		var remark *string
		if text := cellText(cells[7]); text != "" {
			remark = &text
		}
		record.Members = append(record.Members, &beneficiary.Member{
			SequenceNumber: sequenceNumber,
			MemberID:       cellText(cells[5]),
			MemberName:     cellText(cells[6]),
			Remark:         remark,
		})
	}

	return records
}

func parseAdditionalInfo(table Node) *beneficiary.AdditionalInfo {
	info := beneficiary.DefaultAdditionalInfo()

	for _, row := range table.Find(rowSelector) {
		cells := row.Find(cellSelector)
		if len(cells) < flagRowCells {
			continue
		}

		label := strings.ToLower(cellText(cells[0]))
		yes := strings.ToLower(cellText(cells[1])) == "yes"

		switch {
		case strings.Contains(label, "fps category"):
			if yes {
				info.FPSCategory = beneficiary.FPSCategoryOnline
			} else {
				info.FPSCategory = beneficiary.FPSCategoryOffline
			}
		case strings.Contains(label, "transaction"):
			info.TransactionAllowed = yes
		case strings.Contains(label, "central"):
			info.ExistsInCentralRepository = yes
		case strings.Contains(label, "duplicate"):
			info.DuplicateAadhaarBeneficiary = yes
		}
	}

	return info
}

func cellText(node Node) string {
	return strings.TrimSpace(node.Text())
}
