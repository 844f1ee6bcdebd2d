package oxr

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SscSPs/money_oxr/internal/apperrors"
	"github.com/SscSPs/money_oxr/internal/core/domain"
	portsrepo "github.com/SscSPs/money_oxr/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// latestResponse is the latest.json payload. Rates decode through
// decimal.Decimal so the textual precision survives.
type latestResponse struct {
	Disclaimer string                     `json:"disclaimer,omitempty"`
	License    string                     `json:"license,omitempty"`
	Timestamp  *int64                     `json:"timestamp"`
	Base       string                     `json:"base,omitempty"`
	Rates      map[string]decimal.Decimal `json:"rates"`
}

// Parser parses latest.json payloads.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() Parser {
	return Parser{}
}

// Ensure Parser implements the SnapshotParser port
var _ portsrepo.SnapshotParser = Parser{}

// Parse decodes text into a Snapshot. Failures wrap apperrors.ErrParse.
func (Parser) Parse(text string) (domain.Snapshot, error) {
	var resp latestResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", apperrors.ErrParse, err)
	}
	if resp.Timestamp == nil {
		return domain.Snapshot{}, fmt.Errorf("%w: missing timestamp", apperrors.ErrParse)
	}
	if resp.Rates == nil {
		return domain.Snapshot{}, fmt.Errorf("%w: missing rates", apperrors.ErrParse)
	}
	// null decodes to a zero decimal, so it is caught here too
	for code, rate := range resp.Rates {
		if rate.Sign() <= 0 {
			return domain.Snapshot{}, fmt.Errorf("%w: rate for %s must be positive", apperrors.ErrParse, code)
		}
	}
	return domain.Snapshot{
		Timestamp: time.Unix(*resp.Timestamp, 0),
		Rates:     resp.Rates,
	}, nil
}
