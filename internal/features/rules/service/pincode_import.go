package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/rules/domain"

	carrierdomain "carrier-engine/internal/features/carriers/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrMalformedCSV is returned when the upload cannot be parsed as CSV.
var ErrMalformedCSV = errors.New("malformed csv")

// Pincode CSV columns, in order. Only the first two are required.
var pincodeColumns = []string{"pincode", "carrier_code", "priority", "supports_cod", "supports_prepaid", "delivery_days", "notes"}

// RowError describes a rejected CSV row.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportResult summarizes a pincode CSV import.
type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Failed  int        `json:"failed"`
	Errors  []RowError `json:"errors,omitempty"`
}

// ImportPincodeRules reads pincode rules from CSV and upserts them as manual
// rules keyed on (pincode, carrier). A header row is optional. Bad rows are
// reported and skipped; storage failures abort the import.
func (s *RuleService) ImportPincodeRules(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &ImportResult{Errors: []RowError{}}
	carrierIDs := make(map[string]string)

	for first := true; ; first = false {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		if first && isHeader(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		if isBlank(record) {
			continue
		}

		rule, code, err := parsePincodeRow(record)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}

		carrierID, ok := carrierIDs[code]
		if !ok {
			carrier, err := s.carriers.GetByCode(ctx, code)
			if err != nil {
				if !errors.Is(err, carrierdomain.ErrCarrierNotFound) {
					return result, fmt.Errorf("service: failed to resolve carrier %s: %w", code, err)
				}
				result.Failed++
				result.Errors = append(result.Errors, RowError{Line: line, Message: fmt.Sprintf("unknown carrier code %q", code)})
				continue
			}
			carrierID = carrier.ID
			carrierIDs[code] = carrierID
		}
		rule.CarrierID = carrierID

		created, err := s.repo.UpsertPincodeRule(ctx, rule)
		if err != nil {
			return result, fmt.Errorf("service: failed to save pincode rule at line %d: %w", line, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	logger.Component("rules").Info("Pincode rules imported",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func parsePincodeRow(record []string) (*domain.PincodeRule, string, error) {
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	pincode := field(0)
	code := carrierdomain.NormalizeCode(field(1))
	if pincode == "" || code == "" {
		return nil, "", errors.New("pincode and carrier_code are required")
	}
	if _, err := strconv.Atoi(pincode); err != nil {
		return nil, "", fmt.Errorf("invalid pincode %q", pincode)
	}

	priority, err := intOr(field(2), 0)
	if err != nil {
		return nil, "", fmt.Errorf("invalid priority: %w", err)
	}
	cod, err := boolOr(field(3), true)
	if err != nil {
		return nil, "", fmt.Errorf("invalid supports_cod: %w", err)
	}
	prepaid, err := boolOr(field(4), true)
	if err != nil {
		return nil, "", fmt.Errorf("invalid supports_prepaid: %w", err)
	}
	days, err := intOr(field(5), 0)
	if err != nil {
		return nil, "", fmt.Errorf("invalid delivery_days: %w", err)
	}

	return &domain.PincodeRule{
		ID:              uuid.NewString(),
		Pincode:         pincode,
		Priority:        priority,
		SupportsCOD:     cod,
		SupportsPrepaid: prepaid,
		DeliveryDays:    days,
		RuleType:        domain.RuleTypeManual,
		Notes:           field(6),
		IsActive:        true,
	}, code, nil
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), pincodeColumns[0])
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func intOr(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}

func boolOr(s string, fallback bool) (bool, error) {
	switch strings.ToLower(s) {
	case "":
		return fallback, nil
	case "1", "true", "yes", "y":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", s)
}
