package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, otherwise defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// PaymentSortFields contains allowed sort fields for payments
var PaymentSortFields = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"processed_at":   true,
	"total_amount":   true,
	"status":         true,
	"transaction_id": true,
}

// ReportSortFields contains allowed sort fields for session reports
var ReportSortFields = map[string]bool{
	"generated_at":      true,
	"session_date":      true,
	"total_collections": true,
	"cutoff_at":         true,
}
