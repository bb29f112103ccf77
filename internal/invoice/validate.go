package invoice

import (
	"fmt"
	"strings"

	"factura.org/internal/fault"
)

// validateLineItems checks field constraints and collects per-field detail so
// clients can surface errors inline.
func validateLineItems(items []LineItem) error {
	fields := map[string]string{}
	for i, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			fields[fmt.Sprintf("lineItems[%d].description", i)] = "description is required"
		}
		if item.Quantity <= 0 {
			fields[fmt.Sprintf("lineItems[%d].quantity", i)] = "quantity must be positive"
		}
		if item.UnitPrice < 0 {
			fields[fmt.Sprintf("lineItems[%d].unitPrice", i)] = "unit price cannot be negative"
		}
		if item.TaxRate < 0 {
			fields[fmt.Sprintf("lineItems[%d].taxRate", i)] = "tax rate cannot be negative"
		}
	}
	if len(fields) > 0 {
		return fault.New(fault.InvalidArgument, "invalid invoice payload").WithFields(fields)
	}
	return nil
}

func validateCreate(in CreateInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.OrganizationID) == "" {
		fields["organizationId"] = "organization id is required"
	}
	if strings.TrimSpace(in.ClientID) == "" {
		fields["clientId"] = "client id is required"
	}
	if strings.TrimSpace(in.ClientName) == "" {
		fields["clientName"] = "client name is required"
	}
	if strings.TrimSpace(in.Currency) == "" {
		fields["currency"] = "currency is required"
	}
	if strings.TrimSpace(in.IssueDate) == "" {
		fields["issueDate"] = "issue date is required"
	}
	if strings.TrimSpace(in.DueDate) == "" {
		fields["dueDate"] = "due date is required"
	}
	if len(fields) > 0 {
		return fault.New(fault.InvalidArgument, "invalid invoice payload").WithFields(fields)
	}
	return validateLineItems(in.LineItems)
}
