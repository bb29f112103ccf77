package tenant

import (
	"regexp"
	"strings"

	"factura.org/internal/fault"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeProfile trims every field, uppercases the currency and collapses
// an all-empty address to nil. Returns nil when nothing survives.
func NormalizeProfile(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	out := &Profile{
		LegalName:       strings.TrimSpace(p.LegalName),
		SupportEmail:    strings.TrimSpace(p.SupportEmail),
		SupportPhone:    strings.TrimSpace(p.SupportPhone),
		Website:         strings.TrimSpace(p.Website),
		TaxID:           strings.TrimSpace(p.TaxID),
		DefaultCurrency: strings.ToUpper(strings.TrimSpace(p.DefaultCurrency)),
		Locale:          strings.TrimSpace(p.Locale),
		InvoicePrefix:   strings.TrimSpace(p.InvoicePrefix),
		InvoiceNotes:    strings.TrimSpace(p.InvoiceNotes),
		PaymentTerms:    strings.TrimSpace(p.PaymentTerms),
		LogoURL:         strings.TrimSpace(p.LogoURL),
		LogoStoragePath: strings.TrimSpace(p.LogoStoragePath),
	}
	if p.Address != nil {
		addr := &Address{
			Line1:      strings.TrimSpace(p.Address.Line1),
			Line2:      strings.TrimSpace(p.Address.Line2),
			City:       strings.TrimSpace(p.Address.City),
			State:      strings.TrimSpace(p.Address.State),
			PostalCode: strings.TrimSpace(p.Address.PostalCode),
			Country:    strings.TrimSpace(p.Address.Country),
		}
		if *addr != (Address{}) {
			out.Address = addr
		}
	}
	if out.Address == nil && *out == (Profile{}) {
		return nil
	}
	return out
}

// ValidateProfile checks field constraints, collecting per-field detail.
func ValidateProfile(p *Profile) error {
	if p == nil {
		return nil
	}
	fields := map[string]string{}
	if p.SupportEmail != "" && !strings.Contains(p.SupportEmail, "@") {
		fields["profile.supportEmail"] = "must be a valid email address"
	}
	if p.Website != "" && !strings.HasPrefix(p.Website, "http://") && !strings.HasPrefix(p.Website, "https://") {
		fields["profile.website"] = "must be an http(s) URL"
	}
	if p.DefaultCurrency != "" && !currencyPattern.MatchString(p.DefaultCurrency) {
		fields["profile.defaultCurrency"] = "provide a 3-letter ISO currency code (e.g. USD)"
	}
	if p.Address != nil && p.Address.Country != "" && len(p.Address.Country) != 2 {
		fields["profile.address.country"] = "must be a 2-letter country code"
	}
	if len(p.InvoicePrefix) > 16 {
		fields["profile.invoicePrefix"] = "must be at most 16 characters"
	}
	if len(fields) > 0 {
		return fault.New(fault.InvalidArgument, "invalid organization profile payload").WithFields(fields)
	}
	return nil
}
