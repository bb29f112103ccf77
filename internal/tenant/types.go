package tenant

import (
	"time"

	"factura.org/internal/auth"
)

// Organization is a tenant. Invoices, members and the invoice counter hang
// off it; the counter is provisioned with the organization and never removed.
type Organization struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	OwnerUID         string     `json:"ownerUid"`
	OwnerEmail       string     `json:"ownerEmail,omitempty"`
	Profile          *Profile   `json:"profile,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	ProfileUpdatedAt *time.Time `json:"profileUpdatedAt,omitempty"`
}

// Profile is optional tenant branding and billing metadata. Empty strings
// mean absent; normalization trims input and drops empty values.
type Profile struct {
	LegalName       string   `json:"legalName,omitempty"`
	SupportEmail    string   `json:"supportEmail,omitempty"`
	SupportPhone    string   `json:"supportPhone,omitempty"`
	Website         string   `json:"website,omitempty"`
	TaxID           string   `json:"taxId,omitempty"`
	DefaultCurrency string   `json:"defaultCurrency,omitempty"`
	Locale          string   `json:"locale,omitempty"`
	InvoicePrefix   string   `json:"invoicePrefix,omitempty"`
	InvoiceNotes    string   `json:"invoiceNotes,omitempty"`
	PaymentTerms    string   `json:"paymentTerms,omitempty"`
	Address         *Address `json:"address,omitempty"`
	LogoURL         string   `json:"logoUrl,omitempty"`
	LogoStoragePath string   `json:"logoStoragePath,omitempty"`
}

// Address is a postal address; nil when every component is empty.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Member is a user's membership within an organization.
type Member struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email,omitempty"`
	Role      auth.Role `json:"role"`
	InvitedBy string    `json:"invitedBy,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
