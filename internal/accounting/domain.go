// Package accounting keeps invoices, payments and counterparties derived from contract
// reservations, and guards the ERP sync gate.
package accounting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/odyssey-erp/contractdesk/internal/erp"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

const (
	invoicePrefix = "CI"
	paymentPrefix = "CP"
	// profitMargin is the illustrative margin used for the dashboard estimate.
	profitMargin = 0.15
	defaultDue   = 30 * 24 * time.Hour
	defaultScore = 85
)

var (
	ErrInvoiceNotFound  = fmt.Errorf("invoice %w", shared.ErrNotFound)
	ErrSyncNotAllowed   = fmt.Errorf("invoice not ready for erp sync: %w", shared.ErrPrecondition)
	ErrSyncInProgress   = fmt.Errorf("invoice sync already running: %w", shared.ErrPrecondition)
	ErrInvoiceCancelled = fmt.Errorf("invoice is cancelled: %w", shared.ErrPrecondition)
	ErrNotFullyVerified = fmt.Errorf("invoice needs buyer and seller verification: %w", shared.ErrPrecondition)
)

// InvoiceStatus is the document state of an invoice.
type InvoiceStatus string

const (
	StatusFinal     InvoiceStatus = "Final"
	StatusVerified  InvoiceStatus = "Verified"
	StatusCancelled InvoiceStatus = "Cancelled"
)

// ParseInvoiceStatus validates raw input.
func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	switch s := InvoiceStatus(strings.TrimSpace(raw)); s {
	case StatusFinal, StatusVerified, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("invoice status %q: %w", raw, shared.ErrValidation)
}

// PaymentStatus summarises what has been collected on an invoice.
type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "Pending"
	PaymentAdvancePaid PaymentStatus = "Advance Paid"
	PaymentFullyPaid   PaymentStatus = "Fully Paid"
)

// PaymentType classifies a payment.
type PaymentType string

const (
	TypeAdvance PaymentType = "Advance"
	TypeFinal   PaymentType = "Final"
	TypePartial PaymentType = "Partial"
)

// PaymentMethod is how the money moved.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "Bank Transfer"
	MethodUPI          PaymentMethod = "UPI"
	MethodCash         PaymentMethod = "Cash"
	MethodCheque       PaymentMethod = "Cheque"
)

// PaymentState is the settlement state of a single payment.
type PaymentState string

const (
	PaymentStatePending   PaymentState = "Pending"
	PaymentStateCompleted PaymentState = "Completed"
	PaymentStateFailed    PaymentState = "Failed"
)

// PartyRole tags a counterparty profile.
type PartyRole string

const (
	PartyBuyer  PartyRole = "Buyer"
	PartySeller PartyRole = "Seller"
)

// Invoice is the financial record of one reservation.
type Invoice struct {
	ID                string         `json:"id"`
	Number            string         `json:"invoice_number"`
	ContractID        string         `json:"contract_id"`
	ContractTitle     string         `json:"contract_title"`
	ItemName          string         `json:"item_name"`
	HSNCode           string         `json:"gst_hsn_code,omitempty"`
	Buyer             string         `json:"buyer"`
	BuyerUserID       string         `json:"buyer_user_id,omitempty"`
	Seller            string         `json:"seller"`
	Quantity          float64        `json:"quantity"`
	Rate              float64        `json:"rate"`
	TotalAmount       float64        `json:"total_amount"`
	ReservationAmount float64        `json:"reservation_amount"`
	RemainingAmount   float64        `json:"remaining_amount"`
	Status            InvoiceStatus  `json:"status"`
	CreatedAt         time.Time      `json:"created_date"`
	DueDate           time.Time      `json:"due_date"`
	BuyerVerified     bool           `json:"buyer_verified"`
	SellerVerified    bool           `json:"seller_verified"`
	SyncStatus        erp.SyncStatus `json:"sync_status"`
	PaymentStatus     PaymentStatus  `json:"payment_status"`
	CanSyncToFrappe   bool           `json:"can_sync_to_frappe"`
	CanSellerClose    bool           `json:"can_seller_close"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// syncBlockers lists the unmet conditions of the ERP sync gate.
func (inv *Invoice) syncBlockers() []string {
	var out []string
	if inv.Status != StatusVerified {
		out = append(out, fmt.Sprintf("status is %s", inv.Status))
	}
	if inv.PaymentStatus != PaymentFullyPaid {
		out = append(out, fmt.Sprintf("payment is %s", inv.PaymentStatus))
	}
	if !inv.BuyerVerified {
		out = append(out, "buyer has not verified")
	}
	if !inv.SellerVerified {
		out = append(out, "seller has not verified")
	}
	return out
}

// refresh recomputes the derived gate flags.
func (inv *Invoice) refresh() {
	inv.CanSyncToFrappe = len(inv.syncBlockers()) == 0
	inv.CanSellerClose = CanSellerClose(*inv)
}

// applyVerification sets the role's flag and promotes to Verified once both sides agree.
func (inv *Invoice) applyVerification(role shared.Role) bool {
	switch role {
	case shared.RoleBuyer:
		inv.BuyerVerified = true
	case shared.RoleSeller:
		inv.SellerVerified = true
	}
	full := inv.BuyerVerified && inv.SellerVerified
	if full && inv.Status != StatusCancelled {
		inv.Status = StatusVerified
	}
	inv.refresh()
	return full
}

// CanSellerClose reports whether the seller may verify and close: the buyer has verified,
// payment is complete and the seller has not yet verified.
func CanSellerClose(inv Invoice) bool {
	return inv.BuyerVerified && inv.PaymentStatus == PaymentFullyPaid && !inv.SellerVerified && inv.Status != StatusCancelled
}

// Payment is an amount applied to one invoice.
type Payment struct {
	ID               string        `json:"id"`
	Number           string        `json:"payment_number"`
	InvoiceID        string        `json:"invoice_id"`
	ContractID       string        `json:"contract_id"`
	Amount           float64       `json:"amount"`
	Type             PaymentType   `json:"payment_type"`
	Method           PaymentMethod `json:"payment_method"`
	PaidAt           time.Time     `json:"payment_date"`
	Status           PaymentState  `json:"status"`
	VerifiedByBuyer  bool          `json:"verified_by_buyer"`
	VerifiedBySeller bool          `json:"verified_by_seller"`
	Reference        string        `json:"reference,omitempty"`
}

// Party is a counterparty profile.
type Party struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	Company           string    `json:"company"`
	Role              PartyRole `json:"role"`
	TotalContracts    int       `json:"total_contracts"`
	TotalValue        float64   `json:"total_value"`
	VerificationScore int       `json:"verification_score"`
	LastActivity      time.Time `json:"last_activity"`
	IsVerified        bool      `json:"is_verified"`
}

// PaymentInput records a payment against an invoice.
type PaymentInput struct {
	InvoiceID string        `json:"invoice_id" validate:"required"`
	Amount    float64       `json:"amount" validate:"gt=0"`
	Type      PaymentType   `json:"payment_type" validate:"required,oneof=Advance Final Partial"`
	Method    PaymentMethod `json:"payment_method" validate:"required,oneof='Bank Transfer' UPI Cash Cheque"`
	Status    PaymentState  `json:"status" validate:"omitempty,oneof=Pending Completed Failed"`
	PaidAt    *time.Time    `json:"payment_date"`
	Reference string        `json:"reference" validate:"omitempty,max=100"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status        InvoiceStatus
	PaymentStatus PaymentStatus
	SyncStatus    erp.SyncStatus
	ContractID    string
	Search        string
	Page          int
	PerPage       int
}

func (f InvoiceFilter) match(inv *Invoice) bool {
	if f.Status != "" && inv.Status != f.Status {
		return false
	}
	if f.PaymentStatus != "" && inv.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.SyncStatus != "" && inv.SyncStatus != f.SyncStatus {
		return false
	}
	if f.ContractID != "" && inv.ContractID != f.ContractID {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(strings.Join([]string{inv.Number, inv.ContractTitle, inv.Buyer, inv.Seller}, " "))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

// Dashboard aggregates the accounting book.
type Dashboard struct {
	InvoiceCount         int                   `json:"invoice_count"`
	PaymentCount         int                   `json:"payment_count"`
	PartyCount           int                   `json:"party_count"`
	TotalSales           float64               `json:"total_sales"`
	TotalReservations    float64               `json:"total_reservations"`
	EstimatedProfit      float64               `json:"estimated_profit"`
	CollectedAmount      float64               `json:"collected_amount"`
	OutstandingAmount    float64               `json:"outstanding_amount"`
	VerifiedCount        int                   `json:"verified_count"`
	PendingVerifications int                   `json:"pending_verifications"`
	SyncedCount          int                   `json:"synced_count"`
	ReadyToSync          int                   `json:"ready_to_sync"`
	ByStatus             map[InvoiceStatus]int `json:"by_status"`
	ByPaymentStatus      map[PaymentStatus]int `json:"by_payment_status"`
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// documentNumber formats <PREFIX>-<YEAR>-<NNN>.
func documentNumber(prefix string, at time.Time, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, at.Year(), seq)
}
