// Package contracts owns marketplace postings and the per-user reservation ledger.
package contracts

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/odyssey-erp/contractdesk/internal/erp"
	"github.com/odyssey-erp/contractdesk/internal/events"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// advanceRate is the share of a Future contract's value charged at reservation.
const advanceRate = 0.20

var (
	ErrContractNotFound    = fmt.Errorf("contract %w", shared.ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", shared.ErrNotFound)
	ErrInvalidQuantity     = fmt.Errorf("invalid reservation quantity: %w", shared.ErrValidation)
	ErrContractClosed      = fmt.Errorf("contract is cancelled: %w", shared.ErrPrecondition)
	ErrNotReserved         = fmt.Errorf("contract has no invoice yet: %w", shared.ErrPrecondition)
	ErrOwnContract         = fmt.Errorf("cannot reserve own contract: %w", shared.ErrForbidden)
)

// ContractType classifies a posting.
type ContractType string

const (
	TypeSell    ContractType = "Sell"
	TypeBuy     ContractType = "Buy"
	TypeService ContractType = "Service"
	TypeFuture  ContractType = "Future"
)

// IsValid reports whether t is a known type.
func (t ContractType) IsValid() bool {
	switch t {
	case TypeSell, TypeBuy, TypeService, TypeFuture:
		return true
	default:
		return false
	}
}

// DocStatus follows the ERP docstatus convention.
type DocStatus int

const (
	DocDraft     DocStatus = 0
	DocSubmitted DocStatus = 1
	DocCancelled DocStatus = 2
)

func (d DocStatus) String() string {
	switch d {
	case DocDraft:
		return "Draft"
	case DocSubmitted:
		return "Submitted"
	case DocCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("DocStatus(%d)", int(d))
	}
}

// ExecutionStatus tracks delivery of a reserved contract.
type ExecutionStatus string

const (
	ExecPending          ExecutionStatus = "pending"
	ExecReadyForDelivery ExecutionStatus = "ready_for_delivery"
	ExecDelivered        ExecutionStatus = "delivered"
	ExecCompleted        ExecutionStatus = "completed"
)

// ReservationStatus is the state of one ledger entry.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is one user's entry in a contract's ledger.
type Reservation struct {
	UserID            string            `json:"user_id"`
	Quantity          float64           `json:"quantity"`
	ReservedAt        time.Time         `json:"reservation_date"`
	InvoiceID         string            `json:"invoice_id"`
	Status            ReservationStatus `json:"status"`
	ReservationAmount float64           `json:"reservation_amount"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
}

// Contract is a tradeable posting.
type Contract struct {
	ID                    string                 `json:"id"`
	Type                  ContractType           `json:"contract_type"`
	ItemName              string                 `json:"item_name"`
	HSNCode               string                 `json:"gst_hsn_code,omitempty"`
	Customer              string                 `json:"customer"`
	PostedBy              string                 `json:"posted_by"`
	PostedByUserID        string                 `json:"posted_by_user_id"`
	PostedAt              time.Time              `json:"posted_date"`
	Description           string                 `json:"description,omitempty"`
	Location              string                 `json:"location,omitempty"`
	Terms                 string                 `json:"terms,omitempty"`
	DeliveryDate          *time.Time             `json:"delivery_date,omitempty"`
	AvailabilityDate      *time.Time             `json:"availability_date,omitempty"`
	Quantity              float64                `json:"qty,omitempty"`
	Rate                  float64                `json:"rate"`
	AllowPartialPurchases bool                   `json:"allow_partial_purchases"`
	MinSplitQuantity      float64                `json:"min_split_quantity,omitempty"`
	ReservedQuantity      float64                `json:"reserved_quantity"`
	ParticipantCount      int                    `json:"participant_count"`
	DocStatus             DocStatus              `json:"docstatus"`
	SyncStatus            erp.SyncStatus         `json:"sync_status"`
	ExecutionStatus       ExecutionStatus        `json:"execution_status"`
	BuyerVerified         bool                   `json:"buyer_verified"`
	SellerVerified        bool                   `json:"seller_verified"`
	InvoiceGenerated      bool                   `json:"invoice_generated"`
	InvoiceID             string                 `json:"invoice_id,omitempty"`
	Reservations          map[string]Reservation `json:"user_reservations"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// RatePerUnit is rate divided by quantity, or the whole rate for unit-less contracts.
func (c *Contract) RatePerUnit() float64 {
	if c.Quantity > 0 {
		return c.Rate / c.Quantity
	}
	return c.Rate
}

// Unitless reports whether the contract carries no quantity (services).
func (c *Contract) Unitless() bool {
	return c.Quantity <= 0
}

// AvailableQuantity is the total minus all active reservations.
func (c *Contract) AvailableQuantity() float64 {
	if c.Unitless() {
		return 0
	}
	return math.Max(c.Quantity-c.ReservedQuantity, 0)
}

// availableFor excludes the user's own active entry, which a new reservation overwrites.
func (c *Contract) availableFor(userID string) float64 {
	avail := c.AvailableQuantity()
	if r, ok := c.Reservations[userID]; ok && r.Status == ReservationActive {
		avail += r.Quantity
	}
	return avail
}

// ActiveReservations returns active ledger entries ordered by reservation time.
func (c *Contract) ActiveReservations() []Reservation {
	out := make([]Reservation, 0, len(c.Reservations))
	for _, r := range c.Reservations {
		if r.Status == ReservationActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReservedAt.Equal(out[j].ReservedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ReservedAt.Before(out[j].ReservedAt)
	})
	return out
}

// ledgerTotals sums active entries.
func (c *Contract) ledgerTotals() (float64, int) {
	var qty float64
	var count int
	for _, r := range c.Reservations {
		if r.Status != ReservationActive {
			continue
		}
		qty += r.Quantity
		count++
	}
	return qty, count
}

// recomputeCaches brings ReservedQuantity and ParticipantCount back in line with the ledger.
func (c *Contract) recomputeCaches() {
	c.ReservedQuantity, c.ParticipantCount = c.ledgerTotals()
}

// ReservationAmount is the advance owed for qty units; only Future contracts charge one.
func (c *Contract) ReservationAmount(qty float64) float64 {
	if c.Type != TypeFuture {
		return 0
	}
	return math.Round(qty * c.RatePerUnit() * advanceRate)
}

func (c *Contract) clone() Contract {
	out := *c
	out.Reservations = make(map[string]Reservation, len(c.Reservations))
	for k, v := range c.Reservations {
		if v.CancelledAt != nil {
			at := *v.CancelledAt
			v.CancelledAt = &at
		}
		out.Reservations[k] = v
	}
	if c.DeliveryDate != nil {
		d := *c.DeliveryDate
		out.DeliveryDate = &d
	}
	if c.AvailabilityDate != nil {
		d := *c.AvailabilityDate
		out.AvailabilityDate = &d
	}
	return out
}

func (c *Contract) snapshot() events.ContractSnapshot {
	snap := events.ContractSnapshot{
		ID:          c.ID,
		ItemName:    c.ItemName,
		Type:        string(c.Type),
		HSNCode:     c.HSNCode,
		Quantity:    c.Quantity,
		Rate:        c.Rate,
		RatePerUnit: c.RatePerUnit(),
		Customer:    c.Customer,
		PostedBy:    c.PostedBy,
		Location:    c.Location,
	}
	if c.AvailabilityDate != nil {
		snap.AvailabilityDate = *c.AvailabilityDate
	}
	return snap
}

func (c *Contract) document() erp.ContractDocument {
	return erp.ContractDocument{
		Name:         c.ID,
		ItemName:     c.ItemName,
		ContractType: string(c.Type),
		HSNCode:      c.HSNCode,
		Customer:     c.Customer,
		Qty:          c.Quantity,
		Rate:         c.Rate,
		PostingDate:  c.PostedAt,
		DocStatus:    int(DocSubmitted),
	}
}

// PostInput carries the fields of a new posting.
type PostInput struct {
	Type                  ContractType `json:"contract_type" validate:"required,oneof=Sell Buy Service Future"`
	ItemName              string       `json:"item_name" validate:"required,max=200"`
	HSNCode               string       `json:"gst_hsn_code" validate:"omitempty,max=20"`
	Customer              string       `json:"customer" validate:"omitempty,max=200"`
	Description           string       `json:"description" validate:"omitempty,max=2000"`
	Location              string       `json:"location" validate:"omitempty,max=200"`
	Terms                 string       `json:"terms" validate:"omitempty,max=2000"`
	DeliveryDate          *time.Time   `json:"delivery_date"`
	AvailabilityDate      *time.Time   `json:"availability_date" validate:"required_if=Type Future"`
	Quantity              float64      `json:"qty" validate:"required_unless=Type Service,gte=0"`
	Rate                  float64      `json:"rate" validate:"gt=0"`
	AllowPartialPurchases bool         `json:"allow_partial_purchases"`
	MinSplitQuantity      float64      `json:"min_split_quantity" validate:"gte=0,ltefield=Quantity"`
}

func (in PostInput) check() error {
	if !in.AllowPartialPurchases {
		return nil
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: partial purchases need a quantity", shared.ErrValidation)
	}
	if in.MinSplitQuantity <= 0 {
		return fmt.Errorf("%w: partial purchases need a minimum split quantity", shared.ErrValidation)
	}
	return nil
}

// UpdateInput patches the descriptive fields of a posting. Nil fields are left alone.
type UpdateInput struct {
	Description      *string    `json:"description" validate:"omitempty,max=2000"`
	Location         *string    `json:"location" validate:"omitempty,max=200"`
	Terms            *string    `json:"terms" validate:"omitempty,max=2000"`
	DeliveryDate     *time.Time `json:"delivery_date"`
	AvailabilityDate *time.Time `json:"availability_date"`
}

// ReserveInput is the optional part of a reservation request.
type ReserveInput struct {
	Quantity *float64          `json:"quantity"`
	Buyer    *events.BuyerInfo `json:"buyer_info"`
}

// ListFilter narrows the marketplace listing.
type ListFilter struct {
	Type     ContractType
	Search   string
	OpenOnly bool
	PostedBy string
	Page     int
	PerPage  int
}

// LedgerDrift reports a contract whose caches disagreed with its ledger.
type LedgerDrift struct {
	ContractID        string  `json:"contract_id"`
	CachedQuantity    float64 `json:"cached_quantity"`
	LedgerQuantity    float64 `json:"ledger_quantity"`
	CachedParticipant int     `json:"cached_participants"`
	LedgerParticipant int     `json:"ledger_participants"`
}
