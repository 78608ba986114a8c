// Package events carries typed notifications between the contract and accounting stores.
package events

import (
	"time"

	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// Kind identifies an event variant.
type Kind string

const (
	KindContractReserved         Kind = "contract.reserved"
	KindContractReadyForDelivery Kind = "contract.ready_for_delivery"
	KindContractVerified         Kind = "contract.verified"
	KindInvoiceVerified          Kind = "invoice.verified"
)

// Event is implemented by every variant delivered over the bus.
type Event interface {
	Kind() Kind
}

// ContractSnapshot is the contract as it looked when the event was raised.
type ContractSnapshot struct {
	ID               string
	ItemName         string
	Type             string
	HSNCode          string
	Quantity         float64
	Rate             float64
	RatePerUnit      float64
	Customer         string
	PostedBy         string
	Location         string
	AvailabilityDate time.Time
}

// BuyerInfo describes the reserving counterparty.
type BuyerInfo struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// DisplayName returns the company, falling back to the person name.
func (b BuyerInfo) DisplayName() string {
	if b.Company != "" {
		return b.Company
	}
	return b.Name
}

// ContractReserved is raised after a reservation was written to the ledger.
type ContractReserved struct {
	ContractID        string
	InvoiceID         string
	UserID            string
	Contract          ContractSnapshot
	Quantity          float64
	Buyer             BuyerInfo
	IsFutureContract  bool
	ReservationAmount float64
	OccurredAt        time.Time
}

// ContractReadyForDelivery is raised when the seller marks goods ready.
type ContractReadyForDelivery struct {
	ContractID string
	InvoiceID  string
}

// ContractVerified is raised when one side confirms execution on the contract.
type ContractVerified struct {
	ContractID    string
	InvoiceID     string
	Role          shared.Role
	FullyVerified bool
}

// InvoiceVerified is raised when one side confirms execution on the invoice.
type InvoiceVerified struct {
	InvoiceID     string
	ContractID    string
	Role          shared.Role
	FullyVerified bool
}

func (ContractReserved) Kind() Kind         { return KindContractReserved }
func (ContractReadyForDelivery) Kind() Kind { return KindContractReadyForDelivery }
func (ContractVerified) Kind() Kind         { return KindContractVerified }
func (InvoiceVerified) Kind() Kind          { return KindInvoiceVerified }
