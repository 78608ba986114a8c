// Package erp is the boundary to the external accounting system (Frappe Books style).
package erp

import (
	"context"
	"errors"
	"time"
)

// ErrRejected is returned when the external system refuses a document.
var ErrRejected = errors.New("erp: document rejected")

// Gateway pushes documents to the external accounting system.
type Gateway interface {
	PushContract(ctx context.Context, doc ContractDocument) error
	PushInvoice(ctx context.Context, doc InvoiceDocument) error
}

// ContractDocument is the contract as the external system receives it.
type ContractDocument struct {
	Name         string    `json:"name"`
	ItemName     string    `json:"item_name"`
	ContractType string    `json:"contract_type"`
	HSNCode      string    `json:"gst_hsn_code,omitempty"`
	Customer     string    `json:"customer"`
	Qty          float64   `json:"qty,omitempty"`
	Rate         float64   `json:"rate"`
	PostingDate  time.Time `json:"posting_date"`
	DocStatus    int       `json:"docstatus"`
}

// InvoiceItem is one line of an invoice document.
type InvoiceItem struct {
	ItemName string  `json:"item_name"`
	HSNCode  string  `json:"gst_hsn_code,omitempty"`
	Qty      float64 `json:"qty"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
}

// InvoiceDocument is a sales invoice as the external system receives it.
type InvoiceDocument struct {
	Doctype           string        `json:"doctype"`
	Name              string        `json:"name"`
	Customer          string        `json:"customer"`
	Company           string        `json:"company"`
	Currency          string        `json:"currency"`
	PostingDate       time.Time     `json:"posting_date"`
	DueDate           time.Time     `json:"due_date"`
	Items             []InvoiceItem `json:"items"`
	GrandTotal        float64       `json:"grand_total"`
	AdvancePaid       float64       `json:"advance_paid"`
	OutstandingAmount float64       `json:"outstanding_amount"`
	Remarks           string        `json:"remarks,omitempty"`
}
