package erp

import (
	"context"
	"sync"
)

// Recorder is a deterministic Gateway that remembers what it was sent and answers
// with a fixed error (nil for success).
type Recorder struct {
	mu        sync.Mutex
	Err       error
	contracts []ContractDocument
	invoices  []InvoiceDocument
}

// PushContract records doc and returns r.Err.
func (r *Recorder) PushContract(ctx context.Context, doc ContractDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts = append(r.contracts, doc)
	return r.Err
}

// PushInvoice records doc and returns r.Err.
func (r *Recorder) PushInvoice(ctx context.Context, doc InvoiceDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices = append(r.invoices, doc)
	return r.Err
}

// SetErr changes the answer for later pushes.
func (r *Recorder) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

// Contracts returns the contracts pushed so far.
func (r *Recorder) Contracts() []ContractDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ContractDocument(nil), r.contracts...)
}

// Invoices returns the invoices pushed so far.
func (r *Recorder) Invoices() []InvoiceDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]InvoiceDocument(nil), r.invoices...)
}

var _ Gateway = (*Recorder)(nil)
