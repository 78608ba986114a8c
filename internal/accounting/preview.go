package accounting

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/odyssey-erp/contractdesk/internal/erp"
)

// Preview is the ERP document an invoice would be pushed as, plus a printable rendering.
type Preview struct {
	Invoice  Invoice             `json:"invoice"`
	Document erp.InvoiceDocument `json:"document"`
	Payments []Payment           `json:"payments"`
	HTML     string              `json:"html"`
}

var previewTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Doc.Name }}</title>
<style>
body { font-family: sans-serif; margin: 32px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px; text-align: left; }
td.num { text-align: right; }
</style>
</head>
<body>
<h1>{{ .Doc.Doctype }} {{ .Doc.Name }}</h1>
<p>Seller: {{ .Doc.Company }}<br>Buyer: {{ .Doc.Customer }}</p>
<p>Posting date: {{ .Doc.PostingDate.Format "2006-01-02" }}<br>Due date: {{ .Doc.DueDate.Format "2006-01-02" }}</p>
<table>
<tr><th>Item</th><th>HSN</th><th>Qty</th><th>Rate</th><th>Amount</th></tr>
{{- range .Lines }}
<tr><td>{{ .Item }}</td><td>{{ .HSN }}</td><td class="num">{{ .Qty }}</td><td class="num">{{ .Rate }}</td><td class="num">{{ .Amount }}</td></tr>
{{- end }}
</table>
<p>Grand total: {{ .GrandTotal }}<br>Paid: {{ .Paid }}<br>Outstanding: {{ .Outstanding }}</p>
<p>Status: {{ .Status }} / {{ .PaymentStatus }} / {{ .SyncStatus }}</p>
{{- if .Doc.Remarks }}
<p>{{ .Doc.Remarks }}</p>
{{- end }}
</body>
</html>
`))

type previewLine struct {
	Item, HSN, Qty, Rate, Amount string
}

// Preview renders the invoice as the external system would receive it.
func (s *Store) Preview(ctx context.Context, id string) (Preview, error) {
	s.mu.RLock()
	inv, ok := s.invoices[id]
	if !ok {
		s.mu.RUnlock()
		return Preview{}, fmt.Errorf("preview invoice %s: %w", id, ErrInvoiceNotFound)
	}
	out := Preview{Invoice: *inv, Document: s.document(inv)}
	s.mu.RUnlock()
	out.Payments = s.Payments(ctx, id)

	lines := make([]previewLine, 0, len(out.Document.Items))
	for _, item := range out.Document.Items {
		lines = append(lines, previewLine{
			Item:   item.ItemName,
			HSN:    item.HSNCode,
			Qty:    s.money.Quantity(item.Qty),
			Rate:   s.money.Format(item.Rate),
			Amount: s.money.Format(item.Amount),
		})
	}
	var buf bytes.Buffer
	err := previewTemplate.Execute(&buf, map[string]any{
		"Doc":           out.Document,
		"Lines":         lines,
		"GrandTotal":    s.money.Format(out.Document.GrandTotal),
		"Paid":          s.money.Format(out.Document.AdvancePaid),
		"Outstanding":   s.money.Format(out.Document.OutstandingAmount),
		"Status":        out.Invoice.Status,
		"PaymentStatus": out.Invoice.PaymentStatus,
		"SyncStatus":    out.Invoice.SyncStatus,
	})
	if err != nil {
		return Preview{}, fmt.Errorf("render preview %s: %w", id, err)
	}
	out.HTML = buf.String()
	return out, nil
}
