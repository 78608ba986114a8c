package erp

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money renders amounts for document previews.
type Money struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewMoney builds a Money formatter for an ISO currency code and BCP 47 locale.
// Unknown codes fall back to INR, unknown locales to English.
func NewMoney(code, locale string) Money {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.INR
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return Money{unit: unit, printer: message.NewPrinter(tag)}
}

// Code returns the ISO code of the currency.
func (m Money) Code() string {
	return m.unit.String()
}

// Format renders amount with the ISO code and grouped digits, e.g. "INR 100,000.00".
func (m Money) Format(amount float64) string {
	return m.printer.Sprint(currency.ISO(m.unit.Amount(amount)))
}

// Quantity renders a quantity with locale grouping.
func (m Money) Quantity(qty float64) string {
	if qty == float64(int64(qty)) {
		return m.printer.Sprintf("%d", int64(qty))
	}
	return m.printer.Sprintf("%.2f", qty)
}

// IsZero reports whether m was built without NewMoney.
func (m Money) IsZero() bool {
	return m.printer == nil
}
