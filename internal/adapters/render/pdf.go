// Package render draws invoice documents as PDF.
package render

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/kevin07696/paypal-billing/pkg/timeutil"
	"github.com/shopspring/decimal"
)

const (
	pageMargin  = 15.0
	lineHeight  = 7.0
	logoWidth   = 40.0
	descColumn  = 110.0
	dateColumn  = 30.0
	moneyColumn = 40.0
)

// PDFRenderer lays out an invoice on A4. Relative logo paths are resolved
// against BaseDir.
type PDFRenderer struct {
	baseDir string
}

func NewPDFRenderer(baseDir string) *PDFRenderer {
	return &PDFRenderer{baseDir: baseDir}
}

var _ ports.DocumentRenderer = (*PDFRenderer)(nil)

func (r *PDFRenderer) logoPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.baseDir, p)
}

// Render returns the PDF bytes or a RENDER_ERROR
func (r *PDFRenderer) Render(ctx context.Context, invoice *domain.Invoice, issuer ports.InvoiceIssuer) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewRenderError(invoice.ID, err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetTitle(fmt.Sprintf("Invoice %s", invoice.ID), true)
	pdf.SetCreator(issuer.Name, true)
	pdf.SetCreationDate(invoice.CreatedAt)
	pdf.AddPage()

	if logo := r.logoPath(issuer.LogoPath); logo != "" {
		pdf.ImageOptions(logo, pageMargin, pageMargin, logoWidth, 0, false,
			fpdf.ImageOptions{ReadDpi: true}, 0, "")
		pdf.SetY(pageMargin + 25)
	}

	r.header(pdf, invoice, issuer)
	r.lines(pdf, invoice, issuer.Currency)

	if pdf.Err() {
		return nil, domain.NewRenderError(invoice.ID, pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, domain.NewRenderError(invoice.ID, err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) header(pdf *fpdf.Fpdf, invoice *domain.Invoice, issuer ports.InvoiceIssuer) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{issuer.Name, issuer.Address, issuer.Email} {
		for _, part := range strings.Split(line, "\n") {
			if part = strings.TrimSpace(part); part != "" {
				pdf.CellFormat(0, 5, part, "", 1, "L", false, 0, "")
			}
		}
	}
	pdf.Ln(4)

	pdf.CellFormat(0, 5, "Invoice: "+invoice.ID, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Customer: "+invoice.CustomerID, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Period: %s to %s",
		timeutil.FormatDate(invoice.StartDate), timeutil.FormatDate(invoice.EndDate)), "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (r *PDFRenderer) lines(pdf *fpdf.Fpdf, invoice *domain.Invoice, currency string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(descColumn, lineHeight, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(dateColumn, lineHeight, "Date", "1", 0, "C", true, 0, "")
	pdf.CellFormat(moneyColumn, lineHeight, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range invoice.Items {
		desc := item.Description
		if desc == "" {
			desc = "Service charge"
		}
		pdf.CellFormat(descColumn, lineHeight, desc, "1", 0, "L", false, 0, "")
		pdf.CellFormat(dateColumn, lineHeight, timeutil.FormatDate(item.CreatedAt), "1", 0, "C", false, 0, "")
		pdf.CellFormat(moneyColumn, lineHeight, money(item.Amount, currency), "1", 1, "R", false, 0, "")
	}

	total := invoice.TotalAmount()
	tax := invoice.TotalTax()
	pdf.Ln(2)
	r.total(pdf, "Subtotal", money(total.Sub(tax), currency), false)
	r.total(pdf, "Tax", money(tax, currency), false)
	r.total(pdf, "Total", money(total, currency), true)
}

func (r *PDFRenderer) total(pdf *fpdf.Fpdf, label, value string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 10)
	pdf.CellFormat(descColumn+dateColumn, lineHeight, label, "", 0, "R", false, 0, "")
	pdf.CellFormat(moneyColumn, lineHeight, value, "", 1, "R", false, 0, "")
}

func money(d decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	return d.StringFixed(2) + " " + currency
}
