// Package invoice renders order invoices and order list exports.
package invoice

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"artisanat/models"
)

// Company is printed in the invoice header and footer.
type Company struct {
	Name    string
	Address string
	Legal   string
	Support string
}

// Filename is the attachment name used for an order's invoice.
func Filename(o models.Order) string {
	return fmt.Sprintf("facture_%s.pdf", o.OrderNumber)
}

// ItemLabel appends the line options to the product name, keys sorted.
func ItemLabel(it models.OrderItem) string {
	if len(it.Options) == 0 {
		return it.ProductName
	}
	keys := make([]string, 0, len(it.Options))
	for k := range it.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, it.Options[k])
	}
	return fmt.Sprintf("%s (%s)", it.ProductName, strings.Join(parts, ", "))
}

func euros(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1) + " €"
}

// Render writes the A4 invoice of o to w.
func Render(w io.Writer, o models.Order, customer models.User, c Company, taxRate decimal.Decimal) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Facture "+o.OrderNumber, true)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, tr("Merci pour votre commande. "+c.Support), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr("FACTURE N° "+o.OrderNumber), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Date : "+o.CreatedAt.Format("02/01/2006")), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	top := pdf.GetY()
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, 6, tr(c.Name), "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(90, 5, tr(c.Address+"\n"+c.Legal), "", "L", false)

	pdf.SetXY(110, top)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, 6, tr("Client"), "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(90, 5, tr(customer.FullName()+"\n"+customer.Email+"\n"+o.ShippingAddressText), "", "L", false)
	pdf.Ln(8)

	widths := []float64{90, 25, 35, 35}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Produit", "Quantité", "Prix unitaire", "Total"} {
		pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, it := range o.Items {
		pdf.CellFormat(widths[0], 7, tr(ItemLabel(it)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprint(it.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, tr(euros(it.UnitPrice)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, tr(euros(it.TotalPrice)), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	shipping := euros(o.ShippingCost)
	if o.ShippingCost.IsZero() {
		shipping = "Gratuit"
	}
	totals := [][2]string{
		{"Sous-total", euros(o.Subtotal)},
		{fmt.Sprintf("TVA (%s%%)", taxRate.Mul(decimal.NewFromInt(100)).String()), euros(o.TaxAmount)},
		{"Frais de livraison", shipping},
		{"TOTAL", euros(o.TotalAmount)},
	}
	for i, row := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Helvetica", "B", 11)
		}
		pdf.CellFormat(150, 7, tr(row[0]), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, tr(row[1]), "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, tr("Mode de paiement : "+o.PaymentMethod.Label()), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Statut du paiement : "+o.PaymentStatus.Label()), "", 1, "L", false, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render invoice %s: %w", o.OrderNumber, err)
	}
	return pdf.Output(w)
}
