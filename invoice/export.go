package invoice

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"artisanat/models"
)

// Row is one order in a list export.
type Row struct {
	Number  string
	Client  string
	Date    time.Time
	Total   decimal.Decimal
	Status  string
	Payment string
}

var headers = []string{"ID", "Client", "Date", "Total", "Statut", "Paiement"}

// Rows joins orders with their customers. Unknown customers are left blank.
func Rows(orders []models.Order, customers map[int64]models.User) []Row {
	rows := make([]Row, len(orders))
	for i, o := range orders {
		client := ""
		if u, ok := customers[o.CustomerID]; ok {
			client = strings.TrimSpace(u.FullName())
			if client == "" {
				client = u.Email
			}
		}
		rows[i] = Row{
			Number:  o.OrderNumber,
			Client:  client,
			Date:    o.CreatedAt,
			Total:   o.TotalAmount,
			Status:  o.Status.Label(),
			Payment: o.PaymentStatus.Label(),
		}
	}
	return rows
}

func (r Row) cells() []string {
	return []string{r.Number, r.Client, r.Date.Format("02/01/2006"), r.Total.StringFixed(2), r.Status, r.Payment}
}

// ExportFilename returns commandes_YYYYMMDD_HHMM.<ext>.
func ExportFilename(ext string, now time.Time) string {
	return fmt.Sprintf("commandes_%s.%s", now.Format("20060102_1504"), ext)
}

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const sheet = "Commandes"

func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDDDDD"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	for c, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return err
	}

	for i, r := range rows {
		total, _ := r.Total.Float64()
		values := []any{r.Number, r.Client, r.Date.Format("02/01/2006"), total, r.Status, r.Payment}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetColWidth(sheet, "A", "F", 18); err != nil {
		return err
	}
	return f.Write(w)
}

func WritePDF(w io.Writer, rows []Row, now time.Time) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr("Liste des commandes - "+now.Format("02/01/2006 15:04")), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	widths := []float64{40, 70, 30, 30, 45, 45}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(220, 220, 220)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		for i, v := range r.cells() {
			align := "L"
			if i == 3 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 7, tr(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render order list: %w", err)
	}
	return pdf.Output(w)
}
