package invoice

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"artisanat/models"
)

func sampleOrder() models.Order {
	return models.Order{
		ID:                  1,
		OrderNumber:         "CMD-1A2B3C4D",
		CustomerID:          7,
		Status:              models.OrderPending,
		CreatedAt:           time.Date(2024, 2, 14, 9, 5, 0, 0, time.UTC),
		Subtotal:            decimal.RequireFromString("50.00"),
		TaxAmount:           decimal.RequireFromString("10.00"),
		ShippingCost:        decimal.Zero,
		TotalAmount:         decimal.RequireFromString("60.00"),
		PaymentMethod:       models.PayCard,
		PaymentStatus:       models.PaymentCompleted,
		ShippingAddressText: "8 rue Neuve , 75002 Paris, France",
		Items: []models.OrderItem{{
			ProductName: "Tapis", Quantity: 2,
			UnitPrice:  decimal.RequireFromString("25.00"),
			TotalPrice: decimal.RequireFromString("50.00"),
			Options:    models.JSONMap{"taille": "L", "couleur": "ocre"},
		}},
	}
}

func TestItemLabel(t *testing.T) {
	assert.Equal(t, "Tapis (couleur: ocre, taille: L)", ItemLabel(sampleOrder().Items[0]))
	assert.Equal(t, "Bol", ItemLabel(models.OrderItem{ProductName: "Bol"}))
}

func TestRenderInvoice(t *testing.T) {
	var buf bytes.Buffer
	customer := models.User{FirstName: "Inès", LastName: "Moreau", Email: "ines@example.fr"}
	company := Company{Name: "Afro Artisanat", Address: "12 rue des Artisans 75011 Paris", Legal: "SIRET 000", Support: "support@example.fr"}

	require.NoError(t, Render(&buf, sampleOrder(), customer, company, decimal.RequireFromString("0.20")))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Equal(t, "facture_CMD-1A2B3C4D.pdf", Filename(sampleOrder()))
}

func TestExports(t *testing.T) {
	rows := Rows([]models.Order{sampleOrder()}, map[int64]models.User{7: {FirstName: "Inès", LastName: "Moreau"}})
	require.Len(t, rows, 1)
	assert.Equal(t, "Inès Moreau", rows[0].Client)

	var csvBuf bytes.Buffer
	require.NoError(t, WriteCSV(&csvBuf, rows))
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,Client,Date,Total,Statut,Paiement", lines[0])
	assert.Equal(t, "CMD-1A2B3C4D,Inès Moreau,14/02/2024,60.00,En attente,Payée", lines[1])

	var xlsx bytes.Buffer
	require.NoError(t, WriteXLSX(&xlsx, rows))
	f, err := excelize.OpenReader(&xlsx)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "CMD-1A2B3C4D", v)
	v, _ = f.GetCellValue(sheet, "E1")
	assert.Equal(t, "Statut", v)

	var pdfBuf bytes.Buffer
	require.NoError(t, WritePDF(&pdfBuf, rows, time.Now()))
	assert.True(t, bytes.HasPrefix(pdfBuf.Bytes(), []byte("%PDF-")))
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2024, 11, 3, 8, 7, 0, 0, time.UTC)
	assert.Equal(t, "commandes_20241103_0807.csv", ExportFilename("csv", now))
}
