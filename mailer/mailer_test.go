package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artisanat/models"
)

func TestComposeOrderConfirmation(t *testing.T) {
	eta := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	data := OrderData{
		Customer: models.User{FirstName: "Léa", LastName: "Petit"},
		Company:  "Afro Artisanat",
		Order: models.Order{
			OrderNumber:           "CMD-DEADBEEF",
			CreatedAt:             time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			Subtotal:              decimal.RequireFromString("20"),
			TaxAmount:             decimal.RequireFromString("4"),
			ShippingCost:          decimal.RequireFromString("5"),
			TotalAmount:           decimal.RequireFromString("29"),
			PaymentMethod:         models.PayPaypal,
			EstimatedDeliveryDate: &eta,
			Items: []models.OrderItem{{
				ProductName: "Panier", Quantity: 1,
				TotalPrice: decimal.RequireFromString("20"),
				Options:    models.JSONMap{"couleur": "rouge"},
			}},
		},
	}

	msg, err := Compose(KindOrderConfirmation, []string{"lea@example.fr"}, data)
	require.NoError(t, err)
	assert.Equal(t, "Confirmation de votre commande #CMD-DEADBEEF", msg.Subject)
	assert.Contains(t, msg.HTML, "Panier (couleur: rouge)")
	assert.Contains(t, msg.HTML, "29,00 €")
	assert.Contains(t, msg.Text, "Total : 29,00 €")
	assert.Contains(t, msg.Text, "Livraison estimée : 06/03/2024")
	assert.NotContains(t, msg.Text, "<")
}

func TestComposeApplicationStatus(t *testing.T) {
	msg, err := Compose(KindApplicationStatus, []string{"a@b.fr"}, ApplicationData{
		FullName: "Kofi", Status: models.ApplicationApproved, StatusLabel: models.ApplicationApproved.Label(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Votre candidature artisan : Approuvé", msg.Subject)
	assert.Contains(t, msg.Text, "approuvée")

	msg, err = Compose(KindApplicationStatus, []string{"a@b.fr"}, ApplicationData{
		FullName: "Kofi", Status: models.ApplicationRejected, StatusLabel: "Rejeté",
	})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "suite favorable")
}

func TestComposeEscapesUserInput(t *testing.T) {
	msg, err := Compose(KindContactAdmin, []string{"admin@example.fr"}, ContactData{
		ContactMessage: models.ContactMessage{FirstName: "Eve", Email: "eve@example.fr", Message: "<script>alert(1)</script>"},
		SubjectLabel:   models.SubjectReturn.Label(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Nouveau message de contact : Retour produit", msg.Subject)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestComposeUnknownKind(t *testing.T) {
	_, err := Compose("birthday", nil, nil)
	assert.Error(t, err)
}

func TestDeliver(t *testing.T) {
	m := &Memory{}
	msg := Message{Kind: KindNewsletter, To: []string{"x@y.fr"}, Subject: "hi"}
	require.NoError(t, Deliver(context.Background(), m, msg))
	require.Len(t, m.Sent(), 1)

	m.Err = errors.New("smtp down")
	assert.Error(t, Deliver(context.Background(), m, msg))
	assert.Len(t, m.Sent(), 1)

	assert.NoError(t, Log{Logger: zap.NewNop()}.Send(context.Background(), msg))
}

func TestSMTPHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewSMTP("localhost", 2525, "", "", "noreply@example.fr").Send(ctx, Message{To: []string{"a@b.fr"}})
	assert.ErrorIs(t, err, context.Canceled)
}
