package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Poterie de Provence":          "poterie-de-provence",
		"L'été à Montréal !":           "l-ete-a-montreal",
		"  Céramique -- émaillée  ":    "ceramique-emaillee",
		"Tissage_traditionnel 2024":    "tissage-traditionnel-2024",
		"":                             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestBlogPostFillDefaults(t *testing.T) {
	p := BlogPost{
		Title:   "Les secrets du tissage berbère dans les montagnes de l'Atlas marocain",
		Excerpt: "Court résumé",
	}
	p.FillDefaults()

	assert.Equal(t, "les-secrets-du-tissage-berbere-dans-les-montagnes-de-l-atlas-marocain", p.Slug)
	assert.Len(t, []rune(p.MetaTitle), 60)
	assert.Equal(t, "Court résumé", p.MetaDescription)

	custom := BlogPost{Title: "Titre", Slug: "mon-slug", MetaTitle: "Meta"}
	custom.FillDefaults()
	assert.Equal(t, "mon-slug", custom.Slug)
	assert.Equal(t, "Meta", custom.MetaTitle)
	assert.Empty(t, custom.MetaDescription)
}

func TestPublishKeepsFirstDate(t *testing.T) {
	first := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	var p BlogPost
	p.Publish(first)
	p.Status = PostArchived
	p.Publish(first.AddDate(0, 1, 0))

	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, first, *p.PublishedAt)
	assert.Equal(t, PostPublished, p.Status)
}

func TestOrderStatusTransitions(t *testing.T) {
	now := time.Now()
	o := Order{Status: OrderPending}

	assert.ErrorIs(t, o.SetStatus(OrderPending, now), ErrSameStatus)
	assert.ErrorIs(t, o.SetStatus("lost", now), ErrInvalidStatus)
	assert.ErrorIs(t, o.SetStatus(OrderDelivered, now), ErrForbiddenTransition)

	require.NoError(t, o.SetStatus(OrderProcessing, now))
	require.NoError(t, o.SetStatus(OrderShipped, now))
	assert.ErrorIs(t, o.SetStatus(OrderCancelled, now), ErrForbiddenTransition)
	require.NoError(t, o.SetStatus(OrderDelivered, now))
	assert.ErrorIs(t, o.SetStatus(OrderCancelled, now), ErrForbiddenTransition)
	assert.Equal(t, now, o.UpdatedAt)
}

func TestSetPaymentStatusStampsDate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	o := Order{PaymentStatus: PaymentPending}

	require.NoError(t, o.SetPaymentStatus(PaymentCompleted, now))
	require.NotNil(t, o.PaymentDate)
	assert.Equal(t, now, *o.PaymentDate)

	require.NoError(t, o.SetPaymentStatus(PaymentRefunded, now.Add(time.Hour)))
	assert.Equal(t, now, *o.PaymentDate)
	assert.ErrorIs(t, o.SetPaymentStatus(PaymentRefunded, now), ErrSameStatus)
}

func TestCanManage(t *testing.T) {
	super := User{ID: 1, UserType: UserSuperAdmin}
	admin := User{ID: 2, UserType: UserAdmin}
	otherAdmin := User{ID: 3, UserType: UserAdmin}
	creator := int64(2)
	client := User{ID: 10, UserType: UserClient, CreatedBy: &creator}
	stranger := User{ID: 11, UserType: UserClient}

	assert.True(t, super.CanManage(admin))
	assert.True(t, admin.CanManage(admin))
	assert.True(t, admin.CanManage(client))
	assert.False(t, admin.CanManage(stranger))
	assert.False(t, otherAdmin.CanManage(client))
	assert.False(t, client.CanManage(stranger))
	assert.True(t, client.CanManage(client))
}

func TestNotificationReadState(t *testing.T) {
	now := time.Now()
	var n Notification
	n.MarkRead(now)
	n.MarkRead(now.Add(time.Minute))
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, now, *n.ReadAt)

	n.MarkUnread()
	assert.False(t, n.IsRead)
	assert.Nil(t, n.ReadAt)

	n.Archive(now)
	assert.True(t, n.IsArchived)
	assert.Equal(t, "fa-box", NotificationIcon("stock"))
	assert.Equal(t, "fa-bell", NotificationIcon("unknown"))
}

func TestJSONColumns(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan([]byte(`["a.jpg","b.jpg"]`)))
	assert.Equal(t, StringList{"a.jpg", "b.jpg"}, l)
	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	var m JSONMap
	require.NoError(t, m.Scan(`{"delivery_phone":"0600000000"}`))
	assert.Equal(t, "0600000000", m["delivery_phone"])
	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)
	assert.Error(t, m.Scan(42))
}

func TestFormatAddress(t *testing.T) {
	a := Address{StreetAddress: "3 place du Marché", PostalCode: "13001", City: "Marseille", Country: "France"}
	assert.Equal(t, "3 place du Marché , 13001 Marseille, France", a.OneLine())
}
