package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artisanat/mailer"
	"artisanat/models"
	"artisanat/storage"
)

func TestBlogPostLifecycle(t *testing.T) {
	e := newTestEnv(t)
	author := e.login(t, e.user(t, "author@example.com", models.UserClient))
	admin := e.login(t, e.user(t, "admin@example.com", models.UserAdmin))
	post := map[string]any{"title": "Le bogolan du Mali", "content": "<p>Teinture</p><script>alert(1)</script>"}

	rec := e.do(t, http.MethodPost, "/api/me/posts", author, post)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody(t, rec)
	assert.Equal(t, "le-bogolan-du-mali", first["slug"])
	assert.Equal(t, "draft", first["status"])
	assert.NotContains(t, first["content"], "<script>")

	rec = e.do(t, http.MethodPost, "/api/me/posts", author, post)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "le-bogolan-du-mali-2", decodeBody(t, rec)["slug"])

	// drafts stay private
	rec = e.do(t, http.MethodGet, "/api/blog/posts/le-bogolan-du-mali", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := itoa(int64(first["id"].(float64)))
	rec = e.do(t, http.MethodPost, "/api/admin/blog/posts/"+id+"/publish", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPut, "/api/me/posts/"+id, author, post)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/blog/posts/le-bogolan-du-mali", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ := decodeBody(t, rec)["post"].(map[string]any)
	assert.EqualValues(t, 1, got["view_count"])

	path := "/api/blog/posts/le-bogolan-du-mali/comments"
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, path, "", map[string]string{"content": "Superbe"}).Code)
	rec = e.do(t, http.MethodPost, path, author, map[string]string{"content": "<b></b>"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPost, path, author, map[string]string{"content": "Superbe travail"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/blog/posts/le-bogolan-du-mali", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["comments"], 1)
}

func TestCommentReplyStaysOnItsPost(t *testing.T) {
	e := newTestEnv(t)
	author := e.login(t, e.user(t, "author@example.com", models.UserClient))
	admin := e.login(t, e.user(t, "admin@example.com", models.UserAdmin))

	publish := func(title string) string {
		rec := e.do(t, http.MethodPost, "/api/me/posts", author, map[string]any{"title": title, "content": "texte"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		post := decodeBody(t, rec)
		rec = e.do(t, http.MethodPost, "/api/admin/blog/posts/"+itoa(int64(post["id"].(float64)))+"/publish", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return "/api/blog/posts/" + post["slug"].(string) + "/comments"
	}
	masks, baskets := publish("Masques"), publish("Paniers")

	rec := e.do(t, http.MethodPost, baskets, author, map[string]any{"content": "Jolis paniers"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	foreign := decodeBody(t, rec)["id"]

	rec = e.do(t, http.MethodPost, masks, author, map[string]any{"content": "Réponse", "parent_id": foreign})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "parent_id")

	rec = e.do(t, http.MethodPost, masks, author, map[string]any{"content": "Beaux masques"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	own := decodeBody(t, rec)["id"]
	rec = e.do(t, http.MethodPost, masks, author, map[string]any{"content": "Merci", "parent_id": own})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestBlogRejectsUnknownTags(t *testing.T) {
	e := newTestEnv(t)
	author := e.login(t, e.user(t, "author@example.com", models.UserClient))

	rec := e.do(t, http.MethodPost, "/api/me/posts", author, map[string]any{
		"title": "Masques", "content": "texte", "tag_ids": []int64{42},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "tag_ids")
}

func TestContactSubmission(t *testing.T) {
	e := newTestEnv(t)
	msg := map[string]any{
		"first_name": "Awa", "last_name": "Diop", "email": "awa@example.com",
		"subject": "commande", "message": "Où est mon colis ?", "privacy_accepted": true,
	}

	rec := e.do(t, http.MethodPost, "/api/contact", "", msg)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	sent := e.mail.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, mailer.KindContactAdmin, sent[0].Kind)
	assert.Equal(t, []string{"admin@shop.test"}, sent[0].To)
	assert.Equal(t, mailer.KindContactAck, sent[1].Kind)
	assert.Equal(t, []string{"awa@example.com"}, sent[1].To)

	msg["subject"] = "plainte"
	msg["privacy_accepted"] = false
	rec = e.do(t, http.MethodPost, "/api/contact", "", msg)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "subject")
	assert.Contains(t, fields, "privacy_accepted")

	admin := e.login(t, e.user(t, "admin@example.com", models.UserAdmin))
	rec = e.do(t, http.MethodGet, "/api/admin/contacts", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestContactMailFailureStillStoresMessage(t *testing.T) {
	e := newTestEnv(t)
	e.mail.Err = errors.New("smtp down")

	rec := e.do(t, http.MethodPost, "/api/contact", "", map[string]any{
		"first_name": "Awa", "last_name": "Diop", "email": "awa@example.com",
		"subject": "autre", "message": "Bonjour", "privacy_accepted": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	list, err := e.store.ListContactMessages(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNewsletterSubscription(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/newsletter", "", map[string]string{"email": "Awa@Example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodPost, "/api/newsletter", "", map[string]string{"email": "awa@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already subscribed", decodeBody(t, rec)["message"])

	sent := e.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, mailer.KindNewsletter, sent[0].Kind)

	rec = e.do(t, http.MethodPost, "/api/newsletter", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type artisanFixture struct {
	mali, senegal  models.Region
	weaving, other models.CraftType
}

func seedArtisans(t *testing.T, e *testEnv) artisanFixture {
	t.Helper()
	ctx := context.Background()
	var f artisanFixture
	var err error
	f.mali, err = e.store.CreateRegion(ctx, models.Region{Name: "Mali", Slug: "mali"})
	require.NoError(t, err)
	f.senegal, err = e.store.CreateRegion(ctx, models.Region{Name: "Sénégal", Slug: "senegal"})
	require.NoError(t, err)
	f.weaving, err = e.store.CreateCraftType(ctx, models.CraftType{Name: "Tissage", Slug: "tissage"})
	require.NoError(t, err)
	f.other, err = e.store.CreateCraftType(ctx, models.CraftType{Name: "Autre", Slug: "autre"})
	require.NoError(t, err)

	for _, a := range []models.Artisan{
		{Name: "Amadou", RegionID: &f.mali.ID, CraftTypeID: &f.weaving.ID, Country: "Mali", IsActive: true},
		{Name: "Bintou", RegionID: &f.mali.ID, CraftTypeID: &f.other.ID, Country: "Mali", IsActive: true},
		{Name: "Cheikh", RegionID: &f.senegal.ID, CraftTypeID: &f.weaving.ID, Country: "Sénégal", IsActive: true},
		{Name: "Dior", RegionID: &f.senegal.ID, CraftTypeID: &f.weaving.ID, Country: "Sénégal", IsActive: false},
	} {
		_, err := e.store.CreateArtisan(ctx, a)
		require.NoError(t, err)
	}
	return f
}

func TestArtisanDirectory(t *testing.T) {
	e := newTestEnv(t)
	seedArtisans(t, e)

	rec := e.do(t, http.MethodGet, "/api/artisans", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Len(t, body["artisans"], 3)
	assert.Len(t, body["regions"], 2)
	assert.Len(t, body["craft_types"], 2)

	rec = e.do(t, http.MethodGet, "/api/artisans?region=mali&craft=tissage", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list, _ := decodeBody(t, rec)["artisans"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Amadou", list[0].(map[string]any)["name"])

	rec = e.do(t, http.MethodGet, "/api/artisans?region=atlantide", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["artisans"])
}

func TestArtisanDetailSimilar(t *testing.T) {
	e := newTestEnv(t)
	seedArtisans(t, e)
	all, _, err := e.store.ListArtisans(context.Background(), storage.ArtisanFilter{})
	require.NoError(t, err)
	byName := map[string]models.Artisan{}
	for _, a := range all {
		byName[a.Name] = a
	}

	rec := e.do(t, http.MethodGet, "/api/artisans/"+itoa(byName["Amadou"].ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	similar, _ := decodeBody(t, rec)["similar_artisans"].([]any)
	require.Len(t, similar, 1)
	assert.Equal(t, "Bintou", similar[0].(map[string]any)["name"])

	// alone in its region, so the same craft is used
	rec = e.do(t, http.MethodGet, "/api/artisans/"+itoa(byName["Cheikh"].ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	similar, _ = decodeBody(t, rec)["similar_artisans"].([]any)
	require.Len(t, similar, 1)
	assert.Equal(t, "Amadou", similar[0].(map[string]any)["name"])

	rec = e.do(t, http.MethodGet, "/api/artisans/"+itoa(byName["Dior"].ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArtisanApplication(t *testing.T) {
	e := newTestEnv(t)
	f := seedArtisans(t, e)
	admin := e.login(t, e.user(t, "admin@example.com", models.UserAdmin))

	rec := e.do(t, http.MethodPost, "/api/artisans/applications", "", map[string]any{
		"full_name": "Kofi Mensah", "email": "kofi@example.com", "phone": "+233200000",
		"country": "Ghana", "craft_type_id": f.other.ID, "experience": "10 ans",
		"description": "Sculpteur", "photo_urls": []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "other_craft")
	assert.Contains(t, fields, "photo_urls")
	assert.Contains(t, fields, "terms_accepted")

	rec = e.do(t, http.MethodPost, "/api/artisans/applications", "", map[string]any{
		"full_name": "Kofi Mensah", "email": "kofi@example.com", "phone": "+233200000",
		"country": "Ghana", "craft_type_id": f.weaving.ID, "experience": "10 ans",
		"description": "Tisserand kente", "photo_urls": []string{"kente.jpg"}, "terms_accepted": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	app, _ := decodeBody(t, rec)["application"].(map[string]any)
	assert.Equal(t, "pending", app["status"])
	path := "/api/admin/applications/" + itoa(int64(app["id"].(float64))) + "/status"

	rec = e.do(t, http.MethodPost, path, admin, map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPost, path, admin, map[string]string{"status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, path, admin, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, decodeBody(t, rec), "warning")
	sent := e.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, mailer.KindApplicationStatus, sent[0].Kind)
	assert.Equal(t, []string{"kofi@example.com"}, sent[0].To)

	e.mail.Err = errors.New("smtp down")
	rec = e.do(t, http.MethodPost, path, admin, map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "warning")
}

func TestAdminCreatesArtisansAndRegions(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login(t, e.user(t, "admin@example.com", models.UserAdmin))

	rec := e.do(t, http.MethodPost, "/api/admin/regions", admin, map[string]string{"name": "Côte d'Ivoire"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	region := decodeBody(t, rec)
	assert.Equal(t, "cote-d-ivoire", region["slug"])
	rec = e.do(t, http.MethodPost, "/api/admin/regions", admin, map[string]string{"name": "Côte d'Ivoire"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/admin/artisans", admin, map[string]any{
		"name": "Aya", "country": "Côte d'Ivoire", "description": "Potière", "region_id": region["id"], "rating": 4.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	artisan := decodeBody(t, rec)
	assert.Equal(t, models.DefaultArtisanImage, artisan["image_url"])
	assert.Equal(t, true, artisan["is_active"])

	rec = e.do(t, http.MethodPost, "/api/admin/artisans", admin, map[string]any{
		"name": "Aya", "country": "CI", "description": "Potière", "rating": 7,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/admin/artisans", admin, map[string]any{
		"name": "Aya", "country": "CI", "description": "Potière", "region_id": 999,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAboutPage(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login(t, e.user(t, "admin@example.com", models.UserAdmin))

	rec := e.do(t, http.MethodGet, "/api/about", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	content, _ := decodeBody(t, rec)["content"].(map[string]any)
	assert.Equal(t, "Notre Histoire", content["history_title"])

	rec = e.do(t, http.MethodPut, "/api/admin/about/content", admin, map[string]string{"title": "À propos", "mission_title": "Nos engagements"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, it := range []map[string]any{
		{"kind": "team", "title": "Mariam", "order": 2},
		{"kind": "team", "title": "Ibrahim", "order": 1},
		{"kind": "value", "title": "Commerce équitable"},
		{"kind": "testimonial", "title": "Cliente ravie", "is_active": false},
	} {
		rec = e.do(t, http.MethodPost, "/api/admin/about/items", admin, it)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodPost, "/api/admin/about/items", admin, map[string]any{"kind": "partner", "title": "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/about", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	content, _ = body["content"].(map[string]any)
	assert.Equal(t, "À propos", content["title"])
	assert.Equal(t, "Nos engagements", content["mission_title"])
	assert.Equal(t, "Notre Équipe", content["team_title"])

	team, _ := body["team_members"].([]any)
	require.Len(t, team, 2)
	assert.Equal(t, "Ibrahim", team[0].(map[string]any)["title"])
	assert.Len(t, body["values"], 1)
	assert.Empty(t, body["testimonials"])
	assert.Empty(t, body["steps"])
}

func TestNotificationCenter(t *testing.T) {
	e := newTestEnv(t)
	staff := e.user(t, "admin@example.com", models.UserAdmin)
	admin := e.login(t, staff)
	awa := e.login(t, e.user(t, "awa@example.com", models.UserClient))
	placeOrder(t, e, awa, e.product(t, "Panier", "25.00", 1), 1)

	rec := e.do(t, http.MethodGet, "/api/admin/notifications/unread", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["unread_count"])

	rec = e.do(t, http.MethodGet, "/api/admin/notifications?filter=order", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	list, _ := body["notifications"].([]any)
	require.Len(t, list, 1)
	first := list[0].(map[string]any)
	assert.NotNil(t, first["related_order"])
	counts, _ := body["type_counts"].(map[string]any)
	assert.EqualValues(t, 1, counts["stock"])
	assert.EqualValues(t, 2, body["total_count"])

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/admin/notifications?time=year", admin, nil).Code)

	id := itoa(int64(first["id"].(float64)))
	rec = e.do(t, http.MethodPost, "/api/admin/notifications/"+id+"/toggle", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["is_read"])

	rec = e.do(t, http.MethodPost, "/api/admin/notifications/read-all", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])

	rec = e.do(t, http.MethodDelete, "/api/admin/notifications/"+id, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/admin/notifications/"+id, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	count, err := e.deps.Notify.UnreadCount(context.Background(), staff.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
