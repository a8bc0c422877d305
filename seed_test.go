package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artisanat/auth"
	"artisanat/models"
	"artisanat/storage"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d, err := parseSeed(seedFile)
	require.NoError(t, err)
	require.NotEmpty(t, d.Regions)
	require.NotEmpty(t, d.AboutItems)

	store := storage.NewMemory()
	first, err := seed(ctx, store, d)
	require.NoError(t, err)
	assert.Equal(t, len(d.Regions), first.Regions)
	assert.Equal(t, len(d.CraftTypes), first.CraftTypes)
	assert.Equal(t, len(d.Categories), first.Categories)
	assert.Equal(t, len(d.AboutItems), first.AboutItems)
	assert.True(t, first.About)

	second, err := seed(ctx, store, d)
	require.NoError(t, err)
	assert.Equal(t, seedResult{}, second)

	region, err := store.GetRegionBySlug(ctx, "cote-d-ivoire")
	require.NoError(t, err)
	assert.Equal(t, "Côte d'Ivoire", region.Name)

	_, err = store.GetCraftTypeBySlug(ctx, "autre")
	require.NoError(t, err)

	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	colors := map[string]string{}
	for _, c := range cats {
		colors[c.Name] = c.Color
	}
	assert.Equal(t, models.DefaultCategoryColor, colors["Textiles"])
	assert.Equal(t, "#b45309", colors["Décoration"])

	about, err := store.GetAboutContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Notre Histoire", about.HistoryTitle)
	assert.Equal(t, "Rejoignez nos artisans", about.CTATitle)
}

func TestSeedKeepsEditedAboutPage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	_, err := store.SaveAboutContent(ctx, models.AboutContent{Title: "Edited"})
	require.NoError(t, err)

	d, err := parseSeed(seedFile)
	require.NoError(t, err)
	res, err := seed(ctx, store, d)
	require.NoError(t, err)
	assert.False(t, res.About)

	about, err := store.GetAboutContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Edited", about.Title)
}

func TestParseSeedRejectsGarbage(t *testing.T) {
	_, err := parseSeed([]byte("regions: [unterminated"))
	assert.Error(t, err)
}

func TestCreateSuperuser(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	u, err := createSuperuser(ctx, store, superuserInput{Email: " Root@Example.com ", FirstName: "Root", Password: "long-enough-1"})
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", u.Email)
	assert.Equal(t, models.UserSuperAdmin, u.UserType)
	assert.True(t, u.EmailConfirmed)
	assert.True(t, u.AccountStatus)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "long-enough-1"))

	_, err = createSuperuser(ctx, store, superuserInput{Email: "root@example.com", Password: "long-enough-1"})
	assert.ErrorContains(t, err, "already exists")

	_, err = createSuperuser(ctx, store, superuserInput{Email: "other@example.com", Password: "123"})
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)

	_, err = createSuperuser(ctx, store, superuserInput{Password: "long-enough-1"})
	assert.Error(t, err)
}
