package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"artisanat/auth"
	"artisanat/models"
	"artisanat/storage"
	"artisanat/storage/migrations"
	"artisanat/storage/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.postgres(cmd.Context())
			if err != nil {
				return err
			}
			defer db.DB().Close()
			v, err := migrations.Up(db.DB().DB)
			if err != nil {
				return err
			}
			a.log.Info("schema migrated", zap.Uint("version", v))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations, one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			db, err := a.postgres(cmd.Context())
			if err != nil {
				return err
			}
			defer db.DB().Close()
			if err := migrations.Down(db.DB().DB, steps); err != nil {
				return err
			}
			a.log.Info("migrations rolled back", zap.Int("steps", steps))
			return nil
		},
	})
	return cmd
}

func (a *app) postgres(ctx context.Context) (*postgres.Store, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := postgres.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return postgres.New(db), nil
}

//go:embed seed.yaml
var seedFile []byte

type seedCategory struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Color       string `yaml:"color"`
	Featured    bool   `yaml:"featured"`
}

type seedData struct {
	Regions    []models.Region     `yaml:"regions"`
	CraftTypes []models.CraftType  `yaml:"craft_types"`
	Categories []seedCategory      `yaml:"categories"`
	About      models.AboutContent `yaml:"about"`
	AboutItems []models.AboutItem  `yaml:"about_items"`
}

func parseSeed(raw []byte) (seedData, error) {
	var d seedData
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return seedData{}, fmt.Errorf("parse seed: %w", err)
	}
	return d, nil
}

type seedResult struct {
	Regions, CraftTypes, Categories, AboutItems int
	About                                       bool
}

// seed loads the reference data. Rows that already exist are left alone so
// the command can run on every deploy.
func seed(ctx context.Context, store storage.Store, d seedData) (seedResult, error) {
	var res seedResult
	for _, r := range d.Regions {
		if r.Slug == "" {
			r.Slug = models.Slugify(r.Name)
		}
		if _, err := store.CreateRegion(ctx, r); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return res, fmt.Errorf("region %s: %w", r.Name, err)
		}
		res.Regions++
	}
	for _, c := range d.CraftTypes {
		if c.Slug == "" {
			c.Slug = models.Slugify(c.Name)
		}
		if _, err := store.CreateCraftType(ctx, c); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return res, fmt.Errorf("craft type %s: %w", c.Name, err)
		}
		res.CraftTypes++
	}
	for _, c := range d.Categories {
		color := c.Color
		if color == "" {
			color = models.DefaultCategoryColor
		}
		var desc *string
		if c.Description != "" {
			desc = &c.Description
		}
		_, err := store.CreateCategory(ctx, models.Category{Name: c.Name, Description: desc, Icon: c.Icon, Color: color, Featured: c.Featured})
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return res, fmt.Errorf("category %s: %w", c.Name, err)
		}
		res.Categories++
	}

	_, err := store.GetAboutContent(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		about := d.About
		about.FillDefaults()
		if _, err := store.SaveAboutContent(ctx, about); err != nil {
			return res, fmt.Errorf("about content: %w", err)
		}
		res.About = true
	case err != nil:
		return res, err
	}

	items, err := store.ListAboutItems(ctx, false)
	if err != nil {
		return res, err
	}
	if len(items) == 0 {
		for _, it := range d.AboutItems {
			if _, err := store.CreateAboutItem(ctx, it); err != nil {
				return res, fmt.Errorf("about item %s: %w", it.Title, err)
			}
			res.AboutItems++
		}
	}
	return res, nil
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load regions, craft types, categories and the about page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseSeed(seedFile)
			if err != nil {
				return err
			}
			store, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			res, err := seed(cmd.Context(), store, d)
			if err != nil {
				return err
			}
			a.log.Info("seed done",
				zap.Int("regions", res.Regions),
				zap.Int("craft_types", res.CraftTypes),
				zap.Int("categories", res.Categories),
				zap.Bool("about", res.About),
				zap.Int("about_items", res.AboutItems),
			)
			return nil
		},
	}
}

type superuserInput struct {
	Email, FirstName, LastName, Password string
}

func createSuperuser(ctx context.Context, store storage.Store, in superuserInput) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return models.User{}, errors.New("email is required")
	}
	if err := auth.ValidatePassword(in.Password, in.Password); err != nil {
		return models.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u, err := store.CreateUser(ctx, models.User{
		Email:          email,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		UserType:       models.UserSuperAdmin,
		PasswordHash:   hash,
		AccountStatus:  true,
		EmailConfirmed: true,
	})
	if errors.Is(err, storage.ErrConflict) {
		return models.User{}, fmt.Errorf("a user with email %s already exists", email)
	}
	return u, err
}

func newCreateSuperuserCmd(a *app) *cobra.Command {
	var in superuserInput
	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a super admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			u, err := createSuperuser(cmd.Context(), store, in)
			if err != nil {
				return err
			}
			a.log.Info("super admin created", zap.Int64("user_id", u.ID), zap.String("email", u.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "Admin", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
