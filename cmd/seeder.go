package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/category"
	categoryDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/category"
	fundDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/fund"
	userDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/user"
	"github.com/frahmantamala/barangay-procurement/internal/settings"
	"github.com/frahmantamala/barangay-procurement/internal/user"
	"github.com/frahmantamala/barangay-procurement/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed one user per role, the lock settings and a starter category registry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.DB.Close()

		if clearData && deps.Config.IsProduction() {
			return fmt.Errorf("refusing to clear data in production")
		}
		return seed(cmd.Context(), deps.Gorm, seedOptions{
			Clear:      clearData,
			Password:   seedPassword,
			BCryptCost: deps.Config.Security.BCryptCost,
			Year:       time.Now().Year(),
		}, deps.Logger)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "password", "Password given to every seeded user")
}

type seedOptions struct {
	Clear      bool
	Password   string
	BCryptCost int
	Year       int
}

type seedCategory struct {
	Name          string
	Group         string
	Subcategories []string
}

var seedUsers = []struct {
	Email string
	Name  string
	Role  internal.Role
}{
	{"admin@barangay.local", "System Administrator", internal.RoleAdmin},
	{"captain@barangay.local", "Ricardo Santos", internal.RoleCaptain},
	{"secretary@barangay.local", "Maria Cruz", internal.RoleSecretary},
	{"treasurer@barangay.local", "Jose Reyes", internal.RoleTreasurer},
	{"official@barangay.local", "Ana Villanueva", internal.RoleOfficial},
}

var seedCategories = []seedCategory{
	{"Cash in Bank", category.GroupBeginningCash, []string{"Current Account"}},
	{"Share from Real Property Tax", category.GroupReceipts, []string{"Basic RPT Share"}},
	{"Internal Revenue Allotment", category.GroupReceipts, []string{"National Tax Allotment"}},
	{"Personal Services", category.GroupExpenditures, []string{"Honoraria", "Cash Gift"}},
	{"Maintenance and Other Operating Expenses", category.GroupExpenditures, []string{"Office Supplies", "Electricity", "Water"}},
	{"Capital Outlay", category.GroupExpenditures, []string{"Office Equipment"}},
}

func seed(ctx context.Context, db *gorm.DB, opts seedOptions, lg *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if lg == nil {
		lg = logger.L()
	}
	if opts.BCryptCost == 0 {
		opts.BCryptCost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), opts.BCryptCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if opts.Clear {
			if err := clearSeedTables(tx); err != nil {
				return err
			}
			lg.Info("cleared seed tables")
		}

		for _, u := range seedUsers {
			row := userDatamodel.User{
				Email:        u.Email,
				Name:         u.Name,
				PasswordHash: string(hash),
				Role:         string(u.Role),
				Status:       user.StatusActive,
			}
			res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).Create(&row)
			if res.Error != nil {
				return fmt.Errorf("seed user %s: %w", u.Email, res.Error)
			}
			if res.RowsAffected > 0 {
				lg.Info("seeded user", "email", u.Email, "role", u.Role)
			}
		}

		for _, name := range settings.Names {
			row := fundDatamodel.Setting{Name: string(name)}
			if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("seed setting %s: %w", name, err)
			}
		}

		positions := map[string]int{}
		for _, c := range seedCategories {
			positions[c.Group]++
			cat := categoryDatamodel.Category{
				Name:      c.Name,
				GroupName: c.Group,
				Position:  positions[c.Group],
				Status:    category.StatusActive,
			}
			if err := tx.Where("name = ? AND group_name = ?", c.Name, c.Group).FirstOrCreate(&cat).Error; err != nil {
				return fmt.Errorf("seed category %s: %w", c.Name, err)
			}
			for _, subName := range c.Subcategories {
				sub := categoryDatamodel.Subcategory{CategoryID: cat.ID, Name: subName, Status: category.StatusActive}
				if err := tx.Where("category_id = ? AND name = ?", cat.ID, subName).FirstOrCreate(&sub).Error; err != nil {
					return fmt.Errorf("seed subcategory %s: %w", subName, err)
				}
				budget := fundDatamodel.Budget{SubcategoryID: sub.ID, Year: opts.Year}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "subcategory_id"}, {Name: "year"}},
					DoNothing: true,
				}).Create(&budget).Error; err != nil {
					return fmt.Errorf("seed budget for %s: %w", subName, err)
				}
			}
		}
		lg.Info("seed completed", "users", len(seedUsers), "categories", len(seedCategories), "year", opts.Year)
		return nil
	})
}

func clearSeedTables(tx *gorm.DB) error {
	tables := []string{
		"fund_settings_timelines",
		"budgets",
		"sub_categories",
		"categories",
	}
	for _, t := range tables {
		if err := tx.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return nil
}
