package datamodel

import (
	"github.com/frahmantamala/barangay-procurement/internal/core/datamodel/category"
	"github.com/frahmantamala/barangay-procurement/internal/core/datamodel/fund"
	"github.com/frahmantamala/barangay-procurement/internal/core/datamodel/request"
	"github.com/frahmantamala/barangay-procurement/internal/core/datamodel/user"
	"gorm.io/gorm"
)

// Models lists every persisted table; the SQL migrations are authoritative in
// production, AutoMigrate is used for the sqlite test databases.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&category.Category{},
		&category.Subcategory{},
		&fund.Budget{},
		&fund.TransactionHistory{},
		&fund.TransactionFile{},
		&fund.Setting{},
		&fund.SettingTimeline{},
		&request.Request{},
		&request.Collaborator{},
		&request.File{},
		&request.Timeline{},
		&request.Quotation{},
		&request.Company{},
		&request.QuotationDetail{},
		&request.QuotationItem{},
		&request.PurchaseRequest{},
		&request.PurchaseOrder{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
