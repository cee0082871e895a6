package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	categoryDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/category"
	fundDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/fund"
	"github.com/frahmantamala/barangay-procurement/internal/fund"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FundRepository writes through gorm and serves the history screen through
// sqlx, which owns the hand-written search query.
type FundRepository struct {
	db     *gorm.DB
	reader *sqlx.DB
}

func NewFundRepository(db *gorm.DB, reader *sqlx.DB) *FundRepository {
	return &FundRepository{db: db, reader: reader}
}

func (r *FundRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx fund.TxRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewFundRepository(tx, r.reader))
	})
}

func (r *FundRepository) GetBudget(ctx context.Context, id int64) (*fund.Budget, error) {
	return r.findBudget(r.db.WithContext(ctx), id)
}

func (r *FundRepository) GetBudgetForUpdate(ctx context.Context, id int64) (*fund.Budget, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findBudget(q, id)
}

func (r *FundRepository) findBudget(q *gorm.DB, id int64) (*fund.Budget, error) {
	var model fundDatamodel.Budget
	if err := q.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrBudgetNotFound
		}
		return nil, err
	}
	return fund.BudgetFromDataModel(&model), nil
}

func (r *FundRepository) SaveBudget(ctx context.Context, b *fund.Budget) error {
	updates := map[string]interface{}{
		"proposed_budget": b.ProposedBudget,
		"income":          b.Income,
		"updated_at":      time.Now(),
	}
	for i, col := range fundDatamodel.MonthColumns {
		updates[col] = b.Months[i]
	}
	res := r.db.WithContext(ctx).Model(&fundDatamodel.Budget{}).Where("id = ?", b.ID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrBudgetNotFound
	}
	return nil
}

func (r *FundRepository) AppendTransaction(ctx context.Context, t *fund.Transaction) error {
	model := fundDatamodel.TransactionHistory{
		BudgetID:        t.BudgetID,
		ProcessedBy:     t.ProcessedBy,
		TransactionDate: t.Date,
		Type:            string(t.Type),
		Month:           t.Month,
		TotalAmount:     t.Amount,
		Remarks:         t.Remarks,
	}
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(&model).Error; err != nil {
		return err
	}
	t.ID = model.ID

	if len(t.Files) == 0 {
		return nil
	}
	files := make([]fundDatamodel.TransactionFile, len(t.Files))
	for i, f := range t.Files {
		files[i] = fundDatamodel.TransactionFile{
			TransactionID: model.ID,
			Name:          f.Name,
			Path:          f.Path,
			Size:          f.Size,
			FileType:      f.FileType,
		}
	}
	if err := db.Create(&files).Error; err != nil {
		return err
	}
	for i := range files {
		t.Files[i].ID = files[i].ID
	}
	return nil
}

func (r *FundRepository) EnsureBudget(ctx context.Context, subcategoryID int64, year int) (*fund.Budget, bool, error) {
	db := r.db.WithContext(ctx)
	var model fundDatamodel.Budget
	err := db.Where("subcategory_id = ? AND year = ?", subcategoryID, year).First(&model).Error
	if err == nil {
		return fund.BudgetFromDataModel(&model), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	var count int64
	if err := db.Model(&categoryDatamodel.Subcategory{}).Where("id = ?", subcategoryID).Count(&count).Error; err != nil {
		return nil, false, err
	}
	if count == 0 {
		return nil, false, internal.ErrSubcategoryNotFound
	}

	model = *fund.BudgetToDataModel(fund.NewBudget(subcategoryID, year))
	if err := db.Create(&model).Error; err != nil {
		return nil, false, err
	}
	return fund.BudgetFromDataModel(&model), true, nil
}

func (r *FundRepository) OverviewCategories(ctx context.Context, year int) ([]fund.OverviewCategory, error) {
	db := r.db.WithContext(ctx)
	var cats []categoryDatamodel.Category
	err := db.
		Where("status = ?", "active").
		Preload("Subcategories", func(q *gorm.DB) *gorm.DB {
			return q.Where("status = ?", "active").Order("id ASC")
		}).
		Order("group_name ASC, position ASC").
		Find(&cats).Error
	if err != nil {
		return nil, err
	}

	var subIDs []int64
	for _, c := range cats {
		for _, s := range c.Subcategories {
			subIDs = append(subIDs, s.ID)
		}
	}
	budgets := make(map[int64]*fund.Budget, len(subIDs))
	if len(subIDs) > 0 {
		var models []fundDatamodel.Budget
		if err := db.Where("subcategory_id IN ? AND year = ?", subIDs, year).Find(&models).Error; err != nil {
			return nil, err
		}
		for i := range models {
			budgets[models[i].SubcategoryID] = fund.BudgetFromDataModel(&models[i])
		}
	}

	out := make([]fund.OverviewCategory, len(cats))
	for i, c := range cats {
		oc := fund.OverviewCategory{ID: c.ID, Name: c.Name, GroupName: c.GroupName, Position: c.Position}
		for _, s := range c.Subcategories {
			oc.Subcategories = append(oc.Subcategories, fund.OverviewSubcategory{ID: s.ID, Name: s.Name, Budget: budgets[s.ID]})
		}
		out[i] = oc
	}
	return out, nil
}

const historyFrom = `
FROM fund_transaction_histories h
LEFT JOIN users u ON u.id = h.processed_by
LEFT JOIN budgets b ON b.id = h.budget_id
LEFT JOIN sub_categories s ON s.id = b.subcategory_id`

const historyColumns = `SELECT h.id, h.budget_id, h.processed_by,
	COALESCE(u.name, '') AS processed_by_name,
	COALESCE(s.name, '') AS subcategory_name,
	COALESCE(b.year, 0) AS year,
	h.transaction_date, h.type, h.month, h.total_amount, h.remarks`

type historyRow struct {
	ID              int64           `db:"id"`
	BudgetID        int64           `db:"budget_id"`
	ProcessedBy     int64           `db:"processed_by"`
	ProcessedByName string          `db:"processed_by_name"`
	SubcategoryName string          `db:"subcategory_name"`
	Year            int             `db:"year"`
	TransactionDate time.Time       `db:"transaction_date"`
	Type            string          `db:"type"`
	Month           sql.NullInt64   `db:"month"`
	TotalAmount     decimal.Decimal `db:"total_amount"`
	Remarks         sql.NullString  `db:"remarks"`
}

func (row historyRow) transaction() fund.Transaction {
	t := fund.Transaction{
		ID:              row.ID,
		BudgetID:        row.BudgetID,
		ProcessedBy:     row.ProcessedBy,
		ProcessedByName: row.ProcessedByName,
		SubcategoryName: row.SubcategoryName,
		Year:            row.Year,
		Date:            row.TransactionDate,
		Type:            fund.TransactionType(row.Type),
		Amount:          row.TotalAmount,
		Files:           []fund.TransactionFile{},
	}
	if row.Month.Valid {
		m := int(row.Month.Int64)
		t.Month = &m
	}
	if row.Remarks.Valid {
		s := row.Remarks.String
		t.Remarks = &s
	}
	return t
}

func historyWhere(f fund.HistoryFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.BudgetID > 0 {
		conds = append(conds, "h.budget_id = ?")
		args = append(args, f.BudgetID)
	}
	if f.Type != "" {
		conds = append(conds, "h.type = ?")
		args = append(args, string(f.Type))
	}
	if f.From != nil {
		conds = append(conds, "h.transaction_date >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, "h.transaction_date < ?")
		args = append(args, *f.To)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		conds = append(conds, "(LOWER(COALESCE(h.remarks, '')) LIKE ? OR LOWER(COALESCE(s.name, '')) LIKE ? OR LOWER(COALESCE(u.name, '')) LIKE ?)")
		args = append(args, like, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// SearchTransactions returns one page of history, newest first.
func (r *FundRepository) SearchTransactions(ctx context.Context, f fund.HistoryFilter) ([]fund.Transaction, int64, error) {
	where, args := historyWhere(f)

	var total int64
	if err := r.reader.GetContext(ctx, &total, r.reader.Rebind("SELECT COUNT(*)"+historyFrom+where), args...); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []fund.Transaction{}, 0, nil
	}

	query := historyColumns + historyFrom + where + " ORDER BY h.transaction_date DESC, h.id DESC LIMIT ? OFFSET ?"
	items, err := r.selectHistory(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListTransactions returns the full history of a budget, oldest first.
func (r *FundRepository) ListTransactions(ctx context.Context, budgetID int64) ([]fund.Transaction, error) {
	where, args := historyWhere(fund.HistoryFilter{BudgetID: budgetID})
	return r.selectHistory(ctx, historyColumns+historyFrom+where+" ORDER BY h.transaction_date ASC, h.id ASC", args...)
}

func (r *FundRepository) selectHistory(ctx context.Context, query string, args ...interface{}) ([]fund.Transaction, error) {
	var rows []historyRow
	if err := r.reader.SelectContext(ctx, &rows, r.reader.Rebind(query), args...); err != nil {
		return nil, err
	}
	items := make([]fund.Transaction, len(rows))
	ids := make([]int64, len(rows))
	index := make(map[int64]int, len(rows))
	for i, row := range rows {
		items[i] = row.transaction()
		ids[i] = row.ID
		index[row.ID] = i
	}
	if len(ids) == 0 {
		return items, nil
	}

	files, err := r.filesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		i := index[f.TransactionID]
		items[i].Files = append(items[i].Files, fund.TransactionFile{ID: f.ID, Name: f.Name, Path: f.Path, Size: f.Size, FileType: f.FileType})
	}
	return items, nil
}

type fileRow struct {
	ID            int64  `db:"id"`
	TransactionID int64  `db:"fund_transaction_history_id"`
	Name          string `db:"name"`
	Path          string `db:"path"`
	Size          int64  `db:"size"`
	FileType      string `db:"file_type"`
}

func (r *FundRepository) filesFor(ctx context.Context, transactionIDs []int64) ([]fileRow, error) {
	query, args, err := sqlx.In(`SELECT id, fund_transaction_history_id, name, path, size, file_type
FROM budget_transaction_files WHERE fund_transaction_history_id IN (?) ORDER BY id`, transactionIDs)
	if err != nil {
		return nil, err
	}
	var files []fileRow
	if err := r.reader.SelectContext(ctx, &files, r.reader.Rebind(query), args...); err != nil {
		return nil, err
	}
	return files, nil
}

func (r *FundRepository) GetTransactionFile(ctx context.Context, transactionID, fileID int64) (*fund.TransactionFile, error) {
	var model fundDatamodel.TransactionFile
	err := r.db.WithContext(ctx).
		Where("id = ? AND fund_transaction_history_id = ?", fileID, transactionID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrFileNotFound
		}
		return nil, err
	}
	return &fund.TransactionFile{ID: model.ID, Name: model.Name, Path: model.Path, Size: model.Size, FileType: model.FileType}, nil
}
