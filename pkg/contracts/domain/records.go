package domain

import (
	"fmt"
	"time"
)

// AccountType is the canonical output account taxonomy. Income and expense
// signals are detected during classification but fold into transaction
// types, not account types.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
)

// TransactionType is derived from the sign of the transaction amount.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Account is a normalized financial account produced by transformation.
// Identity for deduplication is NormalizedName plus Type.
type Account struct {
	ID             string      `json:"id"`
	Name           string      `json:"name" validate:"required"`
	NormalizedName string      `json:"normalized_name" validate:"required"`
	Type           AccountType `json:"type" validate:"required,oneof=asset liability"`
	Category       string      `json:"category,omitempty"`
	Confidence     float64     `json:"confidence" validate:"min=0,max=1"`
	SourceRows     []int       `json:"source_rows,omitempty"`
}

// Key returns the deduplication identity key for the account.
func (a Account) Key() string {
	return a.NormalizedName + "|" + string(a.Type)
}

// Transaction is one time-stamped value record referencing an Account in
// the same transformation result. Identity for deduplication is account,
// month-bucketed date, amount and description.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id" validate:"required"`
	Amount      float64         `json:"amount"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category,omitempty"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description,omitempty"`
	SourceRow   int             `json:"source_row"`
	RawValue    string          `json:"raw_value,omitempty"`
}

// Key returns the deduplication identity key for the transaction. Dates
// are bucketed by month so the same statement line imported from two
// exports with day-level drift still collides.
func (t Transaction) Key() string {
	return fmt.Sprintf("%s|%s|%.2f|%s",
		t.AccountID, t.Date.Format("2006-01"), t.Amount, t.Description)
}

// RecordSet groups the accounts and transactions of one import or one
// previously persisted state, as consumed by the incremental engine.
type RecordSet struct {
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
}
