package transform

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"finsheet/internal/analyzer"
	"finsheet/internal/errors"
	"finsheet/pkg/contracts/domain"
)

// Result is the outcome of one transformation pass. Invalid items are
// retained with their validation errors so callers can report exactly
// what was dropped and why.
type Result struct {
	Accounts     []domain.Account
	Transactions []domain.Transaction
	Items        []*Item
	Statistics   domain.ImportStatistics
	Errors       []*errors.ImportError
	Warnings     []string
}

// generate turns the enriched items into Account and Transaction records.
// Accounts are grouped by normalized name and type; each valid item
// yields one transaction per value it carries.
func generate(items []*Item, kind domain.MappingKind, refYear int) *Result {
	result := &Result{Items: items}
	result.Statistics.TotalRows = len(items)

	accounts := make(map[string]*domain.Account)
	var order []string

	for _, item := range items {
		if len(item.ValidationErrors) > 0 {
			result.Statistics.InvalidItems++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d skipped: %s", item.Row, strings.Join(item.ValidationErrors, "; ")))
			continue
		}
		result.Statistics.ValidItems++

		normalized := NormalizeName(item.AccountName)
		key := normalized + "|" + string(item.AccountType)
		account, ok := accounts[key]
		if !ok {
			account = &domain.Account{
				ID:             uuid.New().String(),
				Name:           item.AccountName,
				NormalizedName: normalized,
				Type:           item.AccountType,
				Category:       item.Category,
				Confidence:     item.Confidence,
			}
			accounts[key] = account
			order = append(order, key)
		}
		account.SourceRows = append(account.SourceRows, item.Row)
		if item.Confidence > account.Confidence {
			account.Confidence = item.Confidence
		}
		if account.Category == "" && item.Category != "" {
			account.Category = item.Category
		}

		switch kind {
		case domain.MappingSingle:
			result.Transactions = append(result.Transactions,
				singleTransaction(item, account.ID))
		case domain.MappingMonthly:
			result.Transactions = append(result.Transactions,
				monthlyTransactions(item, account.ID, refYear)...)
		}
	}

	for _, key := range order {
		result.Accounts = append(result.Accounts, *accounts[key])
	}
	result.Statistics.AccountsCreated = len(result.Accounts)
	result.Statistics.TransactionsCreated = len(result.Transactions)

	checkConsistency(result)
	return result
}

func singleTransaction(item *Item, accountID string) domain.Transaction {
	return domain.Transaction{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Amount:      item.Value,
		Date:        item.Date,
		Category:    item.Category,
		Type:        transactionType(item.Value),
		Description: item.AccountName,
		SourceRow:   item.Row,
		RawValue:    analyzer.CellString(item.RawValue),
	}
}

// monthlyTransactions emits one transaction per populated month, ordered
// by calendar month so output is deterministic regardless of map
// iteration order.
func monthlyTransactions(item *Item, accountID string, refYear int) []domain.Transaction {
	months := make([]time.Month, 0, len(item.Monthly))
	for month := range item.Monthly {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

	txns := make([]domain.Transaction, 0, len(months))
	for _, month := range months {
		amount := item.Monthly[month]
		txns = append(txns, domain.Transaction{
			ID:          uuid.New().String(),
			AccountID:   accountID,
			Amount:      amount,
			Date:        time.Date(refYear, month, 1, 0, 0, 0, 0, time.UTC),
			Type:        transactionType(amount),
			Description: item.AccountName,
			SourceRow:   item.Row,
			RawValue:    analyzer.CellString(item.MonthlyRaw[month]),
		})
	}
	return txns
}

func transactionType(amount float64) domain.TransactionType {
	if amount < 0 {
		return domain.TransactionExpense
	}
	return domain.TransactionIncome
}

// checkConsistency verifies every transaction references an account in
// the same result. An orphan marks the whole result inconsistent rather
// than being silently dropped.
func checkConsistency(result *Result) {
	ids := make(map[string]bool, len(result.Accounts))
	for _, account := range result.Accounts {
		ids[account.ID] = true
	}
	for _, txn := range result.Transactions {
		if !ids[txn.AccountID] {
			result.Errors = append(result.Errors, errors.NewConsistency(
				fmt.Sprintf("transaction from row %d references unknown account %s",
					txn.SourceRow, txn.AccountID)))
		}
	}
}
