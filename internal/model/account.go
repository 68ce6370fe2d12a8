package model

import "fmt"

// AccountType classifies the bank account a transaction came from.
type AccountType string

const (
	AccountTypeCreditCard  AccountType = "credit_card"
	AccountTypeSavings     AccountType = "savings"
	AccountTypeTransaction AccountType = "transaction"
	AccountTypeLoan        AccountType = "loan"
	AccountTypeUnknown     AccountType = "unknown"
)

// ParseAccountType converts a stored account type back to an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(s); t {
	case AccountTypeCreditCard, AccountTypeSavings, AccountTypeTransaction, AccountTypeLoan, AccountTypeUnknown:
		return t, nil
	}
	return "", fmt.Errorf("unknown account type %q", s)
}

// TransactionType describes which way money moved.
type TransactionType string

const (
	TypeDebit    TransactionType = "debit"    // money out
	TypeCredit   TransactionType = "credit"   // money in
	TypeTransfer TransactionType = "transfer" // between own accounts
)

// ParseTransactionType converts a stored transaction type back to a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(s); t {
	case TypeDebit, TypeCredit, TypeTransfer:
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}
