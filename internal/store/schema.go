package store

// SQLiteSchema creates the transactions table. Amounts are TEXT so that
// two-decimal values survive exactly.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    date TEXT NOT NULL,                -- YYYY-MM-DD
    amount TEXT NOT NULL,              -- signed, two decimals
    description TEXT NOT NULL,
    account_id TEXT NOT NULL,
    account_type TEXT NOT NULL,
    bank_source TEXT NOT NULL,
    source_file TEXT NOT NULL,
    balance TEXT,
    original_category TEXT,
    category TEXT,
    transaction_type TEXT NOT NULL,
    merchant_name TEXT,
    location TEXT,
    foreign_amount TEXT,
    foreign_currency TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_date
    ON transactions(date);

CREATE INDEX IF NOT EXISTS idx_transactions_bank_account
    ON transactions(bank_source, account_id);

CREATE INDEX IF NOT EXISTS idx_transactions_category
    ON transactions(category);
`

// PostgresSchema is the server-side equivalent of SQLiteSchema.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    date DATE NOT NULL,
    amount NUMERIC(15,2) NOT NULL,
    description TEXT NOT NULL,
    account_id TEXT NOT NULL,
    account_type TEXT NOT NULL,
    bank_source TEXT NOT NULL,
    source_file TEXT NOT NULL,
    balance NUMERIC(15,2),
    original_category TEXT,
    category TEXT,
    transaction_type TEXT NOT NULL,
    merchant_name TEXT,
    location TEXT,
    foreign_amount NUMERIC(15,2),
    foreign_currency TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transactions_date
    ON transactions(date);

CREATE INDEX IF NOT EXISTS idx_transactions_bank_account
    ON transactions(bank_source, account_id);

CREATE INDEX IF NOT EXISTS idx_transactions_category
    ON transactions(category);
`
