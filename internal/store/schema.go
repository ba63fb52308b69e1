package store

// CreateRecordsTableSQL creates the records table. seq preserves creation
// order independently of clock resolution.
const CreateRecordsTableSQL = `
CREATE TABLE IF NOT EXISTS records (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT,
    price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
    quantity INTEGER NOT NULL CHECK (quantity >= 0),
    category TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`

// CreateReturnsTableSQL creates the returns table. Returns are deleted with
// their record.
const CreateReturnsTableSQL = `
CREATE TABLE IF NOT EXISTS returns (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    product_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    reason TEXT NOT NULL,
    returned_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
)`

// CreateRecordsIndexesSQL creates secondary indexes.
var CreateRecordsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_records_name ON records(name)`,
	`CREATE INDEX IF NOT EXISTS idx_records_category ON records(category)`,
	`CREATE INDEX IF NOT EXISTS idx_returns_product ON returns(product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_returns_returned_at ON returns(returned_at)`,
}

const recordColumns = `id, name, description, price_cents, quantity, category, created_at, updated_at`

const returnDetailSelect = `
SELECT d.id, d.product_id, d.quantity, d.reason, d.returned_at, d.created_at, p.name, p.category
FROM returns d
JOIN records p ON p.id = d.product_id`
