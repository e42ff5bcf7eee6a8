package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"printpos/internal/domain"
	"printpos/internal/store"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

const profileRowID = "profile"

type Options struct {
	Dialect Dialect
	DSN     string
	// Migrate applies the embedded schema migrations on open.
	Migrate bool
	// Seed fills an empty catalogue and a missing shop profile with defaults.
	Seed   bool
	Logger *slog.Logger
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dialect != SQLite && opts.Dialect != Postgres {
		return nil, errors.Errorf("unsupported dialect %q", opts.Dialect)
	}
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, errors.New("empty database dsn")
	}

	db, err := sql.Open(driverName(opts.Dialect), opts.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", opts.Dialect)
	}

	switch opts.Dialect {
	case SQLite:
		// One writer at a time avoids SQLITE_BUSY and keeps :memory: databases
		// on a single connection.
		db.SetMaxOpenConns(1)
	case Postgres:
		db.SetMaxIdleConns(4)
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s", opts.Dialect)
	}

	s := &Store{db: db, dialect: opts.Dialect, logger: opts.Logger}

	if opts.Dialect == SQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "set busy timeout")
		}
	}

	if opts.Migrate {
		if err := Migrate(ctx, db, opts.Dialect, opts.DSN, opts.Logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if opts.Seed {
		if err := s.seed(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return errors.Wrap(err, "count products")
	}

	writes := make([]store.Write, 0, 8)
	if count == 0 {
		for _, p := range domain.SeedProducts() {
			writes = append(writes, store.InsertProduct(p))
		}
	}
	if _, err := s.GetProfile(ctx); errors.Is(err, store.ErrNotFound) {
		writes = append(writes, store.UpsertProfile(domain.DefaultShopProfile()))
	} else if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	s.logger.Info("seeding ledger", "products", count == 0, "writes", len(writes))
	return s.Commit(ctx, writes)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, name, category, price_cents, cost_cents, stock, min_stock
		FROM products
		ORDER BY category, name, id
	`))
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.CostCents, &p.Stock, &p.MinStock); err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, category, price_cents, cost_cents, stock, min_stock
		FROM products
		WHERE id = ?
	`), id).Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.CostCents, &p.Stock, &p.MinStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	return &p, nil
}

func (s *Store) PutProduct(ctx context.Context, product domain.Product) error {
	return s.Commit(ctx, []store.Write{store.UpsertProduct(product)})
}

const saleColumns = `id, created_at, customer_name, customer_contact, items, subtotal_cents, discount_cents,
	total_cents, paid_cents, change_cents, payment_method, payment_status, was_credit, settled_at`

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list sales")
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list sales")
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+saleColumns+` FROM sales WHERE id = ?`), id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) PutSale(ctx context.Context, sale domain.Sale) error {
	return s.Commit(ctx, []store.Write{store.UpsertSale(sale)})
}

func (s *Store) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, supplier, items, total_cents
		FROM purchases
		ORDER BY id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list purchases")
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 64)
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list purchases")
	}
	return purchases, nil
}

func (s *Store) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, created_at, supplier, items, total_cents
		FROM purchases
		WHERE id = ?
	`), id)
	purchase, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &purchase, nil
}

func (s *Store) PutPurchase(ctx context.Context, purchase domain.Purchase) error {
	return s.Commit(ctx, []store.Write{{Op: store.OpUpsert, Purchase: &purchase}})
}

func (s *Store) GetProfile(ctx context.Context) (*domain.ShopProfile, error) {
	var p domain.ShopProfile
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT name, address, phone, email, website, footer_note, logo
		FROM shop_profile
		WHERE id = ?
	`), profileRowID).Scan(&p.Name, &p.Address, &p.Phone, &p.Email, &p.Website, &p.FooterNote, &p.Logo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "get shop profile")
	}
	return &p, nil
}

func (s *Store) PutProfile(ctx context.Context, profile domain.ShopProfile) error {
	return s.Commit(ctx, []store.Write{store.UpsertProfile(profile)})
}

// Commit applies writes inside one database transaction. The first failing
// write rolls the whole batch back.
func (s *Store) Commit(ctx context.Context, writes []store.Write) error {
	if len(writes) == 0 {
		return nil
	}
	for i, w := range writes {
		if err := w.Validate(); err != nil {
			return errors.WithMessagef(err, "write %d", i)
		}
	}

	tx, err := s.db.BeginTx(ctx, s.txOptions())
	if err != nil {
		return errors.Wrap(err, "begin commit")
	}
	defer func() { _ = tx.Rollback() }()

	for i, w := range writes {
		if err := s.apply(ctx, tx, w); err != nil {
			return errors.WithMessagef(err, "write %d (%s %s)", i, w.Op, w.Collection())
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func (s *Store) apply(ctx context.Context, q querier, w store.Write) error {
	switch {
	case w.Adjustment != nil:
		return s.adjustStock(ctx, q, *w.Adjustment)
	case w.Product != nil:
		return s.writeProduct(ctx, q, w.Op, *w.Product)
	case w.Sale != nil:
		return s.writeSale(ctx, q, w.Op, *w.Sale)
	case w.Purchase != nil:
		return s.writePurchase(ctx, q, w.Op, *w.Purchase)
	case w.Profile != nil:
		return s.writeProfile(ctx, q, *w.Profile)
	}
	return store.ErrInvalidTransaction
}

func (s *Store) adjustStock(ctx context.Context, q querier, adj domain.StockAdjustment) error {
	var cost any
	if adj.UnitCostCents != nil {
		cost = *adj.UnitCostCents
	}
	res, err := q.ExecContext(ctx, s.rebind(`
		UPDATE products
		SET stock = stock + ?, cost_cents = COALESCE(?, cost_cents)
		WHERE id = ?
	`), adj.Delta, cost, adj.ProductID)
	if err != nil {
		return errors.Wrapf(err, "adjust product %s", adj.ProductID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "adjust rows affected")
	}
	if affected == 0 {
		return errors.WithMessagef(store.ErrNotFound, "product %s", adj.ProductID)
	}
	return nil
}

func (s *Store) writeProduct(ctx context.Context, q querier, op store.Op, p domain.Product) error {
	query := `
		INSERT INTO products (id, name, category, price_cents, cost_cents, stock, min_stock)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if op == store.OpUpsert {
		query += `
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			price_cents = excluded.price_cents,
			cost_cents = excluded.cost_cents,
			stock = excluded.stock,
			min_stock = excluded.min_stock
		`
	}
	_, err := q.ExecContext(ctx, s.rebind(query), p.ID, p.Name, p.Category, p.PriceCents, p.CostCents, p.Stock, p.MinStock)
	return s.mapWriteErr(err, "product", p.ID)
}

func (s *Store) writeSale(ctx context.Context, q querier, op store.Op, sale domain.Sale) error {
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return errors.Wrap(err, "encode sale items")
	}

	query := `INSERT INTO sales (` + saleColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if op == store.OpUpsert {
		query += `
		ON CONFLICT (id) DO UPDATE SET
			created_at = excluded.created_at,
			customer_name = excluded.customer_name,
			customer_contact = excluded.customer_contact,
			items = excluded.items,
			subtotal_cents = excluded.subtotal_cents,
			discount_cents = excluded.discount_cents,
			total_cents = excluded.total_cents,
			was_credit = excluded.was_credit,
			payment_method = excluded.payment_method,
			payment_status = excluded.payment_status,
			paid_cents = excluded.paid_cents,
			change_cents = excluded.change_cents,
			settled_at = excluded.settled_at
		`
	}
	_, err = q.ExecContext(ctx, s.rebind(query),
		sale.ID, formatTime(sale.CreatedAt), sale.CustomerName, sale.CustomerContact, string(items),
		sale.SubtotalCents, sale.DiscountCents, sale.TotalCents, sale.PaidCents, sale.ChangeCents,
		sale.PaymentMethod, sale.PaymentStatus, sale.WasCredit, nullTime(sale.SettledAt),
	)
	return s.mapWriteErr(err, "sale", sale.ID)
}

func (s *Store) writePurchase(ctx context.Context, q querier, op store.Op, p domain.Purchase) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return errors.Wrap(err, "encode purchase items")
	}

	query := `
		INSERT INTO purchases (id, created_at, supplier, items, total_cents)
		VALUES (?, ?, ?, ?, ?)
	`
	if op == store.OpUpsert {
		query += `
		ON CONFLICT (id) DO UPDATE SET
			supplier = excluded.supplier,
			items = excluded.items,
			total_cents = excluded.total_cents
		`
	}
	_, err = q.ExecContext(ctx, s.rebind(query), p.ID, formatTime(p.CreatedAt), p.Supplier, string(items), p.TotalCents)
	return s.mapWriteErr(err, "purchase", p.ID)
}

func (s *Store) writeProfile(ctx context.Context, q querier, p domain.ShopProfile) error {
	_, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO shop_profile (id, name, address, phone, email, website, footer_note, logo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			phone = excluded.phone,
			email = excluded.email,
			website = excluded.website,
			footer_note = excluded.footer_note,
			logo = excluded.logo
	`), profileRowID, p.Name, p.Address, p.Phone, p.Email, p.Website, p.FooterNote, p.Logo)
	return s.mapWriteErr(err, "profile", profileRowID)
}

func (s *Store) mapWriteErr(err error, kind string, id string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return errors.WithMessagef(store.ErrConflict, "%s %s", kind, id)
	}
	return errors.Wrapf(err, "write %s %s", kind, id)
}

func (s *Store) txOptions() *sql.TxOptions {
	if s.dialect == Postgres {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// rebind rewrites ? placeholders into the $n form PostgreSQL expects.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var (
		sale      domain.Sale
		createdAt string
		items     string
		settledAt sql.NullString
	)
	err := row.Scan(
		&sale.ID, &createdAt, &sale.CustomerName, &sale.CustomerContact, &items,
		&sale.SubtotalCents, &sale.DiscountCents, &sale.TotalCents, &sale.PaidCents, &sale.ChangeCents,
		&sale.PaymentMethod, &sale.PaymentStatus, &sale.WasCredit, &settledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, err
		}
		return domain.Sale{}, errors.Wrap(err, "scan sale")
	}

	if sale.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Sale{}, errors.Wrapf(err, "sale %s created_at", sale.ID)
	}
	if settledAt.Valid && settledAt.String != "" {
		at, err := parseTime(settledAt.String)
		if err != nil {
			return domain.Sale{}, errors.Wrapf(err, "sale %s settled_at", sale.ID)
		}
		sale.SettledAt = &at
	}
	if err := json.Unmarshal([]byte(items), &sale.Items); err != nil {
		return domain.Sale{}, errors.Wrapf(err, "sale %s items", sale.ID)
	}
	return sale, nil
}

func scanPurchase(row rowScanner) (domain.Purchase, error) {
	var (
		p         domain.Purchase
		createdAt string
		items     string
	)
	if err := row.Scan(&p.ID, &createdAt, &p.Supplier, &items, &p.TotalCents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Purchase{}, err
		}
		return domain.Purchase{}, errors.Wrap(err, "scan purchase")
	}

	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Purchase{}, errors.Wrapf(err, "purchase %s created_at", p.ID)
	}
	if err := json.Unmarshal([]byte(items), &p.Items); err != nil {
		return domain.Purchase{}, errors.Wrapf(err, "purchase %s items", p.ID)
	}
	return p, nil
}

func driverName(d Dialect) string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return formatTime(*val)
}
