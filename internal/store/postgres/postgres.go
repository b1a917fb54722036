package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"atenea/backend/internal/domain"
	"atenea/backend/internal/store"
	"atenea/backend/internal/xid"
)

const dateLayout = "2006-01-02"

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const saleColumns = `id, date, transaction_id, product_name, quantity, price, list_price, unit_cost,
	payment_method, payments, status, expires_at, size, inventory_id, client_id, issued_voucher, owner,
	created_at, updated_at`

func (s *Store) ListSales(ctx context.Context) ([]domain.SaleLine, error) {
	return s.querySales(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY date DESC, transaction_id, created_at, id`)
}

func (s *Store) ListSalesOnDate(ctx context.Context, date string) ([]domain.SaleLine, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, store.ErrInvalidTransaction
	}
	return s.querySales(ctx, `SELECT `+saleColumns+` FROM sales WHERE date = $1 ORDER BY transaction_id, created_at, id`, day)
}

func (s *Store) ListSalesByTransaction(ctx context.Context, transactionID string) ([]domain.SaleLine, error) {
	return s.querySales(ctx, `SELECT `+saleColumns+` FROM sales WHERE transaction_id = $1 ORDER BY created_at, id`, transactionID)
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]domain.SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.SaleLine, 0, 64)
	for rows.Next() {
		var (
			line        domain.SaleLine
			day         time.Time
			payments    []byte
			expiresAt   sql.NullTime
			inventoryID sql.NullString
			clientID    sql.NullString
		)
		if err := rows.Scan(
			&line.ID, &day, &line.TransactionID, &line.ProductName, &line.Quantity, &line.Price,
			&line.ListPrice, &line.UnitCost, &line.PaymentMethod, &payments, &line.Status, &expiresAt,
			&line.Size, &inventoryID, &clientID, &line.IssuedVoucher, &line.Owner, &line.CreatedAt, &line.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payments, &line.Payments); err != nil {
			return nil, err
		}
		line.Date = day.Format(dateLayout)
		if expiresAt.Valid {
			at := expiresAt.Time.UTC()
			line.ExpiresAt = &at
		}
		line.InventoryID = inventoryID.String
		line.ClientID = clientID.String
		line.CreatedAt = line.CreatedAt.UTC()
		line.UpdatedAt = line.UpdatedAt.UTC()
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// InsertSaleLines writes every line of one checkout in a single database
// transaction.
func (s *Store) InsertSaleLines(ctx context.Context, lines []domain.SaleLine) error {
	if len(lines) == 0 {
		return store.ErrInvalidTransaction
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, line := range lines {
		if line.TransactionID == "" || line.ProductName == "" || line.Quantity < 1 {
			return store.ErrInvalidTransaction
		}
		day, err := time.Parse(dateLayout, line.Date)
		if err != nil {
			return store.ErrInvalidTransaction
		}
		payments, err := json.Marshal(line.Payments)
		if err != nil {
			return err
		}
		if line.ID == "" {
			line.ID = xid.New("sale")
		}
		if line.CreatedAt.IsZero() {
			line.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			line.ID, day, line.TransactionID, line.ProductName, line.Quantity, line.Price,
			line.ListPrice, line.UnitCost, string(line.PaymentMethod), payments, line.Status,
			nullTime(line.ExpiresAt), line.Size, nullIfEmpty(line.InventoryID), nullIfEmpty(line.ClientID),
			line.IssuedVoucher, line.Owner, line.CreatedAt, now,
		); err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicate
			}
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) DeleteSalesByTransaction(ctx context.Context, transactionID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE transaction_id = $1`, transactionID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, store.ErrNotFound
	}
	return int(affected), nil
}

func (s *Store) CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	client.Phone = strings.TrimSpace(client.Phone)
	if client.Name == "" || client.Phone == "" {
		return nil, store.ErrInvalidTransaction
	}
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, phone, email, owner, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, client.ID, client.Name, client.Phone, nullIfEmpty(client.Email), client.Owner, client.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &client, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var (
		client domain.Client
		email  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, owner, created_at
		FROM clients
		WHERE id = $1
	`, id).Scan(&client.ID, &client.Name, &client.Phone, &email, &client.Owner, &client.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	client.Email = email.String
	client.CreatedAt = client.CreatedAt.UTC()
	return &client, nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, owner, created_at
		FROM clients
		ORDER BY lower(name)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		var (
			client domain.Client
			email  sql.NullString
		)
		if err := rows.Scan(&client.ID, &client.Name, &client.Phone, &email, &client.Owner, &client.CreatedAt); err != nil {
			return nil, err
		}
		client.Email = email.String
		client.CreatedAt = client.CreatedAt.UTC()
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clients, nil
}

const inventoryColumns = `id, name, category, subcategory, material, cost_price, sale_price, stock, owner, updated_at`

func (s *Store) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+inventoryColumns+` FROM inventory_items ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 128)
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE id = $1`, id)
	item, err := scanInventoryItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" || item.Category == "" || item.SalePrice < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if item.ID == "" {
		item.ID = xid.New("inv")
	}
	if item.Stock == nil {
		item.Stock = map[string]int{}
	}
	stock, err := json.Marshal(item.Stock)
	if err != nil {
		return nil, err
	}
	item.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (`+inventoryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, item.ID, item.Name, item.Category, nullIfEmpty(item.Subcategory), nullIfEmpty(item.Material),
		item.CostPrice, item.SalePrice, stock, item.Owner, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &item, nil
}

// AdjustStock moves one size counter by delta in a single UPDATE so that
// concurrent checkouts on the same item cannot lose each other's writes.
func (s *Store) AdjustStock(ctx context.Context, itemID string, size string, delta int) (int, error) {
	if size == "" {
		return 0, store.ErrInvalidTransaction
	}
	var qty int
	err := s.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET stock = jsonb_set(stock, ARRAY[$2::text], to_jsonb(COALESCE((stock->>$2::text)::int, 0) + $3::int), true),
		    updated_at = now()
		WHERE id = $1
		RETURNING (stock->>$2::text)::int
	`, itemID, size, delta).Scan(&qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return qty, nil
}

const voucherColumns = `id, code, initial_amount, current_amount, status, expires_at, owner, created_at`

func (s *Store) CreateVoucher(ctx context.Context, voucher domain.Voucher) (*domain.Voucher, error) {
	if voucher.Code == "" || voucher.InitialAmount < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if voucher.ID == "" {
		voucher.ID = xid.New("vale")
	}
	if voucher.Status == "" {
		voucher.Status = domain.VoucherStatusActive
	}
	if voucher.CreatedAt.IsZero() {
		voucher.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vouchers (`+voucherColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, voucher.ID, voucher.Code, voucher.InitialAmount, voucher.CurrentAmount, voucher.Status,
		voucher.ExpiresAt, voucher.Owner, voucher.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &voucher, nil
}

func (s *Store) GetVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code)
	voucher, err := scanVoucher(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return voucher, nil
}

func (s *Store) ListVouchers(ctx context.Context, status string) ([]domain.Voucher, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+voucherColumns+`
		FROM vouchers
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vouchers := make([]domain.Voucher, 0, 32)
	for rows.Next() {
		voucher, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, *voucher)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vouchers, nil
}

// MarkVoucherUsed consumes an active, unexpired voucher in full.
func (s *Store) MarkVoucherUsed(ctx context.Context, code string) (*domain.Voucher, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE vouchers
		SET status = $2, current_amount = 0
		WHERE code = $1 AND status = $3 AND expires_at > now()
		RETURNING `+voucherColumns, code, domain.VoucherStatusUsed, domain.VoucherStatusActive)
	voucher, err := scanVoucher(row)
	if err == nil {
		return voucher, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, lookupErr := s.GetVoucherByCode(ctx, code); lookupErr != nil {
		return nil, lookupErr
	}
	return nil, store.ErrVoucherUnavailable
}

// VoidVoucher withdraws an active voucher without redeeming it.
func (s *Store) VoidVoucher(ctx context.Context, code string) (*domain.Voucher, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE vouchers
		SET status = $2, current_amount = 0
		WHERE code = $1 AND status = $3
		RETURNING `+voucherColumns, code, domain.VoucherStatusExpired, domain.VoucherStatusActive)
	voucher, err := scanVoucher(row)
	if err == nil {
		return voucher, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, lookupErr := s.GetVoucherByCode(ctx, code); lookupErr != nil {
		return nil, lookupErr
	}
	return nil, store.ErrVoucherUnavailable
}

func (s *Store) ExpireVouchers(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vouchers
		SET status = $1
		WHERE status = $2 AND expires_at <= $3
	`, domain.VoucherStatusExpired, domain.VoucherStatusActive, now)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = domain.RoleAccountant
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 4)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInventoryItem(row rowScanner) (*domain.InventoryItem, error) {
	var (
		item        domain.InventoryItem
		subcategory sql.NullString
		material    sql.NullString
		stock       []byte
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Category, &subcategory, &material,
		&item.CostPrice, &item.SalePrice, &stock, &item.Owner, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stock, &item.Stock); err != nil {
		return nil, err
	}
	item.Subcategory = subcategory.String
	item.Material = material.String
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func scanVoucher(row rowScanner) (*domain.Voucher, error) {
	var voucher domain.Voucher
	if err := row.Scan(&voucher.ID, &voucher.Code, &voucher.InitialAmount, &voucher.CurrentAmount,
		&voucher.Status, &voucher.ExpiresAt, &voucher.Owner, &voucher.CreatedAt); err != nil {
		return nil, err
	}
	voucher.ExpiresAt = voucher.ExpiresAt.UTC()
	voucher.CreatedAt = voucher.CreatedAt.UTC()
	return &voucher, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
