package memory

import (
	"context"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"atenea/backend/internal/domain"
	"atenea/backend/internal/store"
	"atenea/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	sales           []domain.SaleLine
	clientsByID     map[string]domain.Client
	inventoryByID   map[string]domain.InventoryItem
	vouchersByCode  map[string]domain.Voucher
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_OWNER_PASSWORD and SEED_ACCOUNTANT_PASSWORD; the fallbacks are only
// meant for local runs without DATABASE_URL.
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	accountantPwd := envOr("SEED_ACCOUNTANT_PASSWORD", "accountant123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_ACCOUNTANT_PASSWORD") == "" {
		zap.L().Warn("memory store is using default dev credentials",
			zap.String("override", "SEED_OWNER_PASSWORD, SEED_ACCOUNTANT_PASSWORD"))
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, domain.RoleOwner},
		{"accountant", accountantPwd, domain.RoleAccountant},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			zap.L().Fatal("hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		clientsByID:     make(map[string]domain.Client),
		inventoryByID:   make(map[string]domain.InventoryItem),
		vouchersByCode:  make(map[string]domain.Voucher),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with demo inventory and the two seed accounts.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, item := range []domain.InventoryItem{
		{ID: "inv-remera-lino", Name: "Remera lino", Category: "Remeras", Material: "Lino", CostPrice: 2200, SalePrice: 5000, Stock: map[string]int{"S": 4, "M": 6, "L": 3}},
		{ID: "inv-jean-recto", Name: "Jean recto", Category: "Pantalones", Subcategory: "Jeans", Material: "Denim", CostPrice: 6000, SalePrice: 12000, Stock: map[string]int{"38": 2, "40": 3, "42": 2}},
		{ID: "inv-buzo-frisa", Name: "Buzo frisa", Category: "Abrigos", Material: "Algodon", CostPrice: 4000, SalePrice: 8000, Stock: map[string]int{"U": 5}},
		{ID: "inv-pollera-plisada", Name: "Pollera plisada", Category: "Polleras", Material: "Poliester", CostPrice: 3500, SalePrice: 9950, Stock: map[string]int{"S": 2, "M": 2}},
	} {
		item.Owner = "owner"
		item.UpdatedAt = now
		s.inventoryByID[item.ID] = item
	}
	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) ListSales(_ context.Context) ([]domain.SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SaleLine, 0, len(s.sales))
	for _, line := range s.sales {
		out = append(out, cloneLine(line))
	}
	return out, nil
}

func (s *Store) ListSalesOnDate(_ context.Context, date string) ([]domain.SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SaleLine, 0, 16)
	for _, line := range s.sales {
		if line.Date == date {
			out = append(out, cloneLine(line))
		}
	}
	return out, nil
}

func (s *Store) ListSalesByTransaction(_ context.Context, transactionID string) ([]domain.SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SaleLine, 0, 8)
	for _, line := range s.sales {
		if line.TransactionID == transactionID {
			out = append(out, cloneLine(line))
		}
	}
	return out, nil
}

func (s *Store) InsertSaleLines(_ context.Context, lines []domain.SaleLine) error {
	if len(lines) == 0 {
		return store.ErrInvalidTransaction
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, line := range lines {
		if line.TransactionID == "" || line.ProductName == "" || line.Quantity < 1 {
			return store.ErrInvalidTransaction
		}
	}
	for _, line := range lines {
		if line.ID == "" {
			line.ID = xid.New("sale")
		}
		if line.CreatedAt.IsZero() {
			line.CreatedAt = now
		}
		line.UpdatedAt = now
		s.sales = append(s.sales, cloneLine(line))
	}
	return nil
}

func (s *Store) DeleteSalesByTransaction(_ context.Context, transactionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.sales)
	s.sales = slices.DeleteFunc(s.sales, func(line domain.SaleLine) bool {
		return line.TransactionID == transactionID
	})
	deleted := before - len(s.sales)
	if deleted == 0 {
		return 0, store.ErrNotFound
	}
	return deleted, nil
}

func (s *Store) CreateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	client.Phone = strings.TrimSpace(client.Phone)
	if client.Name == "" || client.Phone == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if _, exists := s.clientsByID[client.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	s.clientsByID[client.ID] = client
	created := client
	return &created, nil
}

func (s *Store) GetClient(_ context.Context, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clientsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &client, nil
}

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := slices.Collect(maps.Values(s.clientsByID))
	slices.SortFunc(clients, func(a, b domain.Client) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return clients, nil
}

func (s *Store) ListInventory(_ context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.inventoryByID))
	for _, item := range s.inventoryByID {
		items = append(items, cloneItem(item))
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return items, nil
}

func (s *Store) GetInventoryItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.inventoryByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneItem(item)
	return &copied, nil
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" || item.Category == "" || item.SalePrice < 1 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.inventoryByID {
		if strings.EqualFold(existing.Name, item.Name) {
			return nil, store.ErrDuplicate
		}
	}
	if item.ID == "" {
		item.ID = xid.New("inv")
	}
	if item.Stock == nil {
		item.Stock = map[string]int{}
	}
	item.UpdatedAt = time.Now().UTC()
	item = cloneItem(item)
	s.inventoryByID[item.ID] = item
	created := cloneItem(item)
	return &created, nil
}

func (s *Store) AdjustStock(_ context.Context, itemID string, size string, delta int) (int, error) {
	if size == "" {
		return 0, store.ErrInvalidTransaction
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.inventoryByID[itemID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if item.Stock == nil {
		item.Stock = map[string]int{}
	}
	item.Stock[size] += delta
	item.UpdatedAt = time.Now().UTC()
	s.inventoryByID[itemID] = item
	return item.Stock[size], nil
}

func (s *Store) CreateVoucher(_ context.Context, voucher domain.Voucher) (*domain.Voucher, error) {
	if voucher.Code == "" || voucher.InitialAmount < 1 {
		return nil, store.ErrInvalidTransaction
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.vouchersByCode[voucher.Code]; exists {
		return nil, store.ErrDuplicate
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
	s.vouchersByCode[voucher.Code] = voucher
	created := voucher
	return &created, nil
}

func (s *Store) GetVoucherByCode(_ context.Context, code string) (*domain.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	voucher, ok := s.vouchersByCode[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &voucher, nil
}

func (s *Store) ListVouchers(_ context.Context, status string) ([]domain.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Voucher, 0, len(s.vouchersByCode))
	for _, voucher := range s.vouchersByCode {
		if status != "" && voucher.Status != status {
			continue
		}
		out = append(out, voucher)
	}
	slices.SortFunc(out, func(a, b domain.Voucher) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Store) MarkVoucherUsed(_ context.Context, code string) (*domain.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	voucher, ok := s.vouchersByCode[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	if voucher.Status != domain.VoucherStatusActive || !voucher.ExpiresAt.After(time.Now().UTC()) {
		return nil, store.ErrVoucherUnavailable
	}
	voucher.Status = domain.VoucherStatusUsed
	voucher.CurrentAmount = 0
	s.vouchersByCode[code] = voucher
	return &voucher, nil
}

// VoidVoucher withdraws an active voucher without redeeming it.
func (s *Store) VoidVoucher(_ context.Context, code string) (*domain.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	voucher, ok := s.vouchersByCode[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	if voucher.Status != domain.VoucherStatusActive {
		return nil, store.ErrVoucherUnavailable
	}
	voucher.Status = domain.VoucherStatusExpired
	voucher.CurrentAmount = 0
	s.vouchersByCode[code] = voucher
	return &voucher, nil
}

func (s *Store) ExpireVouchers(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for code, voucher := range s.vouchersByCode {
		if voucher.Status != domain.VoucherStatusActive || voucher.ExpiresAt.After(now) {
			continue
		}
		voucher.Status = domain.VoucherStatusExpired
		s.vouchersByCode[code] = voucher
		expired++
	}
	return expired, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicate
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleAccountant
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := slices.Collect(maps.Values(s.usersByUsername))
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneLine(line domain.SaleLine) domain.SaleLine {
	out := line
	out.Payments = make([]domain.PaymentAllocation, 0, len(line.Payments))
	for _, p := range line.Payments {
		p.DiscountItems = slices.Clone(p.DiscountItems)
		out.Payments = append(out.Payments, p)
	}
	if line.ExpiresAt != nil {
		at := *line.ExpiresAt
		out.ExpiresAt = &at
	}
	return out
}

func cloneItem(item domain.InventoryItem) domain.InventoryItem {
	out := item
	out.Stock = maps.Clone(item.Stock)
	return out
}
