package domain

import (
	"strings"
	"time"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentDebit    PaymentMethod = "debit"
	PaymentCredit   PaymentMethod = "credit"
	PaymentVoucher  PaymentMethod = "voucher"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentDebit, PaymentCredit, PaymentVoucher:
		return true
	default:
		return false
	}
}

// CartLineItem is an unsaved cart row. Prices are positive whole currency
// units; IsReturn makes the line count negatively in every total.
type CartLineItem struct {
	ID          string `json:"id" validate:"required"`
	ProductName string `json:"product_name" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gte=1"`
	ListPrice   int64  `json:"list_price" validate:"gte=0"`
	FinalPrice  int64  `json:"final_price"`
	Size        string `json:"size,omitempty"`
	InventoryID string `json:"inventory_id,omitempty"`
	UnitCost    int64  `json:"unit_cost" validate:"gte=0"`
	IsReturn    bool   `json:"is_return"`
}

type PaymentAllocation struct {
	Method        PaymentMethod `json:"method" validate:"required"`
	Amount        int64         `json:"amount"`
	Installments  int           `json:"installments,omitempty" validate:"gte=0"`
	VoucherCode   string        `json:"voucher_code,omitempty"`
	Rounding      int64         `json:"rounding,omitempty" validate:"oneof=0 100 500 1000"`
	DiscountItems []string      `json:"discount_items,omitempty"`
}

// AppliesDiscountTo reports whether this allocation grants the cash
// discount to the given cart line.
func (p PaymentAllocation) AppliesDiscountTo(lineID string) bool {
	if p.Method != PaymentCash {
		return false
	}
	for _, id := range p.DiscountItems {
		if id == lineID {
			return true
		}
	}
	return false
}

const (
	SaleStatusCompleted = "completed"
	SaleStatusPending   = "pending"
)

// SaleLine is one persisted row of a checkout. All lines sharing a
// TransactionID share Date, Payments and Status.
type SaleLine struct {
	ID            string              `json:"id"`
	Date          string              `json:"date"`
	TransactionID string              `json:"transaction_id"`
	ProductName   string              `json:"product_name"`
	Quantity      int                 `json:"quantity"`
	Price         int64               `json:"price"`
	ListPrice     int64               `json:"list_price"`
	UnitCost      int64               `json:"unit_cost"`
	PaymentMethod PaymentMethod       `json:"payment_method"`
	Payments      []PaymentAllocation `json:"payments"`
	Status        string              `json:"status"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
	Size          string              `json:"size"`
	InventoryID   string              `json:"inventory_id,omitempty"`
	ClientID      string              `json:"client_id,omitempty"`
	IssuedVoucher string              `json:"issued_voucher,omitempty"`
	Owner         string              `json:"owner"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// ReturnMarker prefixes the product name of every persisted return line.
const ReturnMarker = "CAMBIO: "

// IsReturn reports whether the line put units back on the shelf. A return
// priced at zero keeps only the name marker.
func (l SaleLine) IsReturn() bool {
	return l.Price < 0 || strings.HasPrefix(l.ProductName, ReturnMarker)
}

const (
	VoucherStatusActive  = "active"
	VoucherStatusUsed    = "used"
	VoucherStatusExpired = "expired"
)

type Voucher struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	InitialAmount int64     `json:"initial_amount"`
	CurrentAmount int64     `json:"current_amount"`
	Status        string    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
	Owner         string    `json:"owner"`
	CreatedAt     time.Time `json:"created_at"`
}

type InventoryItem struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	Subcategory string         `json:"subcategory,omitempty"`
	Material    string         `json:"material,omitempty"`
	CostPrice   int64          `json:"cost_price"`
	SalePrice   int64          `json:"sale_price"`
	Stock       map[string]int `json:"stock"`
	Owner       string         `json:"owner"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type InventoryCreateRequest struct {
	Name        string         `json:"name" validate:"required"`
	Category    string         `json:"category" validate:"required"`
	Subcategory string         `json:"subcategory"`
	Material    string         `json:"material"`
	CostPrice   int64          `json:"cost_price" validate:"gte=0"`
	SalePrice   int64          `json:"sale_price" validate:"gte=1"`
	Stock       map[string]int `json:"stock" validate:"dive,gte=0"`
}

type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

type ClientDraft struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// MultiSaleData is a checkout submission from the cart screen.
type MultiSaleData struct {
	Date                  string              `json:"date" validate:"required,datetime=2006-01-02"`
	Items                 []CartLineItem      `json:"items" validate:"required,min=1,dive"`
	Payments              []PaymentAllocation `json:"payments" validate:"dive"`
	IsEdit                bool                `json:"is_edit,omitempty"`
	PreviousTransactionID string              `json:"previous_transaction_id,omitempty" validate:"required_if=IsEdit true"`
	NewClient             *ClientDraft        `json:"new_client,omitempty"`
	ClientID              string              `json:"client_id,omitempty"`
	NotifyWhatsApp        bool                `json:"notify_whatsapp,omitempty"`
	ForceCompleted        bool                `json:"force_completed,omitempty"`
}

type VoucherDescriptor struct {
	Code      string    `json:"code"`
	Amount    int64     `json:"amount"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SettlementResult struct {
	Success       bool               `json:"success"`
	TransactionID string             `json:"transaction_id,omitempty"`
	Status        string             `json:"status,omitempty"`
	Voucher       *VoucherDescriptor `json:"voucher,omitempty"`
	Error         string             `json:"error,omitempty"`
}

type DeleteResult struct {
	TransactionID string `json:"transaction_id"`
	DeletedLines  int    `json:"deleted_lines"`
}

// Transaction groups the lines of one checkout for display.
type Transaction struct {
	ID       string              `json:"id"`
	Date     string              `json:"date"`
	Status   string              `json:"status"`
	ClientID string              `json:"client_id,omitempty"`
	Total    int64               `json:"total"`
	Payments []PaymentAllocation `json:"payments"`
	Lines    []SaleLine          `json:"lines"`
}

type LineQuote struct {
	ID             string `json:"id"`
	EffectivePrice int64  `json:"effective_price"`
	LineTotal      int64  `json:"line_total"`
	Discounted     bool   `json:"discounted"`
}

type QuoteRequest struct {
	Items    []CartLineItem      `json:"items" validate:"dive"`
	Payments []PaymentAllocation `json:"payments" validate:"dive"`
}

type QuoteResponse struct {
	SubtotalAtList   int64       `json:"subtotal_at_list"`
	NetTotal         int64       `json:"net_total"`
	Savings          int64       `json:"savings"`
	TotalCollected   int64       `json:"total_collected"`
	BalanceRemaining int64       `json:"balance_remaining"`
	Lines            []LineQuote `json:"lines"`
}

const (
	AllocationOpAdd      = "add"
	AllocationOpSet      = "set_amount"
	AllocationOpRemove   = "remove"
	AllocationOpDiscount = "toggle_discount"
	AllocationOpRounding = "rounding"
)

type AllocationEditRequest struct {
	Items        []CartLineItem      `json:"items" validate:"dive"`
	Payments     []PaymentAllocation `json:"payments" validate:"dive"`
	Op           string              `json:"op" validate:"required,oneof=add set_amount remove toggle_discount rounding"`
	Index        int                 `json:"index"`
	Method       PaymentMethod       `json:"method,omitempty"`
	Amount       int64               `json:"amount,omitempty"`
	LineID       string              `json:"line_id,omitempty"`
	Denomination int64               `json:"denomination,omitempty"`
}

type AllocationEditResponse struct {
	Payments []PaymentAllocation `json:"payments"`
	Quote    QuoteResponse       `json:"quote"`
}

type Draft struct {
	Form    string        `json:"form"`
	Owner   string        `json:"owner"`
	Data    MultiSaleData `json:"data"`
	SavedAt time.Time     `json:"saved_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleOwner      = "owner"
	RoleAccountant = "accountant"
)

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
