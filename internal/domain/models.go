package domain

import "time"

type Payment struct {
	Type       string `json:"type"`
	MethodType string `json:"method_type"`
	Amount     int64  `json:"amount"`
}

type OrderItem struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Qty       int    `json:"qty"`
}

type HoldRange struct {
	From time.Time  `json:"from"`
	To   *time.Time `json:"to,omitempty"`
}

type Membership struct {
	Hold       bool        `json:"hold"`
	HoldRanges []HoldRange `json:"hold_ranges"`
}

// PaymentHistoryEntry is one append-only event in an order's payment ledger.
// Paid is the incremental amount of this transaction; TotalPaid is the
// cumulative paid state of the whole order. The two must never be conflated.
type PaymentHistoryEntry struct {
	At          time.Time `json:"at"`
	Action      string    `json:"action"`
	Total       int64     `json:"total"`
	Paid        int64     `json:"paid"`
	TotalPaid   int64     `json:"total_paid"`
	Remaining   int64     `json:"remaining"`
	Payments    []Payment `json:"payments"`
	Description string    `json:"description,omitempty"`
}

// PaymentModeChange records a change of the distinct payment-type set of an
// order without a change in amounts.
type PaymentModeChange struct {
	From []string  `json:"from"`
	To   []string  `json:"to"`
	At   time.Time `json:"at"`
}

type Order struct {
	ID             string                `json:"id"`
	InvoiceNo      string                `json:"invoice_no"`
	OrderNo        string                `json:"order_no"`
	BranchID       string                `json:"branch_id"`
	SaleDate       string                `json:"sale_date"`
	StartDate      *time.Time            `json:"start_date,omitempty"`
	EndDate        *time.Time            `json:"end_date,omitempty"`
	Items          []OrderItem           `json:"items"`
	SubTotal       int64                 `json:"sub_total"`
	VAT            int64                 `json:"vat"`
	Discount       int64                 `json:"discount"`
	Total          int64                 `json:"total"`
	PayableAmount  int64                 `json:"payable_amount"`
	Payments       []Payment             `json:"payments"`
	CumulativePaid int64                 `json:"cumulative_paid"`
	Status         string                `json:"status"`
	SalesType      string                `json:"sales_type"`
	OrderType      string                `json:"order_type,omitempty"`
	Membership     Membership            `json:"membership"`
	Note           string                `json:"note,omitempty"`
	Canceled       bool                  `json:"canceled"`
	Deleted        bool                  `json:"deleted"`
	DayCloseID     string                `json:"day_close_id,omitempty"`
	DayCloseDate   string                `json:"day_close_date,omitempty"`
	PaymentHistory []PaymentHistoryEntry `json:"payment_history"`
	ChangeSequence []PaymentModeChange   `json:"change_sequence"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Denominations holds physical cash-note counts for drawer reconciliation.
type Denominations struct {
	Note1000 int `json:"note_1000"`
	Note500  int `json:"note_500"`
	Note200  int `json:"note_200"`
	Note100  int `json:"note_100"`
	Note50   int `json:"note_50"`
	Note20   int `json:"note_20"`
	Note10   int `json:"note_10"`
	Note5    int `json:"note_5"`
	Note2    int `json:"note_2"`
	Note1    int `json:"note_1"`
}

// Total computes counted cash as the fixed weighted sum of note counts.
// Always recomputed server-side; client-supplied totals are ignored.
func (d Denominations) Total() int64 {
	return 1000*int64(d.Note1000) +
		500*int64(d.Note500) +
		200*int64(d.Note200) +
		100*int64(d.Note100) +
		50*int64(d.Note50) +
		20*int64(d.Note20) +
		10*int64(d.Note10) +
		5*int64(d.Note5) +
		2*int64(d.Note2) +
		1*int64(d.Note1)
}

// Valid reports whether every note count is non-negative.
func (d Denominations) Valid() bool {
	for _, n := range []int{d.Note1000, d.Note500, d.Note200, d.Note100, d.Note50, d.Note20, d.Note10, d.Note5, d.Note2, d.Note1} {
		if n < 0 {
			return false
		}
	}
	return true
}

type SalesTypeTotals struct {
	Restaurant int64 `json:"restaurant"`
	Online     int64 `json:"online"`
	Membership int64 `json:"membership"`
}

type MembershipTotals struct {
	MembershipMeal     int64 `json:"membership_meal"`
	MembershipRegister int64 `json:"membership_register"`
}

// SalesSummary is the normalized aggregate over a set of paid orders.
type SalesSummary struct {
	TotalOrders         int64            `json:"total_orders"`
	CashSales           int64            `json:"cash_sales"`
	CardSales           int64            `json:"card_sales"`
	OnlineSales         int64            `json:"online_sales"`
	SalesByType         SalesTypeTotals  `json:"sales_by_type"`
	MembershipBreakdown MembershipTotals `json:"membership_breakdown"`
	TotalDiscount       int64            `json:"total_discount"`
	TotalVAT            int64            `json:"total_vat"`
	TotalSales          int64            `json:"total_sales"`
}

// Add accumulates another summary into s, used to sum per-shift snapshots.
func (s *SalesSummary) Add(other SalesSummary) {
	s.TotalOrders += other.TotalOrders
	s.CashSales += other.CashSales
	s.CardSales += other.CardSales
	s.OnlineSales += other.OnlineSales
	s.SalesByType.Restaurant += other.SalesByType.Restaurant
	s.SalesByType.Online += other.SalesByType.Online
	s.SalesByType.Membership += other.SalesByType.Membership
	s.MembershipBreakdown.MembershipMeal += other.MembershipBreakdown.MembershipMeal
	s.MembershipBreakdown.MembershipRegister += other.MembershipBreakdown.MembershipRegister
	s.TotalDiscount += other.TotalDiscount
	s.TotalVAT += other.TotalVAT
	s.TotalSales += other.TotalSales
}

type Shift struct {
	ID             string        `json:"id"`
	BranchID       string        `json:"branch_id"`
	SaleDate       string        `json:"sale_date"`
	ShiftNumber    int           `json:"shift_number"`
	Status         string        `json:"status"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        *time.Time    `json:"end_time,omitempty"`
	PlannedEndTime *time.Time    `json:"planned_end_time,omitempty"`
	Denominations  Denominations `json:"denominations"`
	TotalCash      int64         `json:"total_cash"`
	Sales          *SalesSummary `json:"sales,omitempty"`
	Note           string        `json:"note,omitempty"`
}

// DayClose marks a business date that was closed with no shifts recorded.
// A date counts as closed when either a day-close-status shift or a DayClose
// record exists for it.
type DayClose struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	SaleDate  string    `json:"sale_date"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Note      string    `json:"note,omitempty"`
}

// DenominationReport is the persisted cash reconciliation block of a day
// close. Difference is signed and stored verbatim, never auto-corrected.
type DenominationReport struct {
	Counts           Denominations `json:"counts"`
	CountedTotalCash int64         `json:"counted_total_cash"`
	ExpectedCash     int64         `json:"expected_cash"`
	Difference       int64         `json:"difference"`
}

// DaySales is the persisted snapshot for one (sale date, branch) pair.
// DaySales covers every order of the date; ShiftWiseSales covers only orders
// attributable to shifts. The two are computed independently and may
// legitimately diverge.
type DaySales struct {
	ID             string             `json:"id"`
	BranchID       string             `json:"branch_id"`
	SaleDate       string             `json:"sale_date"`
	DaySales       SalesSummary       `json:"day_sales"`
	ShiftWiseSales SalesSummary       `json:"shift_wise_sales"`
	Denomination   DenominationReport `json:"denomination"`
	ShiftIDs       []string           `json:"shift_ids"`
	Note           string             `json:"note,omitempty"`
	ClosedAt       time.Time          `json:"closed_at"`
}

// MealUsage is the read-time derived meal accounting of a membership order.
// It is never persisted and is recomputed on every read.
type MealUsage struct {
	TotalMeals    int `json:"total_meals"`
	ActiveDays    int `json:"active_days"`
	HoldDays      int `json:"hold_days"`
	ConsumedMeals int `json:"consumed_meals"`
	PendingMeals  int `json:"pending_meals"`
}

type OrderCreateRequest struct {
	BranchID  string      `json:"branch_id"`
	Date      string      `json:"date,omitempty"`
	StartDate string      `json:"start_date,omitempty"`
	EndDate   string      `json:"end_date,omitempty"`
	Items     []OrderItem `json:"items"`
	VAT       int64       `json:"vat"`
	Discount  int64       `json:"discount"`
	Payments  []Payment   `json:"payments"`
	SalesType string      `json:"sales_type"`
	OrderType string      `json:"order_type,omitempty"`
	Note      string      `json:"note,omitempty"`
}

type OrderUpdateRequest struct {
	Items    *[]OrderItem `json:"items,omitempty"`
	VAT      *int64       `json:"vat,omitempty"`
	Discount *int64       `json:"discount,omitempty"`
	Payments *[]Payment   `json:"payments,omitempty"`
	Note     *string      `json:"note,omitempty"`
}

type OrderSettleRequest struct {
	Payments []Payment `json:"payments"`
}

type PaymentModeSimpleRequest struct {
	PaymentType string `json:"payment_type"`
}

type MembershipHoldRequest struct {
	From string `json:"from,omitempty"`
}

type MembershipUnholdRequest struct {
	To string `json:"to,omitempty"`
}

type OrderResponse struct {
	Order     Order      `json:"order"`
	MealUsage *MealUsage `json:"meal_usage,omitempty"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

type ShiftOpenRequest struct {
	BranchID       string `json:"branch_id"`
	LoginTime      string `json:"login_time,omitempty"`
	LoginDate      string `json:"login_date,omitempty"`
	PlannedEndTime string `json:"planned_end_time,omitempty"`
	Note           string `json:"note,omitempty"`
}

type ShiftCloseRequest struct {
	BranchID      string        `json:"branch_id"`
	Denominations Denominations `json:"denominations"`
	LogoutTime    string        `json:"logout_time,omitempty"`
}

type ShiftResponse struct {
	Shift   Shift  `json:"shift"`
	Warning string `json:"warning,omitempty"`
}

type ShiftListResponse struct {
	Shifts []Shift `json:"shifts"`
}

type DayCloseRequest struct {
	BranchID      string         `json:"branch_id"`
	Note          string         `json:"note,omitempty"`
	Denominations *Denominations `json:"denominations,omitempty"`
}

// DayCloseResponse reports day-wise and shift-wise summaries side by side.
// They answer different business questions and are not required to agree.
type DayCloseResponse struct {
	SaleDate         string             `json:"sale_date"`
	BranchID         string             `json:"branch_id"`
	DayWiseLabel     string             `json:"day_wise_label"`
	DayWiseSales     SalesSummary       `json:"day_wise_sales"`
	ShiftWiseLabel   string             `json:"shift_wise_label"`
	ShiftWiseSales   SalesSummary       `json:"shift_wise_sales"`
	Denomination     DenominationReport `json:"denomination"`
	PromotedShiftIDs []string           `json:"promoted_shift_ids"`
	ClosedAt         string             `json:"closed_at"`
}

type DaySalesListResponse struct {
	Reports []DaySales `json:"reports"`
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

// Actor is the typed request identity attached by the auth layer and carried
// through the service on the request context.
type Actor struct {
	Username string
	Role     string
	BranchID string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	PaymentTypeCash           = "Cash"
	PaymentTypeCard           = "Card"
	PaymentTypeGateway        = "Gateway"
	PaymentTypeOnlineTransfer = "OnlineTransfer"
	PaymentTypePaymentLink    = "PaymentLink"
)

const (
	PaymentMethodDirect = "direct"
	PaymentMethodSplit  = "split"
)

const (
	OrderStatusPaid   = "paid"
	OrderStatusUnpaid = "unpaid"
)

const (
	SalesTypeRestaurant = "restaurant"
	SalesTypeOnline     = "online"
	SalesTypeMembership = "membership"
)

const (
	OrderTypeMembershipMeal     = "MembershipMeal"
	OrderTypeMembershipRegister = "MembershipRegister"
)

const (
	ShiftStatusOpen     = "open"
	ShiftStatusClosed   = "closed"
	ShiftStatusDayClose = "day-close"
)

const (
	HistoryActionCreated         = "created"
	HistoryActionAddItem         = "add_item"
	HistoryActionRemoveItem      = "remove_item"
	HistoryActionPaymentReceived = "payment_received"
	HistoryActionModeChanged     = "payment_mode_changed"
	HistoryActionEdited          = "edited"
)
