package service

import (
	"testing"

	"dapurpos/backend/internal/domain"
)

func TestSummarizeSalesBucketsByPaymentType(t *testing.T) {
	orders := []domain.Order{
		{
			SalesType: domain.SalesTypeRestaurant,
			Discount:  10,
			VAT:       5,
			Payments: []domain.Payment{
				{Type: domain.PaymentTypeCash, Amount: 300},
				{Type: domain.PaymentTypeCard, Amount: 200},
			},
		},
		{
			SalesType: domain.SalesTypeOnline,
			Payments:  []domain.Payment{{Type: domain.PaymentTypeGateway, Amount: 400}},
		},
		{
			SalesType: domain.SalesTypeMembership,
			OrderType: domain.OrderTypeMembershipMeal,
			Payments:  []domain.Payment{{Type: domain.PaymentTypeOnlineTransfer, Amount: 700}},
		},
		{
			SalesType: domain.SalesTypeMembership,
			OrderType: domain.OrderTypeMembershipRegister,
			Payments:  []domain.Payment{{Type: domain.PaymentTypeCard, Amount: 600}},
		},
	}

	summary := summarizeSales(orders)
	if summary.TotalOrders != 4 {
		t.Fatalf("expected 4 orders, got %d", summary.TotalOrders)
	}
	if summary.CashSales != 300 || summary.CardSales != 800 || summary.OnlineSales != 1100 {
		t.Fatalf("unexpected buckets cash=%d card=%d online=%d", summary.CashSales, summary.CardSales, summary.OnlineSales)
	}
	if summary.SalesByType.Restaurant != 500 || summary.SalesByType.Online != 400 || summary.SalesByType.Membership != 1300 {
		t.Fatalf("unexpected sales by type %+v", summary.SalesByType)
	}
	if summary.MembershipBreakdown.MembershipMeal != 700 || summary.MembershipBreakdown.MembershipRegister != 600 {
		t.Fatalf("unexpected membership breakdown %+v", summary.MembershipBreakdown)
	}
	if summary.TotalDiscount != 10 || summary.TotalVAT != 5 {
		t.Fatalf("unexpected discount/vat %d/%d", summary.TotalDiscount, summary.TotalVAT)
	}
	if summary.TotalSales != 2200 {
		t.Fatalf("expected total sales 2200, got %d", summary.TotalSales)
	}
}

func TestSummarizeSalesFallsBackToPayableAsCash(t *testing.T) {
	summary := summarizeSales([]domain.Order{
		{SalesType: domain.SalesTypeRestaurant, PayableAmount: 250},
		{SalesType: domain.SalesTypeRestaurant, Total: 150},
	})
	if summary.CashSales != 400 {
		t.Fatalf("expected payment-less orders counted as cash 400, got %d", summary.CashSales)
	}
	if summary.TotalSales != 400 {
		t.Fatalf("expected total 400, got %d", summary.TotalSales)
	}
}

func TestSummarizeSalesEmpty(t *testing.T) {
	summary := summarizeSales(nil)
	if summary != (domain.SalesSummary{}) {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestDistinctTypesSortedUnique(t *testing.T) {
	types := distinctTypes([]domain.Payment{
		{Type: domain.PaymentTypeCard, Amount: 1},
		{Type: domain.PaymentTypeCash, Amount: 1},
		{Type: domain.PaymentTypeCard, Amount: 1},
	})
	if len(types) != 2 || types[0] != domain.PaymentTypeCard || types[1] != domain.PaymentTypeCash {
		t.Fatalf("expected [Card Cash], got %v", types)
	}
}
