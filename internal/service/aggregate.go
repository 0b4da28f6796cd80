package service

import "dapurpos/backend/internal/domain"

// summarizeSales folds a set of paid orders into a normalized summary.
// Payment amounts bucket by type: cash and card keep their own columns and
// every other type counts as online. An order with no payment lines at all
// contributes its payable amount (falling back to its total) as cash.
func summarizeSales(orders []domain.Order) domain.SalesSummary {
	var summary domain.SalesSummary
	for _, order := range orders {
		summary.TotalOrders++
		summary.TotalDiscount += order.Discount
		summary.TotalVAT += order.VAT

		amount := int64(0)
		if len(order.Payments) == 0 {
			amount = order.PayableAmount
			if amount == 0 {
				amount = order.Total
			}
			summary.CashSales += amount
		} else {
			for _, payment := range order.Payments {
				amount += payment.Amount
				switch payment.Type {
				case domain.PaymentTypeCash:
					summary.CashSales += payment.Amount
				case domain.PaymentTypeCard:
					summary.CardSales += payment.Amount
				default:
					summary.OnlineSales += payment.Amount
				}
			}
		}
		summary.TotalSales += amount

		switch order.SalesType {
		case domain.SalesTypeOnline:
			summary.SalesByType.Online += amount
		case domain.SalesTypeMembership:
			summary.SalesByType.Membership += amount
			if order.OrderType == domain.OrderTypeMembershipMeal {
				summary.MembershipBreakdown.MembershipMeal += amount
			} else {
				summary.MembershipBreakdown.MembershipRegister += amount
			}
		default:
			summary.SalesByType.Restaurant += amount
		}
	}
	return summary
}
