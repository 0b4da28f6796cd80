package service

import (
	"context"
	"fmt"
	"time"

	"dapurpos/backend/internal/domain"
	"dapurpos/backend/internal/store"
)

// HoldMembership pauses meal consumption on a membership order by opening a
// new hold range starting at the given date (default today).
func (s *Service) HoldMembership(ctx context.Context, id string, req domain.MembershipHoldRequest) (*domain.OrderResponse, error) {
	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.SalesType != domain.SalesTypeMembership {
		return nil, fmt.Errorf("%w: hold applies to membership orders only", store.ErrValidation)
	}
	if existing.Membership.Hold {
		return nil, fmt.Errorf("%w: membership is already on hold", store.ErrConflict)
	}

	from := s.now().In(s.loc)
	if req.From != "" {
		from, err = s.parseDate(req.From)
		if err != nil {
			return nil, err
		}
	}

	updated := *existing
	updated.Membership.Hold = true
	updated.Membership.HoldRanges = append(updated.Membership.HoldRanges, domain.HoldRange{From: dateOnly(from)})
	updated.UpdatedAt = s.now().UTC()

	saved, err := s.repo.UpdateOrder(ctx, updated)
	if err != nil {
		return nil, err
	}
	return s.orderResponse(*saved), nil
}

// UnholdMembership resumes a held membership by closing its open hold range
// at the given date (default today).
func (s *Service) UnholdMembership(ctx context.Context, id string, req domain.MembershipUnholdRequest) (*domain.OrderResponse, error) {
	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Membership.Hold {
		return nil, fmt.Errorf("%w: membership is not on hold", store.ErrConflict)
	}

	to := s.now().In(s.loc)
	if req.To != "" {
		to, err = s.parseDate(req.To)
		if err != nil {
			return nil, err
		}
	}
	to = dateOnly(to)

	updated := *existing
	ranges := make([]domain.HoldRange, len(existing.Membership.HoldRanges))
	copy(ranges, existing.Membership.HoldRanges)
	closedOpen := false
	for i := len(ranges) - 1; i >= 0; i-- {
		if ranges[i].To == nil {
			if to.Before(ranges[i].From) {
				return nil, fmt.Errorf("%w: unhold date precedes hold start", store.ErrValidation)
			}
			end := to
			ranges[i].To = &end
			closedOpen = true
			break
		}
	}
	if !closedOpen {
		return nil, fmt.Errorf("%w: no open hold range to close", store.ErrConflict)
	}
	updated.Membership.Hold = false
	updated.Membership.HoldRanges = ranges
	updated.UpdatedAt = s.now().UTC()

	saved, err := s.repo.UpdateOrder(ctx, updated)
	if err != nil {
		return nil, err
	}
	return s.orderResponse(*saved), nil
}

// mealUsage derives meal accounting for a membership meal order at read
// time. Day arithmetic is inclusive on both ends; an open hold range counts
// up to today. Nothing here is ever persisted.
func mealUsage(order domain.Order, today time.Time) *domain.MealUsage {
	if order.StartDate == nil || order.EndDate == nil {
		return nil
	}
	start := dateOnly(*order.StartDate)
	end := dateOnly(*order.EndDate)
	today = dateOnly(today)
	if end.Before(start) {
		return nil
	}

	usage := &domain.MealUsage{TotalMeals: inclusiveDays(start, end)}
	if today.Before(start) {
		usage.PendingMeals = usage.TotalMeals
		return usage
	}

	activeUpto := today
	if end.Before(activeUpto) {
		activeUpto = end
	}
	usage.ActiveDays = inclusiveDays(start, activeUpto)

	for _, hold := range order.Membership.HoldRanges {
		from := dateOnly(hold.From)
		to := today
		if hold.To != nil {
			to = dateOnly(*hold.To)
		}
		lo, hi := from, to
		if lo.Before(start) {
			lo = start
		}
		if activeUpto.Before(hi) {
			hi = activeUpto
		}
		if !hi.Before(lo) {
			usage.HoldDays += inclusiveDays(lo, hi)
		}
	}

	consumed := usage.ActiveDays - usage.HoldDays
	if consumed < 0 {
		consumed = 0
	}
	if consumed > usage.TotalMeals {
		consumed = usage.TotalMeals
	}
	usage.ConsumedMeals = consumed
	usage.PendingMeals = usage.TotalMeals - consumed
	return usage
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func inclusiveDays(from time.Time, to time.Time) int {
	return int(to.Sub(from).Hours()/24) + 1
}
