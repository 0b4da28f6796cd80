package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"dapurpos/backend/internal/domain"
	"dapurpos/backend/internal/store"
)

func day(yyyy int, mm time.Month, dd int) time.Time {
	return time.Date(yyyy, mm, dd, 0, 0, 0, 0, time.UTC)
}

func mealOrder(start, end time.Time, holds []domain.HoldRange) domain.Order {
	return domain.Order{
		StartDate:  &start,
		EndDate:    &end,
		SalesType:  domain.SalesTypeMembership,
		OrderType:  domain.OrderTypeMembershipMeal,
		Membership: domain.Membership{HoldRanges: holds},
	}
}

func TestMealUsageWithClosedHold(t *testing.T) {
	holdEnd := day(2024, 3, 13)
	order := mealOrder(day(2024, 3, 10), day(2024, 3, 19), []domain.HoldRange{
		{From: day(2024, 3, 12), To: &holdEnd},
	})

	usage := mealUsage(order, day(2024, 3, 15))
	if usage == nil {
		t.Fatalf("expected usage for bounded membership order")
	}
	if usage.TotalMeals != 10 {
		t.Fatalf("expected 10 total meals, got %d", usage.TotalMeals)
	}
	if usage.ActiveDays != 6 {
		t.Fatalf("expected 6 active days, got %d", usage.ActiveDays)
	}
	if usage.HoldDays != 2 {
		t.Fatalf("expected 2 hold days, got %d", usage.HoldDays)
	}
	if usage.ConsumedMeals != 4 || usage.PendingMeals != 6 {
		t.Fatalf("expected 4 consumed / 6 pending, got %d/%d", usage.ConsumedMeals, usage.PendingMeals)
	}
}

func TestMealUsageOpenHoldCountsToToday(t *testing.T) {
	order := mealOrder(day(2024, 3, 10), day(2024, 3, 19), []domain.HoldRange{
		{From: day(2024, 3, 14)},
	})

	usage := mealUsage(order, day(2024, 3, 15))
	if usage.HoldDays != 2 {
		t.Fatalf("expected open hold to span 14th..today, got %d hold days", usage.HoldDays)
	}
	if usage.ConsumedMeals != 4 {
		t.Fatalf("expected 4 consumed meals, got %d", usage.ConsumedMeals)
	}
}

func TestMealUsageBeforePlanStart(t *testing.T) {
	order := mealOrder(day(2024, 3, 20), day(2024, 3, 24), nil)

	usage := mealUsage(order, day(2024, 3, 15))
	if usage.ConsumedMeals != 0 {
		t.Fatalf("expected nothing consumed before start, got %d", usage.ConsumedMeals)
	}
	if usage.PendingMeals != usage.TotalMeals {
		t.Fatalf("expected all meals pending, got %d of %d", usage.PendingMeals, usage.TotalMeals)
	}
}

func TestMealUsageMissingDatesIsNil(t *testing.T) {
	order := domain.Order{OrderType: domain.OrderTypeMembershipMeal}
	if usage := mealUsage(order, day(2024, 3, 15)); usage != nil {
		t.Fatalf("expected nil usage without start/end dates, got %+v", usage)
	}
}

func TestHoldUnholdLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		StartDate: "2024-03-15",
		EndDate:   "2024-03-24",
		Items:     []domain.OrderItem{{Name: "Meal Plan 10", UnitPrice: 5000, Qty: 1}},
		Payments:  []domain.Payment{{Type: domain.PaymentTypeCard, MethodType: domain.PaymentMethodDirect, Amount: 5000}},
		SalesType: domain.SalesTypeMembership,
		OrderType: domain.OrderTypeMembershipMeal,
	})
	if err != nil {
		t.Fatalf("create membership order: %v", err)
	}
	if created.MealUsage == nil {
		t.Fatalf("expected meal usage on membership meal order")
	}

	held, err := svc.HoldMembership(ctx, created.Order.ID, domain.MembershipHoldRequest{})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if !held.Order.Membership.Hold {
		t.Fatalf("expected hold flag set")
	}
	if len(held.Order.Membership.HoldRanges) != 1 || held.Order.Membership.HoldRanges[0].To != nil {
		t.Fatalf("expected one open hold range, got %+v", held.Order.Membership.HoldRanges)
	}

	if _, err := svc.HoldMembership(ctx, created.Order.ID, domain.MembershipHoldRequest{}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on double hold, got %v", err)
	}

	if _, err := svc.UnholdMembership(ctx, created.Order.ID, domain.MembershipUnholdRequest{To: "2024-03-14"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error unholding before hold start, got %v", err)
	}

	released, err := svc.UnholdMembership(ctx, created.Order.ID, domain.MembershipUnholdRequest{})
	if err != nil {
		t.Fatalf("unhold: %v", err)
	}
	if released.Order.Membership.Hold {
		t.Fatalf("expected hold flag cleared")
	}
	if released.Order.Membership.HoldRanges[0].To == nil {
		t.Fatalf("expected hold range closed")
	}

	if _, err := svc.UnholdMembership(ctx, created.Order.ID, domain.MembershipUnholdRequest{}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict unholding a resumed membership, got %v", err)
	}
}

func TestHoldRejectsNonMembershipOrder(t *testing.T) {
	svc, _ := newTestService(t)

	order := mustCreatePaidCashOrder(t, svc, 100)
	if _, err := svc.HoldMembership(context.Background(), order.ID, domain.MembershipHoldRequest{}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
