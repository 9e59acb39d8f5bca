package memory

import (
	"time"

	"github.com/shopspring/decimal"

	"finflare/internal/core"
)

type seedExpense struct {
	daysAgo     int
	amount      string
	description string
	category    core.Category
	method      core.PaymentMethod
}

var demoExpenses = []seedExpense{
	{0, "15.50", "Lunch", core.FoodDining, core.CreditCard},
	{1, "45.00", "Gas", core.Transportation, core.DebitCard},
	{2, "82.35", "Weekly supermarket run", core.Groceries, core.DebitCard},
	{4, "12.99", "Netflix subscription", core.Entertainment, core.CreditCard},
	{6, "120.00", "Electric bill", core.BillsUtilities, core.BankTransfer},
	{9, "38.20", "Dinner with friends", core.FoodDining, core.Cash},
	{12, "64.00", "Running shoes", core.Shopping, core.CreditCard},
	{33, "210.00", "Internet and phone bill", core.BillsUtilities, core.BankTransfer},
	{36, "54.10", "Groceries", core.Groceries, core.DebitCard},
	{40, "25.00", "Pharmacy", core.Healthcare, core.Cash},
}

// seed installs the demo account. It runs from New, before the store is shared.
func (s *Store) seed() {
	acc, err := s.addUser(core.Registration{
		Username:  DemoUsername,
		Email:     "demo@finflare.app",
		Password:  DemoPassword,
		FirstName: "Demo",
		LastName:  "User",
	})
	if err != nil {
		return
	}
	today := s.today()

	for _, se := range demoExpenses {
		acc.expenses = acc.expenses.Prepend(core.Expense{
			ID:            s.id(),
			Amount:        decimal.RequireFromString(se.amount),
			Description:   se.description,
			Category:      se.category,
			Date:          core.Date{Time: today.AddDate(0, 0, -se.daysAgo)},
			PaymentMethod: se.method,
			Source:        core.SourceManual,
		})
	}
	sortExpenses(acc.expenses)

	monthStart := core.NewDate(today.Year(), int(today.Month()), 1)
	monthEnd := core.Date{Time: monthStart.AddDate(0, 1, -1)}
	for _, b := range []struct {
		category core.Category
		amount   int64
	}{
		{core.FoodDining, 300},
		{core.Groceries, 250},
		{core.Entertainment, 10},
	} {
		acc.budgets = append(acc.budgets, &budgetState{
			Budget: core.BudgetRequest{
				Category:       b.category,
				BudgetAmount:   decimal.NewFromInt(b.amount),
				StartDate:      monthStart,
				EndDate:        monthEnd,
				Period:         core.PeriodMonthly,
				AlertEnabled:   true,
				AlertThreshold: core.DefaultAlertThreshold,
			}.Budget(),
		})
		acc.budgets[len(acc.budgets)-1].ID = s.id()
	}

	bought := core.DateTime{Time: s.now().UTC().AddDate(0, -6, 0).Truncate(time.Second)}
	for _, inv := range []core.Investment{
		{Symbol: "VTI", Name: "Vanguard Total Stock Market ETF", Type: core.ETF, Quantity: 10,
			PurchasePrice: decimal.RequireFromString("220.00"), CurrentPrice: decimal.NewNullDecimal(decimal.RequireFromString("245.30")),
			RiskLevel: core.RiskMedium, Sector: "Broad Market"},
		{Symbol: "AAPL", Name: "Apple Inc.", Type: core.Stock, Quantity: 5,
			PurchasePrice: decimal.RequireFromString("180.00"), CurrentPrice: decimal.NewNullDecimal(decimal.RequireFromString("172.50")),
			RiskLevel: core.RiskHigh, Sector: "Technology"},
		{Symbol: "BTC", Name: "Bitcoin", Type: core.Crypto, Quantity: 1,
			PurchasePrice: decimal.RequireFromString("30000"), RiskLevel: core.RiskVeryHigh},
	} {
		inv.ID = s.id()
		inv.PurchaseDate = bought
		inv.Revalue()
		acc.investments = append(acc.investments, inv)
	}

	acc.user.streak, acc.user.maxStreak = 1, 3
	acc.user.lastActivity = today
	s.refresh(acc)
}
