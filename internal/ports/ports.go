// Package ports declares what the views need from a data backend.
// The bearer token, when required, travels in ctx (see api.WithToken).
package ports

import (
	"context"
	"io"

	"finflare/internal/core"
)

type (
	Authenticator interface {
		Login(ctx context.Context, creds core.Credentials) (core.AuthResponse, error)
		Register(ctx context.Context, reg core.Registration) (message string, err error)
		ValidateToken(ctx context.Context) (core.TokenValidation, error)
	}

	ExpenseService interface {
		ListExpenses(ctx context.Context) (core.ExpenseList, error)
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error)
		DeleteExpense(ctx context.Context, id int64) error
		ExpensesByCategory(ctx context.Context, category core.Category) (core.ExpenseList, error)
		MonthlyReport(ctx context.Context, year, month int) (core.MonthlyReport, error)
		ScanReceipt(ctx context.Context, filename string, file io.Reader) (core.ReceiptScan, error)
	}

	BudgetService interface {
		ListBudgets(ctx context.Context) ([]core.Budget, error)
		ActiveBudgets(ctx context.Context) ([]core.Budget, error)
		BudgetAlerts(ctx context.Context) ([]core.Budget, error)
		CreateBudget(ctx context.Context, req core.BudgetRequest) (core.Budget, error)
		UpdateBudget(ctx context.Context, id int64, req core.BudgetRequest) (core.Budget, error)
		ToggleBudgetAlert(ctx context.Context, id int64) (core.Budget, error)
		ResetBudget(ctx context.Context, id int64) (core.Budget, error)
		DeleteBudget(ctx context.Context, id int64) error
	}

	InvestmentService interface {
		ListInvestments(ctx context.Context) ([]core.Investment, error)
		CreateInvestment(ctx context.Context, inv core.Investment) (core.Investment, error)
		UpdateInvestment(ctx context.Context, id int64, inv core.Investment) (core.Investment, error)
		DeleteInvestment(ctx context.Context, id int64) error
		PortfolioSummary(ctx context.Context) (core.PortfolioSummary, error)
	}

	// InsightService covers the read-only projections.
	InsightService interface {
		Dashboard(ctx context.Context) (core.Dashboard, error)
		Achievements(ctx context.Context) ([]core.Achievement, error)
		Leaderboard(ctx context.Context) ([]core.LeaderboardEntry, error)
		Forecast(ctx context.Context, months int) ([]core.FinancialForecast, error)
		ProcessVoice(ctx context.Context, command string) (core.VoiceReply, error)
	}

	// Backend is everything the web front-end consumes.
	Backend interface {
		Authenticator
		ExpenseService
		BudgetService
		InvestmentService
		InsightService
	}

	// ReportExporter publishes a monthly report somewhere outside the app
	// and returns a reference to where it landed.
	ReportExporter interface {
		ExportMonthlyReport(ctx context.Context, owner string, report core.MonthlyReport) (ref string, err error)
	}
)
