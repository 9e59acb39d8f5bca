package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"finflare/internal/core"
)

type achievementRule struct {
	kind, title, description string
	points                   int
	unlocked                 func(*account) bool
}

var achievementRules = []achievementRule{
	{"FIRST_EXPENSE", "First Expense", "Logged your first expense!", 10,
		func(a *account) bool { return len(a.expenses) > 0 }},
	{"WEEKLY_STREAK", "Week Warrior", "Logged expenses for 7 consecutive days!", 50,
		func(a *account) bool { return a.user.maxStreak >= 7 }},
	{"MONTHLY_STREAK", "Monthly Master", "Logged expenses for 30 consecutive days!", 200,
		func(a *account) bool { return a.user.maxStreak >= 30 }},
	{"EXPENSE_TRACKER", "Expense Tracker", "Logged 10 expenses in a single day!", 25,
		func(a *account) bool {
			perDay := map[string]int{}
			for _, e := range a.expenses {
				perDay[e.Date.String()]++
				if perDay[e.Date.String()] >= 10 {
					return true
				}
			}
			return false
		}},
	{"CATEGORY_MASTER", "Category Master", "Tracked expenses across multiple categories!", 75,
		func(a *account) bool { return len(a.expenses.ByCategory()) >= 5 }},
}

// trackActivity updates the logging streak for an expense dated d.
func (s *Store) trackActivity(acc *account, d core.Date) {
	u := acc.user
	if u.lastActivity.IsZero() {
		u.streak, u.maxStreak = 1, max(u.maxStreak, 1)
		u.lastActivity = d
		return
	}
	days := int(d.Sub(u.lastActivity.Time).Hours() / 24)
	switch {
	case days == 1:
		u.streak++
	case days > 1:
		u.streak = 1
	}
	if days >= 0 {
		u.lastActivity = d
	}
	u.maxStreak = max(u.maxStreak, u.streak)
}

// checkAchievements unlocks achievements whose rule now holds. Unlocks are permanent.
func (s *Store) checkAchievements(acc *account) {
	unlocked := map[string]core.Achievement{}
	for _, a := range acc.achievements {
		if a.Unlocked {
			unlocked[a.Type] = a
		}
	}
	list := make([]core.Achievement, 0, len(achievementRules))
	for i, rule := range achievementRules {
		if a, ok := unlocked[rule.kind]; ok {
			list = append(list, a)
			continue
		}
		a := core.Achievement{
			ID:            int64(i + 1),
			Type:          rule.kind,
			Title:         rule.title,
			Description:   rule.description,
			PointsAwarded: rule.points,
		}
		if rule.unlocked(acc) {
			a.Unlocked = true
			a.UnlockedAt = &core.DateTime{Time: s.now().UTC()}
		}
		list = append(list, a)
	}
	acc.achievements = list
}

func (s *Store) Achievements(ctx context.Context) ([]core.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, "/achievements")
	if err != nil {
		return nil, err
	}
	return append([]core.Achievement(nil), acc.achievements...), nil
}

func (s *Store) Leaderboard(ctx context.Context) ([]core.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.authorize(ctx, http.MethodGet, "/achievements/leaderboard"); err != nil {
		return nil, err
	}
	out := make([]core.LeaderboardEntry, 0, len(s.accounts))
	for _, acc := range s.accounts {
		p := acc.user.profile
		out = append(out, core.LeaderboardEntry{
			ID:            p.ID,
			Username:      p.Username,
			FirstName:     p.FirstName,
			LastName:      p.LastName,
			TotalPoints:   core.Points(acc.achievements),
			CurrentStreak: acc.user.streak,
			MaxStreak:     acc.user.maxStreak,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].Username < out[j].Username
	})
	if len(out) > 10 {
		out = out[:10]
	}
	return out, nil
}

func (s *Store) Dashboard(ctx context.Context) (core.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, "/dashboard")
	if err != nil {
		return core.Dashboard{}, err
	}

	today := s.today()
	year, month := today.Year(), int(today.Month())
	monthly := acc.monthTotal(year, month)
	prevYear, prevMonth := shiftMonth(year, month, -1)
	lastMonth := acc.monthTotal(prevYear, prevMonth)

	spending := map[string]decimal.Decimal{}
	for _, e := range acc.expenses {
		if inMonth(e.Date, year, month) {
			spending[e.Category.Label()] = spending[e.Category.Label()].Add(e.Amount)
		}
	}

	active := acc.budgetList(func(b core.Budget) bool { return b.Active })
	progress := core.BudgetProgress{Budgets: active, TotalBudget: decimal.Zero, TotalSpent: decimal.Zero}
	var alerts []core.Budget
	over := 0
	for _, b := range active {
		progress.TotalBudget = progress.TotalBudget.Add(b.BudgetAmount)
		progress.TotalSpent = progress.TotalSpent.Add(b.SpentAmount)
		if b.ShouldAlert {
			alerts = append(alerts, b)
		}
		if b.OverBudget {
			over++
		}
	}
	progress.OverallProgress = core.Percent(progress.TotalSpent, progress.TotalBudget)

	trends := core.SpendingTrends{AverageMonthlySpending: decimal.Zero}
	sum := decimal.Zero
	for i := 5; i >= 0; i-- {
		y, m := shiftMonth(year, month, -i)
		amt := acc.monthTotal(y, m)
		sum = sum.Add(amt)
		trends.MonthlyData = append(trends.MonthlyData, core.TrendPoint{Month: core.MonthLabel(y, m), Amount: amt})
	}
	trends.AverageMonthlySpending = sum.Div(decimal.NewFromInt(6)).Round(2)

	score := 100 - over*15
	if lastMonth.IsPositive() && monthly.GreaterThan(lastMonth.Mul(decimal.RequireFromString("1.2"))) {
		score -= 20
	}
	score = min(max(score, 0), 100)

	var insights []string
	if top := topCategory(spending); top != "" {
		insights = append(insights, "Your highest spending category this month is "+top)
	}
	if len(alerts) > 0 {
		insights = append(insights, fmt.Sprintf("You have %d budget alerts that need attention", len(alerts)))
	}

	var recent core.Activities
	for i, e := range acc.expenses {
		if i == 5 {
			break
		}
		recent = append(recent, core.Activity{
			ID: e.ID, Type: "EXPENSE", Description: e.Description,
			Amount: e.Amount, Category: e.Category, Date: e.Date,
		})
	}

	savings := acc.user.income.Sub(monthly)
	portfolio := core.Summarize(acc.investments)
	return core.Dashboard{
		TotalBalance:         portfolio.TotalValue.Add(savings),
		MonthlyIncome:        acc.user.income,
		MonthlyExpenses:      monthly,
		TotalSavings:         savings,
		CategorySpending:     spending,
		RecentTransactions:   recent,
		BudgetProgress:       progress,
		SpendingTrends:       trends,
		FinancialHealthScore: score,
		Insights:             insights,
		BudgetAlerts:         alerts,
		LastUpdated:          core.DateTime{Time: s.now().UTC()},
	}, nil
}

// Forecast projects the recent monthly average over each of the next months.
func (s *Store) Forecast(ctx context.Context, months int) ([]core.FinancialForecast, error) {
	if months <= 0 {
		months = core.DefaultForecastMonths
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, fmt.Sprintf("/forecasting/predict/%d", months))
	if err != nil {
		return nil, err
	}

	today := s.today()
	sum, withData := decimal.Zero, 0
	for i := 0; i < 3; i++ {
		y, m := shiftMonth(today.Year(), int(today.Month()), -i)
		if amt := acc.monthTotal(y, m); amt.IsPositive() {
			sum = sum.Add(amt)
			withData++
		}
	}
	avg := decimal.Zero
	if withData > 0 {
		avg = sum.Div(decimal.NewFromInt(int64(withData)))
	}
	income := acc.user.income

	risk := 0.0
	if income.IsPositive() {
		risk, _ = avg.Div(income).Round(2).Float64()
	}
	risk = min(risk, 1)

	var recs []string
	if risk > 0.8 {
		recs = append(recs, "Your spending is close to your income. Review recurring bills and subscriptions.")
	}
	spending := map[string]decimal.Decimal{}
	for cat, amt := range acc.expenses.ByCategory() {
		spending[cat.Label()] = amt
	}
	if top := topCategory(spending); top != "" {
		recs = append(recs, "Set a budget for "+top+", your largest spending category.")
	}
	recs = append(recs, "Move a fixed amount to savings at the start of each month.")

	out := make([]core.FinancialForecast, 0, months)
	confidence := 0.6 + 0.1*float64(withData)
	for i := 1; i <= months; i++ {
		y, m := shiftMonth(today.Year(), int(today.Month()), i)
		out = append(out, core.FinancialForecast{
			Period:           core.MonthLabel(y, m),
			PredictedSavings: income.Sub(avg).Round(2),
			OverspendingRisk: risk,
			Recommendations:  recs,
			ConfidenceScore:  max(confidence-0.05*float64(i-1), 0.3),
		})
	}
	return out, nil
}

func (s *Store) ProcessVoice(ctx context.Context, command string) (core.VoiceReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodPost, "/voice/process")
	if err != nil {
		return core.VoiceReply{}, err
	}

	cmd := strings.ToLower(command)
	today := s.today()
	switch {
	case strings.Contains(cmd, "budget"):
		active := acc.budgetList(func(b core.Budget) bool { return b.Active })
		alerts := 0
		for _, b := range active {
			if b.ShouldAlert {
				alerts++
			}
		}
		return voiceReply(fmt.Sprintf("You have %d active budgets and %d need attention.", len(active), alerts), "/budgets"), nil
	case strings.Contains(cmd, "spen"):
		total := acc.monthTotal(today.Year(), int(today.Month()))
		return voiceReply("You have spent "+core.FormatUSD(total)+" this month.", "/expenses"), nil
	case strings.Contains(cmd, "invest") || strings.Contains(cmd, "portfolio"):
		sum := core.Summarize(acc.investments)
		return voiceReply("Your portfolio is worth "+core.FormatUSD(sum.TotalValue)+".", "/investments"), nil
	}
	return core.VoiceReply{Response: "Sorry, I didn't understand that. Try asking about your spending, budgets or portfolio."}, nil
}

func voiceReply(text, target string) core.VoiceReply {
	action, _ := json.Marshal(map[string]string{"type": "NAVIGATE", "target": target})
	return core.VoiceReply{Response: text, Action: action}
}

func shiftMonth(year, month, delta int) (int, int) {
	m := year*12 + (month - 1) + delta
	return m / 12, m%12 + 1
}

func topCategory(spending map[string]decimal.Decimal) string {
	top, best := "", decimal.Zero
	for name, amt := range spending {
		if amt.GreaterThan(best) || (amt.Equal(best) && top != "" && name < top) {
			top, best = name, amt
		}
	}
	return top
}
