package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type InvestmentType string

const (
	Stock      InvestmentType = "STOCK"
	Crypto     InvestmentType = "CRYPTO"
	Bond       InvestmentType = "BOND"
	ETF        InvestmentType = "ETF"
	MutualFund InvestmentType = "MUTUAL_FUND"
)

var InvestmentTypes = []InvestmentType{Stock, Crypto, Bond, ETF, MutualFund}

func (t InvestmentType) Valid() bool {
	for _, v := range InvestmentTypes {
		if v == t {
			return true
		}
	}
	return false
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskVeryHigh}

type Investment struct {
	ID                   int64               `json:"id,omitempty"`
	Symbol               string              `json:"symbol"`
	Name                 string              `json:"name"`
	Type                 InvestmentType      `json:"type"`
	Quantity             int64               `json:"quantity"`
	PurchasePrice        decimal.Decimal     `json:"purchasePrice"`
	CurrentPrice         decimal.NullDecimal `json:"currentPrice"`
	PurchaseDate         DateTime            `json:"purchaseDate"`
	RiskLevel            RiskLevel           `json:"riskLevel,omitempty"`
	Sector               string              `json:"sector,omitempty"`
	Description          string              `json:"description,omitempty"`
	TotalInvestment      decimal.Decimal     `json:"totalInvestment"`
	CurrentValue         decimal.Decimal     `json:"currentValue"`
	ProfitLoss           decimal.Decimal     `json:"profitLoss"`
	ProfitLossPercentage float64             `json:"profitLossPercentage"`
}

func (i Investment) Validate() error {
	if strings.TrimSpace(i.Symbol) == "" {
		return ErrEmptySymbol
	}
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyInvestmentName
	}
	if !i.Type.Valid() {
		return ErrInvalidInvestment
	}
	if i.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !i.PurchasePrice.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Revalue fills the computed totals from quantity and prices. Without a
// current price the position is valued at its purchase price.
func (i *Investment) Revalue() {
	qty := decimal.NewFromInt(i.Quantity)
	price := i.PurchasePrice
	if i.CurrentPrice.Valid {
		price = i.CurrentPrice.Decimal
	}
	i.TotalInvestment = i.PurchasePrice.Mul(qty)
	i.CurrentValue = price.Mul(qty)
	i.ProfitLoss = i.CurrentValue.Sub(i.TotalInvestment)
	i.ProfitLossPercentage = Percent(i.ProfitLoss, i.TotalInvestment)
}

type PortfolioSummary struct {
	TotalValue                decimal.Decimal `json:"totalValue"`
	TotalInvestment           decimal.Decimal `json:"totalInvestment"`
	TotalProfitLoss           decimal.Decimal `json:"totalProfitLoss"`
	TotalProfitLossPercentage float64         `json:"totalProfitLossPercentage"`
	DiversificationScore      float64         `json:"diversificationScore"`
}

// Summarize aggregates positions the same way the portfolio endpoint does.
// Diversification is the number of distinct types scaled to 100.
func Summarize(investments []Investment) PortfolioSummary {
	var s PortfolioSummary
	types := make(map[InvestmentType]struct{})
	for _, inv := range investments {
		s.TotalValue = s.TotalValue.Add(inv.CurrentValue)
		s.TotalInvestment = s.TotalInvestment.Add(inv.TotalInvestment)
		types[inv.Type] = struct{}{}
	}
	s.TotalProfitLoss = s.TotalValue.Sub(s.TotalInvestment)
	s.TotalProfitLossPercentage = Percent(s.TotalProfitLoss, s.TotalInvestment)
	s.DiversificationScore = float64(len(types)) * 100 / float64(len(InvestmentTypes))
	return s
}
