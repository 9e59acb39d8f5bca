package core

import "strings"

// Category is the backend's expense category enum.
type Category string

const (
	FoodDining     Category = "FOOD_DINING"
	Transportation Category = "TRANSPORTATION"
	Shopping       Category = "SHOPPING"
	Entertainment  Category = "ENTERTAINMENT"
	BillsUtilities Category = "BILLS_UTILITIES"
	Healthcare     Category = "HEALTHCARE"
	Education      Category = "EDUCATION"
	Travel         Category = "TRAVEL"
	Groceries      Category = "GROCERIES"
	Insurance      Category = "INSURANCE"
	Investments    Category = "INVESTMENTS"
	GiftsDonations Category = "GIFTS_DONATIONS"
	PersonalCare   Category = "PERSONAL_CARE"
	HomeGarden     Category = "HOME_GARDEN"
	Business       Category = "BUSINESS"
	Other          Category = "OTHER"
)

type categoryInfo struct {
	label string
	color string
}

var categoryTable = map[Category]categoryInfo{
	FoodDining:     {"Food & Dining", "#FF6B6B"},
	Transportation: {"Transportation", "#4ECDC4"},
	Shopping:       {"Shopping", "#45B7D1"},
	Entertainment:  {"Entertainment", "#96CEB4"},
	BillsUtilities: {"Bills & Utilities", "#FECA57"},
	Healthcare:     {"Healthcare", "#FF9FF3"},
	Education:      {"Education", "#54A0FF"},
	Travel:         {"Travel", "#5F27CD"},
	Groceries:      {"Groceries", "#00D2D3"},
	Insurance:      {"Insurance", "#FF9F43"},
	Investments:    {"Investments", "#10AC84"},
	GiftsDonations: {"Gifts & Donations", "#EE5A24"},
	PersonalCare:   {"Personal Care", "#F79F1F"},
	HomeGarden:     {"Home & Garden", "#A3CB38"},
	Business:       {"Business", "#1289A7"},
	Other:          {"Other", "#C8D6E5"},
}

// Categories lists every category in display order.
var Categories = []Category{
	FoodDining, Transportation, Shopping, Entertainment, BillsUtilities,
	Healthcare, Education, Travel, Groceries, Insurance, Investments,
	GiftsDonations, PersonalCare, HomeGarden, Business, Other,
}

func (c Category) Valid() bool {
	_, ok := categoryTable[c]
	return ok
}

// Label returns the display name, or the raw value for unknown categories.
func (c Category) Label() string {
	if info, ok := categoryTable[c]; ok {
		return info.label
	}
	return string(c)
}

func (c Category) Color() string {
	if info, ok := categoryTable[c]; ok {
		return info.color
	}
	return categoryTable[Other].color
}

// ParseCategory accepts either the enum code or its display label.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	code := Category(strings.ToUpper(s))
	if code.Valid() {
		return code, true
	}
	for _, c := range Categories {
		if strings.EqualFold(c.Label(), s) {
			return c, true
		}
	}
	return "", false
}

type PaymentMethod string

const (
	Cash          PaymentMethod = "CASH"
	CreditCard    PaymentMethod = "CREDIT_CARD"
	DebitCard     PaymentMethod = "DEBIT_CARD"
	BankTransfer  PaymentMethod = "BANK_TRANSFER"
	DigitalWallet PaymentMethod = "DIGITAL_WALLET"
	OtherPayment  PaymentMethod = "OTHER"
)

var PaymentMethods = []PaymentMethod{Cash, CreditCard, DebitCard, BankTransfer, DigitalWallet, OtherPayment}

func (p PaymentMethod) Label() string {
	switch p {
	case Cash:
		return "Cash"
	case CreditCard:
		return "Credit Card"
	case DebitCard:
		return "Debit Card"
	case BankTransfer:
		return "Bank Transfer"
	case DigitalWallet:
		return "Digital Wallet"
	case OtherPayment:
		return "Other"
	}
	return string(p)
}

// Source records how an expense was captured.
type Source string

const (
	SourceManual Source = "MANUAL"
	SourceOCR    Source = "OCR"
	SourceVoice  Source = "VOICE"
)
