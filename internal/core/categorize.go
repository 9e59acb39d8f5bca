package core

import (
	"context"
	"strings"
	"time"
)

// keywordRules are checked in order; the first keyword found wins.
var keywordRules = []struct {
	category Category
	keywords []string
}{
	{FoodDining, []string{"restaurant", "food", "dining", "lunch", "dinner", "breakfast", "cafe", "coffee", "pizza", "burger"}},
	{Groceries, []string{"grocery", "groceries", "supermarket", "market"}},
	{Transportation, []string{"gas", "fuel", "uber", "taxi", "bus", "train", "parking", "toll"}},
	{Entertainment, []string{"movie", "cinema", "netflix", "concert", "game"}},
	{BillsUtilities, []string{"electric", "water bill", "internet", "phone bill", "utility", "rent"}},
	{Healthcare, []string{"pharmacy", "doctor", "hospital", "dentist", "medicine"}},
	{Shopping, []string{"amazon", "clothes", "shoes", "mall"}},
	{Travel, []string{"hotel", "flight", "airbnb"}},
	{Education, []string{"course", "tuition", "book"}},
}

// SuggestCategory looks up the first keyword contained in the description.
// Descriptions without a known keyword fall back to Other.
func SuggestCategory(description string) Category {
	d := strings.ToLower(description)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(d, kw) {
				return rule.category
			}
		}
	}
	return Other
}

// Categorizer stands in for a remote classifier: it waits Delay, then
// applies SuggestCategory.
type Categorizer struct {
	Delay time.Duration
}

func (c Categorizer) Suggest(ctx context.Context, description string) (Category, error) {
	if c.Delay > 0 {
		t := time.NewTimer(c.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return SuggestCategory(description), nil
}
