// Package products holds the static subscription catalog and per-plan limits.
// Prices are in JPY.
package products

import "strings"

// Interval is a subscription billing interval.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Product describes one purchasable subscription plan.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceAmount int64    `json:"price"`
	Currency    string   `json:"currency"`
	Interval    Interval `json:"interval"`
	Features    []string `json:"features"`
}

var (
	// ProMonthly is the monthly Pro subscription.
	ProMonthly = Product{
		ID:          "pro_monthly",
		Name:        "Sober Savings Pro (Monthly)",
		Description: "Full access to all Pro features including AI Coach, cloud sync, and detailed analytics.",
		PriceAmount: 480,
		Currency:    "jpy",
		Interval:    IntervalMonth,
		Features: []string{
			"クラウド同期 - 複数デバイスでデータを同期",
			"AIコーチ - パーソナライズされた禁酒アドバイス",
			"カスタム目標 - 無制限の目標設定",
			"詳細統計 - 週次・月次レポート",
			"広告非表示",
		},
	}

	// ProYearly is the yearly Pro subscription (2 months free vs monthly).
	ProYearly = Product{
		ID:          "pro_yearly",
		Name:        "Sober Savings Pro (Yearly)",
		Description: "Full access to all Pro features with 2 months free!",
		PriceAmount: 3980,
		Currency:    "jpy",
		Interval:    IntervalYear,
		Features: []string{
			"クラウド同期 - 複数デバイスでデータを同期",
			"AIコーチ - パーソナライズされた禁酒アドバイス",
			"カスタム目標 - 無制限の目標設定",
			"詳細統計 - 週次・月次レポート",
			"広告非表示",
			"年額プランで2ヶ月分お得！",
		},
	}
)

// FreePlanFeatures lists what the free tier includes (for the pricing display).
var FreePlanFeatures = []string{
	"基本的な節約トラッキング",
	"3つのプリセット目標",
	"ローカルストレージでのデータ保存",
	"基本的なモチベーション機能",
}

// ByID resolves a product identifier to its catalog entry.
func ByID(id string) (Product, bool) {
	switch strings.TrimSpace(id) {
	case ProMonthly.ID:
		return ProMonthly, true
	case ProYearly.ID:
		return ProYearly, true
	default:
		return Product{}, false
	}
}

// All returns every purchasable product.
func All() []Product {
	return []Product{ProMonthly, ProYearly}
}

// UnlimitedGoals marks a plan with no cap on custom goals.
const UnlimitedGoals = -1

// PlanLimits describes the feature gates for one plan.
type PlanLimits struct {
	MaxCustomGoals    int  `json:"maxCustomGoals"`
	AICoachEnabled    bool `json:"aiCoachEnabled"`
	CloudSyncEnabled  bool `json:"cloudSyncEnabled"`
	DetailedAnalytics bool `json:"detailedAnalytics"`
}

var (
	// FreePlanLimits gates the free tier.
	FreePlanLimits = PlanLimits{
		MaxCustomGoals:    3,
		AICoachEnabled:    false,
		CloudSyncEnabled:  false,
		DetailedAnalytics: false,
	}

	// ProPlanLimits gates the Pro tier.
	ProPlanLimits = PlanLimits{
		MaxCustomGoals:    UnlimitedGoals,
		AICoachEnabled:    true,
		CloudSyncEnabled:  true,
		DetailedAnalytics: true,
	}
)

// LimitsFor returns the limits for the given plan name. Unknown plans fail
// closed to the free tier.
func LimitsFor(plan string) PlanLimits {
	if strings.TrimSpace(plan) == "pro" {
		return ProPlanLimits
	}
	return FreePlanLimits
}

// AllowsGoalCount reports whether a plan permits holding n goals.
func (l PlanLimits) AllowsGoalCount(n int) bool {
	return l.MaxCustomGoals == UnlimitedGoals || n <= l.MaxCustomGoals
}
