package model

import (
	"math"
	"strconv"
	"strings"
)

// Lever 名称常量，与外部评分引擎的字段名保持一致
const (
	LeverInventoryDays      = "inventory_days"
	LeverMonthlyCashSurplus = "monthly_cash_surplus"
	LeverMonthlyWages       = "monthly_wages"
	LeverMonthlyLoanPayment = "monthly_loan_payment"
	LeverTotalAssets        = "total_assets"
	LeverTotalDebt          = "total_debt"
)

// Levers 六个可调节指标的规范顺序，排序与遍历都以它为准
var Levers = []string{
	LeverInventoryDays,
	LeverMonthlyCashSurplus,
	LeverMonthlyWages,
	LeverMonthlyLoanPayment,
	LeverTotalAssets,
	LeverTotalDebt,
}

// Sectors 支持的行业枚举
var Sectors = []string{
	"Retail",
	"Restaurant",
	"Manufacturing",
	"Services",
	"Technology",
	"Healthcare",
	"Education",
	"Construction",
}

// Currencies 支持的货币代码
var Currencies = []string{
	"KES", "UGX", "TZS", "RWF", "ZAR", "NGN", "GHS", "ETB", "USD",
}

// BusinessProfile 一次诊断的规范化业务画像，提交后不可变
type BusinessProfile struct {
	Sector             string  `json:"sector"`
	Currency           string  `json:"currency"`
	InventoryDays      float64 `json:"inventory_days"`
	MonthlyCashSurplus float64 `json:"monthly_cash_surplus"`
	MonthlyWages       float64 `json:"monthly_wages"`
	MonthlyLoanPayment float64 `json:"monthly_loan_payment"`
	TotalAssets        float64 `json:"total_assets"`
	TotalDebt          float64 `json:"total_debt"`
}

// Lever 按名称读取指标值
func (p *BusinessProfile) Lever(name string) float64 {
	switch name {
	case LeverInventoryDays:
		return p.InventoryDays
	case LeverMonthlyCashSurplus:
		return p.MonthlyCashSurplus
	case LeverMonthlyWages:
		return p.MonthlyWages
	case LeverMonthlyLoanPayment:
		return p.MonthlyLoanPayment
	case LeverTotalAssets:
		return p.TotalAssets
	case LeverTotalDebt:
		return p.TotalDebt
	}
	return 0
}

// SetLever 按名称写入指标值
func (p *BusinessProfile) SetLever(name string, v float64) {
	switch name {
	case LeverInventoryDays:
		p.InventoryDays = v
	case LeverMonthlyCashSurplus:
		p.MonthlyCashSurplus = v
	case LeverMonthlyWages:
		p.MonthlyWages = v
	case LeverMonthlyLoanPayment:
		p.MonthlyLoanPayment = v
	case LeverTotalAssets:
		p.TotalAssets = v
	case LeverTotalDebt:
		p.TotalDebt = v
	}
}

// CategoryScore 评分细分项，Percent 为 round(current/max*100)
type CategoryScore struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
	Percent int     `json:"percent"`
}

// DiagnosisResult 一次诊断的完整结果
type DiagnosisResult struct {
	HealthScore       int                      `json:"health_score"`
	Breakdown         map[string]CategoryScore `json:"breakdown"`
	SimulationImpacts map[string]float64       `json:"simulation_impacts"`
	Impacts           []ImpactItem             `json:"impacts"`
	Explanation       string                   `json:"explanation"`
}

// Adjustment 杠杆名到百分比调整量的映射，缺失表示不变
type Adjustment map[string]float64

// Changed 是否存在非零调整
func (a Adjustment) Changed() bool {
	for _, pct := range a {
		if pct != 0 {
			return true
		}
	}
	return false
}

// SimulationResult 一次 What-If 模拟的结果
type SimulationResult struct {
	BeforeScore     int                      `json:"before_simulation"`
	AfterScore      int                      `json:"after_simulation"`
	PointsChange    int                      `json:"points_change"`
	AdjustedProfile *BusinessProfile         `json:"adjusted_profile"`
	Benefits        []string                 `json:"benefits"`
	Details         map[string]CategoryScore `json:"details,omitempty"`
}

// 影响程度分级
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// 指标状态
const (
	StatusOptimal          = "optimal"
	StatusNeedsImprovement = "needs_improvement"
)

// ImpactItem 对单个杠杆影响力的展示条目
type ImpactItem struct {
	Field        string  `json:"field"`
	Title        string  `json:"title"`
	CurrentValue string  `json:"current_value"`
	Magnitude    float64 `json:"magnitude"`
	Level        string  `json:"level"`
	Status       string  `json:"status"`
}

// CoachingPlan 最终教练计划，固定 3 条行动步骤 + 3 条成长建议
type CoachingPlan struct {
	ActionSteps    []string `json:"action_steps"`
	GrowthTips     []string `json:"growth_tips"`
	ProjectedScore int      `json:"projected_score"`
	Status         string   `json:"status"`
	Degraded       bool     `json:"degraded,omitempty"`
}

// StatusLabel 根据分数给出状态标签
func StatusLabel(score int) string {
	if score >= 70 {
		return "Stable"
	}
	return "Action Required"
}

// LeverTitle 杠杆的展示标题，面向非专业用户的措辞
func LeverTitle(name string) string {
	switch name {
	case LeverInventoryDays:
		return "Stock Turnaround"
	case LeverMonthlyCashSurplus:
		return "Cash on Hand"
	case LeverMonthlyWages:
		return "Staff Wages"
	case LeverMonthlyLoanPayment:
		return "Loan Repayments"
	case LeverTotalAssets:
		return "Total Assets"
	case LeverTotalDebt:
		return "Total Debt"
	}
	return name
}

// ValidSector 判断行业是否在枚举内
func ValidSector(s string) bool {
	for _, v := range Sectors {
		if v == s {
			return true
		}
	}
	return false
}

// ValidCurrency 判断货币代码是否在枚举内
func ValidCurrency(c string) bool {
	for _, v := range Currencies {
		if v == c {
			return true
		}
	}
	return false
}

// RoundPercent 计算 round(current/max*100)，max 为 0 时返回 0
func RoundPercent(current, max float64) int {
	if max == 0 {
		return 0
	}
	return int(math.Round(current / max * 100))
}

// FormatAmount 以千分位格式化数值用于展示，如 50000 -> "50,000"
func FormatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var sb strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	out := sb.String() + frac
	if neg {
		return "-" + out
	}
	return out
}
