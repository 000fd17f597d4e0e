package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/finsight/finsight/internal/model"
)

// Text 数值字段的原始文本。前端可能发 JSON 字符串也可能发数字字面量，
// 两种都按文本接收，统一走 ParseAmount 清洗。
type Text string

// UnmarshalJSON 接受字符串或数字
func (t *Text) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*t = Text(v)
		return nil
	}
	if s == "null" {
		*t = ""
		return nil
	}
	*t = Text(s)
	return nil
}

// FormInput 用户原始输入，数值字段为未清洗的文本
type FormInput struct {
	Sector             string `json:"sector"`
	Currency           string `json:"currency"`
	InventoryDays      Text   `json:"inventory_days"`
	MonthlyCashSurplus Text   `json:"monthly_cash_surplus"`
	MonthlyWages       Text   `json:"monthly_wages"`
	MonthlyLoanPayment Text   `json:"monthly_loan_payment"`
	TotalAssets        Text   `json:"total_assets"`
	TotalDebt          Text   `json:"total_debt"`
}

// ValidationError 聚合所有字段级别的校验失败，一次性返回
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Normalize 将原始表单清洗为规范化画像，校验不通过时返回 *ValidationError
func Normalize(raw FormInput) (*model.BusinessProfile, error) {
	fields := map[string]string{}

	sector := strings.TrimSpace(raw.Sector)
	if !model.ValidSector(sector) {
		fields["sector"] = "unknown sector"
	}
	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if !model.ValidCurrency(currency) {
		fields["currency"] = "unknown currency code"
	}

	inventoryDays := parseField("inventory_days", string(raw.InventoryDays), fields)
	cashSurplus := parseField("monthly_cash_surplus", string(raw.MonthlyCashSurplus), fields)
	wages := parseField("monthly_wages", string(raw.MonthlyWages), fields)
	loanPayment := parseField("monthly_loan_payment", string(raw.MonthlyLoanPayment), fields)
	totalAssets := parseField("total_assets", string(raw.TotalAssets), fields)
	totalDebt := parseField("total_debt", string(raw.TotalDebt), fields)

	// 范围校验只对解析成功的字段进行
	if _, bad := fields["inventory_days"]; !bad {
		if inventoryDays < 1 || inventoryDays > 365 {
			fields["inventory_days"] = "must be between 1 and 365 days"
		}
	}
	for name, v := range map[string]float64{
		"monthly_cash_surplus": cashSurplus,
		"monthly_wages":        wages,
		"monthly_loan_payment": loanPayment,
		"total_assets":         totalAssets,
		"total_debt":           totalDebt,
	} {
		if _, bad := fields[name]; !bad && v < 0 {
			fields[name] = "must not be negative"
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	return &model.BusinessProfile{
		Sector:             sector,
		Currency:           currency,
		InventoryDays:      inventoryDays,
		MonthlyCashSurplus: cashSurplus,
		MonthlyWages:       wages,
		MonthlyLoanPayment: loanPayment,
		TotalAssets:        totalAssets,
		TotalDebt:          totalDebt,
	}, nil
}

// parseField 清洗单个数值字段，失败时把原因写进 fields
func parseField(name, raw string, fields map[string]string) float64 {
	v, err := ParseAmount(raw)
	if err != nil {
		fields[name] = err.Error()
		return 0
	}
	return v
}

// ParseAmount 把用户输入的数值文本转成 float64。
// 容忍千分位逗号和前置货币代码（如 "USD 8,000"），拒绝其它非数值内容。
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("required")
	}

	// 去掉形如 "NGN 50,000" 的货币前缀
	if i := strings.IndexByte(s, ' '); i > 0 {
		prefix := strings.ToUpper(s[:i])
		if model.ValidCurrency(prefix) {
			s = strings.TrimSpace(s[i+1:])
		}
	}
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return v, nil
}
