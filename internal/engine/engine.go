package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsight/finsight/internal/impact"
	"github.com/finsight/finsight/internal/logger"
	"github.com/finsight/finsight/internal/model"
	"github.com/finsight/finsight/internal/narrative"
	"github.com/finsight/finsight/internal/scoring"
)

// Scorer 外部评分引擎的抽象
type Scorer interface {
	Diagnose(ctx context.Context, profile *model.BusinessProfile) (*scoring.Response, error)
	Simulate(ctx context.Context, profile *model.BusinessProfile) (*scoring.Response, error)
}

// maintainMessage 最终动作但没有任何实际调整时的固定话术，不触发 LLM
const maintainMessage = "Keep up your current habits to maintain your business stability."

// Engine 评估与模拟管道。每次调用都是纯粹的"输入+外部应答"函数，
// 不持有跨请求状态。
type Engine struct {
	scorer    Scorer
	ranker    *impact.Ranker
	generator narrative.Generator
}

// NewEngine 创建管道引擎
func NewEngine(scorer Scorer, ranker *impact.Ranker, generator narrative.Generator) *Engine {
	return &Engine{
		scorer:    scorer,
		ranker:    ranker,
		generator: generator,
	}
}

// Diagnose 诊断管道：评分 -> 影响力排序 -> 解释。
// 解释失败只降级不阻断，评分失败直接终止。
func (e *Engine) Diagnose(ctx context.Context, profile *model.BusinessProfile) (*model.DiagnosisResult, error) {
	resp, err := e.scorer.Diagnose(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("diagnose: %w", err)
	}

	items := e.ranker.Rank(resp.SimulationImpacts)
	fillCurrentValues(items, profile)

	result := &model.DiagnosisResult{
		HealthScore:       resp.Score(),
		Breakdown:         resp.Breakdown,
		SimulationImpacts: resp.SimulationImpacts,
		Impacts:           items,
	}

	explanation, err := e.generator.Explain(ctx, profile, result.HealthScore, result.Breakdown, items)
	if err != nil {
		// 解释是锦上添花，评分必须照常返回
		logger.Log.Errorf("explanation generation failed: %v", err)
	} else {
		result.Explanation = explanation
	}

	return result, nil
}

// Simulate What-If 管道：按百分比派生调整后画像并重新评分。
// 收益描述只在最终动作且存在非零调整时生成，滑杆中间态不得触发 LLM。
func (e *Engine) Simulate(ctx context.Context, profile *model.BusinessProfile, adjustments model.Adjustment, currentScore int, isFinal bool) (*model.SimulationResult, error) {
	adjusted := ApplyAdjustments(profile, adjustments)

	resp, err := e.scorer.Simulate(ctx, adjusted)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	result := &model.SimulationResult{
		BeforeScore:     currentScore,
		AfterScore:      resp.Score(),
		PointsChange:    resp.Score() - currentScore,
		AdjustedProfile: adjusted,
		Benefits:        []string{},
		Details:         resp.Breakdown,
	}

	switch {
	case isFinal && adjustments.Changed():
		benefits, err := e.generator.Benefits(ctx, profile, adjustments, currentScore, result.AfterScore)
		if err != nil {
			logger.Log.Errorf("benefit generation failed: %v", err)
		} else {
			result.Benefits = benefits
		}
	case isFinal:
		result.Benefits = []string{maintainMessage}
	}

	return result, nil
}

// Coach 生成教练计划。应答结构不合契约时降级为空计划，绝不阻断评分展示。
func (e *Engine) Coach(ctx context.Context, sector string, finalScore int, adjusted *model.BusinessProfile, currency string, impacts []model.ImpactItem) (*model.CoachingPlan, error) {
	plan, err := e.generator.Plan(ctx, sector, finalScore, adjusted, currency, impacts)
	if err != nil {
		var pe *narrative.ParseError
		if errors.As(err, &pe) {
			logger.Log.Errorf("coaching plan reply unparseable, degrading: %v", err)
			return &model.CoachingPlan{
				ActionSteps:    []string{},
				GrowthTips:     []string{},
				ProjectedScore: finalScore,
				Status:         model.StatusLabel(finalScore),
				Degraded:       true,
			}, nil
		}
		return nil, fmt.Errorf("coach: %w", err)
	}
	return plan, nil
}

// ApplyAdjustments 按 adjusted = original * (1 + pct/100) 派生新画像。
// 乘法而非加法，-100% 会把杠杆精确推到 0；结果为负时取 0，
// 负的金额和天数没有意义。未出现的杠杆原样保留。
func ApplyAdjustments(profile *model.BusinessProfile, adjustments model.Adjustment) *model.BusinessProfile {
	adjusted := *profile
	for _, lever := range model.Levers {
		pct, ok := adjustments[lever]
		if !ok {
			continue
		}
		v := profile.Lever(lever) * (1 + pct/100)
		if v < 0 {
			v = 0
		}
		adjusted.SetLever(lever, v)
	}
	return &adjusted
}

// fillCurrentValues 补全条目的展示值，金额带货币代码，库存带天数
func fillCurrentValues(items []model.ImpactItem, profile *model.BusinessProfile) {
	for i := range items {
		v := profile.Lever(items[i].Field)
		if items[i].Field == model.LeverInventoryDays {
			items[i].CurrentValue = fmt.Sprintf("%s days", model.FormatAmount(v))
		} else {
			items[i].CurrentValue = fmt.Sprintf("%s %s", profile.Currency, model.FormatAmount(v))
		}
	}
}
