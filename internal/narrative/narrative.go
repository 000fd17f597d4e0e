package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/finsight/finsight/internal/config"
	dm "github.com/finsight/finsight/internal/model"
)

// Generator 文本生成依赖的抽象，便于在测试中统计调用次数
type Generator interface {
	Explain(ctx context.Context, profile *dm.BusinessProfile, score int, breakdown map[string]dm.CategoryScore, impacts []dm.ImpactItem) (string, error)
	Benefits(ctx context.Context, profile *dm.BusinessProfile, adjustments dm.Adjustment, before, after int) ([]string, error)
	Plan(ctx context.Context, sector string, score int, adjusted *dm.BusinessProfile, currency string, impacts []dm.ImpactItem) (*dm.CoachingPlan, error)
}

// ParseError LLM 应答不满足结构化契约
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("narrative reply not parseable: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LLMGenerator 基于外部 Chat 模型的实现。Plan 走单独的模型实例，
// 请求 json_object 应答格式，其余两类生成用普通实例。
type LLMGenerator struct {
	chatModel model.ChatModel
	planModel model.ChatModel
	limiter   *rate.Limiter
}

var _ Generator = (*LLMGenerator)(nil)

// NewLLMGenerator 创建生成器。低温度偏向确定性输出而非创造性。
func NewLLMGenerator(ctx context.Context, llmCfg config.LLMConfig, conc config.ConcurrencyConfig) (*LLMGenerator, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     llmCfg.BaseURL,
		APIKey:      llmCfg.APIKey,
		Model:       llmCfg.Model,
		Temperature: llmCfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}

	planModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     llmCfg.BaseURL,
		APIKey:      llmCfg.APIKey,
		Model:       llmCfg.Model,
		Temperature: llmCfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init plan chat model: %w", err)
	}

	limit := rate.Limit(float64(conc.RPM) / 60.0)
	limiter := rate.NewLimiter(limit, conc.QPS)

	return &LLMGenerator{chatModel: chatModel, planModel: planModel, limiter: limiter}, nil
}

// NewLLMGeneratorWithModel 注入已有模型，测试用
func NewLLMGeneratorWithModel(cm model.ChatModel, limiter *rate.Limiter) *LLMGenerator {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &LLMGenerator{chatModel: cm, planModel: cm, limiter: limiter}
}

// Explain 生成诊断页的解释段落
func (g *LLMGenerator) Explain(ctx context.Context, profile *dm.BusinessProfile, score int, breakdown map[string]dm.CategoryScore, impacts []dm.ImpactItem) (string, error) {
	content, err := g.generate(ctx, explainSystem, buildExplainPrompt(profile, score, breakdown, impacts))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

var bulletPrefix = regexp.MustCompile(`^[*\-\d.\s]+`)

// Benefits 生成最终模拟的收益描述，固定 3 条
func (g *LLMGenerator) Benefits(ctx context.Context, profile *dm.BusinessProfile, adjustments dm.Adjustment, before, after int) ([]string, error) {
	content, err := g.generate(ctx, benefitsSystem, buildBenefitsPrompt(profile, adjustments, before, after))
	if err != nil {
		return nil, err
	}

	// 去掉模型可能带上的编号或项目符号
	var benefits []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if len(line) > 5 {
			benefits = append(benefits, line)
		}
		if len(benefits) == 3 {
			break
		}
	}
	return benefits, nil
}

// planReply Plan 应答的结构化契约
type planReply struct {
	ActionSteps []string `json:"action_steps"`
	GrowthTips  []string `json:"growth_tips"`
}

// Plan 生成教练计划。内容允许逐次不同，但结构必须恒为 3+3。
func (g *LLMGenerator) Plan(ctx context.Context, sector string, score int, adjusted *dm.BusinessProfile, currency string, impacts []dm.ImpactItem) (*dm.CoachingPlan, error) {
	content, err := g.generateWith(ctx, g.planModel, planSystem, buildPlanPrompt(sector, score, adjusted, currency, impacts))
	if err != nil {
		return nil, err
	}

	clean := cleanJSON(content)
	var reply planReply
	if err := json.Unmarshal([]byte(clean), &reply); err != nil {
		return nil, &ParseError{Raw: content, Err: err}
	}
	if len(reply.ActionSteps) < 3 || len(reply.GrowthTips) < 3 {
		return nil, &ParseError{Raw: content, Err: fmt.Errorf("expected 3 action_steps and 3 growth_tips, got %d/%d", len(reply.ActionSteps), len(reply.GrowthTips))}
	}

	return &dm.CoachingPlan{
		ActionSteps:    reply.ActionSteps[:3],
		GrowthTips:     reply.GrowthTips[:3],
		ProjectedScore: score,
		Status:         dm.StatusLabel(score),
	}, nil
}

func (g *LLMGenerator) generate(ctx context.Context, system, user string) (string, error) {
	return g.generateWith(ctx, g.chatModel, system, user)
}

func (g *LLMGenerator) generateWith(ctx context.Context, cm model.ChatModel, system, user string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: user},
	}

	resp, err := cm.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat model generate: %w", err)
	}
	return resp.Content, nil
}

// cleanJSON 去掉模型偶尔包裹的 markdown 代码栅栏
func cleanJSON(content string) string {
	clean := strings.TrimSpace(content)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}
