package narrative

import (
	"encoding/json"
	"fmt"
	"strings"

	dm "github.com/finsight/finsight/internal/model"
)

// 三类请求各自的 system 指令
const (
	explainSystem  = "You are a warm, plain-English business coach for non-experts."
	benefitsSystem = "You are a supportive business mentor who speaks in plain English."
	planSystem     = "You are a professional business mentor who simplifies complex finance."
)

// buildExplainPrompt 诊断解释：一段不超过 70 词的自然段落
func buildExplainPrompt(profile *dm.BusinessProfile, score int, breakdown map[string]dm.CategoryScore, impacts []dm.ImpactItem) string {
	breakdownJSON, _ := json.Marshal(breakdown)
	impactsJSON, _ := json.Marshal(impacts)

	var sb strings.Builder
	fmt.Fprintf(&sb, "A business owner in the %s sector scored %d/100.\n\n", profile.Sector, score)
	fmt.Fprintf(&sb, "PERFORMANCE DATA (scores for different areas):\n%s\n\n", breakdownJSON)
	fmt.Fprintf(&sb, "IMPACT ANALYSIS (what is driving the score):\n%s\n\n", impactsJSON)
	sb.WriteString(`TASK:
Write a friendly, encouraging paragraph (4 to 5 sentences) in simple English. Explain their result, highlight their strengths, and explain the weak spot before offering any advice.

Follow this exact structure:
1. Start with a simple analogy (like a car engine, a garden, or a health check-up) to describe their overall score.
2. Praise their highest-scoring category or any metric marked "optimal" and explain how it keeps the business stable.
3. Point out the lowest-scoring category and explain how it is pulling the overall score down.
4. Pick ONE metric with status "needs_improvement" and suggest ONE practical action to fix it.

CRITICAL RULES:
- No financial jargon (no "liquidity", "ratios", or "assets").
- Use "cash on hand" instead of "cash surplus" and "stock" instead of "inventory".
- NEVER suggest improving a metric whose status is "optimal".
- No bullet points or labeled lists. Write one natural, flowing paragraph.
- Limit it to 70 words maximum.
- If ALL metrics are marked "optimal", do not invent a problem: congratulate them on running an efficient business and advise them to maintain their current habits.
- Do not just tell them to "increase cash". Prefer an operational fix, like reducing stock or wages, that naturally creates more cash.`)
	return sb.String()
}

// buildBenefitsPrompt 最终模拟的收益描述：3 条单句
func buildBenefitsPrompt(profile *dm.BusinessProfile, adjustments dm.Adjustment, before, after int) string {
	adjJSON, _ := json.Marshal(adjustments)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Business Sector: %s\n", profile.Sector)
	fmt.Fprintf(&sb, "Score Change: From %d to %d\n", before, after)
	fmt.Fprintf(&sb, "Changes Applied: %s\n", adjJSON)
	fmt.Fprintf(&sb, "Currency: %s\n\n", profile.Currency)
	sb.WriteString(`TASK: Provide 3 clear, descriptive benefits of these specific improvements.
- Use simple, warm, everyday English (no jargon like "liquidity").
- Each benefit must be one helpful sentence (max 20 words).
- Focus on how this helps the owner sleep better or grow the business.
- NO introductory text, NO numbers, NO bullet points.`)
	return sb.String()
}

// buildPlanPrompt 教练计划：严格 JSON 应答
func buildPlanPrompt(sector string, score int, adjusted *dm.BusinessProfile, currency string, impacts []dm.ImpactItem) string {
	adjustedJSON, _ := json.Marshal(adjusted)
	impactsJSON, _ := json.Marshal(impacts)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a wise financial coach for small businesses in the %s sector.\n", sector)
	fmt.Fprintf(&sb, "Their simulated state: %s (%s).\n", adjustedJSON, currency)
	fmt.Fprintf(&sb, "The target score is %d/100.\n\n", score)
	fmt.Fprintf(&sb, "IMPACT ANALYSIS (read carefully):\n%s\n\n", impactsJSON)
	sb.WriteString("Based on these numbers and the impact analysis, provide a clear roadmap in JSON format.\n\n")
	sb.WriteString("CRITICAL RULES:\n")
	sb.WriteString("1. Language: Use simple, warm, everyday English. No financial jargon.\n")
	fmt.Fprintf(&sb, "2. Currency formatting: whenever you mention a money amount, include the currency (%s).\n", currency)
	sb.WriteString(`3. No emojis or special symbols.
4. Action Steps (3 items): clear "how-to" sentences explaining the human benefit (max 20 words per step).
5. Growth Tips (3 items): supportive, long-term advice on keeping the business stable (max 20 words per tip).
6. Return ONLY a raw JSON object, no markdown markers.
7. Refer to 'Inventory Days' as 'stock turnaround time' or 'days your stock sits on the shelf'.
8. ONLY suggest improvements for impact items whose status is 'needs_improvement'. If the status is 'optimal', congratulate the business and tell them to maintain it. Never ask them to improve an optimal metric.

JSON structure:
{
  "action_steps": ["Step 1", "Step 2", "Step 3"],
  "growth_tips": ["Tip 1", "Tip 2", "Tip 3"]
}`)
	return sb.String()
}
