package impact

import (
	"math"
	"sort"

	"github.com/finsight/finsight/internal/model"
)

// Ranker 把原始影响力信号转成有序、可展示的条目列表。
// 阈值量纲由外部评分引擎决定，因此全部走配置。
type Ranker struct {
	highThreshold   float64
	mediumThreshold float64
	topN            int
}

// NewRanker 创建排序器
func NewRanker(highThreshold, mediumThreshold float64, topN int) *Ranker {
	return &Ranker{
		highThreshold:   highThreshold,
		mediumThreshold: mediumThreshold,
		topN:            topN,
	}
}

// Rank 按绝对影响力降序排序并分级，同值保持杠杆规范顺序，截取前 topN 条。
// 纯函数，无 I/O。
func (r *Ranker) Rank(impacts map[string]float64) []model.ImpactItem {
	items := make([]model.ImpactItem, 0, len(impacts))
	// 以规范杠杆顺序建立初始序列，保证同值时排序稳定
	for _, lever := range model.Levers {
		m, ok := impacts[lever]
		if !ok {
			continue
		}
		items = append(items, model.ImpactItem{
			Field:     lever,
			Title:     model.LeverTitle(lever),
			Magnitude: m,
			Level:     r.classify(m),
			Status:    statusOf(m),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return math.Abs(items[i].Magnitude) > math.Abs(items[j].Magnitude)
	})

	if len(items) > r.topN {
		items = items[:r.topN]
	}
	return items
}

func (r *Ranker) classify(magnitude float64) string {
	a := math.Abs(magnitude)
	switch {
	case a > r.highThreshold:
		return model.LevelHigh
	case a > r.mediumThreshold:
		return model.LevelMedium
	default:
		return model.LevelLow
	}
}

// statusOf 信号为负表示该杠杆在拉低评分
func statusOf(magnitude float64) string {
	if magnitude < 0 {
		return model.StatusNeedsImprovement
	}
	return model.StatusOptimal
}
