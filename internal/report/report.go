package report

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/finsight/finsight/internal/logger"
)

const pageWidth = 210.0 // A4 纵向，毫米

// Renderer 把最终计划渲染成固定版式的 PDF
type Renderer struct {
	watermarkPath string
}

// NewRenderer 创建渲染器，watermarkPath 可为空
func NewRenderer(watermarkPath string) *Renderer {
	return &Renderer{watermarkPath: watermarkPath}
}

// Filename 由行业名派生文件名，空白替换为下划线
func Filename(sector string) string {
	safe := strings.Join(strings.Fields(sector), "_")
	if safe == "" {
		safe = "Strategy"
	}
	return fmt.Sprintf("FinSight_%s_Report.pdf", safe)
}

// Render 生成报告。版式固定：页眉、评分摘要框、行动计划、成长建议、页脚免责声明。
func (r *Renderer) Render(sector string, score int, actionSteps, growthTips []string, currency string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	r.drawWatermark(pdf)

	// 页眉色带
	pdf.SetFillColor(30, 41, 59)
	pdf.Rect(0, 0, pageWidth, 42, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(0, 16)
	pdf.CellFormat(pageWidth, 10, "FINSIGHT STRATEGY REPORT", "", 1, "C", false, 0, "")

	// 评分与行业摘要框
	boxY := 55.0
	pdf.SetDrawColor(226, 232, 240)
	pdf.SetLineWidth(0.2)
	pdf.Rect(15, boxY, 180, 24, "D")

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(100, 116, 139)
	pdf.SetXY(20, boxY+5)
	pdf.CellFormat(70, 4, "PROJECTED HEALTH SCORE", "", 0, "C", false, 0, "")
	pdf.SetXY(120, boxY+5)
	pdf.CellFormat(70, 4, "INDUSTRY SECTOR", "", 0, "C", false, 0, "")

	if score >= 70 {
		pdf.SetTextColor(16, 185, 129)
	} else {
		pdf.SetTextColor(245, 158, 11)
	}
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(20, boxY+11)
	pdf.CellFormat(70, 7, fmt.Sprintf("%d/100", score), "", 0, "C", false, 0, "")

	pdf.SetTextColor(30, 41, 59)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(120, boxY+11)
	sectorLabel := sector
	if sectorLabel == "" {
		sectorLabel = "Business"
	}
	pdf.CellFormat(70, 7, strings.ToUpper(sectorLabel), "", 0, "C", false, 0, "")

	pdf.SetY(boxY + 36)
	r.drawSection(pdf, "Immediate Action Plan", actionSteps, [3]int{59, 130, 246})
	pdf.Ln(8)
	r.drawSection(pdf, "Strategic Growth Tips", growthTips, [3]int{16, 185, 129})

	// 页脚免责声明
	pdf.SetY(-28)
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(148, 163, 184)
	pdf.MultiCell(0, 3.5,
		"This report provides AI-generated suggestions based on your simulation. Consult with a financial advisor for major decisions.",
		"", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// drawSection 渲染带彩色下划线标题的项目符号段
func (r *Renderer) drawSection(pdf *fpdf.Fpdf, title string, items []string, accent [3]int) {
	pdf.SetX(15)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	pdf.SetFillColor(accent[0], accent[1], accent[2])
	pdf.Rect(15, pdf.GetY(), 14, 0.8, "F")
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(51, 65, 85)
	for _, item := range items {
		pdf.SetX(15)
		pdf.MultiCell(180, 5, "- "+item, "", "L", false)
		pdf.Ln(1.5)
	}
}

// drawWatermark 绘制背景水印。装饰资源缺失时静默跳过，绝不影响正文生成。
func (r *Renderer) drawWatermark(pdf *fpdf.Fpdf) {
	if r.watermarkPath == "" {
		return
	}
	if _, err := os.Stat(r.watermarkPath); err != nil {
		logger.Log.Debugf("watermark skipped: %v", err)
		return
	}
	pdf.SetAlpha(0.03, "Normal")
	pdf.ImageOptions(r.watermarkPath, 25, 60, 160, 0, false, fpdf.ImageOptions{ImageType: "", ReadDpi: true}, 0, "")
	pdf.SetAlpha(1, "Normal")
	// 图片解码失败同样不应让整份报告作废
	if pdf.Err() {
		logger.Log.Warnf("watermark image unusable, continuing without it: %v", pdf.Error())
		pdf.ClearError()
	}
}
