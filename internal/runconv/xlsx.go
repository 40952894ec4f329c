package runconv

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	api "github.com/dgellow/mcp-stress/lib-stress"
)

func excelPos(x, y uint) string {
	pos, err := excelize.CoordinatesToCellName(int(x+1), int(y+1))
	if err != nil {
		panic(err)
	}
	return pos
}

// ToXlsx writes the request events of the run as a spreadsheet, one row per
// event, failures tinted red.
func ToXlsx(w io.Writer, s *api.RunScanner, createdAt time.Time) error {
	xlsx := excelize.NewFile()
	defer xlsx.Close()
	xlsx.SetSheetName("Sheet1", "run")

	xlsx.SetAppProps(&excelize.AppProperties{
		Application: "mcp-stress",
	})
	xlsx.SetDocProps(&excelize.DocProperties{
		Created:        createdAt.Format(time.RFC3339),
		Modified:       createdAt.Format(time.RFC3339),
		Creator:        "mcp-stress",
		LastModifiedBy: "mcp-stress",
	})

	headers := []string{"t (ms)", "method", "latency (ms)", "ok", "category", "code", "error", "concurrency", "phase"}
	for i, h := range headers {
		xlsx.SetCellStr("run", excelPos(uint(i), 0), h)
	}

	const (
		okColor  = "89C923"
		errColor = "FF2D00"
	)
	latencyfmt := "#,##0.00 \"ms\""

	var row uint
	for s.Scan() {
		if s.Kind() != api.KindRequest {
			continue
		}
		row++
		if row > 100000 {
			break
		}

		e := s.Event()

		color := okColor
		if !e.OK {
			color = errColor
		}
		style, _ := xlsx.NewStyle(&excelize.Style{Border: []excelize.Border{{Type: "bottom", Style: 1, Color: color}}})
		xlsx.SetRowStyle("run", int(row+1), int(row+1), style)

		latencyStyle, _ := xlsx.NewStyle(&excelize.Style{
			CustomNumFmt: &latencyfmt,
			Border:       []excelize.Border{{Type: "bottom", Style: 1, Color: color}},
		})

		xlsx.SetCellValue("run", excelPos(0, row), e.T)
		xlsx.SetCellStr("run", excelPos(1, row), e.Method)
		xlsx.SetCellFloat("run", excelPos(2, row), e.LatencyMs, 2, 64)
		xlsx.SetCellStyle("run", excelPos(2, row), excelPos(2, row), latencyStyle)
		xlsx.SetCellBool("run", excelPos(3, row), e.OK)
		if !e.OK {
			xlsx.SetCellStr("run", excelPos(4, row), e.ErrorCategory)
			xlsx.SetCellValue("run", excelPos(5, row), e.ErrorCode)
			xlsx.SetCellStr("run", excelPos(6, row), e.Error)
		}
		if e.Concurrency > 0 {
			xlsx.SetCellValue("run", excelPos(7, row), e.Concurrency)
		}
		if e.Phase >= 0 {
			xlsx.SetCellValue("run", excelPos(8, row), e.Phase)
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	if row == 0 {
		return fmt.Errorf("no request events in input")
	}

	if err := xlsx.SetPanes("run", &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "topLeft",
	}); err != nil {
		return err
	}

	xlsx.SetColWidth("run", "B", "B", 25)
	xlsx.SetColWidth("run", "C", "C", 15)
	xlsx.SetColWidth("run", "G", "G", 40)

	xlsx.AutoFilter("run", "A1:I1", nil)

	return xlsx.Write(w)
}
