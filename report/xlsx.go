package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/rushteam/targetdb/core"
)

// 工作表名
const (
	SheetPredictions = "Tractability"
	SheetShortlist   = "Shortlist"
)

// XLSXWriter 把结果表写为 Excel 文件：一张预测表，配置了候选清单时再加一张清单表。
type XLSXWriter struct {
	Path string
}

func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{Path: path}
}

func (w *XLSXWriter) Name() string { return "xlsx" }

func (w *XLSXWriter) Write(_ context.Context, table *core.PredictionTable) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetPredictions); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	if err := writeRows(f, SheetPredictions, table); err != nil {
		return err
	}

	if table != nil && table.Shortlist != nil {
		if _, err := f.NewSheet(SheetShortlist); err != nil {
			return fmt.Errorf("report: add sheet: %w", err)
		}
		if err := f.SetSheetRow(SheetShortlist, "A1", &[]interface{}{core.ColTargetID}); err != nil {
			return fmt.Errorf("report: write header: %w", err)
		}
		for i, id := range table.Shortlist {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetCellValue(SheetShortlist, cell, id); err != nil {
				return fmt.Errorf("report: write shortlist: %w", err)
			}
		}
	}

	if err := f.SaveAs(w.Path); err != nil {
		return fmt.Errorf("report: save %s: %w", w.Path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, table *core.PredictionTable) error {
	header := make([]interface{}, len(core.PredictionColumns))
	for i, c := range core.PredictionColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	if table == nil {
		return nil
	}
	for i, r := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.TargetID, r.GeneName, r.Probability, r.Tractable, r.InTrainingSet, r.FailureReason}
		if r.Failed() {
			row[2] = nil
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report: write row %s: %w", r.TargetID, err)
		}
	}
	return nil
}

// ReadXLSX 读回 XLSXWriter 写出的文件
func ReadXLSX(path string) (*core.PredictionTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetPredictions)
	if err != nil {
		return nil, fmt.Errorf("report: read %s: %w", SheetPredictions, err)
	}
	table := &core.PredictionTable{}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		cell := func(j int) string {
			if j < len(row) {
				return row[j]
			}
			return ""
		}
		p := core.Prediction{
			TargetID:      cell(0),
			GeneName:      cell(1),
			Tractable:     cell(3),
			FailureReason: cell(5),
		}
		if s := cell(2); s != "" {
			if p.Probability, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("report: row %d probability %q: %w", i+1, s, err)
			}
		}
		p.InTrainingSet = cell(4) == "TRUE" || cell(4) == "true"
		table.Rows = append(table.Rows, p)
	}

	if idx, err := f.GetSheetIndex(SheetShortlist); err == nil && idx >= 0 {
		ids, err := f.GetRows(SheetShortlist)
		if err != nil {
			return nil, fmt.Errorf("report: read %s: %w", SheetShortlist, err)
		}
		table.Shortlist = []string{}
		for i, row := range ids {
			if i == 0 || len(row) == 0 {
				continue
			}
			table.Shortlist = append(table.Shortlist, row[0])
		}
	}
	return table, nil
}
