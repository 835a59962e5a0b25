package report

import (
	"context"
	"errors"

	"github.com/rushteam/targetdb/core"
)

// Writer 是结果表的落地接口（报告层 / 持久化层）。
type Writer interface {
	Name() string
	Write(ctx context.Context, table *core.PredictionTable) error
}

// MultiWriter 依次写入多个 Writer，汇总全部错误。
type MultiWriter []Writer

func (m MultiWriter) Name() string { return "multi" }

func (m MultiWriter) Write(ctx context.Context, table *core.PredictionTable) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(ctx, table); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
