package main

import (
	"fmt"
	"io"

	"github.com/rxtech-lab/argo-orderbot/internal/execution"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/schollz/progressbar/v3"
)

// sliceProgress draws a TWAP progress bar, one step per slice.
type sliceProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	failed int
}

func newSliceProgress(writer io.Writer, plan types.TWAPPlan) *sliceProgress {
	bar := progressbar.NewOptions(plan.NumOrders,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionSetDescription(fmt.Sprintf("TWAP %s %s", plan.Side, plan.Symbol)),
		progressbar.OptionShowCount(),
	)

	return &sliceProgress{
		writer: writer,
		bar:    bar,
		failed: 0,
	}
}

// OnSlice advances the bar after a slice, placed or failed.
func (p *sliceProgress) OnSlice(report execution.SliceReport) {
	if report.Error != nil {
		p.failed++
		p.bar.Describe(fmt.Sprintf("TWAP %s %s (%d failed)", report.Request.Side, report.Request.Symbol, p.failed))
	}

	_ = p.bar.Add(1)
}

// Finish ends the bar line.
func (p *sliceProgress) Finish() {
	_ = p.bar.Finish()
	fmt.Fprintln(p.writer)
}
