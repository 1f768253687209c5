package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// LabelStyle for the left column of a summary.
	LabelStyle = lipgloss.NewStyle().Faint(true).Width(12)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))

	// WarningStyle for partial failures.
	WarningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))

	statusStyles = map[types.StrategyStatus]lipgloss.Style{
		types.StrategyStatusCompleted: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		types.StrategyStatusDegraded:  WarningStyle,
		types.StrategyStatusFailed:    ErrorStyle,
		types.StrategyStatusCanceled:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8")),
	}
)

func row(label, value string) string {
	return LabelStyle.Render(label) + " " + value
}

// renderResult formats a strategy result for the terminal.
func renderResult(result types.StrategyResult) string {
	status := statusStyles[result.Status].Render(string(result.Status))

	lines := []string{
		TitleStyle.Render(fmt.Sprintf("%s %s", result.Kind, result.Symbol)) + " " + status,
		row("id", result.ID),
		row("orders", fmt.Sprintf("%d/%d placed", result.Succeeded, result.Requested)),
		row("executed", result.ExecutedQuantity.String()),
	}

	if result.AvgPrice.IsSome() {
		lines = append(lines, row("avg price", result.AvgPrice.Unwrap().String()))
	}

	if result.Kind == types.StrategyKindGrid {
		lines = append(lines, row("levels", fmt.Sprintf("%d buy, %d sell, %d skipped", result.BuyCount, result.SellCount, result.SkippedCount)))
	}

	if result.TWAPState != "" {
		lines = append(lines, row("twap state", string(result.TWAPState)))
	}

	if !result.FinishedAt.IsZero() {
		lines = append(lines, row("duration", result.Duration().String()))
	}

	for _, handle := range result.Handles {
		lines = append(lines, row("order", renderHandle(handle)))
	}

	for _, failure := range result.Failures {
		lines = append(lines, row("failed", ErrorStyle.Render(fmt.Sprintf("#%d %v", failure.Index+1, failure.Error))))
	}

	return strings.Join(lines, "\n")
}

// renderHandle formats one order on a single line.
func renderHandle(handle types.OrderHandle) string {
	line := fmt.Sprintf("orderId=%s %s %s %s qty=%s executed=%s",
		handle.OrderID, handle.Side, handle.Kind, handle.Status, handle.OrigQuantity, handle.ExecutedQuantity)

	if price := handle.FillPrice(); price.IsSome() {
		line += " price=" + price.Unwrap().String()
	}

	if handle.StopPrice.IsSome() {
		line += " stop=" + handle.StopPrice.Unwrap().String()
	}

	return line
}

// renderOCO formats a placed OCO pair.
func renderOCO(pair types.OCOPair) string {
	linked := "emulated"
	if pair.Native {
		linked = "native"
	}

	return strings.Join([]string{
		TitleStyle.Render(fmt.Sprintf("OCO %s %s", pair.Symbol, pair.Side)) + " " + string(pair.State),
		row("link", fmt.Sprintf("%s (%s)", pair.LinkID, linked)),
		row("take profit", renderHandle(pair.TakeProfit)),
		row("stop loss", renderHandle(pair.StopLoss)),
	}, "\n")
}

// renderOCOState formats a watcher state change.
func renderOCOState(pair types.OCOPair) string {
	return fmt.Sprintf("%s %s -> %s", TitleStyle.Render("OCO"), pair.LinkID, pair.State)
}
