package backtest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
)

// Metrics are summary statistics over a run's resolved positions.
type Metrics struct {
	Trades      int
	Skipped     int
	Wins        int
	Losses      int
	WinRate     float64
	MeanPnL     float64
	PnLStdDev   float64
	MaxDrawdown float64
}

// ComputeMetrics derives summary statistics from a result. Skipped positions
// are counted but contribute nothing else.
func ComputeMetrics(res *Result) Metrics {
	var m Metrics
	var pnls []float64

	equity := res.InitialCapital
	peak := equity
	for _, pos := range res.Positions {
		if pos.ExitReason == ExitSkipped {
			m.Skipped++
			continue
		}
		m.Trades++
		if pos.LeveragedPnL > 0 {
			m.Wins++
		} else {
			m.Losses++
		}
		pnls = append(pnls, pos.LeveragedPnL)

		equity += pos.LeveragedPnL
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}

	if m.Trades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.Trades)
	}
	if len(pnls) > 0 {
		m.MeanPnL, _ = stats.Mean(pnls)
		m.PnLStdDev, _ = stats.StandardDeviation(pnls)
	}
	return m
}

// PrintResult renders the run summary and the position log as tables.
func PrintResult(w io.Writer, res *Result) {
	m := ComputeMetrics(res)

	fmt.Fprintf(w, "Backtest %s [%s - %s]\n", res.RunID,
		res.Start.Format(time.RFC3339), res.End.Format(time.RFC3339))

	summary := tablewriter.NewWriter(w)
	summary.SetAlignment(tablewriter.ALIGN_RIGHT)
	summary.SetHeader([]string{"Metric", "Value"})
	summary.Append([]string{"Triggers", fmt.Sprintf("%d", len(res.Triggers))})
	summary.Append([]string{"Trades", fmt.Sprintf("%d", m.Trades)})
	summary.Append([]string{"Skipped", fmt.Sprintf("%d", m.Skipped)})
	summary.Append([]string{"Win Rate", fmt.Sprintf("%.1f%%", m.WinRate*100)})
	summary.Append([]string{"Mean PnL", fmt.Sprintf("$%.2f", m.MeanPnL)})
	summary.Append([]string{"PnL StdDev", fmt.Sprintf("$%.2f", m.PnLStdDev)})
	summary.Append([]string{"Max Drawdown", fmt.Sprintf("$%.2f", m.MaxDrawdown)})
	summary.Append([]string{"Initial Capital", fmt.Sprintf("$%.2f", res.InitialCapital)})
	summary.Append([]string{"Total PnL", fmt.Sprintf("$%.2f", res.TotalPnL)})
	summary.Append([]string{"Final Equity", fmt.Sprintf("$%.2f", res.FinalEquity)})
	summary.Append([]string{"ROI", fmt.Sprintf("%.2f%%", res.ROI*100)})
	summary.Render()

	if len(res.Positions) == 0 {
		return
	}

	trades := tablewriter.NewWriter(w)
	trades.SetHeader([]string{"Symbol", "Entry Time", "Entry", "Exit", "Reason", "ROI", "PnL"})
	for _, pos := range res.Positions {
		trades.Append([]string{
			pos.Symbol,
			pos.EntryTime.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.4f", pos.EntryPrice),
			fmt.Sprintf("%.4f", pos.ExitPrice),
			string(pos.ExitReason),
			fmt.Sprintf("%.2f%%", pos.RawROI*100),
			fmt.Sprintf("$%.2f", pos.LeveragedPnL),
		})
	}
	trades.Render()
}

// positionRecord is the CSV projection of a Position.
type positionRecord struct {
	Symbol       string  `csv:"symbol"`
	EntryTime    string  `csv:"entry_time"`
	EntryPrice   float64 `csv:"entry_price"`
	ExitPrice    float64 `csv:"exit_price"`
	ExitReason   string  `csv:"exit_reason"`
	RawROI       float64 `csv:"raw_roi"`
	LeveragedPnL float64 `csv:"leveraged_pnl"`
}

// SavePositionsCSV writes the position log to a CSV file.
func SavePositionsCSV(filename string, res *Result) error {
	records := make([]*positionRecord, 0, len(res.Positions))
	for _, pos := range res.Positions {
		records = append(records, &positionRecord{
			Symbol:       pos.Symbol,
			EntryTime:    pos.EntryTime.Format(time.RFC3339),
			EntryPrice:   pos.EntryPrice,
			ExitPrice:    pos.ExitPrice,
			ExitReason:   string(pos.ExitReason),
			RawROI:       pos.RawROI,
			LeveragedPnL: pos.LeveragedPnL,
		})
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&records, f); err != nil {
		return fmt.Errorf("failed to write positions CSV: %w", err)
	}
	return nil
}
