// Package report prints a finished backtest's TradingStats to a
// terminal as a rendered table.
package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

// Console prints TradingStats tables to an io.Writer.
type Console struct {
	out io.Writer
}

// NewConsole builds a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// PrintStats renders one run's final stats as a two-column table under a
// two-line header (task and result ids; source, symbol, timeframe and
// date range).
func (c *Console) PrintStats(taskID int64, resultID string, st domain.TradingStats) {
	fmt.Fprintf(c.out, "\n=== backtest #%d (result %s) ===\n", taskID, resultID)
	fmt.Fprintf(c.out, "%s %s %s  %s -> %s\n", st.Source, st.Symbol, st.Timeframe, st.DateStart, st.DateEnd)

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")

	table.Append("equity (usd)", fmt.Sprintf("%.2f", st.EquityUSD()))
	table.Append("equity (symbol)", fmt.Sprintf("%.8f", st.EquitySymbol()))
	table.Append("profit", fmt.Sprintf("%.2f", st.Profit))
	table.Append("drawdown max", fmt.Sprintf("%.2f", st.DrawdownMax))
	table.Append("total trades", fmt.Sprintf("%d", st.TotalTrades))
	table.Append("buy / sell", fmt.Sprintf("%d / %d", st.BuyTrades, st.SellTrades))
	table.Append("total fees", fmt.Sprintf("%.4f", st.TotalFees))
	table.Append("total deals", fmt.Sprintf("%d", st.TotalDeals))
	table.Append("long / short", fmt.Sprintf("%d / %d", st.LongDeals, st.ShortDeals))
	table.Append("profit / loss deals", fmt.Sprintf("%d / %d", st.ProfitDeals, st.LossDeals))
	table.Append("profit per deal", ptrStr(st.ProfitPerDeal))
	table.Append("profit gross", ptrStr(st.ProfitGross))
	table.Append("avg win / avg loss", fmt.Sprintf("%s / %s", ptrStr(st.AvgProfitPerWinningDeal), ptrStr(st.AvgLossPerLosingDeal)))
	table.Append("profit long / short", fmt.Sprintf("%.2f / %.2f", st.ProfitLong, st.ProfitShort))

	table.Render()
}

func ptrStr(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}
