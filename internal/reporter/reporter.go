// Package reporter renders the periodic state tables. Output is purely
// observational; the reporter never returns errors to the trading loop.
package reporter

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"gemini-dca-bot-go/internal/models"
	"gemini-dca-bot-go/internal/signal"
)

// Reporter writes formatted tables to a single destination.
type Reporter struct {
	out io.Writer
}

func New(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// PrintLots renders every open lot grouped by symbol, oldest first.
func (r *Reporter) PrintLots(lotsBySymbol map[string][]models.Lot) {
	if len(lotsBySymbol) == 0 {
		return
	}
	symbols := make([]string, 0, len(lotsBySymbol))
	for symbol := range lotsBySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("Open Lots")
	t.AppendHeader(table.Row{"Coin", "Amount", "Cost", "Quantity", "Trade Id", "Created"})
	for _, symbol := range symbols {
		lots := lotsBySymbol[symbol]
		sort.Slice(lots, func(i, j int) bool { return lots[i].CreatedMs < lots[j].CreatedMs })
		for _, lot := range lots {
			t.AppendRow(table.Row{
				symbol,
				fmt.Sprintf("%.2f", lot.Amount),
				fmt.Sprintf("%.6f", lot.Cost),
				fmt.Sprintf("%.8f", lot.Quantity),
				lot.OrderID,
				time.Unix(lot.Created, 0).Format("2006-01-02 15:04:05"),
			})
		}
		t.AppendSeparator()
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Amount", Align: text.AlignRight},
		{Name: "Cost", Align: text.AlignRight},
		{Name: "Quantity", Align: text.AlignRight},
	})
	t.Render()
}

// PrintSignals renders the per-symbol market view with the break-even and
// target prices.
func (r *Reporter) PrintSignals(signals []*signal.Signal) {
	if len(signals) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("Market View")
	t.AppendHeader(table.Row{"Coin", "Amount", "Quantity", "Cost", "Bid", "Sell @", "Ask", "Buy @", "% Break Even"})
	for _, sig := range signals {
		t.AppendRow(table.Row{
			sig.Symbol,
			fmt.Sprintf("%.2f", sig.TotalAmount),
			fmt.Sprintf("%.8f", sig.TotalQuantity),
			fmt.Sprintf("%.6f", sig.AvgCost),
			fmt.Sprintf("%.6f", sig.Quote.Bid),
			fmt.Sprintf("%.6f", sig.SellAt),
			fmt.Sprintf("%.6f", sig.Quote.Ask),
			fmt.Sprintf("%.6f", sig.BuyAt),
			fmt.Sprintf("%.4f", sig.BreakEven),
		})
	}
	t.Render()
}

// PrintSummary renders the account totals line.
func (r *Reporter) PrintSummary(totalOutlay, cash, equity float64) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.AppendHeader(table.Row{"Total Spent", "Cash", "Total Equity", "Returns"})
	returns := 0.0
	if invested := cash + totalOutlay; invested > 0 {
		returns = ((equity - invested) / invested) * 100
	}
	t.AppendRow(table.Row{
		fmt.Sprintf("%.2f", totalOutlay),
		fmt.Sprintf("%.2f", cash),
		fmt.Sprintf("%.2f", equity),
		fmt.Sprintf("%.4f%%", returns),
	})
	t.Render()
}
