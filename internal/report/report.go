package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/chain"
)

func WriteJSON(records []chain.OptionRecord, outdir string) error {
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, "chain.json"), b, 0644)
}

func WriteCSV(records []chain.OptionRecord, outdir string) error {
	f, err := os.Create(filepath.Join(outdir, "chain.csv"))
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	headers := []string{"symbol", "underlying_symbol", "contract_id", "strike", "right", "expiry", "bid", "ask", "implied_volatility", "open_interest", "gamma", "delta", "spot_at_fetch", "spot_estimated"}
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Symbol,
			r.UnderlyingSymbol,
			string(r.Contract),
			fmt.Sprintf("%.2f", r.Strike),
			string(r.Right),
			r.Expiry,
			fmtPtr(r.Bid, "%.2f"),
			fmtPtr(r.Ask, "%.2f"),
			fmtPtr(r.ImpliedVolatility, "%.4f"),
			fmt.Sprintf("%d", r.OpenInterest),
			fmtPtr(r.Gamma, "%.6f"),
			fmtPtr(r.Delta, "%.4f"),
			fmt.Sprintf("%.2f", r.SpotAtFetch),
			fmt.Sprintf("%t", r.SpotEstimated),
		}
		_ = w.Write(row)
	}
	return nil
}

func fmtPtr(v *float64, format string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}
