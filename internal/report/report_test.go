package report

import (
	"bytes"
	"testing"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPrintStatsRendersHeaderAndTable(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	var st domain.TradingStats
	st.Source = "binance"
	st.Symbol = "BTCUSDT"
	st.Timeframe = domain.Timeframe1h
	st.TotalTrades = 4
	st.TotalDeals = 2
	st.CalcStat()

	c.PrintStats(7, "result-123", st)

	out := buf.String()
	assert.Contains(t, out, "backtest #7")
	assert.Contains(t, out, "result-123")
	assert.Contains(t, out, "binance")
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "total trades")
}

func TestPtrStrFormatsNilAndValue(t *testing.T) {
	assert.Equal(t, "n/a", ptrStr(nil))
	v := 1.5
	assert.Equal(t, "1.5000", ptrStr(&v))
}
