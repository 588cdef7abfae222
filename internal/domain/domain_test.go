package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskSlippage(t *testing.T) {
	task := Task{SlippageInSteps: 3, PriceStep: 0.01}
	assert.InDelta(t, 0.03, task.Slippage(), 1e-12)
}

func TestTaskEpsilons(t *testing.T) {
	task := Task{PrecisionPrice: 0.01, PrecisionAmount: 0.001}
	assert.InDelta(t, 0.001, task.PriceEpsilon(), 1e-12)
	assert.InDelta(t, 0.0001, task.AmountEpsilon(), 1e-12)
}

func TestDealAddTradeTracksRunningTotals(t *testing.T) {
	var d Deal

	d.AddTrade(Trade{TradeID: 1, Side: Buy, Qty: 2, Sum: 200, Fee: 1})
	assert.Equal(t, Long, *d.Type)
	assert.Equal(t, 2.0, d.Quantity)
	assert.Nil(t, d.Profit)
	require := assert.New(t)
	require.NotNil(d.AvgBuyPrice)
	require.Equal(100.0, *d.AvgBuyPrice)

	d.AddTrade(Trade{TradeID: 2, Side: Sell, Qty: 2, Sum: 210, Fee: 1})
	assert.Equal(t, 0.0, d.Quantity)
	assert.NotNil(t, d.Profit)
	assert.InDelta(t, 8.0, *d.Profit, 1e-9) // 210 - 200 - 2 fee
}

func TestDealUnrealizedProfitValuesOpenPosition(t *testing.T) {
	var d Deal
	d.AddTrade(Trade{TradeID: 1, Side: Buy, Qty: 2, Sum: 200, Fee: 1})
	assert.InDelta(t, -1.0, d.UnrealizedProfit(100), 1e-9) // 0 + 200 - 200 - 1
	assert.InDelta(t, 19.0, d.UnrealizedProfit(110), 1e-9) // 0 + 220 - 200 - 1
}

func TestTradingStatsAddTradeTracksEquityAndDrawdown(t *testing.T) {
	var st TradingStats
	st.InitialEquityUSD = 1000

	st.AddTrade(Trade{Side: Buy, Qty: 1, Price: 100, Sum: 100, Fee: 0})
	assert.Equal(t, 1, st.TotalTrades)
	assert.Equal(t, 1, st.BuyTrades)
	assert.Equal(t, 1.0, st.EquitySymbol())
	assert.InDelta(t, -100, st.EquityUSD(), 1e-9)

	st.AddTrade(Trade{Side: Sell, Qty: 1, Price: 90, Sum: 90, Fee: 0})
	assert.Equal(t, 1, st.SellTrades)
	assert.InDelta(t, -10, st.Profit, 1e-9) // -100+90 = -10, initial cancels out
	assert.Greater(t, st.DrawdownMax, 0.0)
}

func TestTradingStatsAddDealSkipsDealsWithoutTrades(t *testing.T) {
	var st TradingStats
	st.AddDeal(Deal{})
	assert.Equal(t, 0, st.TotalDeals)
}

func TestTradingStatsAddDealFoldsProfitAndLoss(t *testing.T) {
	var st TradingStats
	long := Long
	win := 10.0
	st.AddDeal(Deal{TradeIDs: []int64{1}, Type: &long, IsClosed: true, Profit: &win})
	assert.Equal(t, 1, st.TotalDeals)
	assert.Equal(t, 1, st.LongDeals)
	assert.Equal(t, 1, st.ProfitDeals)
	require := assert.New(t)
	require.NotNil(st.AvgProfitPerWinningDeal)
	require.Equal(10.0, *st.AvgProfitPerWinningDeal)

	loss := -4.0
	st.AddDeal(Deal{TradeIDs: []int64{2}, Type: &long, IsClosed: true, Profit: &loss})
	assert.Equal(t, 1, st.LossDeals)
	require.NotNil(st.AvgLossPerLosingDeal)
	require.Equal(-4.0, *st.AvgLossPerLosingDeal)
}

func TestTradingStatsCalcStat(t *testing.T) {
	var st TradingStats
	st.TotalDeals = 2
	st.Profit = 20
	st.TotalFees = 4
	st.CalcStat()
	require := assert.New(t)
	require.NotNil(st.ProfitPerDeal)
	require.Equal(10.0, *st.ProfitPerDeal)
	require.NotNil(st.ProfitGross)
	require.Equal(24.0, *st.ProfitGross)
}

func TestTradingStatsCalcStatNoDealsLeavesProfitPerDealNil(t *testing.T) {
	var st TradingStats
	st.CalcStat()
	assert.Nil(t, st.ProfitPerDeal)
}
