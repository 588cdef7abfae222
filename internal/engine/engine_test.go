package engine

import (
	"testing"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseTask() domain.Task {
	return domain.Task{
		FeeTaker:        0.001,
		FeeMaker:        0.001,
		PriceStep:       0.01,
		PrecisionAmount: 0.001,
		PrecisionPrice:  0.01,
	}
}

func TestNewRejectsZeroPrecision(t *testing.T) {
	task := baseTask()
	task.PrecisionAmount = 0
	_, err := New(task, 1000)
	require.Error(t, err)
}

func TestNewDefaultsZeroFees(t *testing.T) {
	task := baseTask()
	task.FeeTaker = 0
	task.FeeMaker = 0
	e, err := New(task, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0.001, e.feeTaker)
	assert.Equal(t, 0.001, e.feeMaker)
}

func TestBuyMarketOrderOpensAutoDeal(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	orders, err := e.Buy(1, nil, nil)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.StatusExecuted, orders[0].Status)

	deals := e.Deals()
	require.Len(t, deals, 1)
	assert.Equal(t, 1.0, deals[0].Quantity)
	assert.False(t, deals[0].IsClosed)

	trades := e.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, domain.Buy, trades[0].Side)
}

func TestSellClosesAutoDeal(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	_, err = e.Buy(1, nil, nil)
	require.NoError(t, err)

	_, err = e.Sell(1, nil, nil)
	require.NoError(t, err)

	deals := e.Deals()
	require.Len(t, deals, 1)
	assert.True(t, deals[0].IsClosed)
	assert.NotNil(t, deals[0].Profit)
}

func TestFlipSplitsTradeAcrossTwoDeals(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	_, err = e.Buy(1, nil, nil)
	require.NoError(t, err)

	// Selling 2 while long 1 closes the first deal and opens a new short
	// deal for the remainder.
	_, err = e.Sell(2, nil, nil)
	require.NoError(t, err)

	deals := e.Deals()
	require.Len(t, deals, 2)
	assert.True(t, deals[0].IsClosed)
	assert.Equal(t, 0.0, deals[0].Quantity)
	assert.False(t, deals[1].IsClosed)
	assert.Equal(t, -1.0, deals[1].Quantity)

	trades := e.Trades()
	require.Len(t, trades, 3)
}

func TestLimitOrderValidationRejectsWrongSidePrice(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	price := 110.0
	orders, err := e.Buy(1, &price, nil)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.StatusError, orders[0].Status)
	assert.NotEmpty(t, orders[0].Errors)
}

func TestLimitOrderFillsWhenPriceTouched(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	price := 95.0
	orders, err := e.Buy(1, &price, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, orders[0].Status)

	e.SetBar(2, 97, 98, 94, 96)

	got := e.Orders()
	require.Len(t, got, 1)
	assert.Equal(t, domain.StatusExecuted, got[0].Status)
}

func TestStopOrderTriggersOnBreach(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	trigger := 105.0
	orders, err := e.Buy(1, nil, &trigger)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, orders[0].Status)

	e.SetBar(2, 101, 106, 100, 104)

	got := e.Orders()
	require.Len(t, got, 1)
	assert.Equal(t, domain.StatusExecuted, got[0].Status)
}

func TestExecuteDealSizesStopLossAndTakeProfitLegs(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	deal, err := e.ExecuteDeal(domain.Buy,
		[]EntryLeg{{Volume: 10}},
		[]ExitLeg{{Fraction: 1, Price: 90}},
		[]ExitLeg{{Fraction: 0.5, Price: 110}, {Fraction: 0.5, Price: 120}},
	)
	require.NoError(t, err)
	require.NotNil(t, deal)
	assert.Equal(t, 10.0, deal.Quantity)

	orders := e.Orders()
	var stopVol, takeVolSum float64
	for _, o := range orders {
		if o.Group == domain.GroupStopLoss {
			stopVol = o.Volume
		}
		if o.Group == domain.GroupTakeProfit {
			takeVolSum += o.Volume
		}
	}
	assert.InDelta(t, 10.0, stopVol, 1e-9)
	assert.InDelta(t, 10.0, takeVolSum, 1e-9)
}

func TestExecuteDealRejectsMultipleMarketEntries(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	_, err = e.ExecuteDeal(domain.Buy,
		[]EntryLeg{{Volume: 5}, {Volume: 5}},
		nil, nil,
	)
	assert.Error(t, err)
}

func TestExecuteDealRejectsNonPositiveFraction(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	_, err = e.ExecuteDeal(domain.Buy,
		[]EntryLeg{{Volume: 5}},
		[]ExitLeg{{Fraction: 0, Price: 90}},
		nil,
	)
	assert.Error(t, err)
}

func TestCancelOrdersCancelsRestingOrders(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	price := 95.0
	orders, err := e.Buy(1, &price, nil)
	require.NoError(t, err)

	canceled := e.CancelOrders([]int64{orders[0].OrderID})
	require.Len(t, canceled, 1)
	assert.Equal(t, domain.StatusCanceled, canceled[0].Status)

	e.SetBar(2, 97, 98, 90, 96)
	got := e.Orders()
	assert.Equal(t, domain.StatusCanceled, got[0].Status)
}

func TestStatsAccumulateOnDealClose(t *testing.T) {
	e, err := New(baseTask(), 1000)
	require.NoError(t, err)
	e.SetBar(1, 100, 100, 100, 100)

	_, err = e.Buy(1, nil, nil)
	require.NoError(t, err)
	_, err = e.Sell(1, nil, nil)
	require.NoError(t, err)

	st := e.Stats()
	assert.Equal(t, 1, st.TotalDeals)
}
