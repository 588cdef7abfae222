package domain

// TradingStats accumulates running statistics for one backtest run:
// equity, trade counts, deal outcomes, drawdown.
type TradingStats struct {
	InitialEquityUSD float64

	equitySymbol float64
	equityUSD    float64

	TotalTrades int
	BuyTrades   int
	SellTrades  int

	MaxMarketVolume float64
	TotalFees       float64

	Profit     float64
	profitMax  float64
	DrawdownMax float64

	TotalDeals  int
	LongDeals   int
	ShortDeals  int
	ProfitDeals int
	LossDeals   int

	ProfitPerDeal *float64
	ProfitGross   *float64

	AvgProfitPerWinningDeal *float64
	AvgLossPerLosingDeal    *float64

	ProfitLong  float64
	ProfitShort float64

	totalProfitWinning float64
	totalLossLosing    float64

	FeeTaker  float64
	FeeMaker  float64
	Slippage  float64
	PriceStep float64
	Source    string
	Symbol    string
	Timeframe Timeframe
	DateStart string
	DateEnd   string
}

// EquitySymbol is the running net position across every fill, in symbol
// units.
func (s TradingStats) EquitySymbol() float64 { return s.equitySymbol }

// EquityUSD is the running net cash flow of every fill (sale proceeds less
// purchase costs and fees); InitialEquityUSD is not included.
func (s TradingStats) EquityUSD() float64 { return s.equityUSD }

// AddTrade updates equity, trade counts, fees, max market volume, profit
// and drawdown for one fill.
func (s *TradingStats) AddTrade(t Trade) {
	s.TotalTrades++
	if t.Side == Buy {
		s.BuyTrades++
		s.equitySymbol += t.Qty
		s.equityUSD -= t.Sum + t.Fee
	} else {
		s.SellTrades++
		s.equitySymbol -= t.Qty
		s.equityUSD += t.Sum - t.Fee
	}

	if abs := absf(s.equitySymbol); abs > s.MaxMarketVolume {
		s.MaxMarketVolume = abs
	}

	s.TotalFees += t.Fee

	currentProfit := s.equitySymbol*t.Price + s.equityUSD
	s.Profit = currentProfit
	if currentProfit > s.profitMax {
		s.profitMax = currentProfit
	}
	if dd := s.profitMax - currentProfit; dd > s.DrawdownMax {
		s.DrawdownMax = dd
	}
}

// AddDeal folds a closed deal's outcome into the running statistics. Deals
// with no trades are ignored.
func (s *TradingStats) AddDeal(d Deal) {
	if len(d.TradeIDs) == 0 {
		return
	}
	s.TotalDeals++

	if d.Type == nil {
		return
	}

	switch *d.Type {
	case Long:
		s.LongDeals++
		if d.IsClosed && d.Profit != nil {
			s.ProfitLong += *d.Profit
			s.foldDealOutcome(*d.Profit)
		}
	case Short:
		s.ShortDeals++
		if d.IsClosed && d.Profit != nil {
			s.ProfitShort += *d.Profit
			s.foldDealOutcome(*d.Profit)
		}
	}
}

func (s *TradingStats) foldDealOutcome(profit float64) {
	switch {
	case profit > 0:
		s.ProfitDeals++
		s.totalProfitWinning += profit
		avg := s.totalProfitWinning / float64(s.ProfitDeals)
		s.AvgProfitPerWinningDeal = &avg
	case profit < 0:
		s.LossDeals++
		s.totalLossLosing += profit
		avg := s.totalLossLosing / float64(s.LossDeals)
		s.AvgLossPerLosingDeal = &avg
	}
}

// CalcStat derives ProfitPerDeal and ProfitGross from the running totals.
func (s *TradingStats) CalcStat() {
	if s.TotalDeals > 0 {
		v := s.Profit / float64(s.TotalDeals)
		s.ProfitPerDeal = &v
	} else {
		s.ProfitPerDeal = nil
	}
	gross := s.Profit + s.TotalFees
	s.ProfitGross = &gross
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
