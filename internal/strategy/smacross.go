package strategy

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

const smaCrossName = "sma_cross"

// SMACross goes long when the fast SMA crosses above the slow SMA and
// flat when it crosses back below. It is a reference implementation of
// the Strategy ABI, not a production signal.
type SMACross struct {
	fastPeriod int
	slowPeriod int
	orderSize  float64

	wasAbove *bool
}

// NewSMACross builds an SMACross strategy with default periods; OnStart
// overrides them from the task's parameters when present.
func NewSMACross() Strategy {
	return &SMACross{fastPeriod: 10, slowPeriod: 30, orderSize: 1.0}
}

// Name implements Strategy.
func (s *SMACross) Name() string { return smaCrossName }

// ParametersDescription implements Strategy.
func (s *SMACross) ParametersDescription() map[string]string {
	return map[string]string{
		"fast_period": "fast SMA window in bars (default 10)",
		"slow_period": "slow SMA window in bars (default 30)",
		"order_size":  "quantity per entry, in symbol units (default 1.0)",
	}
}

// OnStart implements Strategy.
func (s *SMACross) OnStart(_ context.Context, params map[string]any) error {
	if v, ok := params["fast_period"]; ok {
		n, err := toInt(v)
		if err != nil {
			return fmt.Errorf("sma_cross: fast_period: %w", err)
		}
		s.fastPeriod = n
	}
	if v, ok := params["slow_period"]; ok {
		n, err := toInt(v)
		if err != nil {
			return fmt.Errorf("sma_cross: slow_period: %w", err)
		}
		s.slowPeriod = n
	}
	if v, ok := params["order_size"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("sma_cross: order_size: %w", err)
		}
		s.orderSize = f
	}
	if s.fastPeriod <= 0 || s.slowPeriod <= 0 || s.fastPeriod >= s.slowPeriod {
		return fmt.Errorf("sma_cross: fast_period (%d) must be positive and less than slow_period (%d)", s.fastPeriod, s.slowPeriod)
	}
	return nil
}

// RequiredIndicators implements Strategy: the fast and slow SMAs at
// whatever periods OnStart resolved.
func (s *SMACross) RequiredIndicators() map[string]IndicatorFunc {
	return map[string]IndicatorFunc{
		fmt.Sprintf("sma_%d", s.fastPeriod): SMA(s.fastPeriod),
		fmt.Sprintf("sma_%d", s.slowPeriod): SMA(s.slowPeriod),
	}
}

// OnBar implements Strategy.
func (s *SMACross) OnBar(_ context.Context, b Broker, _ domain.Bar, ta TA) error {
	fast, ok := ta.Value(fmt.Sprintf("sma_%d", s.fastPeriod))
	if !ok {
		return nil
	}
	slow, ok := ta.Value(fmt.Sprintf("sma_%d", s.slowPeriod))
	if !ok {
		return nil
	}

	above := fast > slow
	crossedUp := s.wasAbove != nil && !*s.wasAbove && above
	crossedDown := s.wasAbove != nil && *s.wasAbove && !above
	s.wasAbove = &above

	position := 0.0
	for _, d := range b.Deals() {
		if !d.IsClosed {
			position += d.Quantity
		}
	}

	if crossedUp && position <= 0 {
		if position < 0 {
			if _, err := b.Buy(-position, nil, nil); err != nil {
				return err
			}
		}
		if _, err := b.Buy(s.orderSize, nil, nil); err != nil {
			return err
		}
	} else if crossedDown && position > 0 {
		if _, err := b.Sell(position, nil, nil); err != nil {
			return err
		}
	}

	return nil
}

// OnFinish implements Strategy.
func (s *SMACross) OnFinish(_ context.Context, _ Broker) error {
	return nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
