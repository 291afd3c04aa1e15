package fees

// Model converts a taker fee expressed in basis points into fee amounts
// charged on notional value.
type Model struct {
	TakerBps int
}

// NewModel builds a fee model from a taker fee in basis points.
func NewModel(takerBps int) Model {
	return Model{TakerBps: takerBps}
}

// TakerRate returns the taker fee as a fraction of notional.
func (m Model) TakerRate() float64 {
	return float64(m.TakerBps) / 10000.0
}

// TakerFee returns the fee charged on a single fill of the given notional.
func (m Model) TakerFee(notional float64) float64 {
	return notional * m.TakerRate()
}

// RoundTripFee returns the fee for entering and later unwinding a holding of
// the given notional. Both legs pay the taker rate.
func (m Model) RoundTripFee(notional float64) float64 {
	return 2 * m.TakerFee(notional)
}

// RateFor returns the market's own taker rate when the market carries one,
// falling back to the model's configured rate.
func (m Model) RateFor(marketBps int) float64 {
	if marketBps > 0 {
		return float64(marketBps) / 10000.0
	}
	return m.TakerRate()
}
