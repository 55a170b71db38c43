package domain

// Candle is one OHLCV bar of a token's price series.
// Corresponds to the candles table in ClickHouse and to one row of a columnar snapshot.
type Candle struct {
	Token           string  // token address / symbol
	Chain           string  // chain the token trades on
	TimestampMs     int64   // bar open time, Unix milliseconds
	Open            float64 // open price
	High            float64 // high price
	Low             float64 // low price
	Close           float64 // close price
	Volume          float64 // traded volume in the bar
	IntervalSeconds int     // bar width in seconds
}

// Valid reports whether the OHLC invariant low <= min(open,close) <= max(open,close) <= high holds.
func (c *Candle) Valid() bool {
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return c.Low <= lo && hi <= c.High
}

// Supported candle intervals (in seconds)
const (
	Interval1Min  = 60
	Interval5Min  = 300
	Interval15Min = 900
	Interval1Hour = 3600
)
