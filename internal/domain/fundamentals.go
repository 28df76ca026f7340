package domain

// Fundamentals is a point-in-time snapshot of asset fundamentals.
// All fields are optional: the upstream API omits them freely, and a
// snapshot is never mutated after fetch.
type Fundamentals struct {
	MarketCap     *float64 `json:"market_cap,omitempty"`     // market capitalization in USD
	Volume24h     *float64 `json:"volume_24h,omitempty"`     // 24h trading volume in USD
	Change24hPct  *float64 `json:"change_24h,omitempty"`     // 24h price change in percent
	MarketCapRank *int     `json:"market_cap_rank,omitempty"` // rank by market cap, 1 is largest
}
