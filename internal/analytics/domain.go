package analytics

import "time"

// KPISummary contains the key indicators surfaced on the dashboard.
type KPISummary struct {
	RevenueCollected   float64        `json:"revenue_collected"`
	OutstandingBalance float64        `json:"outstanding_balance"`
	InvoiceCounts      map[string]int `json:"invoice_counts"`
	OpenTickets        int            `json:"open_tickets"`
	PipelineValue      float64        `json:"pipeline_value"`
	ActiveClients      int            `json:"active_clients"`
}

// AgingBucket summarises outstanding invoice amounts inside a time bucket.
type AgingBucket struct {
	Bucket string  `json:"bucket"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// RevenuePoint is one month of collected revenue.
type RevenuePoint struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// AgingFilter scopes invoice aging computations.
type AgingFilter struct {
	AsOf time.Time
}

// TrendFilter scopes the monthly revenue trend.
type TrendFilter struct {
	Months int
}
