package model

import "time"

// InstitutionalHolding is one persisted 13F position: the shares of a single
// ticker held by a single manager as of a filing's period of report.
type InstitutionalHolding struct {
	CompanyTicker string    `json:"company_ticker"`
	HolderName    string    `json:"holder_name"`
	Shares        int64     `json:"shares"`
	FilingDate    time.Time `json:"filing_date"`
	Quarter       string    `json:"quarter"` // Q{1-4}-{year}
}

// HoldingFilter specifies criteria for listing holdings.
type HoldingFilter struct {
	Quarter string `json:"quarter,omitempty"`
	Ticker  string `json:"ticker,omitempty"`
	Holder  string `json:"holder,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}
