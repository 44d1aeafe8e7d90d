// Package installbase holds the source-side entities (install-base assets,
// pipeline opportunities, delivery projects and the service catalog) plus the
// tolerant parsing and identity rules applied to them at ingestion.
package installbase

import (
	"time"
)

// Asset is a hardware item in a customer's install base.  Ingested fields
// are immutable; the derived block is recomputed on every run by Assess.
type Asset struct {
	SerialID       string     `json:"serial_id"`
	SourceSerialID string     `json:"source_serial_id,omitempty"`
	ProductName    string     `json:"product_name"`
	ProductNumber  string     `json:"product_number,omitempty"`
	ProductFamily  string     `json:"product_family"`
	TerritoryID    string     `json:"territory_id"`
	AccountName    string     `json:"account_name,omitempty"`
	BusinessArea   string     `json:"business_area,omitempty"`
	SupportStatus  string     `json:"support_status"`
	EOLDate        *time.Time `json:"eol_date,omitempty"`
	EOSLDate       *time.Time `json:"eosl_date,omitempty"`
	Description    string     `json:"description,omitempty"`
	Row            int        `json:"row"`

	RiskLevel       RiskLevel `json:"risk_level,omitempty"`
	SupportExpired  bool      `json:"support_expired"`
	Uncovered       bool      `json:"uncovered"`
	DaysSinceEOL    int       `json:"days_since_eol"`
	DaysSinceExpiry int       `json:"days_since_expiry"`
}

// PastEOL reports whether the asset has a known end-of-life date that has
// passed as of the last assessment.
func (a *Asset) PastEOL() bool {
	return a.EOLDate != nil && a.DaysSinceEOL > 0
}

// DaysUntilEOL returns the days remaining before end of life, or -1 when the
// date is unknown or already passed.
func (a *Asset) DaysUntilEOL() int {
	if a.EOLDate == nil || a.DaysSinceEOL > 0 {
		return -1
	}
	return -a.DaysSinceEOL
}

// Opportunity is an open sales-pipeline item.
type Opportunity struct {
	ID          string `json:"id"`
	SourceID    string `json:"source_id,omitempty"`
	TerritoryID string `json:"territory_id"`
	AccountName string `json:"account_name,omitempty"`
	ProductLine string `json:"product_line,omitempty"`
	Row         int    `json:"row"`
}

// Project is a historical delivery record.  PrimaryKey is the sparse
// opportunity-derived id; SecondaryKey is the dense territory id that always
// links the project to its account.
type Project struct {
	ID           string     `json:"id"`
	SourceID     string     `json:"source_id,omitempty"`
	PrimaryKey   string     `json:"primary_key,omitempty"`
	SecondaryKey string     `json:"secondary_key"`
	AccountName  string     `json:"account_name,omitempty"`
	PracticeCode string     `json:"practice_code,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Description  string     `json:"description,omitempty"`
	SizeCategory string     `json:"size_category,omitempty"`
	Row          int        `json:"row"`
}

// LastActivity returns the end date when present, otherwise the start date.
func (p *Project) LastActivity() *time.Time {
	if p.EndDate != nil {
		return p.EndDate
	}
	return p.StartDate
}

// CatalogEntry is one service of the delivery catalog.
type CatalogEntry struct {
	Practice       string `json:"practice"`
	SubPractice    string `json:"sub_practice,omitempty"`
	ServiceName    string `json:"service_name"`
	SKUCode        string `json:"sku_code,omitempty"`
	ProductMapping string `json:"product_mapping,omitempty"`
}

// Snapshot is one ingestion batch of all source tables together with the
// per-record issues found while reading them.
type Snapshot struct {
	Assets        []*Asset
	Opportunities []*Opportunity
	Projects      []*Project
	Catalog       []CatalogEntry
	Issues        []Issue
}

// AssetBySerial returns the asset with the given serial id.
func (s *Snapshot) AssetBySerial(serial string) (*Asset, bool) {
	for _, a := range s.Assets {
		if a.SerialID == serial || (a.SourceSerialID != "" && a.SourceSerialID == serial) {
			return a, true
		}
	}
	return nil, false
}
