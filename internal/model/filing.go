package model

import "time"

// Company is one entry in the SEC's company ticker registry.
type Company struct {
	CIK      string `json:"cik"`
	Name     string `json:"name"`
	Ticker   string `json:"ticker,omitempty"`
	Exchange string `json:"exchange,omitempty"`
}

// FilingReference is one filing discovered by a listing query. It carries
// everything needed to fetch and store the document: the filer's CIK, the
// form type, the filing date, and the canonical document URL. References
// live only for the duration of a retrieval session.
type FilingReference struct {
	CIK             string    `json:"cik"`
	CompanyName     string    `json:"company_name,omitempty"`
	FormType        string    `json:"form_type"`
	FilingDate      time.Time `json:"filing_date"`
	AccessionNumber string    `json:"accession_number,omitempty"`
	DocumentURL     string    `json:"document_url"`
}
