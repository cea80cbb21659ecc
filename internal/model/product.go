package model

// Ratings summarizes review data found across sources.
type Ratings struct {
	Average float64 `json:"average" description:"Average rating on a 0-5 scale, 0 when unknown"`
	Count   int     `json:"count" description:"Number of reviews backing the average, 0 when unknown"`
	Summary string  `json:"summary" description:"Short summary of what reviewers say"`
}

// PurchaseLocation is a place the product can be bought.
type PurchaseLocation struct {
	Retailer string `json:"retailer"`
	Country  string `json:"country"`
	Price    string `json:"price" description:"Price with currency, e.g. USD 199.99"`
	URL      string `json:"url"`
}

// Specification is one label/value pair from the product's spec sheet.
type Specification struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FAQ is a question and answer about the product.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ProductDetails is the synthesized part of a product record. It never
// carries the image: the image is attached after synthesis.
type ProductDetails struct {
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Ratings        Ratings            `json:"ratings"`
	WhereToBuy     []PurchaseLocation `json:"whereToBuy"`
	Specifications []Specification    `json:"specifications"`
	FAQ            []FAQ              `json:"faq"`
}

// Normalize replaces nil collections with empty ones so they serialize as
// JSON arrays.
func (d *ProductDetails) Normalize() {
	if d.WhereToBuy == nil {
		d.WhereToBuy = []PurchaseLocation{}
	}
	if d.Specifications == nil {
		d.Specifications = []Specification{}
	}
	if d.FAQ == nil {
		d.FAQ = []FAQ{}
	}
}

// ProductRecord is the response returned to callers.
type ProductRecord struct {
	ProductDetails
	Image *Image `json:"image,omitempty"`
}
