package models

// ReplayStatus is the terminal outcome assigned to a replay item.
// Each item transitions exactly once from StatusPending to a terminal
// status before the session cursor advances past it.
type ReplayStatus string

const (
	StatusPending        ReplayStatus = "PENDING"
	StatusListed         ReplayStatus = "LISTED"
	StatusAlreadySelling ReplayStatus = "ALREADY_SELLING"
	StatusNeedsApproval  ReplayStatus = "NEEDS_APPROVAL"
	StatusSkipped        ReplayStatus = "SKIPPED"
	StatusError          ReplayStatus = "ERROR"
	StatusUnknown        ReplayStatus = "UNKNOWN"
)

// Terminal reports whether the status ends an item's processing.
func (s ReplayStatus) Terminal() bool {
	return s != StatusPending && s != ""
}

// ReplayItem is a scraped listing queued for replay into the seller
// portal, together with its mutable outcome.
type ReplayItem struct {
	ListingRecord
	Status  ReplayStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// ItemResult is the per-item outcome record persisted for reporting.
type ItemResult struct {
	Product string       `json:"product"`
	Status  ReplayStatus `json:"status"`
	Message string       `json:"message"`
}

// FormSettings is the flat configuration applied when filling the seller
// portal listing form. Empty optional fields leave the form's own
// defaults untouched.
type FormSettings struct {
	SKUPrefix              string  `json:"skuPrefix" yaml:"sku_prefix"`
	ListingStatus          string  `json:"listingStatus" yaml:"listing_status"`
	MRPMultiplier          float64 `json:"mrpMultiplier" yaml:"mrp_multiplier"`
	SellingPriceMultiplier float64 `json:"sellingPriceMultiplier" yaml:"selling_price_multiplier"`
	MinOrderQty            string  `json:"minOrderQty" yaml:"min_order_qty"`
	ProcurementType        string  `json:"procurementType" yaml:"procurement_type"`
	ProcurementSLA         string  `json:"procurementSLA" yaml:"procurement_sla"`
	Stock                  string  `json:"stock" yaml:"stock"`
	LocalHandlingFee       string  `json:"localHandlingFee,omitempty" yaml:"local_handling_fee"`
	ZonalHandlingFee       string  `json:"zonalHandlingFee,omitempty" yaml:"zonal_handling_fee"`
	NationalHandlingFee    string  `json:"nationalHandlingFee,omitempty" yaml:"national_handling_fee"`
	Length                 string  `json:"length,omitempty" yaml:"length"`
	Breadth                string  `json:"breadth,omitempty" yaml:"breadth"`
	Height                 string  `json:"height,omitempty" yaml:"height"`
	Weight                 string  `json:"weight,omitempty" yaml:"weight"`
	HSN                    string  `json:"hsn,omitempty" yaml:"hsn"`
	LuxuryCess             string  `json:"luxuryCess,omitempty" yaml:"luxury_cess"`
	TaxCode                string  `json:"taxCode" yaml:"tax_code"`
	CountryOfOrigin        string  `json:"countryOfOrigin" yaml:"country_of_origin"`
	ManufacturerDetails    string  `json:"manufacturerDetails,omitempty" yaml:"manufacturer_details"`
	PackerDetails          string  `json:"packerDetails,omitempty" yaml:"packer_details"`
	ImporterDetails        string  `json:"importerDetails,omitempty" yaml:"importer_details"`
	AutoSubmit             bool    `json:"autoSubmit" yaml:"auto_submit"`
}

// DefaultFormSettings returns the portal defaults applied when a field
// is not configured.
func DefaultFormSettings() FormSettings {
	return FormSettings{
		ListingStatus:          "ACTIVE",
		MRPMultiplier:          1,
		SellingPriceMultiplier: 1,
		MinOrderQty:            "1",
		ProcurementType:        "REGULAR",
		ProcurementSLA:         "2",
		Stock:                  "10",
		TaxCode:                "GST_18",
		CountryOfOrigin:        "IN",
	}
}

// Session is the unit of replay persistence: the ordered item queue, the
// cursor into it, the form settings and the active flag. It is written
// through to the state store after every mutation of Cursor, Active or an
// item's status, so a reload of the host page never loses progress.
type Session struct {
	Items    []ReplayItem `json:"items"`
	Cursor   int          `json:"cursor"`
	Settings FormSettings `json:"settings"`
	Active   bool         `json:"active"`
}

// Done reports terminal completion: the cursor has advanced past the
// last item.
func (s *Session) Done() bool {
	return s.Cursor >= len(s.Items)
}

// Current returns the item under the cursor, or nil when done.
func (s *Session) Current() *ReplayItem {
	if s.Done() {
		return nil
	}
	return &s.Items[s.Cursor]
}
