package latch

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/shoplatch/latchbot/internal/dom"
	"github.com/shoplatch/latchbot/internal/extract"
	"github.com/shoplatch/latchbot/internal/models"
	"github.com/shoplatch/latchbot/internal/ratelimit"
)

// FormSelector matches the listing form the portal opens after the
// start-selling control is clicked.
const FormSelector = "form#latch-on-form"

// Submit control fallback chain, most specific first.
var submitChain = dom.Chain{
	FormSelector + ` button[type="submit"]`,
	"button.submitListing",
}

// Fixed portal values not exposed through FormSettings.
const (
	serviceProfileValue   = "SELLER_FULFILLED"
	shippingProviderValue = "PORTAL"
)

// Filler writes a replay item into the portal listing form. Fields are
// applied in a fixed order; a field whose configured value is empty, or
// whose control is absent from this category's form variant, is left
// alone so the form's own default survives.
type Filler struct {
	fieldDelay time.Duration
}

// NewFiller returns a filler with the standard inter-field delay.
func NewFiller() *Filler {
	return &Filler{fieldDelay: 100 * time.Millisecond}
}

type formField struct {
	selector string
	value    string
	isSelect bool
}

// plan builds the ordered field list for one item. Order is identity,
// status, price, inventory, shipping, package dimensions, tax, then
// manufacturing details.
func (f *Filler) plan(item models.ReplayItem, s models.FormSettings) []formField {
	price := extract.ParsePrice(item.Price)
	mrpMult := s.MRPMultiplier
	if mrpMult == 0 {
		mrpMult = 1
	}
	sellMult := s.SellingPriceMultiplier
	if sellMult == 0 {
		sellMult = 1
	}

	mrp := strconv.Itoa(int(math.Round(price * mrpMult)))
	selling := strconv.Itoa(int(math.Round(price * sellMult)))

	status := s.ListingStatus
	if status == "" {
		status = "ACTIVE"
	}
	moq := s.MinOrderQty
	if moq == "" {
		moq = "1"
	}
	procurement := s.ProcurementType
	if procurement == "" {
		procurement = "REGULAR"
	}
	sla := s.ProcurementSLA
	if sla == "" {
		sla = "2"
	}
	stock := s.Stock
	if stock == "" {
		stock = "10"
	}
	taxCode := s.TaxCode
	if taxCode == "" {
		taxCode = "GST_18"
	}
	origin := s.CountryOfOrigin
	if origin == "" {
		origin = "IN"
	}

	// The listing ID can be absent from scraped data; a timestamp keeps
	// the generated SKU unique across items.
	sku := item.ID
	if sku == "" || sku == "unknown" {
		sku = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}

	return []formField{
		{selector: "#sku_id", value: s.SKUPrefix + sku},
		{selector: "#listing_status", value: status, isSelect: true},
		{selector: "#mrp", value: mrp},
		{selector: "#selling_price", value: selling},
		{selector: "#minimum_order_quantity", value: moq, isSelect: true},
		{selector: "#service_profile", value: serviceProfileValue, isSelect: true},
		{selector: "#procurement_type", value: procurement, isSelect: true},
		{selector: "#shipping_days", value: sla},
		{selector: "#stock_size", value: stock},
		{selector: "#shipping_provider", value: shippingProviderValue, isSelect: true},
		{selector: "#local_shipping_fee_from_buyer", value: s.LocalHandlingFee},
		{selector: "#zonal_shipping_fee_from_buyer", value: s.ZonalHandlingFee},
		{selector: "#national_shipping_fee_from_buyer", value: s.NationalHandlingFee},
		{selector: `input[name="length_p0"]`, value: s.Length},
		{selector: `input[name="breadth_p0"]`, value: s.Breadth},
		{selector: `input[name="height_p0"]`, value: s.Height},
		{selector: `input[name="weight_p0"]`, value: s.Weight},
		{selector: "#hsn", value: s.HSN},
		{selector: "#luxury_cess", value: s.LuxuryCess},
		{selector: "#tax_code", value: taxCode, isSelect: true},
		{selector: "#country_of_origin", value: origin, isSelect: true},
		{selector: "#manufacturer_details", value: s.ManufacturerDetails},
		{selector: "#packer_details", value: s.PackerDetails},
		{selector: "#importer_details", value: s.ImporterDetails},
	}
}

// Fill writes the item into the form. Submission is a separate step.
func (f *Filler) Fill(ctx context.Context, p dom.Page, item models.ReplayItem, s models.FormSettings) error {
	for _, field := range f.plan(item, s) {
		if field.value == "" || !p.Has(field.selector) {
			continue
		}

		var err error
		if field.isSelect {
			err = p.SelectOption(field.selector, field.value)
		} else {
			err = p.SetValue(field.selector, field.value)
		}
		if err != nil {
			return err
		}
		if err := ratelimit.Sleep(ctx, f.fieldDelay); err != nil {
			return err
		}
	}
	return nil
}

// Submit activates the form's submit control via the fallback chain,
// ending with a text match inside the form.
func (f *Filler) Submit(p dom.Page) bool {
	if submitChain.Click(p) {
		return true
	}
	return p.ClickText(FormSelector+" button", "submit") == nil
}
