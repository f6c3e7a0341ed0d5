package dataset

// Header aliases per file. Files arrive from different export tools, so both
// the Dutch and English column names are accepted; the first alias is the
// canonical one used in validation messages.
var (
	headerSKU          = []string{"SKU", "Artikel", "Artikelnummer", "ItemCode"}
	headerDescription  = []string{"Omschrijving", "Description", "Product", "Naam", "Name"}
	headerCost         = []string{"Inkoopprijs", "Cost", "PurchasePrice", "Inkoop"}
	headerCurrency     = []string{"Valuta", "Currency"}
	headerWeight       = []string{"GewichtKg", "WeightKg", "Gewicht", "Weight"}
	headerSupplier     = []string{"Leverancier", "Supplier"}
	headerProductGroup = []string{"Productgroep", "ProductGroup", "Groep", "Group"}

	headerTierFrom     = []string{"Van", "From"}
	headerTierTo       = []string{"Tot", "To"}
	headerTierDiscount = []string{"KortingPct", "DiscountPct", "Korting", "Discount"}

	headerSupplierName   = []string{"Leverancier", "Supplier"}
	headerFactor         = []string{"Factor"}
	headerCurrencyMarkup = []string{"ValutaOpslagPct", "CurrencyMarkupPct"}

	headerPostcode = []string{"Postcode", "PostalCode", "Zip"}
	headerZone     = []string{"Zone"}
	headerEurPerKg = []string{"EurPerKg", "EurPerKG", "RatePerKg"}

	headerCustomerID       = []string{"KlantID", "CustomerID", "Klant"}
	headerProfile          = []string{"Kortingsprofiel", "DiscountProfile", "Profiel", "Profile"}
	headerMaxExtraDiscount = []string{"MaxExtraKortingPct", "MaxExtraDiscountPct"}
)

// Required canonical headers per file, checked before row validation.
var (
	requiredArticleHeaders        = []string{"SKU", "Omschrijving", "Inkoopprijs", "Valuta", "GewichtKg"}
	requiredTierHeaders           = []string{"Van", "Tot", "KortingPct"}
	requiredSupplierFactorHeaders = []string{"Leverancier", "Factor"}
	requiredTransportHeaders      = []string{"Postcode", "Zone", "EurPerKg"}
	requiredCustomerHeaders       = []string{"KlantID", "Kortingsprofiel", "MaxExtraKortingPct"}
)
