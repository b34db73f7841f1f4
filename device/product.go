package device

// Product is the reference data for one Rointe product line.
type Product struct {
	Name    string
	Type    string
	Version string
}

// Known product lines, keyed by (type, product_version) as reported by the
// cloud.
var products = []Product{
	{Name: "DeltaUltimate Radiator", Type: "radiator", Version: "v1"},
	{Name: "D-Series Radiator", Type: "radiator", Version: "v2"},
	{Name: "Towel v1", Type: "towel", Version: "v1"},
	{Name: "Towel Rail", Type: "towel", Version: "v2"},
	{Name: "Water Heater v1", Type: "acs", Version: "v1"},
	{Name: "Water Heater v2", Type: "acs", Version: "v2"},
	{Name: "Thermostat", Type: "therm", Version: "v2"},
}

// ByTypeVersion looks up a product line by device type and product version.
func ByTypeVersion(deviceType, productVersion string) (Product, bool) {
	for _, p := range products {
		if p.Type == deviceType && p.Version == productVersion {
			return p, true
		}
	}
	return Product{}, false
}
