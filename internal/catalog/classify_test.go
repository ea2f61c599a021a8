package catalog

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		brand, name, productType string
		want                     string
	}{
		{"Oli", "MPX2 0.8L", "", CategoryOil},
		{"Federal", "Ultratec 10W-30", "OLI", CategoryOil},
		{"Disc Pad", "Kampas Depan Vario", "", CategorySparePart},
		{"Aspira", "Rantai", "SPAREPART", CategorySparePart},
		{"IML", "Coolant 500ml", "", CategoryFluid},
		{"Prestone", "Cairan Radiator", "", CategoryFluid},
		{"Ban Dalam", "IRC 80/90-14", "", CategoryInnerTube},
		{"Swallow", "Tube 2.50-17", "", CategoryInnerTube},
		{"FDR", "Inner 70/90", "TR4", CategoryInnerTube},
		{"IRC", "NR73 90/80-14", "TL", CategoryTire},
		{"", "", "", CategoryTire},
	}

	for _, tc := range cases {
		if got := Classify(tc.brand, tc.name, tc.productType); got != tc.want {
			t.Fatalf("Classify(%q, %q, %q) = %s, want %s", tc.brand, tc.name, tc.productType, got, tc.want)
		}
	}
}

func TestIsCategory(t *testing.T) {
	if !IsCategory(CategoryFluid) {
		t.Fatalf("expected %s to be a category", CategoryFluid)
	}
	if IsCategory("ban") {
		t.Fatalf("category match must be exact")
	}
}
