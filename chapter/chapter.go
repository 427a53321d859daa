// Package chapter holds the recommendation chapter catalog and the table
// mapping backend chapter labels to chapter numbers.
package chapter

// Default is the chapter used when a label is unknown or absent.
const Default = 1

type Chapter struct {
	Number      int
	Label       string
	Title       string
	Description string
	Products    []string
}

var catalog = []Chapter{
	{1, "hydration-basics", "Hydration", "Begin your journey with deep moisture restoration",
		[]string{"Hydra-Boost Cleanser", "Moisture Lock Serum", "24-Hour Hydration Cream"}},
	{2, "repair", "Repair", "Address specific skin concerns and damage",
		[]string{"Gentle Repair Cleanser", "Barrier Restore Ampoule", "Recovery Cream"}},
	{3, "protection", "Protection", "Build a barrier against environmental stressors",
		[]string{"Antioxidant Cleanser", "Defense Serum", "SPF 50 Day Shield"}},
	{4, "maintenance", "Maintenance", "Sustain your skin's health and radiance",
		[]string{"Balancing Cleanser", "Radiance Booster", "Overnight Repair Mask"}},
	{5, "brightening-glow", "Brightening & Glow", "Enhance your skin's natural luminosity and even tone",
		[]string{"Enzyme Exfoliating Cleanser", "Vitamin C Brightening Serum", "Glow Restore Night Cream"}},
	{6, "repair-recovery", "Repair & Recovery", "Intensive treatment for damaged or compromised skin",
		[]string{"Ceramide Repair Cleanser", "Peptide Recovery Complex", "Healing Barrier Cream"}},
	{7, "maintenance-prevention", "Maintenance & Prevention", "Long-term care to maintain results and prevent future concerns",
		[]string{"Gentle Maintenance Cleanser", "Antioxidant Defense Serum", "Age-Prevent Moisturizer"}},
}

var byLabel = func() map[string]int {
	m := make(map[string]int, len(catalog))
	for _, c := range catalog {
		m[c.Label] = c.Number
	}
	return m
}()

// Lookup returns the chapter number for a backend label, or Default.
func Lookup(label string) int {
	if n, ok := byLabel[label]; ok {
		return n
	}
	return Default
}

func Get(n int) (Chapter, bool) {
	if n < 1 || n > len(catalog) {
		return Chapter{}, false
	}
	return catalog[n-1], true
}

func All() []Chapter {
	out := make([]Chapter, len(catalog))
	copy(out, catalog)
	return out
}
