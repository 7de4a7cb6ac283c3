package geospatial

// Reference point of the Dutch national grid (RD New, EPSG:28992):
// Amersfoort, in RD meters and WGS 84 degrees.
const (
	rdX0   = 155000.0
	rdY0   = 463000.0
	rdPhi0 = 52.15517440
	rdLam0 = 5.38720621
)

// Polynomial coefficients in arc-seconds. Each term is
// coefficient * dx^p * dy^q, with dx and dy in units of 100 km.
type rdTerm struct {
	p, q int
	c    float64
}

var latTerms = []rdTerm{
	{0, 1, 3235.65389},
	{2, 0, -32.58297},
	{0, 2, -0.24750},
	{2, 1, -0.84978},
	{0, 3, -0.06550},
	{2, 2, -0.01709},
	{4, 0, -0.00738},
}

var lonTerms = []rdTerm{
	{1, 0, 5260.52916},
	{1, 1, 105.94684},
	{1, 2, 2.45656},
	{3, 0, -0.81885},
	{1, 3, 0.05594},
	{3, 1, -0.05607},
	{1, 4, 0.01199},
}

// RDToWGS84 converts RD coordinates to WGS 84 longitude and latitude using the
// closed-form approximation, accurate to roughly a meter inside the Netherlands.
// It is total: out-of-range input still yields numbers, just meaningless ones.
func RDToWGS84(x, y float64) (lon, lat float64) {
	dx := (x - rdX0) * 1e-5
	dy := (y - rdY0) * 1e-5

	lat = rdPhi0 + evalTerms(latTerms, dx, dy)/3600
	lon = rdLam0 + evalTerms(lonTerms, dx, dy)/3600
	return lon, lat
}

func evalTerms(terms []rdTerm, dx, dy float64) float64 {
	var sum float64
	for _, t := range terms {
		sum += t.c * pow(dx, t.p) * pow(dy, t.q)
	}
	return sum
}

// pow is integer exponentiation; the exponents here never exceed 4.
func pow(b float64, n int) float64 {
	r := 1.0
	for range n {
		r *= b
	}
	return r
}
