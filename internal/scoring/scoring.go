package scoring

import "P3Recon/internal/domain"

const (
	parcelPoints = 6
	signalPoints = 10

	largeAcres  = 25.0
	mediumAcres = 10.0
	largeSqft   = 150000.0
	mediumSqft  = 50000.0

	largeBonus  = 15
	mediumBonus = 8
)

// Score maps a candidate and its signals to a breakdown and total.
// It is pure: the same inputs always yield the same result.
func Score(c domain.Candidate, signals []domain.Signal) domain.ScoreResult {
	breakdown := domain.Breakdown{
		domain.CategoryParcel:  0,
		domain.CategoryNews:    0,
		domain.CategoryWARN:    0,
		domain.CategoryTaxSale: 0,
		domain.CategorySize:    0,
	}

	for _, s := range signals {
		if s.Type.IsParcel() {
			breakdown[domain.CategoryParcel] += parcelPoints
			continue
		}
		breakdown[string(s.Type)] += signalPoints
	}

	breakdown[domain.CategorySize] += tier(c.Acres, largeAcres, mediumAcres)
	breakdown[domain.CategorySize] += tier(c.BldgSqft, largeSqft, mediumSqft)

	return domain.ScoreResult{Total: breakdown.Sum(), Breakdown: breakdown}
}

func tier(value, large, medium float64) int {
	switch {
	case value >= large:
		return largeBonus
	case value >= medium:
		return mediumBonus
	default:
		return 0
	}
}
