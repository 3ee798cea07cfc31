package reimbursement

// TrainBand maps a half-open distance range [MinKM, MaxKM) to a refund tier.
// A zero MaxAmount means no absolute cap.
type TrainBand struct {
	MinKM      float64
	MaxKM      float64
	Percentage float64
	MaxAmount  float64
	Label      string
}

// Fallback tier for distances outside every configured band.
const (
	OutOfBandPercentage = 70.0
	OutOfBandCap        = 250.0
	OutOfBandLabel      = "hors barème"
)

// DefaultTrainBands returns the standard refund scale: seven contiguous
// bands from 0 to 10000 km with decreasing percentages and rising caps.
func DefaultTrainBands() []TrainBand {
	return []TrainBand{
		{MinKM: 0, MaxKM: 150, Percentage: 100, MaxAmount: 50, Label: "0-150 km"},
		{MinKM: 150, MaxKM: 350, Percentage: 100, MaxAmount: 80, Label: "150-350 km"},
		{MinKM: 350, MaxKM: 550, Percentage: 95, MaxAmount: 120, Label: "350-550 km"},
		{MinKM: 550, MaxKM: 800, Percentage: 90, MaxAmount: 160, Label: "550-800 km"},
		{MinKM: 800, MaxKM: 1200, Percentage: 85, MaxAmount: 200, Label: "800-1200 km"},
		{MinKM: 1200, MaxKM: 2000, Percentage: 80, MaxAmount: 250, Label: "1200-2000 km"},
		{MinKM: 2000, MaxKM: 10000, Percentage: 70, MaxAmount: 350, Label: "2000-10000 km"},
	}
}

// FindBand returns the band containing distance.
func FindBand(bands []TrainBand, distance float64) (TrainBand, bool) {
	for _, band := range bands {
		if distance >= band.MinKM && distance < band.MaxKM {
			return band, true
		}
	}
	return TrainBand{}, false
}
