package palette

// Штрафы оценки качества.
const (
	penaltyDimensions = 20
	penaltyDensity    = 15
	penaltySize       = 10

	minWidth  = 800
	minHeight = 600
	minDPI    = 72
	minBytes  = 50 * 1024
	maxScore  = 100
)

// Score вычисляет оценку качества 0-100 по размерам и размеру основного
// артефакта и заявленной плотности (nil — неизвестна, без штрафа).
func Score(width, height int, densityDPI *float64, size int64) int {
	score := maxScore
	if width < minWidth || height < minHeight {
		score -= penaltyDimensions
	}
	if densityDPI != nil && *densityDPI < minDPI {
		score -= penaltyDensity
	}
	if size < minBytes {
		score -= penaltySize
	}
	return min(max(score, 0), maxScore)
}
