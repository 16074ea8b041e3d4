package analytics

import "math"

// roundInt rounds half to even, the way the baseline has always been rounded.
func roundInt(v float64) int {
	return int(math.RoundToEven(v))
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// weightedMean folds value into an average taken over count windows.
func weightedMean(avg, count int, value int) int {
	return roundInt(float64(avg*count+value) / float64(count+1))
}

// ratio divides and defines x/0 as 0.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
