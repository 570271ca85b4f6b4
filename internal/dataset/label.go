package dataset

// PositiveChirality is the chirality value mapped to label 1.
const PositiveChirality = "R"

// LabelFromChirality maps "R" to 1 and every other value to 0.
func LabelFromChirality(chirality string) int {
	if chirality == PositiveChirality {
		return 1
	}
	return 0
}
