package portfolio

// Rating is the derived aggregate of an item's reviews.
type Rating struct {
	Average float64 `json:"rating"`
	Count   int     `json:"reviewCount"`
}

// NewRating computes the mean of count ratings summing to sum, rounded half
// up to one decimal place. Zero reviews give 0.0.
func NewRating(sum, count int) Rating {
	if count <= 0 {
		return Rating{}
	}
	// Integer arithmetic keeps x.x5 boundaries exact.
	tenths := (20*sum + count) / (2 * count)
	return Rating{Average: float64(tenths) / 10, Count: count}
}

// RatingOf aggregates a list of reviews.
func RatingOf(reviews []ReviewRecord) Rating {
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return NewRating(sum, len(reviews))
}

// ValidRating reports whether r is in the closed range [1,5].
func ValidRating(r int) bool {
	return r >= 1 && r <= 5
}
