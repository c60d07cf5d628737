package model

import "testing"

func TestValidRating(t *testing.T) {
	for rating := MinRating; rating <= MaxRating; rating++ {
		if !ValidRating(rating) {
			t.Errorf("rating %d should be valid", rating)
		}
	}
	for _, rating := range []int{0, -1, 6, 100} {
		if ValidRating(rating) {
			t.Errorf("rating %d should be invalid", rating)
		}
	}
}
