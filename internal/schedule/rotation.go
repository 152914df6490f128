package schedule

import "price-tracker/internal/models"

// Rotation partitions the city set into day-of-week buckets so that over a
// full cycle every city receives coverage without all cities being scraped
// at once. Assignment is deterministic round-robin: the city at rank i goes
// to bucket i mod bucketCount, so the same input list always yields the
// same daily city sets.
type Rotation struct {
	buckets     [][]models.City
	bucketCount int
}

// NewRotation builds the rotation. bucketCount values below 1 are clamped
// to 1 (every city every day).
func NewRotation(cities []models.City, bucketCount int) *Rotation {
	if bucketCount < 1 {
		bucketCount = 1
	}
	buckets := make([][]models.City, bucketCount)
	for i, c := range cities {
		b := i % bucketCount
		buckets[b] = append(buckets[b], c)
	}
	return &Rotation{buckets: buckets, bucketCount: bucketCount}
}

// CitiesForDay returns the ordered city set for the given day index. Days
// outside [0, bucketCount) wrap around in both directions, so day -1 is the
// last bucket.
func (r *Rotation) CitiesForDay(day int) []models.City {
	d := day % r.bucketCount
	if d < 0 {
		d += r.bucketCount
	}
	return r.buckets[d]
}

// BucketCount returns the number of rotation buckets.
func (r *Rotation) BucketCount() int {
	return r.bucketCount
}
