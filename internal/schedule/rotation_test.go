package schedule

import (
	"fmt"
	"testing"

	"price-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCities(n int) []models.City {
	cities := make([]models.City, n)
	for i := range cities {
		cities[i] = models.City{ID: fmt.Sprintf("city-%02d", i), Name: fmt.Sprintf("City %02d", i)}
	}
	return cities
}

func TestRotationEveryCityInExactlyOneBucket(t *testing.T) {
	cities := makeCities(13)
	r := NewRotation(cities, 7)

	seen := map[string]int{}
	for d := 0; d < 7; d++ {
		for _, c := range r.CitiesForDay(d) {
			seen[c.ID]++
		}
	}

	require.Len(t, seen, len(cities))
	for id, count := range seen {
		assert.Equal(t, 1, count, "city %s appears in %d buckets", id, count)
	}
}

func TestRotationEvenSplit(t *testing.T) {
	// 21 cities over 7 buckets must give exactly 3 cities per day.
	r := NewRotation(makeCities(21), 7)
	for d := 0; d < 7; d++ {
		assert.Len(t, r.CitiesForDay(d), 3, "day %d", d)
	}
}

func TestRotationDeterministic(t *testing.T) {
	cities := makeCities(10)
	a := NewRotation(cities, 4)
	b := NewRotation(cities, 4)

	for d := 0; d < 4; d++ {
		assert.Equal(t, a.CitiesForDay(d), b.CitiesForDay(d))
		// Repeated calls on the same planner are stable too.
		assert.Equal(t, a.CitiesForDay(d), a.CitiesForDay(d))
	}
}

func TestRotationRoundRobinOrder(t *testing.T) {
	cities := makeCities(5)
	r := NewRotation(cities, 2)

	day0 := r.CitiesForDay(0)
	day1 := r.CitiesForDay(1)
	require.Len(t, day0, 3)
	require.Len(t, day1, 2)
	assert.Equal(t, "city-00", day0[0].ID)
	assert.Equal(t, "city-02", day0[1].ID)
	assert.Equal(t, "city-04", day0[2].ID)
	assert.Equal(t, "city-01", day1[0].ID)
	assert.Equal(t, "city-03", day1[1].ID)
}

func TestRotationDayWraps(t *testing.T) {
	r := NewRotation(makeCities(6), 3)
	assert.Equal(t, r.CitiesForDay(0), r.CitiesForDay(3))
	assert.Equal(t, r.CitiesForDay(2), r.CitiesForDay(5))

	// Negative days wrap backwards: day -1 is the last bucket, not bucket 1.
	assert.Equal(t, r.CitiesForDay(2), r.CitiesForDay(-1))
	assert.Equal(t, r.CitiesForDay(0), r.CitiesForDay(-3))
}

func TestRotationClampsBucketCount(t *testing.T) {
	r := NewRotation(makeCities(4), 0)
	assert.Equal(t, 1, r.BucketCount())
	assert.Len(t, r.CitiesForDay(0), 4)
}
