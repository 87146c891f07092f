package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHorizonDays(t *testing.T) {
	cases := map[Horizon]int{
		Horizon1Mo: 21,
		Horizon6Mo: 126,
		Horizon1Yr: 252,
		Horizon2Yr: 504,
		Horizon3Yr: 756,
		Horizon4Yr: 1008,
		Horizon5Yr: 1260,
	}
	for h, want := range cases {
		assert.Equal(t, want, h.Days(), "horizon %s", h)
	}
	assert.Equal(t, 252, Horizon("7yr").Days(), "unknown horizon defaults to one year")
}

func TestHorizonWeightsDecreaseWithLength(t *testing.T) {
	prev := 1.0
	for _, h := range AllHorizons {
		w := h.Weight()
		assert.Less(t, w, prev, "weight for %s must be below the previous horizon", h)
		prev = w
	}
	assert.Equal(t, 0.3, Horizon("7yr").Weight(), "unknown horizon defaults to 0.3")
}

func TestNormalizeHorizons(t *testing.T) {
	got := NormalizeHorizons([]string{"1mo", "5yr", "1mo"})
	assert.Equal(t, []Horizon{Horizon1Mo, Horizon5Yr}, got)
}
