package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/vidtwin-cli/pkg/timecode"
)

func sampleSegments() []Segment {
	return []Segment{
		{StartSeconds: 0, Text: "Welcome to the channel"},
		{StartSeconds: 30.2, Text: "Today we build a parser"},
		{StartSeconds: 65.1, Text: "First the intro to tokens"},
		{StartSeconds: 65.8, Text: "and the grammar"},
		{StartSeconds: 3725, Text: "Thanks for watching, ÉCOLE"},
	}
}

func TestStore_Replace(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.Len())

	segs := sampleSegments()
	s.Replace(segs)
	require.Equal(t, 5, s.Len())

	segs[0].Text = "mutated"
	got, ok := s.Segment(0)
	require.True(t, ok)
	assert.Equal(t, "Welcome to the channel", got.Text, "store must copy its input")

	_, ok = s.Segment(5)
	assert.False(t, ok)
	_, ok = s.Segment(-1)
	assert.False(t, ok)
}

func TestStore_ReplaceInvalidatesHighlights(t *testing.T) {
	s := NewStore()
	s.Replace(sampleSegments())
	s.SetHighlights([]int{1, 2})
	require.Equal(t, []int{1, 2}, s.Highlighted())

	s.Replace(sampleSegments()[:2])
	assert.Empty(t, s.Highlighted())
	assert.Empty(t, s.FindBySecond(65))
}

func TestStore_FindByTimestampText(t *testing.T) {
	s := NewStore()
	s.Replace(sampleSegments())

	assert.Equal(t, []int{2, 3}, s.FindByTimestampText("01:05"))
	assert.Equal(t, []int{4}, s.FindByTimestampText("01:02:05"))
	assert.Equal(t, []int{0}, s.FindByTimestampText("00:00"))
	assert.Empty(t, s.FindByTimestampText("09:09"))
}

func TestStore_FindBySecondMatchesFormattedBuckets(t *testing.T) {
	s := NewStore()
	s.Replace(sampleSegments())

	for _, sec := range []float64{0, 0.5, 30, 65, 65.99, 3725.4, 12} {
		assert.Equal(t, s.FindByTimestampText(timecode.Format(sec)), s.FindBySecond(sec), "second %v", sec)
	}
}

func TestStore_Highlights(t *testing.T) {
	s := NewStore()
	s.Replace(sampleSegments())

	s.SetHighlights([]int{3, 1, 3, 99, -1})
	assert.Equal(t, []int{1, 3}, s.Highlighted())
	assert.True(t, s.IsHighlighted(3))
	assert.False(t, s.IsHighlighted(2))

	s.ClearHighlights()
	assert.Empty(t, s.Highlighted())
}

func TestStore_Filter(t *testing.T) {
	s := NewStore()
	s.Replace(sampleSegments())

	assert.Equal(t, []int{2}, s.Filter("INTRO"))
	assert.Equal(t, []int{4}, s.Filter("école"))
	assert.Len(t, s.Filter(""), 5)
	assert.Empty(t, s.Filter("nothing like this"))
}

func TestSegment_Timestamp(t *testing.T) {
	assert.Equal(t, "01:05", Segment{StartSeconds: 65.4}.Timestamp())
}
