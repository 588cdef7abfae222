package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindGapsNoObserved(t *testing.T) {
	gaps := FindGaps(nil, 100, 400, 100)
	assert.Equal(t, []Range{{StartMs: 100, EndMs: 400}}, gaps)
}

func TestFindGapsFullyCovered(t *testing.T) {
	gaps := FindGaps([]int64{100, 200, 300, 400}, 100, 400, 100)
	assert.Empty(t, gaps)
}

func TestFindGapsLeadingAndTrailing(t *testing.T) {
	gaps := FindGaps([]int64{300, 400}, 100, 600, 100)
	assert.Equal(t, []Range{
		{StartMs: 100, EndMs: 200},
		{StartMs: 500, EndMs: 600},
	}, gaps)
}

func TestFindGapsInterior(t *testing.T) {
	gaps := FindGaps([]int64{100, 200, 500, 600}, 100, 600, 100)
	assert.Equal(t, []Range{
		{StartMs: 300, EndMs: 400},
	}, gaps)
}

func TestFindGapsMultipleInterior(t *testing.T) {
	gaps := FindGaps([]int64{100, 300, 500}, 100, 500, 100)
	assert.Equal(t, []Range{
		{StartMs: 200, EndMs: 200},
		{StartMs: 400, EndMs: 400},
	}, gaps)
}
