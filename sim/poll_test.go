package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPollChannel_DrainRunsInSubmissionOrder(t *testing.T) {
	var p pollChannel
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		p.submit(func() { order = append(order, i) })
	}

	p.drain()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.True(t, p.isEmpty())
}

func TestPollChannel_ActionSubmittedDuringDrain_RunsInSameDrain(t *testing.T) {
	var p pollChannel
	var order []string
	p.submit(func() {
		order = append(order, "outer")
		p.submit(func() { order = append(order, "inner") })
	})

	p.drain()

	assert.Equal(t, []string{"outer", "inner"}, order)
}
