package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackApproximation(t *testing.T) {
	// An unknown model has no encoding, so counting degrades to
	// word count x 1.3.
	c := NewCounter("no-such-model")

	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("rent"))
	assert.Equal(t, 6, c.Count("what is the monthly rent"))
}

func TestFallbackIsDeterministic(t *testing.T) {
	c := NewCounter("no-such-model")

	question := "What is the notice period in the lease?"
	assert.Equal(t, c.Count(question), c.Count(question))
}
