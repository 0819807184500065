package driver

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeOK, Classify(nil))
	assert.Equal(t, OutcomeStale, Classify(ErrOutOfDate))
	assert.Equal(t, OutcomeStale, Classify(errors.Wrap(ErrSuboptimal, "present")))
	assert.Equal(t, OutcomeTimeout, Classify(ErrTimeout))
	assert.Equal(t, OutcomeFatal, Classify(ErrDeviceLost))
	assert.Equal(t, OutcomeFatal, Classify(errors.New("boom")))
	assert.Equal(t, OutcomeFatal, Classify(Fatal(ErrOutOfDate)))
	assert.Nil(t, Fatal(nil))
}

func TestSampleCounts(t *testing.T) {
	assert.True(t, SampleCount(1).Valid())
	assert.True(t, SampleCount(64).Valid())
	assert.False(t, SampleCount(0).Valid())
	assert.False(t, SampleCount(3).Valid())
	assert.False(t, SampleCount(128).Valid())

	flags := SampleCountFlags(1 | 2 | 4)
	assert.True(t, flags.Has(4))
	assert.False(t, flags.Has(8))
	assert.False(t, flags.Has(3))
}

func TestFormats(t *testing.T) {
	assert.Equal(t, AspectDepth|AspectStencil, AspectFor(FormatD24UnormS8Uint))
	assert.Equal(t, AspectDepth, AspectFor(FormatD32Float))
	assert.Equal(t, AspectColor, AspectFor(FormatB8G8R8A8Unorm))
	assert.Equal(t, "B8G8R8A8_UNORM", FormatB8G8R8A8Unorm.String())

	m, ok := ParsePresentMode("MAILBOX")
	assert.True(t, ok)
	assert.Equal(t, PresentModeMailbox, m)
	_, ok = ParsePresentMode("vsync")
	assert.False(t, ok)
}
