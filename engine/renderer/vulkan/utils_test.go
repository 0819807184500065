package vulkan

import (
	"encoding/binary"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

func TestResultErrorClassification(t *testing.T) {
	cases := []struct {
		res  vk.Result
		want driver.Outcome
	}{
		{vk.Suboptimal, driver.OutcomeStale},
		{vk.ErrorOutOfDate, driver.OutcomeStale},
		{vk.Timeout, driver.OutcomeTimeout},
		{vk.NotReady, driver.OutcomeTimeout},
		{vk.ErrorDeviceLost, driver.OutcomeFatal},
		{vk.ErrorOutOfDeviceMemory, driver.OutcomeFatal},
	}
	for _, c := range cases {
		err := resultError(c.res, "op")
		require.Error(t, err, VulkanResultString(c.res))
		assert.Equal(t, c.want, driver.Classify(err), VulkanResultString(c.res))
	}
	assert.NoError(t, resultError(vk.Success, "op"))
	assert.ErrorIs(t, resultError(vk.ErrorSurfaceLost, "present"), driver.ErrSurfaceLost)
	assert.ErrorIs(t, resultError(vk.ErrorDeviceLost, "submit"), driver.ErrDeviceLost)
}

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR", VulkanResultString(vk.ErrorOutOfDate))
	assert.Equal(t, "VkResult(12345)", VulkanResultString(vk.Result(12345)))
}

func TestFormatRoundTrip(t *testing.T) {
	for df := range vkFormats {
		if df == driver.FormatUndefined {
			continue
		}
		got, ok := fromVkFormat(toVkFormat(df))
		require.True(t, ok, df.String())
		assert.Equal(t, df, got)
	}
	_, ok := fromVkFormat(vk.FormatR16g16b16a16Sfloat)
	assert.False(t, ok)
}

func TestPresentModeMapping(t *testing.T) {
	for dm, vm := range vkPresentModes {
		got, ok := fromVkPresentMode(vm)
		require.True(t, ok)
		assert.Equal(t, dm, got)
	}
}

func TestSpirvWords(t *testing.T) {
	code := make([]byte, 12)
	binary.LittleEndian.PutUint32(code, spirvMagic)
	binary.LittleEndian.PutUint32(code[4:], 0x00010000)
	words, err := spirvWords(code)
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010000, 0}, words)

	_, err = spirvWords(code[:10])
	assert.Error(t, err)
	_, err = spirvWords(nil)
	assert.Error(t, err)
	_, err = spirvWords([]byte{1, 2, 3, 4})
	assert.Error(t, err)
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))
	in := []string{"a", "b\x00"}
	assert.Equal(t, []string{"a\x00", "b\x00"}, VulkanSafeStrings(in))
	assert.Equal(t, "a", in[0])
}

func TestBarrierMasks(t *testing.T) {
	access, stage := layoutAccess(driver.LayoutColorAttachment)
	assert.NotZero(t, access&vk.AccessColorAttachmentWriteBit)
	assert.Equal(t, vk.PipelineStageColorAttachmentOutputBit, stage)

	access, stage = layoutAccess(driver.LayoutPresentSrc)
	assert.Zero(t, access)
	assert.Equal(t, vk.PipelineStageBottomOfPipeBit, stage)

	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), toVkStages(driver.StageColorAttachmentOutput))
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), toVkStages(0))
}

func TestCompositeAlpha(t *testing.T) {
	assert.Equal(t, vk.CompositeAlphaOpaqueBit, compositeAlpha(vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit|vk.CompositeAlphaInheritBit)))
	assert.Equal(t, vk.CompositeAlphaInheritBit, compositeAlpha(vk.CompositeAlphaFlags(vk.CompositeAlphaInheritBit)))
}
