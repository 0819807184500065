package vulkan

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

const spirvMagic = 0x07230203

// spirvWords repacks SPIR-V byte code into the words vkCreateShaderModule
// expects.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Newf("SPIR-V code size %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, errors.Newf("bad SPIR-V magic %#08x", words[0])
	}
	return words, nil
}

type shaderStage struct {
	module vk.ShaderModule
	info   vk.PipelineShaderStageCreateInfo
}

func (b *VulkanBackend) createShaderStage(desc driver.ShaderDesc) (shaderStage, error) {
	words, err := spirvWords(desc.Code)
	if err != nil {
		return shaderStage{}, err
	}
	moduleInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(desc.Code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(b.logical(), &moduleInfo, b.context.Allocator, &module); res != vk.Success {
		return shaderStage{}, resultError(res, "create shader module")
	}
	entry := desc.Entry
	if entry == "" {
		entry = "main"
	}
	stage := vk.ShaderStageVertexBit
	if desc.Stage == driver.ShaderFragment {
		stage = vk.ShaderStageFragmentBit
	}
	return shaderStage{
		module: module,
		info: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage,
			Module: module,
			PName:  VulkanSafeString(entry),
		},
	}, nil
}
