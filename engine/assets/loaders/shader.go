package loaders

import (
	"os"

	"github.com/cockroachdb/errors"
)

var ErrInvalidShader = errors.New("invalid SPIR-V module")

type ShaderLoader struct{}

// Load reads a SPIR-V binary. The word stream is validated by the backend
// when the module is created; only the length is checked here.
func (sl *ShaderLoader) Load(name, path string, params interface{}) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", name)
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidShader, "%s is %d bytes", name, len(data))
	}
	return &Resource{
		Name:     name,
		FullPath: path,
		Type:     ResourceTypeShader,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

func (sl *ShaderLoader) Unload(*Resource) error {
	return nil
}
