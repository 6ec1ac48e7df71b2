package loaders

import (
	"os"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

// First word of every SPIR-V module, in host order.
const spirvMagic uint32 = 0x07230203

type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	code, err := LoadShader(path)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Name:     resourceName(path),
		FullPath: path,
		DataSize: uint64(len(code) * 4),
		Data:     code,
	}, nil
}

// LoadShader reads a compiled SPIR-V stage. Missing files and data that is
// not SPIR-V are reported as core.ErrShaderLoad.
func LoadShader(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "shader `%s`", path), core.ErrShaderLoad)
	}
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, errors.Wrapf(core.ErrShaderLoad, "shader `%s`: %d bytes is not a whole number of words", path, len(data))
	}
	code := bytesToBytecode(data)
	if code[0] != spirvMagic {
		return nil, errors.Wrapf(core.ErrShaderLoad, "shader `%s`: bad magic %#08x", path, code[0])
	}
	return code, nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}
	return byteCode
}
