package loaders

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

// ShaderLoader reads compiled SPIR-V modules. Data is the module as
// little-endian words ([]uint32).
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	if assetType != metadata.ResourceTypeShader {
		return nil, fmt.Errorf("shader loader cannot load resource type %d", assetType)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	words, err := BytesToWords(data)
	if err != nil {
		return nil, fmt.Errorf("shader `%s`: %w", path, err)
	}
	return &metadata.Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), ".spv"),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     words,
	}, nil
}

func (sl *ShaderLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	res.DataSize = 0
	return nil
}

// BytesToWords reinterprets a SPIR-V byte stream as words. The stream must
// be a whole number of words.
func BytesToWords(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of words", core.ErrShaderInvalid, len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}
