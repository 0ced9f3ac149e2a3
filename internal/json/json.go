// Package json 统一项目内的 JSON 编解码实现，底层为 bytedance/sonic。
package json

import (
	"io"

	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

// Marshal 与 encoding/json.Marshal 行为一致。
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent 与 encoding/json.MarshalIndent 行为一致。
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

// Unmarshal 与 encoding/json.Unmarshal 行为一致。
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// NewEncoder 返回写入 w 的流式编码器。
func NewEncoder(w io.Writer) sonic.Encoder {
	return api.NewEncoder(w)
}

// NewDecoder 返回读取 r 的流式解码器。
func NewDecoder(r io.Reader) sonic.Decoder {
	return api.NewDecoder(r)
}
