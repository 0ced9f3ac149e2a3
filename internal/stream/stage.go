// Package stream 将对象编码结果封装为可在字节流上传输的帧：
// 序列化、可选压缩、可选加密与长度前缀分帧。
package stream

// Stage 表示帧收发链路中的处理阶段，用于标记错误发生的位置。
type Stage string

const (
	StageSerialize   Stage = "serialize"   // 对象 -> 字节
	StageCompress    Stage = "compress"    // 压缩
	StageEncrypt     Stage = "encrypt"     // 加密并签名
	StageWriteFrame  Stage = "write_frame" // 写出帧
	StageReadFrame   Stage = "read_frame"  // 读取帧
	StageDecrypt     Stage = "decrypt"     // 验签并解密
	StageDecompress  Stage = "decompress"  // 解压
	StageDeserialize Stage = "deserialize" // 字节 -> 对象
)

func (s Stage) String() string {
	return string(s)
}
