package serializer

// Serializer 抽象了“对象 <-> 字节”的序列化能力，由 codec 在帧负载上调用。
type Serializer interface {
	// Marshal 将任意对象编码为字节序列。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节序列解码到目标对象，v 通常为指针类型。
	Unmarshal(data []byte, v any) error
}
