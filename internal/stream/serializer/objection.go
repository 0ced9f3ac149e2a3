package serializer

import (
	"github.com/lk2023060901/objection-go/pkg/marshal"
)

// ObjectionSerializer 以自描述二进制格式编解码对象图，只接受 Registry 中登记过的类型。
type ObjectionSerializer struct {
	m *marshal.Marshaller
}

var _ Serializer = (*ObjectionSerializer)(nil)

func NewObjectionSerializer(m *marshal.Marshaller) *ObjectionSerializer {
	return &ObjectionSerializer{m: m}
}

func (s *ObjectionSerializer) Marshal(v any) ([]byte, error) {
	return s.m.Marshal(v)
}

func (s *ObjectionSerializer) Unmarshal(data []byte, v any) error {
	return s.m.Unmarshal(data, v)
}
