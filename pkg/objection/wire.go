package objection

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

// maxNameLength 为类型名、字段名的最大字节数（1 字节长度前缀）。
const maxNameLength = math.MaxUint8

// Writer 以大端序向底层流写入定长整数、短名称与字符串。
type Writer struct {
	w   io.Writer
	buf [8]byte
	n   int64
}

// NewWriter 包装一个已打开的字节流。
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Count 返回已写入的字节数。
func (w *Writer) Count() int64 {
	return w.n
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return merr.WrapErrIo("write", err)
}

func (w *Writer) WriteUint8(v uint8) error {
	w.buf[0] = v
	return w.write(w.buf[:1])
}

func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

func (w *Writer) WriteUint16(v uint16) error {
	binary.BigEndian.PutUint16(w.buf[:2], v)
	return w.write(w.buf[:2])
}

func (w *Writer) WriteUint32(v uint32) error {
	binary.BigEndian.PutUint32(w.buf[:4], v)
	return w.write(w.buf[:4])
}

func (w *Writer) WriteUint64(v uint64) error {
	binary.BigEndian.PutUint64(w.buf[:8], v)
	return w.write(w.buf[:8])
}

// writeBits 写入 bits 的低 width 字节。
func (w *Writer) writeBits(bits uint64, width int) error {
	switch width {
	case 1:
		return w.WriteUint8(uint8(bits))
	case 2:
		return w.WriteUint16(uint16(bits))
	case 4:
		return w.WriteUint32(uint32(bits))
	default:
		return w.WriteUint64(bits)
	}
}

// WriteBytes 原样写入 p，不带长度前缀。
func (w *Writer) WriteBytes(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	return w.write(p)
}

// WriteName 写入 1 字节长度前缀的名称。
func (w *Writer) WriteName(name string) error {
	if len(name) > maxNameLength {
		return merr.WrapErrParameterInvalidRange(0, maxNameLength, len(name), "name too long: "+name[:16]+"...")
	}
	if err := w.WriteUint8(uint8(len(name))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(name))
}

// WriteString 写入 4 字节长度前缀的 UTF-8 字符串。
func (w *Writer) WriteString(s string) error {
	if uint64(len(s)) > math.MaxUint32 {
		return merr.WrapErrParameterTooLarge("string", len(s), math.MaxUint32)
	}
	if err := w.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(s))
}

// Reader 是 Writer 的对称实现。
type Reader struct {
	r   io.Reader
	buf [8]byte
}

// NewReader 包装一个已打开的字节流。
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFull 读满 p。
func (r *Reader) ReadFull(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	_, err := io.ReadFull(r.r, p)
	return merr.WrapErrIo("read", err)
}

func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.ReadFull(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.ReadFull(r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r.buf[:2]), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.ReadFull(r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.buf[:4]), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.ReadFull(r.buf[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(r.buf[:8]), nil
}

func (r *Reader) readBits(width int) (uint64, error) {
	switch width {
	case 1:
		v, err := r.ReadUint8()
		return uint64(v), err
	case 2:
		v, err := r.ReadUint16()
		return uint64(v), err
	case 4:
		v, err := r.ReadUint32()
		return uint64(v), err
	default:
		return r.ReadUint64()
	}
}

// ReadName 读取 1 字节长度前缀的名称。
// 返回的切片归调用方所有，用完后应当清零。
func (r *Reader) ReadName() ([]byte, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	name := make([]byte, n)
	if err := r.ReadFull(name); err != nil {
		return nil, err
	}
	return name, nil
}

// ReadString 读取 4 字节长度前缀的字符串，长度超过 limit 时拒绝分配。
func (r *Reader) ReadString(limit int) (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if limit > 0 && uint64(n) > uint64(limit) {
		return "", merr.WrapErrParameterTooLarge("string", int(n), limit)
	}
	buf := make([]byte, n)
	if err := r.ReadFull(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
