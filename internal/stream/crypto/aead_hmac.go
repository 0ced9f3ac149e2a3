package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

const aes256KeySizeBytes = 32

// AEADHMAC 使用 AES-256-GCM 加密，并对 nonce、密文与关联数据追加 HMAC-SHA256 签名。
//
// 报文格式：nonce || ciphertext || mac
type AEADHMAC struct {
	aead    cipher.AEAD
	hmacKey []byte
}

var _ Encryptor = (*AEADHMAC)(nil)

// NewAEADHMAC 创建加密器。encKey 必须为 32 字节，macKey 不能为空。
func NewAEADHMAC(encKey, macKey []byte) (*AEADHMAC, error) {
	if len(encKey) != aes256KeySizeBytes {
		return nil, merr.WrapErrParameterInvalid(aes256KeySizeBytes, len(encKey), "encryption key size")
	}
	if len(macKey) == 0 {
		return nil, merr.WrapErrParameterInvalidMsg("mac key must not be empty")
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEADHMAC{
		aead:    aead,
		hmacKey: append([]byte(nil), macKey...),
	}, nil
}

func (c *AEADHMAC) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, merr.WrapErrIo("read nonce", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, plaintext, aad)
	mac := c.sign(nonce, ciphertext, aad)

	packet := make([]byte, 0, len(nonce)+len(ciphertext)+len(mac))
	packet = append(packet, nonce...)
	packet = append(packet, ciphertext...)
	packet = append(packet, mac...)
	return packet, nil
}

func (c *AEADHMAC) Decrypt(packet, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(packet) < nonceSize+sha256.Size {
		return nil, merr.WrapErrIoCorrupted("packet too short")
	}

	nonce := packet[:nonceSize]
	macOffset := len(packet) - sha256.Size
	ciphertext := packet[nonceSize:macOffset]

	if !hmac.Equal(c.sign(nonce, ciphertext, aad), packet[macOffset:]) {
		return nil, merr.WrapErrIoCorrupted("invalid mac")
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, merr.WrapErrIoCorrupted(err.Error(), "aead open")
	}
	return plaintext, nil
}

func (c *AEADHMAC) sign(nonce, ciphertext, aad []byte) []byte {
	m := hmac.New(sha256.New, c.hmacKey)
	_, _ = m.Write(nonce)
	_, _ = m.Write(ciphertext)
	_, _ = m.Write(aad)
	return m.Sum(nil)
}
