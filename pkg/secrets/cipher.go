package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

const ivSize = 12
const tagSize = aes.BlockSize
const versionMagic = byte('G')

// Codec turns plain secret values into their stored form and back. The
// additional data binds a ciphertext to the path it was written under.
type Codec interface {
	Encrypt(aad, plainText []byte) ([]byte, error)
	Decrypt(aad, packedText []byte) ([]byte, error)
}

// NewCodec returns an AES-256-GCM codec for the given key. Without a key it
// falls back to reversible base64 encoding and says so on the logger.
func NewCodec(key []byte, log *logrus.Logger) (Codec, error) {
	if len(key) == 0 {
		if log == nil {
			log = logrus.StandardLogger()
		}
		log.Warn("no data key configured: private properties are stored base64-encoded, not encrypted")
		return Base64Codec{}, nil
	}
	return NewAESCodec(key)
}

// AESCodec packs values as "G" + tag + iv + ciphertext.
type AESCodec struct {
	aesgcm cipher.AEAD
}

func NewAESCodec(key []byte) (*AESCodec, error) {
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(c)
	if err != nil {
		return nil, err
	}

	return &AESCodec{aesgcm: aesgcm}, nil
}

func (s *AESCodec) Decrypt(aad, packedText []byte) ([]byte, error) {
	if len(packedText) < 1+tagSize+ivSize {
		return nil, errors.New("ciphertext is too short")
	}
	if packedText[0] != versionMagic {
		return nil, errors.New("unknown ciphertext version")
	}

	cipherText, iv := unpack(packedText)

	return s.aesgcm.Open(nil, iv, cipherText, aad)
}

func (s *AESCodec) Encrypt(aad, plainText []byte) ([]byte, error) {
	// Never use more than 2^32 random nonces with a given key because of
	// the risk of a repeat.
	nonce := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return pack(s.aesgcm.Seal(nil, nonce, plainText, aad), nonce), nil
}

func pack(cipherTextWithTag []byte, iv []byte) []byte {
	tagStart := len(cipherTextWithTag) - tagSize
	tag := cipherTextWithTag[tagStart:]
	cipherText := cipherTextWithTag[:tagStart]

	data := make([]byte, 1+tagSize+ivSize+len(cipherText))
	data[0] = versionMagic
	index := 1

	copy(data[index:], tag)
	index += tagSize

	copy(data[index:], iv[:ivSize])
	index += ivSize

	copy(data[index:], cipherText)

	return data
}

func unpack(packedText []byte) ([]byte, []byte) {
	index := 1
	tag := packedText[index : index+tagSize]
	index += tagSize

	iv := packedText[index : index+ivSize]
	index += ivSize

	cipherText := make([]byte, 0, len(packedText)-index+tagSize)
	cipherText = append(cipherText, packedText[index:]...)
	cipherText = append(cipherText, tag...)

	return cipherText, iv
}

// Base64Codec is the keyless fallback. It only obscures values.
type Base64Codec struct{}

func (Base64Codec) Encrypt(_, plainText []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(plainText)))
	base64.StdEncoding.Encode(out, plainText)
	return out, nil
}

func (Base64Codec) Decrypt(_, packedText []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(packedText)))
	n, err := base64.StdEncoding.Decode(out, packedText)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
