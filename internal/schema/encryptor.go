// Package schema implements shape-driven field encryption for stored
// documents. Sensitivity is declared once, on the shape: every read/write
// site that uses the same shape inherits the same encryption coverage.
package schema

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"health-backend/internal/crypto"
)

// Encryptor applies a shape's descriptor table to documents. It holds only
// the derived field key and is safe for concurrent use.
type Encryptor struct {
	key [crypto.KeySize]byte
}

func NewEncryptor(key [crypto.KeySize]byte) *Encryptor {
	return &Encryptor{key: key}
}

type direction int

const (
	dirEncrypt direction = iota
	dirDecrypt
)

func (d direction) structureErr() error {
	if d == dirEncrypt {
		return ErrEncrypt
	}
	return ErrDecrypt
}

// Encrypt returns a copy of doc with every marked scalar leaf replaced by its
// ciphertext envelope. Nested shapes and lists of nested shapes are recursed
// into; nil values and unmarked fields pass through; the input document is
// never mutated.
func (e *Encryptor) Encrypt(doc bson.M, s *Shape) (bson.M, error) {
	return e.apply(doc, s, dirEncrypt, "")
}

// Decrypt mirrors Encrypt, replacing envelopes on marked fields with their
// plaintext values. A marked field holding anything but a valid envelope for
// the current key fails with ErrDecrypt; an absent or nil field does not.
func (e *Encryptor) Decrypt(doc bson.M, s *Shape) (bson.M, error) {
	return e.apply(doc, s, dirDecrypt, "")
}

// EncryptMany applies Encrypt across docs, preserving order. Documents are
// independent; a failure reports the first offending document.
func (e *Encryptor) EncryptMany(docs []bson.M, s *Shape) ([]bson.M, error) {
	return e.applyMany(docs, s, dirEncrypt)
}

// DecryptMany applies Decrypt across docs, preserving order.
func (e *Encryptor) DecryptMany(docs []bson.M, s *Shape) ([]bson.M, error) {
	return e.applyMany(docs, s, dirDecrypt)
}

func (e *Encryptor) applyMany(docs []bson.M, s *Shape, dir direction) ([]bson.M, error) {
	out := make([]bson.M, len(docs))
	for i, doc := range docs {
		res, err := e.apply(doc, s, dir, "")
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out[i] = res
	}
	return out, nil
}

func (e *Encryptor) apply(doc bson.M, s *Shape, dir direction, prefix string) (bson.M, error) {
	out := make(bson.M, len(doc))
	for name, v := range doc {
		path := joinPath(prefix, name)
		f, declared := s.field(name)
		if !declared {
			if s.Unknown == RejectUnknown {
				return nil, fieldErr(s, path, ErrUnknownField)
			}
			out[name] = v
			continue
		}
		if v == nil {
			out[name] = nil
			continue
		}
		switch f.Kind {
		case KindScalar, KindListOfScalar:
			out[name] = v
		case KindEncryptedScalar:
			res, err := e.applyScalar(v, dir)
			if err != nil {
				return nil, fieldErr(s, path, err)
			}
			out[name] = res
		case KindNested:
			sub, ok := asDoc(v)
			if !ok {
				return nil, fieldErr(s, path, dir.structureErr())
			}
			res, err := e.apply(sub, f.Shape, dir, path)
			if err != nil {
				return nil, err
			}
			out[name] = res
		case KindListOfNested:
			items, ok := asList(v)
			if !ok {
				return nil, fieldErr(s, path, dir.structureErr())
			}
			res := make(bson.A, len(items))
			for i, item := range items {
				elemPath := fmt.Sprintf("%s[%d]", path, i)
				if item == nil {
					res[i] = nil
					continue
				}
				sub, ok := asDoc(item)
				if !ok {
					return nil, fieldErr(s, elemPath, dir.structureErr())
				}
				elem, err := e.apply(sub, f.Shape, dir, elemPath)
				if err != nil {
					return nil, err
				}
				res[i] = elem
			}
			out[name] = res
		}
	}
	return out, nil
}

func (e *Encryptor) applyScalar(v any, dir direction) (any, error) {
	if dir == dirEncrypt {
		return e.EncryptScalar(v)
	}
	tok, ok := v.(string)
	if !ok {
		return nil, ErrDecrypt
	}
	return e.DecryptScalar(tok)
}

// EncryptScalar serializes a value to canonical JSON, seals it, and returns
// the envelope as base64 text. Sealing uses a fresh nonce, so identical
// plaintext never produces identical envelopes.
func (e *Encryptor) EncryptScalar(v any) (string, error) {
	pt, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	ct, err := crypto.Seal(e.key[:], pt, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptScalar is the inverse of EncryptScalar. Malformed base64, an
// authentication failure, and malformed plaintext all surface as ErrDecrypt;
// ciphertext is never passed through as if it were plaintext.
func (e *Encryptor) DecryptScalar(token string) (any, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed envelope encoding", ErrDecrypt)
	}
	pt, err := crypto.Open(e.key[:], raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	var v any
	if err := json.Unmarshal(pt, &v); err != nil {
		return nil, fmt.Errorf("%w: malformed plaintext", ErrDecrypt)
	}
	return v, nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func asDoc(v any) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]any:
		return bson.M(d), true
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case bson.A:
		return []any(l), true
	case []any:
		return l, true
	case []bson.M:
		out := make([]any, len(l))
		for i, d := range l {
			out[i] = d
		}
		return out, true
	default:
		return nil, false
	}
}
