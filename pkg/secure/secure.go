// Package secure provides homomorphic projection using the Lattigo CKKS scheme.
//
// CKKS supports approximate arithmetic on encrypted real numbers, which fits
// projection exactly: every projected coordinate is a dot product of the
// input with a basis row, minus a plaintext centering offset. A holder of
// the fitted basis can therefore project an encrypted vector without ever
// seeing it, and only the key holder can decrypt the projected coordinates.
package secure

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/opaque/principal/pkg/pca"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// Engine provides CKKS encryption and homomorphic projection.
type Engine struct {
	params    hefloat.Parameters
	encoder   *hefloat.Encoder
	evaluator *hefloat.Evaluator

	// Only set on the key-holder side
	secretKey *rlwe.SecretKey
	encryptor *rlwe.Encryptor
	decryptor *rlwe.Decryptor

	publicKey *rlwe.PublicKey

	mu sync.RWMutex
}

// NewParameters creates CKKS parameters suited for vector dot products.
// 128-bit security with LogN=14, which gives 8192 real slots per ciphertext.
func NewParameters() (hefloat.Parameters, error) {
	params, err := hefloat.NewParametersFromLiteral(hefloat.ParametersLiteral{
		LogN:            14,                                    // Ring degree 2^14
		LogQ:            []int{60, 45, 45, 45, 45, 45, 45, 45}, // Ciphertext modulus chain
		LogP:            []int{61, 61},                         // Special primes for key-switching
		LogDefaultScale: 45,                                    // Encoding scale 2^45
	})
	if err != nil {
		return hefloat.Parameters{}, fmt.Errorf("failed to create CKKS parameters: %w", err)
	}
	return params, nil
}

// NewEngine creates an engine with a fresh key pair. The Galois keys needed
// for the rotation tree-sum are generated alongside.
func NewEngine() (*Engine, error) {
	params, err := NewParameters()
	if err != nil {
		return nil, fmt.Errorf("failed to create parameters: %w", err)
	}

	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	evk := rlwe.NewMemEvaluationKeySet(nil, kgen.GenGaloisKeysNew(galoisElements(params), sk)...)

	return &Engine{
		params:    params,
		encoder:   hefloat.NewEncoder(params),
		evaluator: hefloat.NewEvaluator(params, evk),
		secretKey: sk,
		publicKey: pk,
		encryptor: rlwe.NewEncryptor(params, pk),
		decryptor: rlwe.NewDecryptor(params, sk),
	}, nil
}

// galoisElements returns the Galois elements for the power-of-two rotations
// used by the dot product tree-sum.
func galoisElements(params hefloat.Parameters) []uint64 {
	logN := params.LogN()
	elements := make([]uint64, logN)
	for i := 0; i < logN; i++ {
		elements[i] = params.GaloisElement(1 << i)
	}
	return elements
}

// PublicKeyBytes returns the serialized public key for distribution.
func (e *Engine) PublicKeyBytes() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.publicKey == nil {
		return nil, errors.New("no public key available")
	}

	buf := new(bytes.Buffer)
	if _, err := e.publicKey.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to serialize public key: %w", err)
	}
	return buf.Bytes(), nil
}

// EncryptVector encrypts a float64 vector. Unused slots are zero, so they
// never contribute to a dot product.
func (e *Engine) EncryptVector(vector []float64) (*rlwe.Ciphertext, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.encryptor == nil {
		return nil, errors.New("encryptor not available")
	}

	padded := make([]float64, e.params.MaxSlots())
	copy(padded, vector)

	pt := hefloat.NewPlaintext(e.params, e.params.MaxLevel())
	if err := e.encoder.Encode(padded, pt); err != nil {
		return nil, fmt.Errorf("failed to encode vector: %w", err)
	}

	ct, err := e.encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}
	return ct, nil
}

// DecryptVector decrypts a ciphertext back to a float64 vector of the given
// length.
func (e *Engine) DecryptVector(ct *rlwe.Ciphertext, length int) ([]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.decryptor == nil {
		return nil, errors.New("decryptor not available")
	}

	pt := e.decryptor.DecryptNew(ct)
	decoded := make([]float64, length)
	if err := e.encoder.Decode(pt, decoded); err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	return decoded, nil
}

// DecryptScalar decrypts a ciphertext holding a single value in slot zero,
// the shape a dot product result comes in.
func (e *Engine) DecryptScalar(ct *rlwe.Ciphertext) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.decryptor == nil {
		return 0, errors.New("decryptor not available")
	}

	pt := e.decryptor.DecryptNew(ct)
	decoded := make([]float64, 1)
	if err := e.encoder.Decode(pt, decoded); err != nil {
		return 0, fmt.Errorf("failed to decode: %w", err)
	}
	return decoded[0], nil
}

// DotProduct computes E(x · v) from E(x) and a plaintext vector v. The
// evaluator is not thread-safe, so the engine takes a full lock.
func (e *Engine) DotProduct(encX *rlwe.Ciphertext, vector []float64) (*rlwe.Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	padded := make([]float64, e.params.MaxSlots())
	copy(padded, vector)

	pt := hefloat.NewPlaintext(e.params, encX.Level())
	if err := e.encoder.Encode(padded, pt); err != nil {
		return nil, fmt.Errorf("failed to encode vector: %w", err)
	}
	return e.dotEncodedLocked(encX, pt)
}

// DotProductEncoded computes E(x · v) using a pre-encoded plaintext, the
// fast path when basis rows are cached.
func (e *Engine) DotProductEncoded(encX *rlwe.Ciphertext, encoded *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if encoded == nil {
		return nil, errors.New("encoded vector is nil")
	}
	return e.dotEncodedLocked(encX, encoded)
}

// dotEncodedLocked multiplies slot-wise, rescales, then folds all slots into
// slot zero with a rotation tree-sum. Caller holds e.mu.
func (e *Engine) dotEncodedLocked(encX *rlwe.Ciphertext, encoded *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	result, err := e.evaluator.MulNew(encX, encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to multiply: %w", err)
	}
	if err := e.evaluator.Rescale(result, result); err != nil {
		return nil, fmt.Errorf("failed to rescale: %w", err)
	}

	maxSlots := e.params.MaxSlots()
	for i := 1; i < maxSlots; i *= 2 {
		rotated, err := e.evaluator.RotateNew(result, i)
		if err != nil {
			return nil, fmt.Errorf("failed to rotate by %d: %w", i, err)
		}
		if err := e.evaluator.Add(result, rotated, result); err != nil {
			return nil, fmt.Errorf("failed to add: %w", err)
		}
	}
	return result, nil
}

// ProjectEncoded computes one projected coordinate E((x - mean) · w) from a
// pre-encoded basis row and its centering offset mean · w.
func (e *Engine) ProjectEncoded(encX *rlwe.Ciphertext, row *rlwe.Plaintext, offset float64) (*rlwe.Ciphertext, error) {
	ct, err := e.DotProductEncoded(encX, row)
	if err != nil {
		return nil, err
	}
	if offset == 0 {
		return ct, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	result, err := e.evaluator.SubNew(ct, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to subtract offset: %w", err)
	}
	return result, nil
}

// Project computes the full projection of an encrypted vector under a
// fitted model, one ciphertext per component. Basis rows are encoded on the
// fly; use a BasisCache with an EnginePool when projecting repeatedly.
func (e *Engine) Project(encX *rlwe.Ciphertext, model *pca.PCA) ([]*rlwe.Ciphertext, error) {
	rows := model.ComponentRows()
	if rows == nil {
		return nil, pca.ErrNotFitted
	}
	mean := model.Mean()

	results := make([]*rlwe.Ciphertext, len(rows))
	for k, row := range rows {
		ct, err := e.DotProduct(encX, row)
		if err != nil {
			return nil, fmt.Errorf("failed to project component %d: %w", k, err)
		}
		offset := dot(mean, row)
		if offset != 0 {
			e.mu.Lock()
			ct, err = e.evaluator.SubNew(ct, offset)
			e.mu.Unlock()
			if err != nil {
				return nil, fmt.Errorf("failed to center component %d: %w", k, err)
			}
		}
		results[k] = ct
	}
	return results, nil
}

// ProjectAndEncrypt projects a plaintext vector with the fitted model and
// encrypts the result, the shape used when storing compressed vectors at
// rest.
func (e *Engine) ProjectAndEncrypt(x []float64, model *pca.PCA) (*rlwe.Ciphertext, error) {
	z, err := model.TransformVector(x)
	if err != nil {
		return nil, fmt.Errorf("failed to project: %w", err)
	}
	return e.EncryptVector(z)
}

// SerializeCiphertext serializes a ciphertext for transmission.
func (e *Engine) SerializeCiphertext(ct *rlwe.Ciphertext) ([]byte, error) {
	buf := new(bytes.Buffer)
	if _, err := ct.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to serialize ciphertext: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeCiphertext restores a ciphertext from bytes.
func (e *Engine) DeserializeCiphertext(data []byte) (*rlwe.Ciphertext, error) {
	ct := rlwe.NewCiphertext(e.params, 1, e.params.MaxLevel())
	if _, err := ct.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to deserialize ciphertext: %w", err)
	}
	return ct, nil
}

// Params returns the CKKS parameters.
func (e *Engine) Params() hefloat.Parameters {
	return e.params
}

// Encoder returns the encoder, used by BasisCache to pre-encode rows.
func (e *Engine) Encoder() *hefloat.Encoder {
	return e.encoder
}

func dot(a, b []float64) float64 {
	var sum float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
