package secure

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// EnginePool manages a pool of engines for parallel projection.
// Each engine has its own evaluator (not thread-safe), but shares keys.
type EnginePool struct {
	engines []*Engine
	free    chan *Engine
}

// NewEnginePool creates a pool of n engines. All engines share the same
// keys but have independent evaluators. Recommended: n = runtime.NumCPU().
func NewEnginePool(n int) (*EnginePool, error) {
	if n < 1 {
		n = 1
	}

	// The first engine generates the keys
	primary, err := NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create primary engine: %w", err)
	}

	pool := &EnginePool{
		engines: make([]*Engine, n),
		free:    make(chan *Engine, n),
	}

	pool.engines[0] = primary
	pool.free <- primary

	for i := 1; i < n; i++ {
		engine, err := newEngineWithKeys(primary.params, primary.secretKey, primary.publicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine %d: %w", i, err)
		}
		pool.engines[i] = engine
		pool.free <- engine
	}

	return pool, nil
}

// newEngineWithKeys creates an engine sharing existing keys but with an
// independent evaluator, which is what allows evaluators to run
// concurrently. Galois keys are regenerated from the shared secret key.
func newEngineWithKeys(params hefloat.Parameters, sk *rlwe.SecretKey, pk *rlwe.PublicKey) (*Engine, error) {
	kgen := rlwe.NewKeyGenerator(params)
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

// Acquire gets an engine from the pool, blocking if none is available.
// The caller must call Release when done.
func (p *EnginePool) Acquire() *Engine {
	return <-p.free
}

// Release returns an engine to the pool.
func (p *EnginePool) Release(e *Engine) {
	p.free <- e
}

// Size returns the number of engines in the pool.
func (p *EnginePool) Size() int {
	return len(p.engines)
}

// Params returns the CKKS parameters, the same for all engines.
func (p *EnginePool) Params() hefloat.Parameters {
	return p.engines[0].params
}

// Primary returns the first engine, the one holding the original keys.
func (p *EnginePool) Primary() *Engine {
	return p.engines[0]
}

// EncryptVector encrypts a vector using a pooled engine. Typically called
// once per input, so contention here is acceptable.
func (p *EnginePool) EncryptVector(vector []float64) (*rlwe.Ciphertext, error) {
	engine := p.Acquire()
	defer p.Release(engine)
	return engine.EncryptVector(vector)
}

// DecryptScalar decrypts a single projected coordinate.
func (p *EnginePool) DecryptScalar(ct *rlwe.Ciphertext) (float64, error) {
	engine := p.Acquire()
	defer p.Release(engine)
	return engine.DecryptScalar(ct)
}

// Project computes every projected coordinate of an encrypted vector in
// parallel, one pooled engine per in-flight basis row. The cache must be
// loaded with the basis of the model the input belongs to.
func (p *EnginePool) Project(encX *rlwe.Ciphertext, cache *BasisCache) ([]*rlwe.Ciphertext, error) {
	rows := cache.Size()
	if rows == 0 {
		return nil, errors.New("basis cache is empty")
	}

	results := make([]*rlwe.Ciphertext, rows)
	errs := make([]error, rows)

	work := make(chan int, rows)
	workers := p.Size()
	if workers > rows {
		workers = rows
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				row, ok := cache.Get(i)
				if !ok {
					errs[i] = fmt.Errorf("basis row %d missing from cache", i)
					continue
				}
				offset, _ := cache.Offset(i)

				engine := p.Acquire()
				results[i], errs[i] = engine.ProjectEncoded(encX, row, offset)
				p.Release(engine)
			}
		}()
	}

	for i := 0; i < rows; i++ {
		work <- i
	}
	close(work)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to project component %d: %w", i, err)
		}
	}
	return results, nil
}
