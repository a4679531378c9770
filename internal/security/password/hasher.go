package password

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Hasher corre el hashing detrás de un semáforo ponderado: a lo sumo
// concurrency operaciones a la vez. Adquirir un slot respeta el ctx del request.
//
// Los hashes nuevos son argon2id; Compare acepta además bcrypt heredado.
type Hasher struct {
	Params Params
	sem    *semaphore.Weighted

	dummyOnce sync.Once
	dummy     string
}

// NewHasher crea un Hasher. concurrency <= 0 usa GOMAXPROCS.
func NewHasher(p Params, concurrency int) *Hasher {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	if p == (Params{}) {
		p = Default
	}
	return &Hasher{Params: p, sem: semaphore.NewWeighted(int64(concurrency))}
}

// Hash genera un PHC argon2id.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	return Hash(h.Params, plain)
}

// Compare verifica plain contra hash (argon2id o bcrypt).
// Solo devuelve error si el ctx se canceló esperando un slot.
func (h *Hasher) Compare(ctx context.Context, plain, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	if IsBcrypt(hash) {
		return VerifyBcrypt(plain, hash), nil
	}
	return Verify(plain, hash), nil
}

// CompareDummy gasta el mismo trabajo que un Compare real. Se usa cuando el
// email no existe, para que el tiempo de respuesta no revele la diferencia.
func (h *Hasher) CompareDummy(ctx context.Context, plain string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = Hash(h.Params, "dummy-password-for-timing")
	})
	_, _ = h.Compare(ctx, plain, h.dummy)
}

// NeedsRehash indica si conviene re-hashear tras un login exitoso
// (bcrypt heredado o parámetros argon2 viejos).
func (h *Hasher) NeedsRehash(hash string) bool {
	if IsBcrypt(hash) {
		return true
	}
	return NeedsRehash(h.Params, hash)
}
