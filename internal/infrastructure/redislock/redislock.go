// Package redislock lock distribuido por filial para que dos pasadas de importación
// nunca avancen el mismo NSU a la vez.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/notas-destinadas/pkg/config"
)

var (
	// ErrNotAcquired otro proceso tiene el lock.
	ErrNotAcquired = errors.New("redislock: lock ocupado")
	// ErrNotHeld el lock expiró o pertenece a otro dueño.
	ErrNotHeld = errors.New("redislock: lock no pertenece a este dueño")
)

// releaseScript borra la clave solo si el token coincide.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// extendScript renueva el PX solo si el token coincide.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// NewClient crea el cliente Redis y verifica la conexión.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redislock: ping: %w", err)
	}
	return client, nil
}

// BranchKey clave del lock de importación de una filial.
func BranchKey(companyID, branchID string) string {
	return fmt.Sprintf("nfe:import:%s:%s:lock", companyID, branchID)
}

// Lock lock adquirido; el token identifica al dueño.
type Lock struct {
	Key   string
	token string
}

// Locker adquiere locks con SET NX PX.
type Locker struct {
	client redis.Cmdable
	ttl    time.Duration
}

// New ttl es la vida del lock sin renovación; WithLock lo renueva mientras la pasada corre.
func New(client redis.Cmdable, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire intenta tomar el lock sin esperar.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lock, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redislock: SET NX %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lock{Key: key, token: token}, nil
}

// Release libera el lock si todavía es nuestro.
func (l *Locker) Release(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	n, err := releaseScript.Run(ctx, l.client, []string{lock.Key}, lock.token).Int64()
	if err != nil {
		return fmt.Errorf("redislock: liberar %s: %w", lock.Key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Extend vuelve a fijar el TTL completo si el lock todavía es nuestro.
func (l *Locker) Extend(ctx context.Context, lock *Lock) error {
	n, err := extendScript.Run(ctx, l.client, []string{lock.Key}, lock.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redislock: renovar %s: %w", lock.Key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// WithLock ejecuta fn con el lock tomado y lo libera al terminar. Mientras fn corre el TTL
// se renueva cada ttl/3; si el lock se pierde, el ctx de fn se cancela con ErrNotHeld.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	go l.keepAlive(runCtx, lock, cancel, done)

	fnErr := fn(runCtx)
	lost := errors.Is(context.Cause(runCtx), ErrNotHeld)
	cancel(nil)
	<-done

	if lost {
		if fnErr != nil {
			return fmt.Errorf("%w: %w", ErrNotHeld, fnErr)
		}
		return ErrNotHeld
	}
	// La liberación no depende del ctx de la pasada, que puede estar cancelado.
	relCtx, relCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer relCancel()
	if err := l.Release(relCtx, lock); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

func (l *Locker) keepAlive(ctx context.Context, lock *Lock, cancel context.CancelCauseFunc, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Otros errores (Redis caído) se reintentan en el próximo tick mientras el TTL no venza.
			if err := l.Extend(ctx, lock); errors.Is(err, ErrNotHeld) {
				cancel(ErrNotHeld)
				return
			}
		}
	}
}
