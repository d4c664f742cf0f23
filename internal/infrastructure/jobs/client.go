package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// ErrAlreadyQueued ya hay una importación pendiente para la filial.
var ErrAlreadyQueued = errors.New("jobs: importación ya encolada para la filial")

// Client encola importaciones.
type Client struct {
	client *asynq.Client
	unique time.Duration
}

// NewClient unique es la ventana en la que se descarta una segunda tarea de la misma filial.
func NewClient(redisOpts asynq.RedisConnOpt, unique time.Duration) *Client {
	return &Client{client: asynq.NewClient(redisOpts), unique: unique}
}

// EnqueueImportBranch encola la pasada de una filial.
func (c *Client) EnqueueImportBranch(ctx context.Context, p ImportBranchPayload) (*asynq.TaskInfo, error) {
	opts := []asynq.Option{asynq.Queue(QueueImports), asynq.MaxRetry(3)}
	if c.unique > 0 {
		// Unique compara tipo+payload: sin el usuario, dos operadores no duplican la pasada.
		p.UserID = ""
		opts = append(opts, asynq.Unique(c.unique))
	}
	task, err := NewImportBranchTask(p)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil, ErrAlreadyQueued
	}
	return info, err
}

// Close libera la conexión.
func (c *Client) Close() error {
	return c.client.Close()
}
