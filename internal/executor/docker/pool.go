package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

var errPoolClosed = errors.New("container pool is closed")

const (
	retryMin     = 500 * time.Millisecond
	retryMax     = 10 * time.Second
	idleRecheck  = 100 * time.Millisecond
	daemonBudget = 10 * time.Second
)

// containerPool keeps PoolSize idle containers ready. Every container serves
// exactly one lesson and is discarded afterwards.
type containerPool struct {
	cli    *client.Client
	cfg    Config
	logger *slog.Logger

	ready   chan string
	closing chan struct{}
	filler  sync.WaitGroup
	once    sync.Once
}

func newContainerPool(cli *client.Client, cfg Config, logger *slog.Logger) *containerPool {
	p := &containerPool{
		cli:     cli,
		cfg:     cfg,
		logger:  logger,
		ready:   make(chan string, cfg.PoolSize),
		closing: make(chan struct{}),
	}
	p.filler.Add(1)
	go p.fill()
	logger.Info("container pool started", slog.Int("size", cfg.PoolSize), slog.String("image", cfg.Image))
	return p
}

// acquire hands out an idle container, waiting until one is ready.
func (p *containerPool) acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.ready:
		return id, nil
	case <-p.closing:
		return "", errPoolClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// discard removes a used container. It runs on a fresh context so a timed-out
// lesson still gets cleaned up.
func (p *containerPool) discard(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), daemonBudget/2)
	defer cancel()
	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Error("removing container", slog.String("container", id), slog.String("error", err.Error()))
	}
}

// close stops the filler and removes idle containers. Idempotent.
func (p *containerPool) close() {
	p.once.Do(func() {
		close(p.closing)
		p.filler.Wait()
		for {
			select {
			case id := <-p.ready:
				p.discard(id)
			default:
				p.logger.Info("container pool stopped")
				return
			}
		}
	})
}

// fill tops the pool up, retrying with exponential backoff while the daemon
// refuses new containers.
func (p *containerPool) fill() {
	defer p.filler.Done()

	delay := retryMin
	for {
		pause := idleRecheck
		if len(p.ready) < cap(p.ready) {
			id, err := p.start()
			switch {
			case err != nil:
				p.logger.Error("starting pool container", slog.String("error", err.Error()), slog.Duration("retryIn", delay))
				pause, delay = delay, min(delay*2, retryMax)
			default:
				delay = retryMin
				select {
				case p.ready <- id:
					continue
				case <-p.closing:
					p.discard(id)
					return
				}
			}
		}

		select {
		case <-p.closing:
			return
		case <-time.After(pause):
		}
	}
}

func (p *containerPool) start() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), daemonBudget)
	defer cancel()

	cfg, host := p.cfg.containerSpec()
	created, err := p.cli.ContainerCreate(ctx, cfg, host, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("creating container: %w", err)
	}
	if err := p.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		p.discard(created.ID)
		return "", fmt.Errorf("starting container %s: %w", created.ID, err)
	}
	return created.ID, nil
}
