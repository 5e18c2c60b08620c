// Package server offloads message broadcasts to a pool of dispatch workers
// so the event-handling path never blocks on fan-out.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// broadcastTask carries one classified message to be fanned out to a room.
type broadcastTask struct {
	sala    string
	usuario string
	mensaje string
	kind    MessageKind
	tiempo  string
}

// Dispatcher runs a fixed pool of workers that broadcast chat messages.
// Submit returns immediately; the broadcast itself happens asynchronously
// with no ordering guarantee across submissions.
type Dispatcher struct {
	registry *Registry
	sender   connSender
	queue    chan broadcastTask
	workers  int
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	running  bool
}

// NewDispatcher creates a dispatcher with the given worker count and queue
// capacity. Values below one fall back to sane minimums.
func NewDispatcher(registry *Registry, sender connSender, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		registry: registry,
		sender:   sender,
		queue:    make(chan broadcastTask, queueSize),
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines. Starting twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.run(id)
		}(i + 1)
	}
	log.Printf("Dispatcher started with %d workers", d.workers)
}

// Submit enqueues a message for broadcast and returns immediately. The
// sender identity comes from the registry entry, never from the payload;
// the timestamp is stamped here so clients cannot spoof it. If the queue is
// momentarily full the handoff completes on a spawned goroutine.
func (d *Dispatcher) Submit(entry ConnectionEntry, data MessageData) {
	task := broadcastTask{
		sala:    entry.Sala,
		usuario: entry.Usuario,
		mensaje: data.Mensaje,
		kind:    Classify(data.Tipo, data.Mensaje),
		tiempo:  time.Now().Format("15:04"),
	}

	select {
	case d.queue <- task:
	case <-d.ctx.Done():
	default:
		go func() {
			select {
			case d.queue <- task:
			case <-d.ctx.Done():
			}
		}()
	}
}

// run is a worker loop: each task is independent and stateless beyond the
// message it carries.
func (d *Dispatcher) run(id int) {
	for {
		select {
		case <-d.ctx.Done():
			return
		case task := <-d.queue:
			d.broadcast(id, task)
		}
	}
}

// broadcast builds the outbound chat_message and delivers it to every
// connection currently in the task's room. Per-recipient failures are
// handled (and logged) by the sender; they never abort the worker.
func (d *Dispatcher) broadcast(workerID int, task broadcastTask) {
	payload, err := encodeEvent(EventChatMessage, ChatMessageData{
		Usuario: task.usuario,
		Mensaje: task.mensaje,
		Tiempo:  task.tiempo,
		Tipo:    task.kind.WireTipo(),
	})
	if err != nil {
		log.Printf("[worker-%d] Error encoding chat_message from %s: %v", workerID, task.usuario, err)
		return
	}

	targets := d.registry.ConnIDsInRoom(task.sala)
	d.sender.SendToConns(targets, payload)
}

// Stop shuts the pool down and waits for in-flight broadcasts to finish, or
// until the timeout elapses. Queued but unstarted tasks are dropped.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Dispatcher stopped")
		return nil
	case <-time.After(timeout):
		log.Println("Dispatcher stop timeout reached")
		return context.DeadlineExceeded
	}
}
