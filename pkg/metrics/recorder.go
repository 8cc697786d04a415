package metrics

import "sync"

// Recorder keeps plain counts in memory. It is meant for tests that want to
// assert on broker activity without a Prometheus registry.
type Recorder struct {
	mu sync.RWMutex

	exchangePublishes map[string]int
	exchangeReturns   map[string]int
	queuePublishes    map[string]int
	queueDeliveries   map[string]int
	queueDepths       map[string]int
	acks              map[string]int
	nacks             map[string]int
	rejects           map[string]int
	requeues          map[string]int
	deadLetters       map[string]int
	openChannels      int
}

func NewRecorder() *Recorder {
	return &Recorder{
		exchangePublishes: make(map[string]int),
		exchangeReturns:   make(map[string]int),
		queuePublishes:    make(map[string]int),
		queueDeliveries:   make(map[string]int),
		queueDepths:       make(map[string]int),
		acks:              make(map[string]int),
		nacks:             make(map[string]int),
		rejects:           make(map[string]int),
		requeues:          make(map[string]int),
		deadLetters:       make(map[string]int),
	}
}

func (r *Recorder) RecordExchangePublish(exchangeName, _ string) {
	r.inc(r.exchangePublishes, exchangeName)
}

func (r *Recorder) RecordExchangeReturn(exchangeName string) {
	r.inc(r.exchangeReturns, exchangeName)
}

func (r *Recorder) RecordQueuePublish(queueName string) {
	r.inc(r.queuePublishes, queueName)
}

func (r *Recorder) RecordQueueDelivery(queueName string, _ bool) {
	r.inc(r.queueDeliveries, queueName)
}

func (r *Recorder) SetQueueDepth(queueName string, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queueDepths[queueName] = depth
}

func (r *Recorder) RecordAck(queueName string) {
	r.inc(r.acks, queueName)
}

func (r *Recorder) RecordNack(queueName string, requeue bool) {
	r.inc(r.nacks, queueName)
	if requeue {
		r.inc(r.requeues, queueName)
	}
}

func (r *Recorder) RecordReject(queueName string, requeue bool) {
	r.inc(r.rejects, queueName)
	if requeue {
		r.inc(r.requeues, queueName)
	}
}

func (r *Recorder) RecordDeadLetter(queueName, _ string) {
	r.inc(r.deadLetters, queueName)
}

func (r *Recorder) RecordChannelOpen() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openChannels++
}

func (r *Recorder) RecordChannelClose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openChannels--
}

func (r *Recorder) ExchangePublishes(name string) int { return r.get(r.exchangePublishes, name) }
func (r *Recorder) ExchangeReturns(name string) int   { return r.get(r.exchangeReturns, name) }
func (r *Recorder) QueuePublishes(name string) int    { return r.get(r.queuePublishes, name) }
func (r *Recorder) QueueDeliveries(name string) int   { return r.get(r.queueDeliveries, name) }
func (r *Recorder) QueueDepth(name string) int        { return r.get(r.queueDepths, name) }
func (r *Recorder) Acks(name string) int              { return r.get(r.acks, name) }
func (r *Recorder) Nacks(name string) int             { return r.get(r.nacks, name) }
func (r *Recorder) Rejects(name string) int           { return r.get(r.rejects, name) }
func (r *Recorder) Requeues(name string) int          { return r.get(r.requeues, name) }
func (r *Recorder) DeadLetters(name string) int       { return r.get(r.deadLetters, name) }

func (r *Recorder) OpenChannels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.openChannels
}

func (r *Recorder) inc(m map[string]int, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m[key]++
}

func (r *Recorder) get(m map[string]int, key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return m[key]
}
