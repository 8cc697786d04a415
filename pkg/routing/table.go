package routing

import (
	amqp091 "github.com/rabbitmq/amqp091-go"
)

type DestinationKind string

const (
	QueueDestination    DestinationKind = "queue"
	ExchangeDestination DestinationKind = "exchange"
)

// Destination is anything an exchange can forward a message to. The table
// only holds references; removing a binding never touches the destination.
type Destination interface {
	Name() string
	DestinationKind() DestinationKind
}

type Binding struct {
	Key         string
	Destination Destination
	Args        amqp091.Table
}

// Table maps binding keys to the bindings stored under them. Keys keep their
// insertion order so fanout and topic routing are deterministic.
type Table struct {
	keys     []string
	bindings map[string][]*Binding
}

func NewTable() *Table {
	return &Table{bindings: make(map[string][]*Binding)}
}

// Add appends a binding under key. Duplicates are allowed and are removed
// one at a time.
func (t *Table) Add(key string, dest Destination, args amqp091.Table) *Binding {
	b := &Binding{Key: key, Destination: dest, Args: copyTable(args)}
	if _, ok := t.bindings[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.bindings[key] = append(t.bindings[key], b)
	return b
}

// Remove drops the first binding under key that targets dest. It reports
// whether anything was removed.
func (t *Table) Remove(key string, dest Destination) bool {
	list, ok := t.bindings[key]
	if !ok {
		return false
	}
	for i, b := range list {
		if SameDestination(b.Destination, dest) {
			t.bindings[key] = append(list[:i:i], list[i+1:]...)
			if len(t.bindings[key]) == 0 {
				t.dropKey(key)
			}
			return true
		}
	}
	return false
}

// RemoveDestination drops every binding that targets dest, under any key,
// and returns how many were removed.
func (t *Table) RemoveDestination(dest Destination) int {
	removed := 0
	for _, key := range t.Keys() {
		kept := t.bindings[key][:0:0]
		for _, b := range t.bindings[key] {
			if SameDestination(b.Destination, dest) {
				removed++
				continue
			}
			kept = append(kept, b)
		}
		if len(kept) == 0 {
			t.dropKey(key)
		} else {
			t.bindings[key] = kept
		}
	}
	return removed
}

func (t *Table) Contains(key string, dest Destination) bool {
	for _, b := range t.bindings[key] {
		if SameDestination(b.Destination, dest) {
			return true
		}
	}
	return false
}

// Lookup returns a copy of the bindings stored under key.
func (t *Table) Lookup(key string) []Binding {
	list := t.bindings[key]
	out := make([]Binding, 0, len(list))
	for _, b := range list {
		out = append(out, *b)
	}
	return out
}

// All returns a copy of every binding, grouped by key in insertion order.
func (t *Table) All() []Binding {
	var out []Binding
	for _, key := range t.keys {
		for _, b := range t.bindings[key] {
			out = append(out, *b)
		}
	}
	return out
}

func (t *Table) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Len counts bindings, not keys.
func (t *Table) Len() int {
	n := 0
	for _, list := range t.bindings {
		n += len(list)
	}
	return n
}

func (t *Table) dropKey(key string) {
	delete(t.bindings, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i:i], t.keys[i+1:]...)
			return
		}
	}
}

// SameDestination matches by identity first, then by kind and name.
func SameDestination(a, b Destination) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	return a.DestinationKind() == b.DestinationKind() && a.Name() == b.Name()
}

func copyTable(in amqp091.Table) amqp091.Table {
	if in == nil {
		return nil
	}
	out := make(amqp091.Table, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
