// Package stats aggregates query records as they pass to a sink.
package stats

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/miekg/dns"

	"github.com/ccollicutt/bindlog/pkg/analyzer"
	"github.com/ccollicutt/bindlog/pkg/parser"
)

// Count is a key with the number of records it appeared in.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Report is a snapshot of collected statistics.
type Report struct {
	Records      int     `json:"records"`
	TopClients   []Count `json:"top_clients"`
	TopQueries   []Count `json:"top_queries"`
	Types        []Count `json:"types"`
	Servers      []Count `json:"servers"`
	UnknownTypes []Count `json:"unknown_types,omitempty"`
}

// Collector counts records stored through it. Records are forwarded to the
// wrapped sink first and only counted when it accepts them.
type Collector struct {
	next analyzer.Sink

	mu      sync.Mutex
	records int
	clients map[string]int
	queries map[string]int
	types   map[string]int
	servers map[string]int
	unknown map[string]int
}

// NewCollector wraps next. A nil next counts every record.
func NewCollector(next analyzer.Sink) *Collector {
	return &Collector{
		next:    next,
		clients: make(map[string]int),
		queries: make(map[string]int),
		types:   make(map[string]int),
		servers: make(map[string]int),
		unknown: make(map[string]int),
	}
}

// Store forwards rec and counts it on success.
func (c *Collector) Store(ctx context.Context, rec parser.QueryRecord) error {
	if c.next != nil {
		if err := c.next.Store(ctx, rec); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.records++
	c.clients[rec.Client]++
	c.queries[strings.ToLower(rec.Query)]++
	c.types[rec.QType]++
	c.servers[rec.Server]++
	if !KnownType(rec.QType) {
		c.unknown[rec.QType]++
	}
	return nil
}

// Report returns the top n clients and queries and all types and servers.
// n <= 0 returns every client and query.
func (c *Collector) Report(n int) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &Report{
		Records:      c.records,
		TopClients:   top(c.clients, n),
		TopQueries:   top(c.queries, n),
		Types:        top(c.types, 0),
		Servers:      top(c.servers, 0),
		UnknownTypes: top(c.unknown, 0),
	}
}

// KnownType reports whether qtype is a registered DNS record type mnemonic
// or an RFC 3597 TYPEnnn token.
func KnownType(qtype string) bool {
	if _, ok := dns.StringToType[qtype]; ok {
		return true
	}
	if rest, ok := strings.CutPrefix(qtype, "TYPE"); ok && rest != "" {
		for _, r := range rest {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
	return false
}

// top sorts counts descending, ties by key, and keeps the first n.
func top(m map[string]int, n int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
