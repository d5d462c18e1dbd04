package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// InMemoryTransport is a scriptable Transport double for unit tests.
// Responses are registered per endpoint; every call is logged so tests can
// assert on exact request counts.
type InMemoryTransport struct {
	mu sync.Mutex
	responses map[string][]json.RawMessage // endpoint -> queued responses, FIFO
	downloads map[string][]byte // endpoint -> canned download payload
	errs map[string][]error // endpoint -> queued errors, FIFO
	log []CallRecord
}

// CallRecord is one observed call against the mock.
type CallRecord struct {
	Endpoint string
	Params map[string]string
	Kind string // "get" | "download"
}

// NewInMemoryTransport returns an empty mock ready for Seed calls.
func NewInMemoryTransport() *InMemoryTransport {
	return &InMemoryTransport{
		responses: make(map[string][]json.RawMessage),
		downloads: make(map[string][]byte),
		errs: make(map[string][]error),
	}
}

// SeedJSON enqueues a JSON response (marshaled from v) to be returned by
// the next Get call against endpoint.
func (m *InMemoryTransport) SeedJSON(endpoint string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("transport: seed marshal failed: %v", err))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[endpoint] = append(m.responses[endpoint], data)
}

// SeedError enqueues an error to be returned by the next Get/Download call
// against endpoint, ahead of any seeded responses.
func (m *InMemoryTransport) SeedError(endpoint string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[endpoint] = append(m.errs[endpoint], err)
}

// SeedDownload registers the payload returned by Download for endpoint.
func (m *InMemoryTransport) SeedDownload(endpoint string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[endpoint] = payload
}

func (m *InMemoryTransport) Get(_ context.Context, endpoint string, params map[string]string, out interface{}) error {
	m.mu.Lock()
	m.log = append(m.log, CallRecord{Endpoint: endpoint, Params: params, Kind: "get"})
	if queued := m.errs[endpoint]; len(queued) > 0 {
		err := queued[0]
		m.errs[endpoint] = queued[1:]
		m.mu.Unlock()
		return err
	}
	queued := m.responses[endpoint]
	if len(queued) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("transport mock: no response seeded for %s", endpoint)
	}
	data := queued[0]
	m.responses[endpoint] = queued[1:]
	m.mu.Unlock()

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (m *InMemoryTransport) Download(_ context.Context, endpoint string, params map[string]string, w io.Writer) error {
	m.mu.Lock()
	m.log = append(m.log, CallRecord{Endpoint: endpoint, Params: params, Kind: "download"})
	if queued := m.errs[endpoint]; len(queued) > 0 {
		err := queued[0]
		m.errs[endpoint] = queued[1:]
		m.mu.Unlock()
		return err
	}
	payload, ok := m.downloads[endpoint]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport mock: no download seeded for %s", endpoint)
	}
	_, err := io.Copy(w, bytes.NewReader(payload))
	return err
}

// Calls returns a copy of every recorded call, in order.
func (m *InMemoryTransport) Calls() []CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallRecord, len(m.log))
	copy(out, m.log)
	return out
}

// CallCount returns how many times endpoint was called (any kind).
func (m *InMemoryTransport) CallCount(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.log {
		if c.Endpoint == endpoint {
			n++
		}
	}
	return n
}

// Reset clears the call log while leaving seeded responses intact.
func (m *InMemoryTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = nil
}
