// Package session holds per-user conversational state: who is asking, which
// documents were already ingested and where their vectors live, and the
// in-memory question/answer history.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

// Turn is one question/answer exchange kept in session memory.
type Turn struct {
	Question string
	Answer   string
	At       time.Time
}

// Session is safe for concurrent use. Lock/Unlock serialize whole requests;
// individual accessors are guarded separately.
type Session struct {
	id     string
	userID string

	req sync.Mutex

	mu         sync.RWMutex
	processed  map[string]namespace.Namespace // fingerprint -> namespace
	byFile     map[string]namespace.Namespace // filename -> namespace
	namespaces []namespace.Namespace          // distinct, ingestion order
	history    []Turn
	createdAt  time.Time
	lastUsed   atomic.Int64 // unix nanos
}

func newSession(id, userID string, now time.Time) *Session {
	s := &Session{
		id:        id,
		userID:    userID,
		processed: make(map[string]namespace.Namespace),
		byFile:    make(map[string]namespace.Namespace),
		createdAt: now,
	}
	s.lastUsed.Store(now.UnixNano())
	return s
}

func (s *Session) touch(now time.Time) { s.lastUsed.Store(now.UnixNano()) }

// LastUsed returns when the session was last looked up.
func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the signed-in user, "" when anonymous.
func (s *Session) UserID() string { return s.userID }

// Anonymous reports whether no user is signed in.
func (s *Session) Anonymous() bool {
	return s.userID == "" || s.userID == domain.AnonymousUser
}

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Lock blocks until the session is free for one request.
func (s *Session) Lock() { s.req.Lock() }

// Unlock releases the request lock.
func (s *Session) Unlock() { s.req.Unlock() }

// Processed returns the namespace of an already ingested fingerprint.
func (s *Session) Processed(fingerprint string) (namespace.Namespace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.processed[fingerprint]
	return ns, ok
}

// MarkProcessed records that the document with fingerprint was stored under ns.
func (s *Session) MarkProcessed(fingerprint, filename string, ns namespace.Namespace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[fingerprint] = ns
	s.byFile[filename] = ns
	for _, existing := range s.namespaces {
		if existing == ns {
			return
		}
	}
	s.namespaces = append(s.namespaces, ns)
}

// Namespaces returns every namespace ingested in this session, in ingestion order.
func (s *Session) Namespaces() []namespace.Namespace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]namespace.Namespace, len(s.namespaces))
	copy(out, s.namespaces)
	return out
}

// NamespaceOf returns the namespace a filename was ingested under.
func (s *Session) NamespaceOf(filename string) (namespace.Namespace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.byFile[filename]
	return ns, ok
}

// AddTurn appends a question/answer pair to the in-memory history.
func (s *Session) AddTurn(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{Question: question, Answer: answer, At: time.Now()})
}

// History returns the turns newest first.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	for i, t := range s.history {
		out[len(s.history)-1-i] = t
	}
	return out
}

// Reset forgets history, fingerprints and namespaces. Stored vectors stay.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = make(map[string]namespace.Namespace)
	s.byFile = make(map[string]namespace.Namespace)
	s.namespaces = nil
	s.history = nil
}
