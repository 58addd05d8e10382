package decide

import (
	"context"
	"sync"
)

// Stub is a scripted capability for tests and dry runs. It plays back its
// responses in order and repeats the last one when the script runs out.
type Stub struct {
	mu        sync.Mutex
	responses []Response
	err       error
	calls     []Request
}

// NewStub returns a stub that answers with the given responses in order.
func NewStub(responses ...Response) *Stub {
	return &Stub{responses: responses}
}

// NewFailingStub returns a stub whose every call fails with err.
func NewFailingStub(err error) *Stub {
	return &Stub{err: err}
}

func (s *Stub) Decide(_ context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.err != nil {
		return Response{}, s.err
	}
	if len(s.responses) == 0 {
		return Response{}, nil
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

// Calls returns the requests seen so far.
func (s *Stub) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}
