package decide

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStub_PlaysBackAndRepeatsLast(t *testing.T) {
	s := NewStub(
		Response{Verdict: "continue"},
		Response{Verdict: "backtrack", Text: "mesh"},
	)

	r1, err := s.Decide(context.Background(), Request{Topic: "supervision"})
	require.NoError(t, err)
	assert.Equal(t, "continue", r1.Verdict)

	r2, err := s.Decide(context.Background(), Request{Topic: "supervision"})
	require.NoError(t, err)
	assert.Equal(t, "backtrack", r2.Verdict)
	assert.Equal(t, "mesh", r2.Text)

	// Script exhausted: the last response repeats.
	r3, err := s.Decide(context.Background(), Request{Topic: "supervision"})
	require.NoError(t, err)
	assert.Equal(t, "backtrack", r3.Verdict)

	require.Len(t, s.Calls(), 3)
	assert.Equal(t, "supervision", s.Calls()[0].Topic)
}

func TestFailingStub(t *testing.T) {
	boom := errors.New("capability offline")
	s := NewFailingStub(boom)

	_, err := s.Decide(context.Background(), Request{Topic: "supervision"})
	require.ErrorIs(t, err, boom)
	require.Len(t, s.Calls(), 1)
}

func TestFunc_Adapts(t *testing.T) {
	var seen Request
	fn := Func(func(_ context.Context, req Request) (Response, error) {
		seen = req
		return Response{Verdict: "approve"}, nil
	})

	resp, err := fn.Decide(context.Background(), Request{Topic: "comparison_validation", Schema: []string{"approve", "revise"}})
	require.NoError(t, err)
	assert.Equal(t, "approve", resp.Verdict)
	assert.Equal(t, []string{"approve", "revise"}, seen.Schema)
}

func TestAuto_DecidesKnownTopicsOnly(t *testing.T) {
	a := NewAuto()

	resp, err := a.Decide(context.Background(), Request{Topic: "supervision"})
	require.NoError(t, err)
	assert.Equal(t, "continue", resp.Verdict)

	resp, err = a.Decide(context.Background(), Request{Topic: "comparison_validation"})
	require.NoError(t, err)
	assert.Equal(t, "approve", resp.Verdict)

	_, err = a.Decide(context.Background(), Request{Topic: "escalation_answer"})
	assert.Error(t, err)
}
