package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Model = (*MockModel)(nil)

func TestCollect_NonStreaming(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hi", "hello there")

	out, err := Collect(context.Background(), m, Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	require.Len(t, m.Calls(), 1)
	assert.Equal(t, "hi", m.Calls()[0].Prompt)
}

func TestCollect_StreamingPrefersFinal(t *testing.T) {
	m := NewMockModel("mock", "mock")

	out, err := Collect(context.Background(), m, Request{Prompt: "abc", Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: abc", out)
}

func TestCollect_Error(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.FailWith(errors.New("quota"))

	_, err := Collect(context.Background(), m, Request{Prompt: "x"})
	assert.EqualError(t, err, "quota")
}

func TestCollect_EmptyPrompt(t *testing.T) {
	m := NewMockModel("mock", "mock")
	_, err := Collect(context.Background(), m, Request{})
	assert.Error(t, err)
}

func TestCollect_EmptyResponse(t *testing.T) {
	_, err := Collect(context.Background(), emptyModel{}, Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

type emptyModel struct{}

func (emptyModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error)
	respCh <- Response{Text: "  ", FinishReason: "stop"}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (emptyModel) Info() Info { return Info{Name: "empty", Provider: "test"} }

func TestMockModel_ConcurrentUse(t *testing.T) {
	m := NewMockModel("mock", "mock")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prompt := fmt.Sprintf("entry %d", i)
			m.AddResponse(prompt, "ok")
			out, err := Collect(context.Background(), m, Request{Prompt: prompt})
			assert.NoError(t, err)
			assert.Equal(t, "ok", out)
		}(i)
	}
	wg.Wait()

	assert.Len(t, m.Calls(), 20)
}
