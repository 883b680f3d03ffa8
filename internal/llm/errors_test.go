package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, IsTransient(classifyStatus(429, base)))
	assert.True(t, IsTransient(classifyStatus(503, base)))
	assert.True(t, IsFatal(classifyStatus(400, base)))
	assert.True(t, IsFatal(classifyStatus(401, base)))
	assert.ErrorIs(t, classifyStatus(500, base), base)
}

func TestNew_RequiresKeyAndModel(t *testing.T) {
	_, err := New(context.Background(), Settings{Provider: "openai", Model: "gpt-4o-mini"})
	assert.True(t, IsFatal(err))

	_, err = New(context.Background(), Settings{Provider: "openai", APIKey: "k"})
	assert.True(t, IsFatal(err))

	_, err = New(context.Background(), Settings{Provider: "claude", APIKey: "k", Model: "m"})
	assert.Error(t, err)

	c, err := New(context.Background(), Settings{Provider: "openai", APIKey: "k", Model: "m"})
	assert.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)
}
