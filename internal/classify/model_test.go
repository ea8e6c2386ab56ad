// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	response string
	err      error
	payloads []string
}

func (f *fakeInvoker) Invoke(_ context.Context, payload string) (string, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

const cleanResponse = `{
	"domain": "PRODUCT_INQUIRY",
	"intent": "purchase",
	"priority": "MEDIUM",
	"sentiment": "NEUTRAL",
	"entities": {"quantities": ["1000 units"]},
	"confidence": 0.93,
	"reasoning": "bulk purchase request"
}`

func TestModelClassifier_CleanSuccess(t *testing.T) {
	profile := testProfile(t)
	invoker := &fakeInvoker{response: cleanResponse}
	c := NewModelClassifier(invoker, 0)

	outcome := c.Classify(context.Background(), "I need 1000 units of Product X", profile)

	require.NoError(t, outcome.Err)
	assert.False(t, outcome.Fallback)
	assert.Equal(t, MethodModel, outcome.Result.Method)
	assert.Equal(t, "PRODUCT_INQUIRY", outcome.Result.Domain)
	assert.Equal(t, "purchase", outcome.Result.Intent)
	assert.Equal(t, 0.93, outcome.Result.Confidence)
	assert.Equal(t, []string{"1000 units"}, outcome.Result.Entities["quantities"])
}

func TestModelClassifier_FencedJSON(t *testing.T) {
	profile := testProfile(t)
	invoker := &fakeInvoker{response: "Here is the classification:\n```json\n" + cleanResponse + "\n```\nLet me know if you need more."}
	c := NewModelClassifier(invoker, 0)

	outcome := c.Classify(context.Background(), "I need 1000 units of Product X", profile)

	require.NoError(t, outcome.Err)
	assert.Equal(t, MethodModel, outcome.Result.Method)
	assert.Equal(t, "PRODUCT_INQUIRY", outcome.Result.Domain)
}

func TestModelClassifier_EmbeddedJSON(t *testing.T) {
	profile := testProfile(t)
	invoker := &fakeInvoker{response: "Sure! " + cleanResponse + " Hope that helps."}
	c := NewModelClassifier(invoker, 0)

	outcome := c.Classify(context.Background(), "I need 1000 units of Product X", profile)

	require.NoError(t, outcome.Err)
	assert.Equal(t, "PRODUCT_INQUIRY", outcome.Result.Domain)
}

func TestModelClassifier_FallbackTriggers(t *testing.T) {
	profile := testProfile(t)

	cases := []struct {
		name    string
		invoker *fakeInvoker
	}{
		{"invoker error", &fakeInvoker{err: errors.New("upstream 500")}},
		{"empty response", &fakeInvoker{response: ""}},
		{"prose only", &fakeInvoker{response: "I cannot classify this message."}},
		{"truncated JSON", &fakeInvoker{response: `{"domain": "PRODUCT_INQUIRY", "confi`}},
		{"unknown domain", &fakeInvoker{response: `{"domain": "BILLING", "confidence": 0.9}`}},
		{"missing domain", &fakeInvoker{response: `{"intent": "purchase", "confidence": 0.9}`}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewModelClassifier(tc.invoker, 0)
			outcome := c.Classify(context.Background(), "where is my order ORD-12345678", profile)

			assert.True(t, outcome.Fallback)
			assert.Error(t, outcome.Err)
			assert.Equal(t, MethodRuleBased, outcome.Result.Method)
			// The fallback result is a real classification, not a zero value.
			assert.Equal(t, "ORDER_SUPPORT", outcome.Result.Domain)
			assert.Equal(t, []string{"ORD-12345678"}, outcome.Result.Entities["order_numbers"])
		})
	}
}

func TestModelClassifier_NilInvoker(t *testing.T) {
	profile := testProfile(t)
	c := NewModelClassifier(nil, 0)

	outcome := c.Classify(context.Background(), "hello", profile)
	assert.True(t, outcome.Fallback)
	assert.Error(t, outcome.Err)
}

func TestModelClassifier_Timeout(t *testing.T) {
	profile := testProfile(t)
	c := NewModelClassifier(blockingInvoker{}, 10*time.Millisecond)

	outcome := c.Classify(context.Background(), "where is my order", profile)
	assert.True(t, outcome.Fallback)
	assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
}

type blockingInvoker struct{}

func (blockingInvoker) Invoke(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestParseModelResponse_Normalization(t *testing.T) {
	profile := testProfile(t)

	t.Run("confidence clamped", func(t *testing.T) {
		result, err := parseModelResponse(`{"domain": "ORDER_SUPPORT", "confidence": 1.7}`, profile)
		require.NoError(t, err)
		assert.Equal(t, 1.0, result.Confidence)

		result, err = parseModelResponse(`{"domain": "ORDER_SUPPORT", "confidence": -0.2}`, profile)
		require.NoError(t, err)
		assert.Equal(t, 0.0, result.Confidence)
	})

	t.Run("domain case-normalized", func(t *testing.T) {
		result, err := parseModelResponse(`{"domain": "order_support", "confidence": 0.8}`, profile)
		require.NoError(t, err)
		assert.Equal(t, "ORDER_SUPPORT", result.Domain)
	})

	t.Run("missing intent defaults", func(t *testing.T) {
		result, err := parseModelResponse(`{"domain": "ORDER_SUPPORT", "confidence": 0.8}`, profile)
		require.NoError(t, err)
		assert.Equal(t, "inquiry", result.Intent)
	})

	t.Run("unknown priority and sentiment default", func(t *testing.T) {
		result, err := parseModelResponse(
			`{"domain": "ORDER_SUPPORT", "priority": "EXTREME", "sentiment": "FURIOUS", "confidence": 0.8}`, profile)
		require.NoError(t, err)
		assert.Equal(t, PriorityMedium, result.Priority)
		assert.Equal(t, SentimentNeutral, result.Sentiment)
	})

	t.Run("OTHER accepted", func(t *testing.T) {
		result, err := parseModelResponse(`{"domain": "OTHER", "confidence": 0.5}`, profile)
		require.NoError(t, err)
		assert.Equal(t, "OTHER", result.Domain)
	})

	t.Run("numeric entity values stringified", func(t *testing.T) {
		result, err := parseModelResponse(
			`{"domain": "ORDER_SUPPORT", "confidence": 0.8, "entities": {"amounts": [1299.5, "40.00"], "empty": []}}`, profile)
		require.NoError(t, err)
		assert.Equal(t, []string{"1299.5", "40.00"}, result.Entities["amounts"])
		assert.NotContains(t, result.Entities, "empty")
	})
}

func TestBuildInstructionPayload_Deterministic(t *testing.T) {
	profile := testProfile(t)

	first := BuildInstructionPayload(profile, "I need 1000 units")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildInstructionPayload(profile, "I need 1000 units"))
	}

	// Entity types appear sorted regardless of map iteration order.
	amounts := strings.Index(first, "- amounts:")
	orders := strings.Index(first, "- order_numbers:")
	require.Positive(t, amounts)
	require.Positive(t, orders)
	assert.Less(t, amounts, orders)

	assert.Contains(t, first, "PRODUCT_INQUIRY")
	assert.Contains(t, first, "ORDER_SUPPORT")
	assert.Contains(t, first, "OTHER")
	assert.Contains(t, first, `"I need 1000 units"`)
}
