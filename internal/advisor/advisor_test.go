package advisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"printpos/internal/domain"
	"printpos/internal/store/memory"
)

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	system  string
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, system string, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system = system
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type mapCache struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", false, c.err
	}
	val, ok := c.values[key]
	return val, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.values[key] = value
	return nil
}

func quietOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestAskSendsSnapshotAndCaches(t *testing.T) {
	completer := &fakeCompleter{reply: "  Restock A4 paper before the weekend.  "}
	cacheStore := newMapCache()
	a := New(memory.NewSeeded(), completer, cacheStore, quietOptions())
	ctx := context.Background()

	answer, err := a.Ask(ctx, "What should I restock?")
	require.NoError(t, err)
	assert.Equal(t, "Restock A4 paper before the weekend.", answer.Answer)
	assert.False(t, answer.Cached)

	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "Total Products: 6")
	assert.Contains(t, completer.prompts[0], "Low Stock Items: None")
	assert.Contains(t, completer.prompts[0], "User Question: What should I restock?")
	assert.Contains(t, completer.system, `"AR Printers"`)
	assert.Contains(t, completer.system, "Sri Lankan Rupees")

	again, err := a.Ask(ctx, "What should I restock?")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, answer.Answer, again.Answer)
	assert.Equal(t, 1, completer.calls)
}

func TestAskFallsBackOnCompleterFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("quota exceeded")}
	cacheStore := newMapCache()
	a := New(memory.NewSeeded(), completer, cacheStore, quietOptions())

	answer, err := a.Ask(context.Background(), "How are sales?")
	require.NoError(t, err)
	assert.Equal(t, ErrorReply, answer.Answer)
	assert.Empty(t, cacheStore.values)

	completer.err = nil
	completer.reply = "   "
	answer, err = a.Ask(context.Background(), "How are sales?")
	require.NoError(t, err)
	assert.Equal(t, EmptyReply, answer.Answer)
	assert.Empty(t, cacheStore.values)
}

func TestAskIgnoresCacheErrors(t *testing.T) {
	completer := &fakeCompleter{reply: "Fine."}
	cacheStore := newMapCache()
	cacheStore.err = errors.New("redis down")
	a := New(memory.NewSeeded(), completer, cacheStore, quietOptions())

	answer, err := a.Ask(context.Background(), "Status?")
	require.NoError(t, err)
	assert.Equal(t, "Fine.", answer.Answer)
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	a := New(memory.NewSeeded(), &fakeCompleter{}, nil, quietOptions())
	_, err := a.Ask(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = a.MarketingCopy(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestUnconfiguredAdvisorAnswersWithFallback(t *testing.T) {
	a := New(memory.NewSeeded(), nil, nil, quietOptions())

	answer, err := a.Ask(context.Background(), "Anything?")
	require.NoError(t, err)
	assert.Equal(t, ErrorReply, answer.Answer)

	copyAnswer, err := a.MarketingCopy(context.Background(), "Mug Printing")
	require.NoError(t, err)
	assert.Equal(t, MarketingErrorReply, copyAnswer.Answer)
}

func TestMarketingCopyPrompt(t *testing.T) {
	completer := &fakeCompleter{reply: "Mugs with your face on them!"}
	a := New(memory.NewSeeded(), completer, nil, quietOptions())

	answer, err := a.MarketingCopy(context.Background(), "Mug Printing")
	require.NoError(t, err)
	assert.Equal(t, "Mugs with your face on them!", answer.Answer)
	assert.Equal(t, marketingInstruction, completer.system)
	assert.Equal(t, `Write a catchy social media post for our product: "Mug Printing". Keep it under 50 words. Use emojis.`, completer.prompts[0])

	completer.reply = ""
	answer, err = a.MarketingCopy(context.Background(), "Spiral Binding")
	require.NoError(t, err)
	assert.Equal(t, MarketingEmptyReply, answer.Answer)
}

func TestBuildSnapshot(t *testing.T) {
	products := []domain.Product{
		{Name: "A4 Paper", Stock: 10, MinStock: 100},
		{Name: "Mug", Stock: 40, MinStock: 10},
		{Name: "Toner", Stock: 1, MinStock: 1},
	}
	sales := make([]domain.Sale, 0, 12)
	for i := 1; i <= 12; i++ {
		sales = append(sales, domain.Sale{
			ID:         fmt.Sprintf("s%02d", i),
			CreatedAt:  time.Date(2026, 5, i, 9, 0, 0, 0, time.UTC),
			TotalCents: int64(i) * 100,
			Items:      make([]domain.SaleLine, i%3+1),
		})
	}

	snap := BuildSnapshot(products, sales)
	assert.Equal(t, 3, snap.ProductCount)
	assert.Equal(t, []string{"A4 Paper", "Toner"}, snap.LowStock)
	assert.Equal(t, int64(7800), snap.RevenueCents)
	assert.Equal(t, 12, snap.SalesCount)
	require.Len(t, snap.RecentSales, 10)
	assert.Equal(t, "2026-05-03: Rs. 3.00 (1 items)", snap.RecentSales[0])
	assert.Equal(t, "2026-05-12: Rs. 12.00 (1 items)", snap.RecentSales[9])

	text := snap.String()
	assert.Contains(t, text, "Low Stock Items: A4 Paper, Toner")
	assert.Contains(t, text, "Total Revenue: Rs. 78.00")
	assert.True(t, strings.HasSuffix(text, "2026-05-12: Rs. 12.00 (1 items)"))
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "Hello "}, nil, {Text: "there"}}},
	}}}
	assert.Equal(t, "Hello there", responseText(resp))
}

func TestNewGeminiCompleterRequiresKey(t *testing.T) {
	_, err := NewGeminiCompleter(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrUnavailable)
}
