package advisor

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"printpos/internal/cache"
	"printpos/internal/domain"
)

const (
	ErrorReply          = "Sorry, I encountered an error while communicating with the AI service."
	EmptyReply          = "I couldn't generate a response at this time."
	MarketingErrorReply = "Error generating copy."
	MarketingEmptyReply = "No copy generated."
)

const (
	consultantInstruction = `You are an expert AI Business Consultant for "%s", a printing and merchandise shop.
Your goal is to analyze data and provide actionable, concise, and professional advice.
The currency used is Sri Lankan Rupees (Rs.).
Current Business Context: Analyzing POS Data`
	marketingInstruction = "You are a creative marketing assistant for a print shop."
	marketingPrompt      = `Write a catchy social media post for our product: "%s". Keep it under 50 words. Use emojis.`
)

var ErrEmptyPrompt = errors.New("advisor prompt is empty")

// Completer turns a system instruction and a user prompt into text.
type Completer interface {
	Complete(ctx context.Context, system string, prompt string) (string, error)
}

// DataSource is the read side the advisor summarizes. It never writes.
type DataSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
}

type Advisor struct {
	source    DataSource
	completer Completer
	cache     cache.AdvisoryCache
	cacheTTL  time.Duration
	timeout   time.Duration
	shopName  string
	logger    *slog.Logger
}

type Options struct {
	CacheTTL time.Duration
	Timeout  time.Duration
	ShopName string
	Logger   *slog.Logger
}

func New(source DataSource, completer Completer, cacheStore cache.AdvisoryCache, opts Options) *Advisor {
	if cacheStore == nil {
		cacheStore = cache.NoopAdvisoryCache{}
	}
	if completer == nil {
		completer = UnavailableCompleter{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if strings.TrimSpace(opts.ShopName) == "" {
		opts.ShopName = "AR Printers"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Advisor{
		source:    source,
		completer: completer,
		cache:     cacheStore,
		cacheTTL:  opts.CacheTTL,
		timeout:   opts.Timeout,
		shopName:  opts.ShopName,
		logger:    opts.Logger.With("component", "advisor"),
	}
}

// Ask answers a free-form business question against a summary of the ledger.
// Completer failures never surface as errors; the caller gets a fixed reply.
func (a *Advisor) Ask(ctx context.Context, question string) (domain.AdvisorAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.AdvisorAnswer{}, ErrEmptyPrompt
	}

	products, err := a.source.ListProducts(ctx)
	if err != nil {
		return domain.AdvisorAnswer{}, err
	}
	sales, err := a.source.ListSales(ctx)
	if err != nil {
		return domain.AdvisorAnswer{}, err
	}

	snapshot := BuildSnapshot(products, sales)
	prompt := fmt.Sprintf("Data Context: %s\n\nUser Question: %s", snapshot.String(), question)
	system := fmt.Sprintf(consultantInstruction, a.shopName)

	return a.complete(ctx, "ask", system, prompt, ErrorReply, EmptyReply), nil
}

// MarketingCopy drafts a short social post for one product.
func (a *Advisor) MarketingCopy(ctx context.Context, productName string) (domain.AdvisorAnswer, error) {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return domain.AdvisorAnswer{}, ErrEmptyPrompt
	}

	prompt := fmt.Sprintf(marketingPrompt, productName)
	return a.complete(ctx, "marketing", marketingInstruction, prompt, MarketingErrorReply, MarketingEmptyReply), nil
}

func (a *Advisor) complete(ctx context.Context, kind string, system string, prompt string, errorReply string, emptyReply string) domain.AdvisorAnswer {
	key := cacheKey(kind, system, prompt)
	if cached, ok, err := a.cache.Get(ctx, key); err == nil && ok {
		return domain.AdvisorAnswer{Answer: cached, Cached: true}
	} else if err != nil {
		a.logger.Warn("advisory cache read failed", "kind", kind, "err", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.completer.Complete(callCtx, system, prompt)
	if err != nil {
		a.logger.Warn("completion failed", "kind", kind, "err", err)
		return domain.AdvisorAnswer{Answer: errorReply}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.AdvisorAnswer{Answer: emptyReply}
	}

	if err := a.cache.Set(ctx, key, text, a.cacheTTL); err != nil {
		a.logger.Warn("advisory cache write failed", "kind", kind, "err", err)
	}
	return domain.AdvisorAnswer{Answer: text}
}

func cacheKey(kind string, system string, prompt string) string {
	hash := sha1.Sum([]byte(kind + "|" + system + "|" + prompt))
	return "printpos:advisor:" + kind + ":" + hex.EncodeToString(hash[:])
}
