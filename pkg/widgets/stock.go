package widgets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

const (
	TypeStock = "stock"

	DefaultYahooURL = "https://query1.finance.yahoo.com"
)

type StockParams struct {
	Ticker string `json:"ticker,omitempty" jsonschema:"description=Exchange ticker symbol, e.g. AAPL or MSFT"`
}

type StockQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Exchange      string  `json:"exchange"`
	Currency      string  `json:"currency"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	DayHigh       float64 `json:"dayHigh,omitempty"`
	DayLow        float64 `json:"dayLow,omitempty"`
}

type StockWidget struct {
	Client  *http.Client
	BaseURL string
}

var _ Widget = (*StockWidget)(nil)

func NewStockWidget(client *http.Client, baseURL string) *StockWidget {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	return &StockWidget{Client: client, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s *StockWidget) Type() string {
	return TypeStock
}

func (s *StockWidget) Description() string {
	return "Latest quote of a listed company or index. Params: the ticker symbol."
}

func (s *StockWidget) Schema() *jsonschema.Schema {
	return llm.ReflectSchema(StockParams{})
}

func (s *StockWidget) ShouldExecute(c turns.Classification) bool {
	return selected(TypeStock, c)
}

func (s *StockWidget) Execute(ctx context.Context, in Input) (*Output, error) {
	params, ok, err := resolveParams(ctx, in, TypeStock,
		"Find the ticker symbol of the company or index the user asks about.",
		func(p StockParams) bool { return strings.TrimSpace(p.Ticker) != "" })
	if err != nil || !ok {
		return nil, err
	}
	q, err := s.Quote(ctx, params.Ticker)
	if err != nil {
		return nil, err
	}
	return &Output{
		Type: TypeStock,
		Data: q,
		LLMContext: fmt.Sprintf("Stock quote for %s (%s), already shown to the user: %.2f %s, change %+.2f (%+.2f%%) from previous close %.2f.",
			q.Name, q.Symbol, q.Price, q.Currency, q.Change, q.ChangePercent, q.PreviousClose),
	}, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				ExchangeName       string  `json:"exchangeName"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
				DayHigh            float64 `json:"regularMarketDayHigh"`
				DayLow             float64 `json:"regularMarketDayLow"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (s *StockWidget) Quote(ctx context.Context, ticker string) (*StockQuote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	var resp chartResponse
	err := getJSON(ctx, s.Client, s.BaseURL+"/v8/finance/chart/"+url.PathEscape(ticker), url.Values{
		"range":    {"1d"},
		"interval": {"1d"},
	}, &resp)
	if err != nil {
		return nil, errors.Wrapf(err, "quote %s", ticker)
	}
	if resp.Chart.Error != nil {
		return nil, errors.Errorf("quote %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, errors.Errorf("no quote for %s", ticker)
	}
	m := resp.Chart.Result[0].Meta
	prev := m.PreviousClose
	if prev == 0 {
		prev = m.ChartPreviousClose
	}
	name := m.LongName
	if name == "" {
		name = m.ShortName
	}
	if name == "" {
		name = m.Symbol
	}
	q := &StockQuote{
		Symbol:        m.Symbol,
		Name:          name,
		Exchange:      m.ExchangeName,
		Currency:      m.Currency,
		Price:         m.RegularMarketPrice,
		PreviousClose: prev,
		DayHigh:       m.DayHigh,
		DayLow:        m.DayLow,
	}
	if prev != 0 {
		q.Change = q.Price - prev
		q.ChangePercent = q.Change / prev * 100
	}
	return q, nil
}
