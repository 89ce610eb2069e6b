// Package rates fetches daily exchange rates and stores them in the ledger.
package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable is returned when no endpoint could serve a base currency.
var ErrUnavailable = errors.New("rates unavailable")

// Provider returns the rate table for one base currency. Keys are lower-case
// currency codes.
type Provider interface {
	RatesFor(ctx context.Context, base string) (map[string]float64, error)
}

// HTTPProvider queries a currency-api style endpoint, then a fallback.
type HTTPProvider struct {
	client   *http.Client
	primary  string
	fallback string
	log      *zap.Logger
}

// NewHTTPProvider builds a provider for base URLs such as
// https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies.
func NewHTTPProvider(primary, fallback string, timeout time.Duration, log *zap.Logger) *HTTPProvider {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		client:   &http.Client{Timeout: timeout},
		primary:  strings.TrimRight(primary, "/"),
		fallback: strings.TrimRight(fallback, "/"),
		log:      log,
	}
}

func (p *HTTPProvider) RatesFor(ctx context.Context, base string) (map[string]float64, error) {
	lc := strings.ToLower(base)
	var errs []error
	for _, endpoint := range []string{p.primary, p.fallback} {
		if endpoint == "" {
			continue
		}
		table, err := p.fetch(ctx, endpoint+"/"+lc+".json", lc)
		if err == nil {
			return table, nil
		}
		p.log.Debug("rate endpoint failed", zap.String("base", base), zap.String("endpoint", endpoint), zap.Error(err))
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w for %s: %v", ErrUnavailable, base, errors.Join(errs...))
}

// CurrencyNames fetches the code->name table published next to the rate
// tables (currencies.json), trying the fallback endpoint second.
func (p *HTTPProvider) CurrencyNames(ctx context.Context) (map[string]string, error) {
	var errs []error
	for _, endpoint := range []string{p.primary, p.fallback} {
		if endpoint == "" {
			continue
		}
		var names map[string]string
		err := jwget(ctx, p.client, endpoint+".json", &names)
		if err == nil && len(names) > 0 {
			return names, nil
		}
		if err == nil {
			err = fmt.Errorf("%s.json: empty currency list", endpoint)
		}
		p.log.Debug("currency list endpoint failed", zap.String("endpoint", endpoint), zap.Error(err))
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: currency list: %v", ErrUnavailable, errors.Join(errs...))
}

func (p *HTTPProvider) fetch(ctx context.Context, addr, lc string) (map[string]float64, error) {
	var body map[string]json.RawMessage
	if err := jwget(ctx, p.client, addr, &body); err != nil {
		return nil, err
	}
	raw, ok := body[lc]
	if !ok {
		return nil, fmt.Errorf("response has no %q table", lc)
	}
	var table map[string]float64
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// jwget performs an HTTP GET request and unmarshals the JSON response into data.
func jwget(ctx context.Context, client *http.Client, addr string, data interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), data)
}
