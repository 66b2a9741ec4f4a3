package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"blofin_bot/internal/models"
	"blofin_bot/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

// do: единственная точка подписи и отправки запросов. Повторов здесь нет:
// решать, повторять ли transient-ошибку, должен вызывающий.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	c.calls.Add(1)
	if c.metrics != nil {
		c.metrics.ExchangeCalls.WithLabelValues(method, path).Inc()
	}

	span, ctx := tracing.StartClientSpan(ctx, method, path)
	started := time.Now()
	status := 0

	data, err := func() (json.RawMessage, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, errors.Wrapf(err, "%s %s rate limiter", method, path)
			}
		}

		requestPath := path
		var payload []byte
		switch method {
		case http.MethodGet:
			if len(query) > 0 {
				requestPath = path + "?" + query.Encode()
			}
		case http.MethodPost:
			requestPath = strings.TrimRight(path, "/")
			if body != nil {
				b, err := sonic.Marshal(body)
				if err != nil {
					return nil, errors.Wrapf(models.ErrValidation, "%s marshal: %v", path, err)
				}
				payload = b
			}
		default:
			return nil, errors.Wrapf(models.ErrValidation, "unsupported method %s", method)
		}

		ts := strconv.FormatInt(c.now().UnixMilli(), 10)
		nonce := c.nonce()
		sign := c.sign(requestPath, method, ts, nonce, string(payload))

		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, rdr)
		if err != nil {
			return nil, errors.Wrapf(models.ErrValidation, "%s new request: %v", path, err)
		}

		req.Header.Set("ACCESS-KEY", c.apiKey)
		req.Header.Set("ACCESS-SIGN", sign)
		req.Header.Set("ACCESS-TIMESTAMP", ts)
		req.Header.Set("ACCESS-NONCE", nonce)
		req.Header.Set("ACCESS-PASSPHRASE", c.passph)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrapf(ctx.Err(), "%s %s", method, path)
			}
			return nil, models.NewExchangeError(models.ErrTransient, path, "", err.Error(), 0)
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, models.NewExchangeError(models.ErrTransient, path, "", "read body: "+err.Error(), resp.StatusCode)
		}

		if resp.StatusCode/100 != 2 {
			return nil, classifyHTTP(path, resp.StatusCode, raw)
		}

		var env envelope
		if err := sonic.Unmarshal(raw, &env); err != nil {
			return nil, models.NewExchangeError(models.ErrExchangeRejection, path, "",
				"decode envelope: "+err.Error()+"; body="+truncate(raw), resp.StatusCode)
		}
		if env.Code != "0" {
			return nil, classifyCode(path, env.Code, env.Msg, resp.StatusCode)
		}
		return env.Data, nil
	}()

	if c.metrics != nil {
		c.metrics.ExchangeDuration.WithLabelValues(path).Observe(time.Since(started).Seconds())
	}
	tracing.FinishWithError(span, status, err)

	if err != nil {
		c.fails.Add(1)
		class := models.ErrorClass(err)
		if c.metrics != nil {
			c.metrics.ExchangeErrors.WithLabelValues(path, class).Inc()
		}
		c.log.Warn("blofin request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.String("class", class),
			zap.Error(err),
		)
		return nil, err
	}

	c.log.Debug("blofin request ok", zap.String("method", method), zap.String("path", path))
	return data, nil
}

// decodeFirst разбирает data, которое биржа отдаёт то объектом, то массивом из одного элемента.
func decodeFirst(path string, data json.RawMessage, v any) error {
	b := bytes.TrimSpace(data)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return models.NewExchangeError(models.ErrExchangeRejection, path, "", "empty data", 0)
	}
	if b[0] == '[' {
		var items []json.RawMessage
		if err := sonic.Unmarshal(b, &items); err != nil {
			return errors.Wrapf(models.ErrExchangeRejection, "%s decode list: %v", path, err)
		}
		if len(items) == 0 {
			return models.NewExchangeError(models.ErrExchangeRejection, path, "", "empty data", 0)
		}
		b = items[0]
	}
	if err := sonic.Unmarshal(b, v); err != nil {
		return errors.Wrapf(models.ErrExchangeRejection, "%s decode: %v", path, err)
	}
	return nil
}

// decodeList: data как массив; одиночный объект превращается в список из одного элемента.
func decodeList[T any](path string, data json.RawMessage) ([]T, error) {
	b := bytes.TrimSpace(data)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	if b[0] == '{' {
		var one T
		if err := sonic.Unmarshal(b, &one); err != nil {
			return nil, errors.Wrapf(models.ErrExchangeRejection, "%s decode: %v", path, err)
		}
		return []T{one}, nil
	}
	var out []T
	if err := sonic.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrapf(models.ErrExchangeRejection, "%s decode list: %v", path, err)
	}
	return out, nil
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
