package service

import (
	"context"
	"net/url"
	"strings"

	"blofin_bot/internal/helper"
	"blofin_bot/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const instrumentsPath = "/api/v1/market/instruments"

type instrumentWire struct {
	InstID        string `json:"instId"`
	MinSize       string `json:"minSize"`
	LotSize       string `json:"lotSize"`
	TickSize      string `json:"tickSize"`
	ContractValue string `json:"contractValue"`
	ContractType  string `json:"contractType"`
	State         string `json:"state"`
}

func (w instrumentWire) toModel() models.InstrumentSpec {
	return models.InstrumentSpec{
		InstID:        w.InstID,
		MinSize:       helper.ParseFloat(w.MinSize),
		LotSize:       helper.ParseFloat(w.LotSize),
		TickSize:      helper.ParseFloat(w.TickSize),
		ContractValue: helper.ParseFloat(w.ContractValue),
		ContractType:  w.ContractType,
	}
}

// GetInstrument отдаёт спецификацию из кеша, при промахе загружает весь листинг SWAP.
// Если биржа недоступна или символа нет: разрешающие дефолты с предупреждением (дефолты не кешируются).
func (c *Client) GetInstrument(ctx context.Context, instID string) (models.InstrumentSpec, error) {
	instID = strings.ToUpper(strings.TrimSpace(instID))
	if instID == "" {
		return models.InstrumentSpec{}, errors.Wrap(models.ErrInvalidParameters, "GetInstrument: empty instId")
	}

	c.instMu.RLock()
	spec, ok := c.instruments[instID]
	c.instMu.RUnlock()
	if ok {
		return spec, nil
	}

	if err := c.LoadInstruments(ctx); err != nil {
		c.log.Warn("instrument spec fetch failed, using defaults",
			zap.String("inst_id", instID), zap.Error(err))
		return models.DefaultInstrumentSpec(instID), nil
	}

	c.instMu.RLock()
	spec, ok = c.instruments[instID]
	c.instMu.RUnlock()
	if !ok {
		c.log.Warn("instrument not listed, using defaults", zap.String("inst_id", instID))
		return models.DefaultInstrumentSpec(instID), nil
	}
	return spec, nil
}

// LoadInstruments загружает листинг SWAP и кладёт в кеш все валидные контракты.
func (c *Client) LoadInstruments(ctx context.Context) error {
	q := url.Values{}
	q.Set("instType", "SWAP")

	data, err := c.get(ctx, instrumentsPath, q)
	if err != nil {
		return err
	}
	list, err := decodeList[instrumentWire](instrumentsPath, data)
	if err != nil {
		return err
	}

	loaded := 0
	c.instMu.Lock()
	for _, w := range list {
		spec := w.toModel()
		if spec.InstID == "" || spec.LotSize <= 0 || spec.ContractValue <= 0 {
			continue
		}
		if _, exists := c.instruments[spec.InstID]; exists {
			continue
		}
		c.instruments[spec.InstID] = spec
		loaded++
	}
	c.instMu.Unlock()

	c.log.Info("instruments loaded", zap.Int("new", loaded), zap.Int("listed", len(list)))
	return nil
}

// RoundSize округляет размер по спецификации инструмента (см. models.InstrumentSpec.RoundSize).
func (c *Client) RoundSize(ctx context.Context, instID string, raw float64, mode models.RoundMode) (float64, error) {
	spec, err := c.GetInstrument(ctx, instID)
	if err != nil {
		return 0, err
	}
	return spec.RoundSize(raw, mode)
}
