package service

import (
	"math"
	"strconv"

	"blofin_bot/internal/helper"
	"blofin_bot/internal/models"

	"github.com/pkg/errors"
)

// На одну часть позиции биржа держит только одну активную пару TP/SL.
// Клиент ведёт учёт покрытого объёма по символу отдельно для TP и SL и
// не даёт выставить пару, которая вылезет за размер позиции.
// Учитываются целые контракты, как они уходят на биржу, поэтому и лимит
// сравнивается округлённым вверх. Доли позиции (отрицательные размеры) в учёт не попадают.
type coverage struct {
	limit float64
	pairs map[string]coveredPair
	seq   int
}

type coveredPair struct {
	size float64
	tp   bool
	sl   bool
}

const coverageEps = 1e-9

func (c *Client) coverageFor(instID string) *coverage {
	cv, ok := c.coverage[instID]
	if !ok {
		cv = &coverage{pairs: make(map[string]coveredPair)}
		c.coverage[instID] = cv
	}
	return cv
}

// SetPositionSize задаёт размер позиции, против которого проверяется покрытие. 0: без проверки.
func (c *Client) SetPositionSize(instID string, size float64) {
	c.covMu.Lock()
	defer c.covMu.Unlock()
	c.coverageFor(instID).limit = math.Abs(size)
}

// Coverage возвращает покрытый объём TP и SL и текущий лимит.
func (c *Client) Coverage(instID string) (tp, sl, limit float64) {
	c.covMu.Lock()
	defer c.covMu.Unlock()
	cv, ok := c.coverage[instID]
	if !ok {
		return 0, 0, 0
	}
	for _, p := range cv.pairs {
		if p.tp {
			tp += p.size
		}
		if p.sl {
			sl += p.size
		}
	}
	return tp, sl, cv.limit
}

// reserve резервирует объём до ответа биржи, возвращает токен для commit/rollback.
func (c *Client) reserve(instID string, size float64, tp, sl bool) (string, error) {
	if size <= 0 {
		return "", nil
	}

	c.covMu.Lock()
	defer c.covMu.Unlock()

	cv := c.coverageFor(instID)
	if cv.limit > 0 {
		limit := helper.CeilContracts(cv.limit)
		var tpCov, slCov float64
		for _, p := range cv.pairs {
			if p.tp {
				tpCov += p.size
			}
			if p.sl {
				slCov += p.size
			}
		}
		if tp && tpCov+size > limit+coverageEps {
			return "", errors.Wrapf(models.ErrDuplicateTpSl,
				"%s: TP covered %.8g + %.8g > position %.8g", instID, tpCov, size, cv.limit)
		}
		if sl && slCov+size > limit+coverageEps {
			return "", errors.Wrapf(models.ErrDuplicateTpSl,
				"%s: SL covered %.8g + %.8g > position %.8g", instID, slCov, size, cv.limit)
		}
	}

	cv.seq++
	token := "pending-" + strconv.Itoa(cv.seq)
	cv.pairs[token] = coveredPair{size: size, tp: tp, sl: sl}
	return token, nil
}

func (c *Client) commit(instID, token, algoID string) {
	if token == "" {
		return
	}
	c.covMu.Lock()
	defer c.covMu.Unlock()
	cv := c.coverageFor(instID)
	if p, ok := cv.pairs[token]; ok {
		delete(cv.pairs, token)
		cv.pairs[algoID] = p
	}
}

func (c *Client) rollback(instID, token string) {
	if token == "" {
		return
	}
	c.covMu.Lock()
	defer c.covMu.Unlock()
	delete(c.coverageFor(instID).pairs, token)
}

// ReleaseTpSl снимает пару с учёта: отменена или сработала.
func (c *Client) ReleaseTpSl(instID, algoID string) {
	c.covMu.Lock()
	defer c.covMu.Unlock()
	if cv, ok := c.coverage[instID]; ok {
		delete(cv.pairs, algoID)
	}
}

// ResetCoverage забывает всё покрытие и лимит по символу (позиция закрыта или пересоздаётся защита).
func (c *Client) ResetCoverage(instID string) {
	c.covMu.Lock()
	defer c.covMu.Unlock()
	delete(c.coverage, instID)
}
