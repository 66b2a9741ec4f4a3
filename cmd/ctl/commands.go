package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"blofin_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

type exchange interface {
	Balance(ctx context.Context) (models.AccountSnapshot, error)
	Positions(ctx context.Context, instID string) ([]models.Position, error)
	PendingTpSl(ctx context.Context, instID string) ([]models.PendingTpSl, error)
	CancelTpSl(ctx context.Context, instID, algoID string) error
	CancelAllTpSl(ctx context.Context, instID string) (int, error)
	SetPositionSize(instID string, size float64)
	SetTpSlPair(ctx context.Context, req models.OrderRequest) (models.TpSlResult, error)
	SetMultipleTpSl(ctx context.Context, instID, closeSide string, totalSize, slPrice float64, tpPrices []float64, marginMode string) ([]models.TpSlResult, error)
	ClosePosition(ctx context.Context, instID, marginMode string) error
	MarginMode() string
}

type cli struct {
	client exchange
	v      *viper.Viper
	out    io.Writer
	json   bool
	// tps: уровни для protect; viper не умеет []float64, берём из pflag
	tps []float64

	// retryMax: сколько пытаться поставить стоп при transient-ошибках
	retryMax time.Duration
}

var errUsage = errors.New("bad arguments, see ctl --help")

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "status":
		return c.status(ctx)
	case "positions":
		list, err := c.client.Positions(ctx, instArg(args, 0))
		if err != nil {
			return err
		}
		return c.print(list, func(w io.Writer) { writePositions(w, list) })
	case "pending":
		list, err := c.client.PendingTpSl(ctx, instArg(args, 0))
		if err != nil {
			return err
		}
		return c.print(list, func(w io.Writer) { writePending(w, list) })
	case "cancel":
		if len(args) != 2 {
			return errUsage
		}
		if err := c.client.CancelTpSl(ctx, instArg(args, 0), args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "cancelled %s\n", args[1])
		return nil
	case "cancel-all":
		inst := instArg(args, 0)
		if inst == "" {
			return errUsage
		}
		n, err := c.client.CancelAllTpSl(ctx, inst)
		fmt.Fprintf(c.out, "cancelled %d\n", n)
		return err
	case "protect":
		inst := instArg(args, 0)
		if inst == "" {
			return errUsage
		}
		return c.protect(ctx, inst, c.v.GetFloat64("sl"), c.tps)
	case "close":
		inst := instArg(args, 0)
		if inst == "" {
			return errUsage
		}
		if err := c.client.ClosePosition(ctx, inst, c.client.MarginMode()); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "closed %s\n", inst)
		return nil
	}
	return errors.Wrapf(errUsage, "unknown command %q", cmd)
}

type statusReport struct {
	Account   models.AccountSnapshot `json:"account"`
	Positions []models.Position      `json:"positions"`
	Pending   []models.PendingTpSl   `json:"pending"`
}

// status: три запроса параллельно, первая ошибка отменяет остальные.
func (c *cli) status(ctx context.Context) error {
	var rep statusReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rep.Account, err = c.client.Balance(gctx)
		return err
	})
	g.Go(func() (err error) {
		rep.Positions, err = c.client.Positions(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		rep.Pending, err = c.client.PendingTpSl(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return c.print(rep, func(w io.Writer) {
		fmt.Fprintf(w, "equity %.2f %s, available %.2f\n\n", rep.Account.Equity, rep.Account.Currency, rep.Account.Available)
		writePositions(w, rep.Positions)
		fmt.Fprintln(w)
		writePending(w, rep.Pending)
	})
}

// protect снимает все TP/SL символа и ставит новые на текущий размер позиции.
// Окно без стопа между отменой и установкой неизбежно, поэтому стоп ставится первым и с ретраями.
func (c *cli) protect(ctx context.Context, inst string, sl float64, tps []float64) error {
	if sl <= 0 {
		return errors.Wrap(errUsage, "--sl is required")
	}
	list, err := c.client.Positions(ctx, inst)
	if err != nil {
		return err
	}
	var pos *models.Position
	for i := range list {
		if list[i].InstID == inst && list[i].Size != 0 {
			pos = &list[i]
			break
		}
	}
	if pos == nil {
		return errors.Errorf("no open position for %s", inst)
	}
	size := math.Abs(pos.Size)
	dir := pos.Direction()
	if pos.PositionSide == models.DirShort {
		dir = models.DirShort
	}
	closeSide := models.CloseSide(dir)
	margin := pos.MarginMode
	if margin == "" {
		margin = c.client.MarginMode()
	}

	if n, err := c.client.CancelAllTpSl(ctx, inst); err != nil {
		return errors.Wrapf(err, "cancel old protection (%d cancelled)", n)
	}
	c.client.SetPositionSize(inst, size)

	retryMax := c.retryMax
	if retryMax <= 0 {
		retryMax = 10 * time.Second
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 300 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	slRes, err := backoff.Retry(ctx, func() (models.TpSlResult, error) {
		r, err := c.client.SetTpSlPair(ctx, models.OrderRequest{
			InstID:     inst,
			Side:       closeSide,
			Kind:       models.KindTpSl,
			SlTrigger:  sl,
			Size:       size,
			MarginMode: margin,
		})
		if err != nil && !models.IsRetryable(err) {
			return r, backoff.Permanent(err)
		}
		return r, err
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(retryMax))
	if err != nil {
		return errors.Wrapf(err, "POSITION %s IS UNPROTECTED: stop loss", inst)
	}
	fmt.Fprintf(c.out, "SL %s @ %g size %g\n", slRes.AlgoID, sl, size)

	if len(tps) == 0 {
		return nil
	}
	placed, err := c.client.SetMultipleTpSl(ctx, inst, closeSide, size, 0, tps, margin)
	for _, tp := range placed {
		fmt.Fprintf(c.out, "TP%d %s @ %g size %g\n", tp.Level, tp.AlgoID, tp.TpTrigger, tp.Size)
	}
	return err
}

func (c *cli) print(v any, text func(w io.Writer)) error {
	if c.json {
		b, err := sonic.ConfigDefault.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.out, string(b))
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

func writePositions(w io.Writer, list []models.Position) {
	fmt.Fprintln(w, "INST\tSIDE\tSIZE\tAVG\tMARK\tUPNL\tLEV")
	for _, p := range list {
		side := "long"
		if p.PositionSide == models.DirShort || p.Size < 0 {
			side = "short"
		}
		fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%g\t%.4f\t%gx\n", p.InstID, side, math.Abs(p.Size), p.AvgPrice, p.MarkPrice, p.UnrealizedPnl, p.Leverage)
	}
}

func writePending(w io.Writer, list []models.PendingTpSl) {
	fmt.Fprintln(w, "INST\tALGO\tTP\tSL\tSIZE")
	for _, o := range list {
		fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%g\n", o.InstID, o.AlgoID, o.TpTrigger, o.SlTrigger, o.Size)
	}
}

func instArg(args []string, i int) string {
	if len(args) <= i {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(args[i]))
}
