package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"blofin_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const (
	ColorProfit = 5763719
	ColorLoss   = 15158332
	ColorInfo   = 3447003

	discordFooter = "blofin bot"
)

type webhookMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

func (e *embed) field(name, value string) *embed {
	e.Fields = append(e.Fields, embedField{Name: name, Value: value, Inline: true})
	return e
}

// Discord шлёт события в вебхук канала.
type Discord struct {
	webhook string
	http    *http.Client
}

func NewDiscord(webhook string, httpClient *http.Client) *Discord {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Discord{webhook: webhook, http: httpClient}
}

func (d *Discord) NotifyExecution(ctx context.Context, res *models.ExecutionResult) error {
	color := ColorInfo
	switch res.Status {
	case models.StatusNotExecuted, models.StatusUnprotected:
		color = ColorLoss
	case models.StatusExecuted:
		color = ColorProfit
	}
	e := &embed{
		Title:       fmt.Sprintf("%s %s", res.InstID, res.Side),
		Description: FormatExecution(res),
		Color:       color,
	}
	return d.send(ctx, e, res.FinishedAt)
}

func (d *Discord) NotifyFill(ctx context.Context, ev models.FillEvent) error {
	color := ColorLoss
	if ev.IsProfit {
		color = ColorProfit
	}
	e := &embed{Title: fillTitle(ev), Color: color}
	e.field("Trigger", fmt.Sprintf("%.6g", ev.TriggerPrice)).
		field("Size", fmt.Sprintf("%.6g", ev.Size)).
		field("PnL", fmt.Sprintf("%.4f USDT", ev.Pnl))
	return d.send(ctx, e, ev.At)
}

func (d *Discord) NotifyFailure(ctx context.Context, ev models.FailureEvent) error {
	e := &embed{
		Title:       fmt.Sprintf("%s: %s failed", ev.InstID, ev.Stage),
		Description: fmt.Sprintf("```%s```", ev.Message),
		Color:       ColorLoss,
	}
	e.field("Class", ev.Class)
	if ev.Unprotected {
		e.field("Position", "UNPROTECTED")
	}
	return d.send(ctx, e, ev.At)
}

func (d *Discord) send(ctx context.Context, e *embed, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	e.Footer = &embedFooter{Text: discordFooter}
	e.Timestamp = at.UTC().Format(time.RFC3339)

	body, err := sonic.Marshal(webhookMessage{Embeds: []embed{*e}})
	if err != nil {
		return errors.Wrap(err, "discord: marshal")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhook, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "discord: request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "discord: send")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("discord: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
