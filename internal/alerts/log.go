package alerts

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender sends alerts to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, payload *Payload) error {
	s.log.WithFields(logrus.Fields{
		"wallet":         payload.WalletShort,
		"username":       payload.Username,
		"total_pnl":      payload.TotalPnL,
		"roi":            payload.ROI,
		"position_value": payload.PositionValue,
		"market":         payload.MarketQuestion,
		"category":       payload.Category,
		"side":           payload.Side,
	}).Info("Sharp bettor alert")
	return nil
}

// SendDigest logs the digest body line by line
func (s *LogSender) SendDigest(ctx context.Context, title, body string) error {
	s.log.WithField("title", title).Info(body)
	return nil
}
