// Package email mirrors booking outcomes to the operations mailbox.
package email

import (
	"context"
	"fmt"

	"github.com/avoronin/rentdesk/internal/kafka"
)

type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	fmt.Printf("send email to ops: booking %s resolved %s, scooter %s, deposit %q, operator %s\n",
		event.BookingID, event.Status, event.Scooter, event.Deposit, event.Operator)
	return nil
}
