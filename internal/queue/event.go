// Package queue carries password-reset mail over RabbitMQ so that SMTP
// latency stays off the request path.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultQueue is the durable queue reset-code events are published to.
const DefaultQueue = "auth.password_reset"

// ResetCodeRequested is published once per issued reset code.  It carries
// the raw code because the consumer has to put it in the e-mail; the queue
// must therefore not be readable by anything but the mail worker.
type ResetCodeRequested struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Code        string    `json:"code"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewResetCodeRequested(email, code string, now time.Time) ResetCodeRequested {
	return ResetCodeRequested{ID: uuid.NewString(), Email: email, Code: code, RequestedAt: now.UTC()}
}

func decodeEvent(body []byte) (ResetCodeRequested, error) {
	var ev ResetCodeRequested
	if err := json.Unmarshal(body, &ev); err != nil {
		return ResetCodeRequested{}, fmt.Errorf("unmarshal: %w", err)
	}
	if strings.TrimSpace(ev.Email) == "" || ev.Code == "" {
		return ResetCodeRequested{}, errors.New("event missing email or code")
	}
	return ev, nil
}
