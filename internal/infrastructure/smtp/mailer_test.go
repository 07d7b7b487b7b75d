package smtp

import (
	"errors"
	"testing"
	"time"

	"github.com/hive-api/internal/config"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	err  error
	sent []*gomail.Message
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func testSettings(maxFailures uint32) gobreaker.Settings {
	return breakerSettings(&config.Config{
		SMTPBreakerMaxFailures: maxFailures,
		SMTPBreakerTimeout:     time.Minute,
	})
}

func TestSendEmail_SetsHeaders(t *testing.T) {
	d := &fakeDialer{}
	m := newMailer(d, "noreply@example.com", testSettings(3))

	require.NoError(t, m.SendEmail("alice@gmail.com", "Your code", "123456"))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"noreply@example.com"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"alice@gmail.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Your code"}, d.sent[0].GetHeader("Subject"))
}

func TestSendEmail_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	m := newMailer(d, "noreply@example.com", testSettings(2))

	assert.Error(t, m.SendEmail("a@gmail.com", "s", "b"))
	assert.Error(t, m.SendEmail("a@gmail.com", "s", "b"))

	d.err = nil
	err := m.SendEmail("a@gmail.com", "s", "b")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Empty(t, d.sent)
}
