package notify

import (
	"context"
	"fmt"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"foodshare/internal/model"
)

// MessageCreator is the part of the Twilio REST API used for SMS.
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioNotifier sends codes as SMS through Twilio.
type TwilioNotifier struct {
	api  MessageCreator
	from string
	log  *zap.SugaredLogger
}

// NewTwilioNotifier builds a notifier from account credentials.
func NewTwilioNotifier(accountSID, authToken, from string, log *zap.SugaredLogger) (*TwilioNotifier, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return NewTwilioNotifierWithAPI(client.Api, from, log), nil
}

// NewTwilioNotifierWithAPI wires an existing API client.
func NewTwilioNotifierWithAPI(api MessageCreator, from string, log *zap.SugaredLogger) *TwilioNotifier {
	return &TwilioNotifier{api: api, from: from, log: log.With("notifier", "twilio")}
}

func (n *TwilioNotifier) Notify(ctx context.Context, phone, code string, purpose model.OTPPurpose) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(n.from)
	params.SetBody(Message(code, purpose))

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	if resp.Sid != nil {
		n.log.Infow("sms sent", "phone", phone, "purpose", purpose, "sid", *resp.Sid)
	}
	return nil
}
