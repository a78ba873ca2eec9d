package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"foodshare/internal/model"
)

type MockMessageCreator struct {
	mock.Mock
}

func (m *MockMessageCreator) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openapi.ApiV2010Message), args.Error(1)
}

func TestMessage_ContainsCode(t *testing.T) {
	for _, p := range []model.OTPPurpose{model.OTPPurposeSignup, model.OTPPurposeLogin, model.OTPPurposePickup, model.OTPPurposeDeliveryConfirm} {
		assert.Contains(t, Message("042137", p), "042137")
	}
}

func TestTwilioNotifier_Notify(t *testing.T) {
	api := new(MockMessageCreator)
	sid := "SM123"
	api.On("CreateMessage", mock.MatchedBy(func(p *openapi.CreateMessageParams) bool {
		return *p.To == "+15551234" && *p.From == "+15550000" && *p.Body == Message("123456", model.OTPPurposePickup)
	})).Return(&openapi.ApiV2010Message{Sid: &sid}, nil)

	n := NewTwilioNotifierWithAPI(api, "+15550000", zap.NewNop().Sugar())
	require.NoError(t, n.Notify(context.Background(), "+15551234", "123456", model.OTPPurposePickup))
	api.AssertExpectations(t)
}

func TestTwilioNotifier_NotifyError(t *testing.T) {
	api := new(MockMessageCreator)
	api.On("CreateMessage", mock.Anything).Return(nil, errors.New("gateway down"))

	n := NewTwilioNotifierWithAPI(api, "+15550000", zap.NewNop().Sugar())
	err := n.Notify(context.Background(), "+15551234", "123456", model.OTPPurposeLogin)
	assert.ErrorContains(t, err, "gateway down")
}

func TestNewTwilioNotifier_MissingCredentials(t *testing.T) {
	_, err := NewTwilioNotifier("", "token", "+1555", zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestConsoleNotifier(t *testing.T) {
	n := NewConsoleNotifier(zap.NewNop().Sugar())
	assert.NoError(t, n.Notify(context.Background(), "+1555", "000001", model.OTPPurposeSignup))
}
