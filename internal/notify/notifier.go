// Package notify delivers one-time codes to phones.
package notify

import (
	"context"
	"fmt"

	"foodshare/internal/model"
)

// Notifier dispatches a human readable code to a phone number.
type Notifier interface {
	Notify(ctx context.Context, phone, code string, purpose model.OTPPurpose) error
}

// Message renders the text sent for a purpose.
func Message(code string, purpose model.OTPPurpose) string {
	switch purpose {
	case model.OTPPurposeSignup:
		return fmt.Sprintf("Your FoodShare signup code is %s. Do not share it.", code)
	case model.OTPPurposeLogin:
		return fmt.Sprintf("Your FoodShare login code is %s. Do not share it.", code)
	case model.OTPPurposePickup:
		return fmt.Sprintf("A courier is on the way for your donation. Give them pickup code %s.", code)
	case model.OTPPurposeDeliveryConfirm:
		return fmt.Sprintf("Your food is on its way. Give the courier delivery code %s.", code)
	default:
		return fmt.Sprintf("Your FoodShare code is %s.", code)
	}
}
