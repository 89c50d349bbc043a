package store

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type SubscriptionType string

const (
	SubscriptionType_Command               SubscriptionType = "Command"
	SubscriptionType_C2DMessage            SubscriptionType = "C2DMessage"
	SubscriptionType_ConnectionStatus      SubscriptionType = "ConnectionStatus"
	SubscriptionType_DesiredPropertyUpdate SubscriptionType = "DesiredPropertyUpdate"
)

// SubscriptionTypes lists all supported subscription types.
var SubscriptionTypes = []SubscriptionType{
	SubscriptionType_Command,
	SubscriptionType_C2DMessage,
	SubscriptionType_ConnectionStatus,
	SubscriptionType_DesiredPropertyUpdate,
}

// ParseSubscriptionType converts case-insensitive name to SubscriptionType.
func ParseSubscriptionType(v string) (SubscriptionType, error) {
	for _, t := range SubscriptionTypes {
		if strings.EqualFold(string(t), v) {
			return t, nil
		}
	}
	return "", status.Errorf(codes.InvalidArgument, "invalid subscription type('%v')", v)
}

// IsConnectionTriggering reports whether the subscription keeps the device connected.
func (t SubscriptionType) IsConnectionTriggering() bool {
	return t == SubscriptionType_Command || t == SubscriptionType_ConnectionStatus
}

// ConnectionTriggeringTypes returns the types for which IsConnectionTriggering is true.
func ConnectionTriggeringTypes() []SubscriptionType {
	out := make([]SubscriptionType, 0, 2)
	for _, t := range SubscriptionTypes {
		if t.IsConnectionTriggering() {
			out = append(out, t)
		}
	}
	return out
}

type Status string

const (
	Status_Running Status = "Running"
	Status_Stopped Status = "Stopped"
)

type Subscription struct {
	DeviceID    string
	Type        SubscriptionType
	CallbackURL string
	CreatedAt   time.Time
}

// Status is Running for every stored subscription.
func (s Subscription) Status() Status {
	return Status_Running
}

func (s Subscription) Key() string {
	return MakeKey(s.DeviceID, s.Type)
}

// MakeKey joins device id and subscription type into the unique key of a subscription.
func MakeKey(deviceID string, typ SubscriptionType) string {
	return deviceID + "/" + string(typ)
}

// ValidateCallbackURL accepts only absolute http or https urls.
func ValidateCallbackURL(callbackURL string) error {
	if callbackURL == "" {
		return status.Errorf(codes.InvalidArgument, "callbackUrl is required")
	}
	u, err := url.Parse(callbackURL)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid callbackUrl('%v'): %v", callbackURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return status.Errorf(codes.InvalidArgument, "invalid callbackUrl('%v'): not absolute", callbackURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return status.Errorf(codes.InvalidArgument, "invalid callbackUrl('%v'): unsupported scheme %v", callbackURL, u.Scheme)
	}
	return nil
}

func validateKey(deviceID string, typ SubscriptionType) error {
	if deviceID == "" {
		return status.Errorf(codes.InvalidArgument, "deviceId is required")
	}
	if _, err := ParseSubscriptionType(string(typ)); err != nil {
		return err
	}
	return nil
}

// ValidateSubscription checks the fields of subscription before it is saved.
func ValidateSubscription(deviceID string, typ SubscriptionType, callbackURL string) error {
	if err := validateKey(deviceID, typ); err != nil {
		return err
	}
	return ValidateCallbackURL(callbackURL)
}

// ValidateKey checks the key of subscription before it is loaded or removed.
func ValidateKey(deviceID string, typ SubscriptionType) error {
	return validateKey(deviceID, typ)
}

func (s Subscription) String() string {
	return fmt.Sprintf("%v -> %v", s.Key(), s.CallbackURL)
}
