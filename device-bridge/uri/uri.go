package uri

const (
	DeviceIDKey         = "deviceId"
	SubscriptionTypeKey = "subscriptionType"
)

// Bridge API URIs.
const (
	Subscriptions    string = "/subscriptions"
	Subscription     string = Subscriptions + "/{" + DeviceIDKey + "}/{" + SubscriptionTypeKey + "}"
	ConnectionStatus string = "/connectionStatus/{" + DeviceIDKey + "}"
	Twin             string = "/twin/{" + DeviceIDKey + "}"
	TwinReported     string = Twin + "/properties/reported"
	Messages         string = "/messages/{" + DeviceIDKey + "}"
	Provision        string = "/provision"
	Health           string = "/health"
	Metrics          string = "/metrics"
)
