// internal/pesapal/endpoints.go
package pesapal

import (
	"net/url"
	"strings"
)

// Environment selects the gateway deployment
type Environment string

const (
	Sandbox Environment = "sandbox"
	Live    Environment = "live"
)

const (
	sandboxBaseURL = "https://cybqa.pesapal.com/pesapalv3/api"
	liveBaseURL    = "https://pay.pesapal.com/v3/api"
)

func (e Environment) Valid() bool {
	return e == Sandbox || e == Live
}

// BaseURL of the v3 API for the environment. Anything but Live is treated as Sandbox.
func (e Environment) BaseURL() string {
	if e == Live {
		return liveBaseURL
	}
	return sandboxBaseURL
}

func (e Environment) Endpoints() Endpoints {
	return EndpointsFor(e.BaseURL())
}

// Endpoints are the absolute URLs of the gateway operations used by the proxy
type Endpoints struct {
	Auth              string
	RegisterIPN       string
	SubmitOrder       string
	TransactionStatus string
	Redirect          string
}

// EndpointsFor derives the operation URLs from an API base such as
// https://cybqa.pesapal.com/pesapalv3/api
func EndpointsFor(base string) Endpoints {
	base = strings.TrimRight(base, "/")
	return Endpoints{
		Auth:              base + "/Auth/RequestToken",
		RegisterIPN:       base + "/URLSetup/RegisterIPN",
		SubmitOrder:       base + "/Transactions/SubmitOrderRequest",
		TransactionStatus: base + "/Transactions/GetTransactionStatus",
		Redirect:          base + "/Transactions/Redirect",
	}
}

// PaymentPageURL builds the hosted payment page address for a submitted order.
// The merchant reference is optional.
func (e Endpoints) PaymentPageURL(trackingID, merchantReference string) string {
	q := url.Values{}
	q.Set("OrderTrackingId", trackingID)
	if merchantReference != "" {
		q.Set("OrderMerchantReference", merchantReference)
	}
	return e.Redirect + "?" + q.Encode()
}
