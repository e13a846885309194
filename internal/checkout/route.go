package checkout

import (
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-prompt-market/internal/money"
)

const (
	SuccessPath = "/payment/success"
	FailurePath = "/payment/failed"
)

// SuccessURL carries the order id and the total with two decimals.
func SuccessURL(orderID string, total decimal.Decimal) string {
	v := url.Values{}
	v.Set("orderId", orderID)
	v.Set("total", money.Fixed2(total))
	return SuccessPath + "?" + v.Encode()
}

func FailureURL(orderID string) string {
	v := url.Values{}
	v.Set("orderId", orderID)
	return FailurePath + "?" + v.Encode()
}
