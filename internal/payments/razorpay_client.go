package payments

import (
	razorpay "github.com/razorpay/razorpay-go"
)

func newRazorpayClient(keyID, keySecret string) razorpayClients {
	client := razorpay.NewClient(keyID, keySecret)
	return razorpayClients{
		orders:   client.Order,
		payments: client.Payment,
	}
}
