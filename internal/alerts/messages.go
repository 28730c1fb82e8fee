package alerts

type Message struct {
	Code string
	Text string
}

var (
	SomethingWentWrong = Message{Code: "somethingWentWrong", Text: "Sorry, something went wrong. Please try again."}
	PaymentInitFailed  = Message{Code: "paymentInitializationFailed", Text: "We couldn't start the payment. Please try again."}
	CheckoutComplete   = Message{Code: "checkoutCompleteFailed", Text: "We couldn't place your order. Please try again."}
)
