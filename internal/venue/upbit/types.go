package upbit

// orderResponse is the Upbit order object as returned by POST /v1/orders and
// GET /v1/order.
type orderResponse struct {
	UUID            string       `json:"uuid"`
	Side            string       `json:"side"` // "bid" or "ask"
	OrdType         string       `json:"ord_type"`
	State           string       `json:"state"` // "wait", "watch", "done", "cancel"
	Market          string       `json:"market"`
	Price           string       `json:"price"`
	Volume          string       `json:"volume"`
	RemainingVolume string       `json:"remaining_volume"`
	ExecutedVolume  string       `json:"executed_volume"`
	PaidFee         string       `json:"paid_fee"`
	Trades          []tradeEntry `json:"trades"`
}

// tradeEntry is one fill within an order response.
type tradeEntry struct {
	Price  string `json:"price"`
	Volume string `json:"volume"`
	Funds  string `json:"funds"`
	Side   string `json:"side"`
}

// accountEntry is one currency balance from GET /v1/accounts.
type accountEntry struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Locked   string `json:"locked"`
}

// apiError is Upbit's error envelope.
type apiError struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}
