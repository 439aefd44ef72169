package dashboard

// ToastKind picks the colour of a notification.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

// Notification texts.
const (
	MsgTradeAdded        = "Trade added successfully!"
	MsgTradeAddFailed    = "Failed to add trade. Please try again."
	MsgTradeDeleted      = "Trade deleted successfully!"
	MsgTradeDeleteFailed = "Failed to delete trade. Please try again."
	MsgTradesLoadFailed  = "Failed to load trades. Please try again."
	MsgExchangeFailed    = "Failed to load exchange data."
	MsgAPIKeysRequired   = "Please enter both API key and secret key"
	MsgAPIConfigSaved    = "API configuration saved successfully!"
	MsgAPIConfigFailed   = "Failed to save API configuration"
)

// Toast is a transient notification. It disappears from the view once its lifetime passes.
type Toast struct {
	ID      uint64    `json:"id"`
	Kind    ToastKind `json:"kind"`
	Message string    `json:"message"`
}
