package domain

// NewUserInput is the caller-supplied payload for user creation.
type NewUserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// NewTransactionInput is the caller-supplied payload for transaction creation.
// The user ids are pointers because node ids are store-assigned starting at 0:
// a fresh database hands out id 0 first, so a zero value cannot stand in for
// "field absent".
type NewTransactionInput struct {
	FromUserID  *int64  `json:"fromUserId"`
	ToUserID    *int64  `json:"toUserId"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Timestamp   string  `json:"timestamp"`
	Description string  `json:"description"`
	DeviceID    string  `json:"deviceId"`
}

// Validate checks required user fields.
func (in NewUserInput) Validate() error {
	switch {
	case in.Name == "":
		return NewValidationError("name", ErrMissingField)
	case in.Email == "":
		return NewValidationError("email", ErrMissingField)
	case in.Phone == "":
		return NewValidationError("phone", ErrMissingField)
	}
	return nil
}

// Validate checks required transaction fields. Currency, description, and
// deviceId are optional; the boundary fills a default currency.
func (in NewTransactionInput) Validate() error {
	switch {
	case in.FromUserID == nil:
		return NewValidationError("fromUserId", ErrMissingField)
	case in.ToUserID == nil:
		return NewValidationError("toUserId", ErrMissingField)
	case in.Amount <= 0:
		return NewValidationError("amount", ErrInvalidAmount)
	case in.Timestamp == "":
		return NewValidationError("timestamp", ErrMissingField)
	}
	return nil
}
