package order

import "errors"

type AppErrorType string

const (
	ValidationAppError AppErrorType = "validation"
	NotFoundAppError   AppErrorType = "notfound"
	ConflictAppError   AppErrorType = "conflict"
	ForbiddenAppError  AppErrorType = "forbidden"
	ServerAppError     AppErrorType = "server"
	JsonAppError       AppErrorType = "json"
	HttpError          AppErrorType = "http"
)

type AppError struct {
	Type    AppErrorType
	Message string
	Code    int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewError(errType AppErrorType, message string, code int, err error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    code,
		Err:     err,
	}
}

var (
	errBasketNotFound                    = errors.New("basket not found")
	errOrderWithUserIdAndOrderIdNotFound = errors.New("order with userId and orderId not found")
	errProductInfoNotFound               = errors.New("product info not found")
	errDuplicateBasketItem               = errors.New("product already in basket")
	errContactNotFound                   = errors.New("contact with userId and contactId not found")
	errContactReferenced                 = errors.New("contact is referenced by a placed order")
	errShopNotFound                      = errors.New("shop with userId not found")
	errItemsString                       = errors.New("incorrect items string")
)
