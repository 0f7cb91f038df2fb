// Package api holds the HTTP models of the purchase API and binds its routes to a chi router.
// The route table and parameter binding mirror api/openapi.yaml.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Defines values for TransactionStatus.
const (
	PENDING   TransactionStatus = "pending"
	COMPLETED TransactionStatus = "completed"
	FAILED    TransactionStatus = "failed"
)

// Defines values for ErrorCode.
const (
	ErrorCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrorCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrorCodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrorCodeSignatureInvalid   ErrorCode = "SIGNATURE_INVALID"
	ErrorCodeRetryable          ErrorCode = "RETRYABLE"
	ErrorCodeInternal           ErrorCode = "INTERNAL"
)

// TransactionStatus defines model for Transaction.Status.
type TransactionStatus string

// ErrorCode defines model for Error.Code.
type ErrorCode string

// Error defines model for Error.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// NewPurchase defines model for NewPurchase.
type NewPurchase struct {
	AmountMinorUnits int64  `json:"amountMinorUnits"`
	Currency         string `json:"currency"`
	PackageId        string `json:"packageId"`
	TokenCount       int64  `json:"tokenCount"`
	UserId           string `json:"userId"`
}

// PurchaseCreated defines model for PurchaseCreated.
type PurchaseCreated struct {
	ClientSecret  string             `json:"clientSecret"`
	TransactionId openapi_types.UUID `json:"transactionId"`
}

// Transaction defines model for Transaction.
type Transaction struct {
	AmountMinorUnits int64             `json:"amountMinorUnits"`
	ChargeIntentId   string            `json:"chargeIntentId"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	Currency         string            `json:"currency"`
	FailedAt         *time.Time        `json:"failedAt,omitempty"`
	FailureReason    *string           `json:"failureReason,omitempty"`
	Id               string            `json:"id"`
	PackageId        string            `json:"packageId"`
	Status           TransactionStatus `json:"status"`
	TokenCount       int64             `json:"tokenCount"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	UserId           string            `json:"userId"`
}

// Account defines model for Account.
type Account struct {
	CreatedAt            time.Time `json:"createdAt"`
	HasPaymentCustomer   bool      `json:"hasPaymentCustomer"`
	TokenBalance         int64     `json:"tokenBalance"`
	TotalTokensPurchased int64     `json:"totalTokensPurchased"`
	UpdatedAt            time.Time `json:"updatedAt"`
	UserId               string    `json:"userId"`
}

// PurchaseHistoryRecord defines model for PurchaseHistoryRecord.
type PurchaseHistoryRecord struct {
	AmountMinorUnits int64     `json:"amountMinorUnits"`
	Currency         string    `json:"currency"`
	PackageId        string    `json:"packageId"`
	PurchasedAt      time.Time `json:"purchasedAt"`
	RecordId         string    `json:"recordId"`
	TokenCount       int64     `json:"tokenCount"`
	TransactionId    string    `json:"transactionId"`
}

// WebhookAck defines model for WebhookAck.
type WebhookAck struct {
	Received bool `json:"received"`
}

// GetAccountHistoryParams defines parameters for GetAccountHistory.
type GetAccountHistoryParams struct {
	Limit *int32 `form:"limit,omitempty" json:"limit,omitempty"`
}

// CreatePurchaseJSONRequestBody defines body for CreatePurchase for application/json ContentType.
type CreatePurchaseJSONRequestBody = NewPurchase

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /accounts/{userId})
	GetAccountByUserId(w http.ResponseWriter, r *http.Request, userId string)
	// (GET /accounts/{userId}/history)
	GetAccountHistory(w http.ResponseWriter, r *http.Request, userId string, params GetAccountHistoryParams)
	// (GET /accounts/{userId}/transactions)
	ListTransactionsByUserId(w http.ResponseWriter, r *http.Request, userId string)
	// (POST /purchases)
	CreatePurchase(w http.ResponseWriter, r *http.Request)
	// (GET /transactions/{transactionId})
	GetTransactionById(w http.ResponseWriter, r *http.Request, transactionId openapi_types.UUID)
	// (POST /webhooks/payments)
	HandlePaymentWebhook(w http.ResponseWriter, r *http.Request)
}

// MiddlewareFunc wraps a single route handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper converts raw requests into ServerInterface calls.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError is reported when a path or query parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) bindPath(r *http.Request, name string, dest any) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return nil
}

// GetAccountByUserId operation middleware
func (siw *ServerInterfaceWrapper) GetAccountByUserId(w http.ResponseWriter, r *http.Request) {
	var userId string
	if err := siw.bindPath(r, "userId", &userId); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetAccountByUserId(w, r, userId)
	})
}

// GetAccountHistory operation middleware
func (siw *ServerInterfaceWrapper) GetAccountHistory(w http.ResponseWriter, r *http.Request) {
	var userId string
	if err := siw.bindPath(r, "userId", &userId); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	var params GetAccountHistoryParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetAccountHistory(w, r, userId, params)
	})
}

// ListTransactionsByUserId operation middleware
func (siw *ServerInterfaceWrapper) ListTransactionsByUserId(w http.ResponseWriter, r *http.Request) {
	var userId string
	if err := siw.bindPath(r, "userId", &userId); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListTransactionsByUserId(w, r, userId)
	})
}

// CreatePurchase operation middleware
func (siw *ServerInterfaceWrapper) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreatePurchase)
}

// GetTransactionById operation middleware
func (siw *ServerInterfaceWrapper) GetTransactionById(w http.ResponseWriter, r *http.Request) {
	var transactionId openapi_types.UUID
	if err := siw.bindPath(r, "transactionId", &transactionId); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetTransactionById(w, r, transactionId)
	})
}

// HandlePaymentWebhook operation middleware
func (siw *ServerInterfaceWrapper) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HandlePaymentWebhook)
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching the API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux creates http.Handler with routing matching the API, mounted on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			WriteError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/accounts/{userId}", wrapper.GetAccountByUserId)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/accounts/{userId}/history", wrapper.GetAccountHistory)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/accounts/{userId}/transactions", wrapper.ListTransactionsByUserId)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/purchases", wrapper.CreatePurchase)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/transactions/{transactionId}", wrapper.GetTransactionById)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/webhooks/payments", wrapper.HandlePaymentWebhook)
	})

	return r
}
