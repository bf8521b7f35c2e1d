package generated

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Выполнить закодированную инструкцию программы
	// (POST /api/v1/instructions)
	SubmitInstruction(w http.ResponseWriter, r *http.Request)
	// Принять подтверждённое мостом сообщение
	// (POST /api/v1/messages)
	SubmitMessage(w http.ResponseWriter, r *http.Request)
	// Принять сырой буфер позиционным извлечением (отладка)
	// (POST /api/v1/payloads)
	SubmitPayload(w http.ResponseWriter, r *http.Request)
	// Текущая запись передачи получателя
	// (GET /api/v1/transfers/{recipient})
	GetTransfer(w http.ResponseWriter, r *http.Request, recipient Recipient)
	// Запись метаданных сообщения
	// (GET /api/v1/metadata/{message_id})
	GetMetadata(w http.ResponseWriter, r *http.Request, messageId MessageId)
	// Производный адрес записи (справочно)
	// (GET /api/v1/addresses/{namespace}/{key})
	DeriveAddress(w http.ResponseWriter, r *http.Request, namespace Namespace, key Key)
	// Состояние аккаунта
	// (GET /api/v1/accounts/{address})
	GetAccount(w http.ResponseWriter, r *http.Request, address Address)
	// Пополнить баланс аккаунта (dev faucet)
	// (POST /api/v1/accounts/{address}/airdrop)
	Airdrop(w http.ResponseWriter, r *http.Request, address Address)
	// Указатель на последнюю запись получателя
	// (GET /api/v1/recipients/{recipient}/latest)
	GetLatestForRecipient(w http.ResponseWriter, r *http.Request, recipient Recipient)
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

// MiddlewareFunc — middleware отдельного маршрута.
type MiddlewareFunc func(http.Handler) http.Handler

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// bindPath привязывает обязательный path-параметр в стиле simple.
func bindPath(r *http.Request, name string, dest any) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return nil
}

// SubmitInstruction operation middleware
func (siw *ServerInterfaceWrapper) SubmitInstruction(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.SubmitInstruction)
}

// SubmitMessage operation middleware
func (siw *ServerInterfaceWrapper) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.SubmitMessage)
}

// SubmitPayload operation middleware
func (siw *ServerInterfaceWrapper) SubmitPayload(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.SubmitPayload)
}

// GetTransfer operation middleware
func (siw *ServerInterfaceWrapper) GetTransfer(w http.ResponseWriter, r *http.Request) {
	var recipient Recipient
	if err := bindPath(r, "recipient", &recipient); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetTransfer(w, r, recipient)
	})
}

// GetMetadata operation middleware
func (siw *ServerInterfaceWrapper) GetMetadata(w http.ResponseWriter, r *http.Request) {
	var messageId MessageId
	if err := bindPath(r, "message_id", &messageId); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetMetadata(w, r, messageId)
	})
}

// DeriveAddress operation middleware
func (siw *ServerInterfaceWrapper) DeriveAddress(w http.ResponseWriter, r *http.Request) {
	var namespace Namespace
	if err := bindPath(r, "namespace", &namespace); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	var key Key
	if err := bindPath(r, "key", &key); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeriveAddress(w, r, namespace, key)
	})
}

// GetAccount operation middleware
func (siw *ServerInterfaceWrapper) GetAccount(w http.ResponseWriter, r *http.Request) {
	var address Address
	if err := bindPath(r, "address", &address); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetAccount(w, r, address)
	})
}

// Airdrop operation middleware
func (siw *ServerInterfaceWrapper) Airdrop(w http.ResponseWriter, r *http.Request) {
	var address Address
	if err := bindPath(r, "address", &address); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.Airdrop(w, r, address)
	})
}

// GetLatestForRecipient operation middleware
func (siw *ServerInterfaceWrapper) GetLatestForRecipient(w http.ResponseWriter, r *http.Request) {
	var recipient Recipient
	if err := bindPath(r, "recipient", &recipient); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetLatestForRecipient(w, r, recipient)
	})
}

// HealthLive operation middleware
func (siw *ServerInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthLive)
}

// HealthReady operation middleware
func (siw *ServerInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthReady)
}

// GetMetrics operation middleware
func (siw *ServerInterfaceWrapper) GetMetrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetMetrics)
}

// InvalidParamFormatError — path-параметр не привязан к типу.
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

// ChiServerOptions — параметры монтирования маршрутов.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching OpenAPI spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux creates http.Handler with routing matching OpenAPI spec based on the provided mux.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/v1/instructions", wrapper.SubmitInstruction)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/v1/messages", wrapper.SubmitMessage)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/v1/payloads", wrapper.SubmitPayload)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/v1/transfers/{recipient}", wrapper.GetTransfer)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/v1/metadata/{message_id}", wrapper.GetMetadata)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/v1/addresses/{namespace}/{key}", wrapper.DeriveAddress)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/v1/accounts/{address}", wrapper.GetAccount)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/v1/accounts/{address}/airdrop", wrapper.Airdrop)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/v1/recipients/{recipient}/latest", wrapper.GetLatestForRecipient)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/live", wrapper.HealthLive)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/ready", wrapper.HealthReady)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/metrics", wrapper.GetMetrics)
	})

	return r
}
