package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/policycore/billing-engine/internal/domain"
	"github.com/policycore/billing-engine/internal/service"
	customError "github.com/policycore/billing-engine/pkg/errors"
	"github.com/policycore/billing-engine/pkg/response"
)

type BillingHandler struct {
	service   *service.BillingService
	validator *validator.Validate
}

func NewBillingHandler(service *service.BillingService) *BillingHandler {
	return &BillingHandler{
		service:   service,
		validator: validator.New(),
	}
}

func (h *BillingHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		response.BadRequest(w, "request validation failed", err)
		return false
	}
	return true
}

// writeError maps a business error onto an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	var businessErr *customError.BusinessError
	if !errors.As(err, &businessErr) {
		response.InternalServerError(w, "unexpected error", err)
		return
	}

	switch businessErr.Code {
	case customError.ErrCodePolicyNotFound,
		customError.ErrCodeInvoiceNotFound,
		customError.ErrCodePaymentNotFound:
		response.NotFound(w, businessErr.Message)
	case customError.ErrCodeBillingAlreadyExists,
		customError.ErrCodePaymentAlreadyReversed,
		customError.ErrCodePolicyCancelled,
		customError.ErrCodePolicyNotCancelled:
		response.Conflict(w, businessErr.Message, businessErr)
	case customError.ErrCodeInvalidAmount,
		customError.ErrCodeUnknownAccount:
		response.BadRequest(w, businessErr.Message, businessErr)
	case customError.ErrCodeUnsupportedPlanOperation:
		response.UnprocessableEntity(w, businessErr.Message, businessErr)
	default:
		response.InternalServerError(w, businessErr.Message, businessErr)
	}
}

func (h *BillingHandler) CreateBilling(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateBillingRequest
	if !h.decode(w, r, &request) {
		return
	}

	billing, err := h.service.CreateBilling(r.Context(), &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, billing)
}

func (h *BillingHandler) PostCharge(w http.ResponseWriter, r *http.Request) {
	policyID := mux.Vars(r)["policyId"]

	var request domain.PostChargeRequest
	if !h.decode(w, r, &request) {
		return
	}

	billing, err := h.service.PostBalanceDue(r.Context(), policyID, &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, billing)
}

func (h *BillingHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	policyID := mux.Vars(r)["policyId"]

	var request domain.PaymentRequest
	if !h.decode(w, r, &request) {
		return
	}

	payment, err := h.service.ProcessPayment(r.Context(), policyID, &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, payment)
}

func (h *BillingHandler) ReturnPayment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	policyID := vars["policyId"]

	paymentID, err := uuid.Parse(vars["paymentId"])
	if err != nil {
		response.BadRequest(w, "invalid payment id", err)
		return
	}

	billing, err := h.service.ReturnPayment(r.Context(), policyID, paymentID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, billing)
}

func (h *BillingHandler) CancelPolicy(w http.ResponseWriter, r *http.Request) {
	policyID := mux.Vars(r)["policyId"]

	var request domain.CancelRequest
	if !h.decode(w, r, &request) {
		return
	}

	billing, err := h.service.CancelPolicy(r.Context(), policyID, request.CancellationDate)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, billing)
}

func (h *BillingHandler) ReinstatePolicy(w http.ResponseWriter, r *http.Request) {
	policyID := mux.Vars(r)["policyId"]

	billing, err := h.service.ReinstatePolicy(r.Context(), policyID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, billing)
}

func (h *BillingHandler) Refund(w http.ResponseWriter, r *http.Request) {
	policyID := mux.Vars(r)["policyId"]

	var request domain.RefundRequest
	if !h.decode(w, r, &request) {
		return
	}

	refund, err := h.service.Refund(r.Context(), policyID, &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, refund)
}

func (h *BillingHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	policyID := mux.Vars(r)["policyId"]

	outstanding, err := h.service.GetOutstanding(r.Context(), policyID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, outstanding)
}

func (h *BillingHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	policyID := mux.Vars(r)["policyId"]

	schedule, err := h.service.GetSchedule(r.Context(), policyID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, schedule)
}

func (h *BillingHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	policyID := mux.Vars(r)["policyId"]

	invoices, err := h.service.ListInvoices(r.Context(), policyID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, invoices)
}
