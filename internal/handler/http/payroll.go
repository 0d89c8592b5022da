package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/handler/http/response"
)

// maxTaxSheetSize caps tax bracket uploads.
const maxTaxSheetSize = 5 << 20

type PayrollHandler interface {
	// Settings
	GetSettings(w http.ResponseWriter, r *http.Request)
	UpdateSettings(w http.ResponseWriter, r *http.Request)
	ResetSettings(w http.ResponseWriter, r *http.Request)

	// Allowances and deductions
	AddAllowance(w http.ResponseWriter, r *http.Request)
	UpdateAllowance(w http.ResponseWriter, r *http.Request)
	DeleteAllowance(w http.ResponseWriter, r *http.Request)
	AddDeduction(w http.ResponseWriter, r *http.Request)
	UpdateDeduction(w http.ResponseWriter, r *http.Request)
	DeleteDeduction(w http.ResponseWriter, r *http.Request)

	// Tax brackets
	GetTaxTable(w http.ResponseWriter, r *http.Request)
	ReplaceTaxTable(w http.ResponseWriter, r *http.Request)
	AddTaxBracket(w http.ResponseWriter, r *http.Request)
	UpdateTaxBracket(w http.ResponseWriter, r *http.Request)
	DeleteTaxBracket(w http.ResponseWriter, r *http.Request)
	ListTaxTemplates(w http.ResponseWriter, r *http.Request)
	LoadTaxTemplate(w http.ResponseWriter, r *http.Request)
	UploadTaxBrackets(w http.ResponseWriter, r *http.Request)

	// Workflow
	ProcessPayroll(w http.ResponseWriter, r *http.Request)
	ApprovePayroll(w http.ResponseWriter, r *http.Request)
	ProcessPayments(w http.ResponseWriter, r *http.Request)

	// Payroll Records
	GetPayrollRecord(w http.ResponseWriter, r *http.Request)
	ListPayrollRecords(w http.ResponseWriter, r *http.Request)

	// Summary
	GetPayrollSummary(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// ========== SETTINGS ==========

func (h *payrollHandlerImpl) GetSettings(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.GetSettings(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req payroll.UpdatePayrollSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.UpdateSettings(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll settings updated", result)
}

func (h *payrollHandlerImpl) ResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.payrollService.ResetSettings(r.Context()); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll settings reset", nil)
}

// ========== ALLOWANCES & DEDUCTIONS ==========

func (h *payrollHandlerImpl) AddAllowance(w http.ResponseWriter, r *http.Request) {
	h.addItem(w, r, h.payrollService.AddAllowance, "Allowance added")
}

func (h *payrollHandlerImpl) UpdateAllowance(w http.ResponseWriter, r *http.Request) {
	h.updateItem(w, r, h.payrollService.UpdateAllowance)
}

func (h *payrollHandlerImpl) DeleteAllowance(w http.ResponseWriter, r *http.Request) {
	h.deleteItem(w, r, h.payrollService.DeleteAllowance)
}

func (h *payrollHandlerImpl) AddDeduction(w http.ResponseWriter, r *http.Request) {
	h.addItem(w, r, h.payrollService.AddDeduction, "Deduction added")
}

func (h *payrollHandlerImpl) UpdateDeduction(w http.ResponseWriter, r *http.Request) {
	h.updateItem(w, r, h.payrollService.UpdateDeduction)
}

func (h *payrollHandlerImpl) DeleteDeduction(w http.ResponseWriter, r *http.Request) {
	h.deleteItem(w, r, h.payrollService.DeleteDeduction)
}

type (
	addItemFunc    func(ctx context.Context, req payroll.PayItemRequest) (payroll.PayrollSettingsResponse, error)
	updateItemFunc func(ctx context.Context, itemID string, req payroll.PayItemRequest) (payroll.PayrollSettingsResponse, error)
	deleteItemFunc func(ctx context.Context, itemID string) (payroll.PayrollSettingsResponse, error)
)

func (h *payrollHandlerImpl) addItem(w http.ResponseWriter, r *http.Request, add addItemFunc, message string) {
	var req payroll.PayItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := add(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, message, result)
}

func (h *payrollHandlerImpl) updateItem(w http.ResponseWriter, r *http.Request, update updateItemFunc) {
	itemID := chi.URLParam(r, "itemId")
	if itemID == "" {
		response.BadRequest(w, "Item ID is required", nil)
		return
	}

	var req payroll.PayItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := update(r.Context(), itemID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) deleteItem(w http.ResponseWriter, r *http.Request, remove deleteItemFunc) {
	itemID := chi.URLParam(r, "itemId")
	if itemID == "" {
		response.BadRequest(w, "Item ID is required", nil)
		return
	}

	result, err := remove(r.Context(), itemID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== TAX BRACKETS ==========

func (h *payrollHandlerImpl) GetTaxTable(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.GetTaxTable(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ReplaceTaxTable(w http.ResponseWriter, r *http.Request) {
	var req payroll.TaxTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.ReplaceTaxTable(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) AddTaxBracket(w http.ResponseWriter, r *http.Request) {
	var req payroll.TaxBracketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.AddTaxBracket(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Tax bracket added", result)
}

func (h *payrollHandlerImpl) UpdateTaxBracket(w http.ResponseWriter, r *http.Request) {
	bracketID := chi.URLParam(r, "bracketId")
	if bracketID == "" {
		response.BadRequest(w, "Bracket ID is required", nil)
		return
	}

	var req payroll.TaxBracketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.UpdateTaxBracket(r.Context(), bracketID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) DeleteTaxBracket(w http.ResponseWriter, r *http.Request) {
	bracketID := chi.URLParam(r, "bracketId")
	if bracketID == "" {
		response.BadRequest(w, "Bracket ID is required", nil)
		return
	}

	result, err := h.payrollService.DeleteTaxBracket(r.Context(), bracketID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListTaxTemplates(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.ListTaxTemplates(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) LoadTaxTemplate(w http.ResponseWriter, r *http.Request) {
	var req payroll.LoadTaxTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.LoadTaxTemplate(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Tax template loaded", result)
}

func (h *payrollHandlerImpl) UploadTaxBrackets(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTaxSheetSize)
	if err := r.ParseMultipartForm(maxTaxSheetSize); err != nil {
		response.BadRequest(w, "Invalid multipart form or file too large", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file is required", map[string]string{"file": "is required"})
		return
	}
	defer file.Close()

	result, err := h.payrollService.UploadTaxBrackets(r.Context(), payroll.UploadTaxBracketsRequest{
		Filename:     header.Filename,
		Content:      file,
		Region:       r.FormValue("region"),
		BusinessType: r.FormValue("business_type"),
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Tax brackets uploaded", result)
}

// ========== WORKFLOW ==========

func (h *payrollHandlerImpl) ProcessPayroll(w http.ResponseWriter, r *http.Request) {
	var req payroll.ProcessPayrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.ProcessPayroll(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll processed", result)
}

func (h *payrollHandlerImpl) ApprovePayroll(w http.ResponseWriter, r *http.Request) {
	var req payroll.ApprovePayrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.ApprovePayroll(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll approved", result)
}

func (h *payrollHandlerImpl) ProcessPayments(w http.ResponseWriter, r *http.Request) {
	var req payroll.ProcessPaymentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.ProcessPayments(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== PAYROLL RECORDS ==========

func (h *payrollHandlerImpl) GetPayrollRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Record ID is required", nil)
		return
	}

	result, err := h.payrollService.GetPayrollRecord(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListPayrollRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := payroll.PayrollFilter{
		Page:      1,
		Limit:     20,
		SortBy:    "created_at",
		SortOrder: "desc",
	}

	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	var details map[string]string
	if monthStr := firstParam(r, "month", "period_month"); monthStr != "" {
		if month, err := strconv.Atoi(monthStr); err == nil {
			filter.PeriodMonth = &month
		} else {
			details = map[string]string{"month": "must be a number"}
		}
	}
	if yearStr := firstParam(r, "year", "period_year"); yearStr != "" {
		if year, err := strconv.Atoi(yearStr); err == nil {
			filter.PeriodYear = &year
		} else {
			if details == nil {
				details = map[string]string{}
			}
			details["year"] = "must be a number"
		}
	}
	if details != nil {
		response.BadRequest(w, "Invalid query parameters", details)
		return
	}

	if status := query.Get("status"); status != "" {
		filter.Status = &status
	}
	if employeeID := query.Get("employee_id"); employeeID != "" {
		filter.EmployeeID = &employeeID
	}
	if sortBy := query.Get("sort_by"); sortBy != "" {
		filter.SortBy = sortBy
	}
	if sortOrder := query.Get("sort_order"); sortOrder != "" {
		filter.SortOrder = sortOrder
	}

	result, err := h.payrollService.ListPayrollRecords(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	totalPages := 0
	if result.Limit > 0 {
		totalPages = int((result.TotalCount + int64(result.Limit) - 1) / int64(result.Limit))
	}
	response.SuccessWithMeta(w, result.Data, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages,
	})
}

// ========== SUMMARY ==========

func (h *payrollHandlerImpl) GetPayrollSummary(w http.ResponseWriter, r *http.Request) {
	monthStr := firstParam(r, "month", "period_month")
	yearStr := firstParam(r, "year", "period_year")

	if monthStr == "" || yearStr == "" {
		response.BadRequest(w, "month and year are required", nil)
		return
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil {
		response.BadRequest(w, "Invalid month", nil)
		return
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		response.BadRequest(w, "Invalid year", nil)
		return
	}

	result, err := h.payrollService.GetPayrollSummary(r.Context(), month, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// firstParam returns the first non-empty query value among keys.
func firstParam(r *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := r.URL.Query().Get(k); v != "" {
			return v
		}
	}
	return ""
}
