package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/pkg/logger"
	"github.com/staffma/staffma-backend/internal/pkg/validator"
)

// ========== SETTINGS ==========

func (s *PayrollServiceImpl) GetSettings(ctx context.Context) (payroll.PayrollSettingsResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	settings, found, err := s.loadSettings(ctx, sess.CompanyID)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	return mapToSettingsResponse(settings, found), nil
}

// UpdateSettings replaces the lists present in req. A list left out of the
// body (nil) keeps its current value; an empty list clears it.
func (s *PayrollServiceImpl) UpdateSettings(ctx context.Context, req payroll.UpdatePayrollSettingsRequest) (payroll.PayrollSettingsResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	var updated payroll.PayrollSettings
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.applySettings(ctx, req)
		return err
	})
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	return mapToSettingsResponse(updated, true), nil
}

// applySettings persists req on the caller's settings; ctx may carry a
// transaction.
func (s *PayrollServiceImpl) applySettings(ctx context.Context, req payroll.UpdatePayrollSettingsRequest) (payroll.PayrollSettings, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return payroll.PayrollSettings{}, err
	}

	current, _, err := s.loadSettings(ctx, sess.CompanyID)
	if err != nil {
		return payroll.PayrollSettings{}, err
	}

	if req.Allowances != nil {
		current.Allowances = s.buildItems(req.Allowances)
	}
	if req.Deductions != nil {
		current.Deductions = s.buildItems(req.Deductions)
	}
	if req.TaxTable != nil {
		current.TaxTable = payroll.TaxTable{
			Region:       req.TaxTable.Region,
			BusinessType: req.TaxTable.BusinessType,
			Source:       payroll.TaxSourceManual,
			Brackets:     s.buildBrackets(req.TaxTable.Brackets),
		}
	}

	updated, err := s.payrollRepo.UpsertSettings(ctx, current)
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to save payroll settings: %w", err)
	}

	logger.From(ctx).Info("payroll settings updated",
		"company_id", sess.CompanyID,
		"allowances", len(updated.Allowances),
		"deductions", len(updated.Deductions),
		"tax_brackets", len(updated.TaxTable.Brackets))

	return updated, nil
}

// ResetSettings discards the tenant's configuration. There is no history.
func (s *PayrollServiceImpl) ResetSettings(ctx context.Context) error {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return err
	}

	if err := s.payrollRepo.DeleteSettings(ctx, sess.CompanyID); err != nil && !errors.Is(err, payroll.ErrPayrollSettingsNotFound) {
		return err
	}

	logger.From(ctx).Info("payroll settings reset", "company_id", sess.CompanyID)
	return nil
}

// ========== ALLOWANCES & DEDUCTIONS ==========

type itemList int

const (
	allowanceList itemList = iota
	deductionList
)

func (l itemList) of(settings *payroll.PayrollSettings) *[]payroll.PayItem {
	if l == allowanceList {
		return &settings.Allowances
	}
	return &settings.Deductions
}

func (s *PayrollServiceImpl) AddAllowance(ctx context.Context, req payroll.PayItemRequest) (payroll.PayrollSettingsResponse, error) {
	return s.addItem(ctx, allowanceList, req)
}

func (s *PayrollServiceImpl) UpdateAllowance(ctx context.Context, itemID string, req payroll.PayItemRequest) (payroll.PayrollSettingsResponse, error) {
	return s.updateItem(ctx, allowanceList, itemID, req)
}

func (s *PayrollServiceImpl) DeleteAllowance(ctx context.Context, itemID string) (payroll.PayrollSettingsResponse, error) {
	return s.deleteItem(ctx, allowanceList, itemID)
}

func (s *PayrollServiceImpl) AddDeduction(ctx context.Context, req payroll.PayItemRequest) (payroll.PayrollSettingsResponse, error) {
	return s.addItem(ctx, deductionList, req)
}

func (s *PayrollServiceImpl) UpdateDeduction(ctx context.Context, itemID string, req payroll.PayItemRequest) (payroll.PayrollSettingsResponse, error) {
	return s.updateItem(ctx, deductionList, itemID, req)
}

func (s *PayrollServiceImpl) DeleteDeduction(ctx context.Context, itemID string) (payroll.PayrollSettingsResponse, error) {
	return s.deleteItem(ctx, deductionList, itemID)
}

func (s *PayrollServiceImpl) addItem(ctx context.Context, list itemList, req payroll.PayItemRequest) (payroll.PayrollSettingsResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	updated, err := s.mutateSettings(ctx, false, func(settings *payroll.PayrollSettings) error {
		items := list.of(settings)
		*items = append(*items, s.buildItem(req))
		return nil
	})
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}
	return mapToSettingsResponse(updated, true), nil
}

func (s *PayrollServiceImpl) updateItem(ctx context.Context, list itemList, itemID string, req payroll.PayItemRequest) (payroll.PayrollSettingsResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	updated, err := s.mutateSettings(ctx, true, func(settings *payroll.PayrollSettings) error {
		items := list.of(settings)
		for i := range *items {
			if (*items)[i].ID != itemID {
				continue
			}
			item := s.buildItem(req)
			item.ID = itemID
			if req.Enabled == nil {
				item.Enabled = (*items)[i].Enabled
			}
			(*items)[i] = item
			return nil
		}
		return payroll.ErrPayItemNotFound
	})
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}
	return mapToSettingsResponse(updated, true), nil
}

func (s *PayrollServiceImpl) deleteItem(ctx context.Context, list itemList, itemID string) (payroll.PayrollSettingsResponse, error) {
	updated, err := s.mutateSettings(ctx, true, func(settings *payroll.PayrollSettings) error {
		items := list.of(settings)
		for i := range *items {
			if (*items)[i].ID == itemID {
				*items = append((*items)[:i], (*items)[i+1:]...)
				return nil
			}
		}
		return payroll.ErrPayItemNotFound
	})
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}
	return mapToSettingsResponse(updated, true), nil
}

// ========== TAX BRACKETS ==========

func (s *PayrollServiceImpl) GetTaxTable(ctx context.Context) (payroll.TaxTableResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return payroll.TaxTableResponse{}, err
	}

	settings, _, err := s.loadSettings(ctx, sess.CompanyID)
	if err != nil {
		return payroll.TaxTableResponse{}, err
	}
	return mapToTaxTableResponse(settings.TaxTable), nil
}

func (s *PayrollServiceImpl) ReplaceTaxTable(ctx context.Context, req payroll.TaxTableRequest) (payroll.TaxTableResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.TaxTableResponse{}, err
	}

	return s.replaceTaxTable(ctx, payroll.TaxTable{
		Region:       req.Region,
		BusinessType: req.BusinessType,
		Source:       payroll.TaxSourceManual,
		Brackets:     s.buildBrackets(req.Brackets),
	})
}

func (s *PayrollServiceImpl) AddTaxBracket(ctx context.Context, req payroll.TaxBracketRequest) (payroll.TaxTableResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.TaxTableResponse{}, err
	}

	updated, err := s.mutateSettings(ctx, false, func(settings *payroll.PayrollSettings) error {
		settings.TaxTable.Brackets = append(settings.TaxTable.Brackets, s.buildBracket(req))
		settings.TaxTable.Source = payroll.TaxSourceManual
		return nil
	})
	if err != nil {
		return payroll.TaxTableResponse{}, err
	}
	return mapToTaxTableResponse(updated.TaxTable), nil
}

func (s *PayrollServiceImpl) UpdateTaxBracket(ctx context.Context, bracketID string, req payroll.TaxBracketRequest) (payroll.TaxTableResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.TaxTableResponse{}, err
	}

	updated, err := s.mutateSettings(ctx, true, func(settings *payroll.PayrollSettings) error {
		brackets := settings.TaxTable.Brackets
		for i := range brackets {
			if brackets[i].ID != bracketID {
				continue
			}
			b := s.buildBracket(req)
			b.ID = bracketID
			if req.Enabled == nil {
				b.Enabled = brackets[i].Enabled
			}
			brackets[i] = b
			settings.TaxTable.Source = payroll.TaxSourceManual
			return nil
		}
		return payroll.ErrTaxBracketNotFound
	})
	if err != nil {
		if errors.Is(err, payroll.ErrPayItemNotFound) {
			return payroll.TaxTableResponse{}, payroll.ErrTaxBracketNotFound
		}
		return payroll.TaxTableResponse{}, err
	}
	return mapToTaxTableResponse(updated.TaxTable), nil
}

func (s *PayrollServiceImpl) DeleteTaxBracket(ctx context.Context, bracketID string) (payroll.TaxTableResponse, error) {
	updated, err := s.mutateSettings(ctx, true, func(settings *payroll.PayrollSettings) error {
		brackets := settings.TaxTable.Brackets
		for i := range brackets {
			if brackets[i].ID == bracketID {
				settings.TaxTable.Brackets = append(brackets[:i], brackets[i+1:]...)
				settings.TaxTable.Source = payroll.TaxSourceManual
				return nil
			}
		}
		return payroll.ErrTaxBracketNotFound
	})
	if err != nil {
		if errors.Is(err, payroll.ErrPayItemNotFound) {
			return payroll.TaxTableResponse{}, payroll.ErrTaxBracketNotFound
		}
		return payroll.TaxTableResponse{}, err
	}
	return mapToTaxTableResponse(updated.TaxTable), nil
}

func (s *PayrollServiceImpl) ListTaxTemplates(ctx context.Context) ([]payroll.TaxTemplateResponse, error) {
	if _, err := sessionFromContext(ctx); err != nil {
		return nil, err
	}
	return listTaxTemplates(), nil
}

// LoadTaxTemplate replaces the bracket list with a built-in table.
func (s *PayrollServiceImpl) LoadTaxTemplate(ctx context.Context, req payroll.LoadTaxTemplateRequest) (payroll.TaxTableResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.TaxTableResponse{}, err
	}

	tmpl, ok := findTaxTemplate(req.Region, req.BusinessType)
	if !ok {
		return payroll.TaxTableResponse{}, payroll.ErrTaxTemplateNotFound
	}

	brackets := tmpl.brackets()
	for i := range brackets {
		brackets[i].ID = s.newID()
	}

	return s.replaceTaxTable(ctx, payroll.TaxTable{
		Region:       tmpl.Region,
		BusinessType: tmpl.BusinessType,
		Source:       payroll.TaxSourceTemplate,
		Brackets:     brackets,
	})
}

// UploadTaxBrackets parses a CSV or Excel sheet and replaces the bracket list
// wholesale. Region and business type default to the current table's.
func (s *PayrollServiceImpl) UploadTaxBrackets(ctx context.Context, req payroll.UploadTaxBracketsRequest) (payroll.TaxTableResponse, error) {
	if req.Content == nil || validator.IsEmpty(req.Filename) {
		return payroll.TaxTableResponse{}, validator.ValidationErrors{{Field: "file", Message: "is required"}}
	}

	brackets, err := s.sheetParser.Parse(req.Filename, req.Content)
	if err != nil {
		return payroll.TaxTableResponse{}, err
	}
	for i := range brackets {
		brackets[i].ID = s.newID()
	}

	updated, err := s.mutateSettings(ctx, false, func(settings *payroll.PayrollSettings) error {
		table := payroll.TaxTable{
			Region:       settings.TaxTable.Region,
			BusinessType: settings.TaxTable.BusinessType,
			Source:       payroll.TaxSourceUpload,
			Brackets:     brackets,
		}
		if !validator.IsEmpty(req.Region) {
			table.Region = req.Region
		}
		if !validator.IsEmpty(req.BusinessType) {
			table.BusinessType = req.BusinessType
		}
		settings.TaxTable = table
		return nil
	})
	if err != nil {
		return payroll.TaxTableResponse{}, err
	}

	logger.From(ctx).Info("tax brackets uploaded",
		"company_id", updated.CompanyID,
		"file", req.Filename,
		"brackets", len(brackets))

	return mapToTaxTableResponse(updated.TaxTable), nil
}

func (s *PayrollServiceImpl) replaceTaxTable(ctx context.Context, table payroll.TaxTable) (payroll.TaxTableResponse, error) {
	updated, err := s.mutateSettings(ctx, false, func(settings *payroll.PayrollSettings) error {
		settings.TaxTable = table
		return nil
	})
	if err != nil {
		return payroll.TaxTableResponse{}, err
	}
	return mapToTaxTableResponse(updated.TaxTable), nil
}

// ========== INTERNALS ==========

// loadSettings returns the stored settings, or an empty configuration for the
// company when none exist yet.
func (s *PayrollServiceImpl) loadSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, bool, error) {
	settings, err := s.payrollRepo.GetSettings(ctx, companyID)
	if err != nil {
		if errors.Is(err, payroll.ErrPayrollSettingsNotFound) {
			return payroll.PayrollSettings{CompanyID: companyID}, false, nil
		}
		return payroll.PayrollSettings{}, false, fmt.Errorf("failed to load payroll settings: %w", err)
	}
	return settings, true, nil
}

// mutateSettings runs a read-modify-write of the caller's settings in one
// transaction. With mustExist, missing settings fail with ErrPayItemNotFound
// since nothing can be edited yet.
func (s *PayrollServiceImpl) mutateSettings(ctx context.Context, mustExist bool, fn func(*payroll.PayrollSettings) error) (payroll.PayrollSettings, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return payroll.PayrollSettings{}, err
	}

	var updated payroll.PayrollSettings
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		settings, found, err := s.loadSettings(ctx, sess.CompanyID)
		if err != nil {
			return err
		}
		if mustExist && !found {
			return payroll.ErrPayItemNotFound
		}

		if err := fn(&settings); err != nil {
			return err
		}

		updated, err = s.payrollRepo.UpsertSettings(ctx, settings)
		if err != nil {
			return fmt.Errorf("failed to save payroll settings: %w", err)
		}
		return nil
	})
	return updated, err
}

func (s *PayrollServiceImpl) buildItem(req payroll.PayItemRequest) payroll.PayItem {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return payroll.PayItem{
		ID:      s.newID(),
		Name:    req.Name,
		Type:    payroll.ItemType(req.Type),
		Value:   req.Value,
		Enabled: enabled,
	}
}

func (s *PayrollServiceImpl) buildItems(reqs []payroll.PayItemRequest) []payroll.PayItem {
	items := make([]payroll.PayItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, s.buildItem(r))
	}
	return items
}

func (s *PayrollServiceImpl) buildBracket(req payroll.TaxBracketRequest) payroll.TaxBracket {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return payroll.TaxBracket{
		ID:         s.newID(),
		LowerBound: req.LowerBound,
		UpperBound: req.UpperBound,
		Rate:       req.Rate,
		Enabled:    enabled,
	}
}

func (s *PayrollServiceImpl) buildBrackets(reqs []payroll.TaxBracketRequest) []payroll.TaxBracket {
	brackets := make([]payroll.TaxBracket, 0, len(reqs))
	for _, r := range reqs {
		brackets = append(brackets, s.buildBracket(r))
	}
	return brackets
}
