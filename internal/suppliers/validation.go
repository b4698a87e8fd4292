package suppliers

import (
	"strings"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

func validateSupplier(op string, in SupplierInput) error {
	if strings.TrimSpace(in.WorkspaceID) == "" {
		return shared.Validation(op, nil, "workspace is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return shared.Validation(op, nil, "supplier name is required")
	}
	switch in.PaymentTerms {
	case "", TermsCash, TermsNet15, TermsNet30, TermsNet60:
	default:
		return shared.Validation(op, ErrInvalidTerms, "unknown payment terms %q", in.PaymentTerms)
	}
	if in.LeadTimeDays < 0 {
		return shared.Validation(op, nil, "lead time must be >= 0")
	}
	return nil
}

func validateLink(op string, in LinkInput) error {
	if in.ProductID == "" || in.SupplierID == "" {
		return shared.Validation(op, nil, "product and supplier are required")
	}
	if in.CostPrice.IsNegative() {
		return shared.Validation(op, nil, "cost price must be >= 0")
	}
	if in.MinOrderQuantity < 0 {
		return shared.Validation(op, nil, "minimum order quantity must be >= 0")
	}
	return nil
}
