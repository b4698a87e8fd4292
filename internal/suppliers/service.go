package suppliers

import (
	"context"
	"errors"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/money"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// PurchaseHistoryPort reports a supplier's purchase orders.
type PurchaseHistoryPort interface {
	PurchaseSummary(ctx context.Context, supplierID string) (PurchaseSummary, error)
}

type Service struct {
	repo    Repository
	history PurchaseHistoryPort
	now     func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetPurchaseHistory wires the purchase-order source used by GetSupplierStats.
func (s *Service) SetPurchaseHistory(history PurchaseHistoryPort) {
	s.history = history
}

func notFound(op, id string, err error) error {
	switch {
	case errors.Is(err, ErrSupplierNotFound):
		return shared.NotFound(op, err, "supplier %s not found", id)
	case errors.Is(err, ErrLinkNotFound):
		return shared.NotFound(op, err, "supplier link for %s not found", id)
	}
	return err
}

func (s *Service) CreateSupplier(ctx context.Context, in SupplierInput) (Supplier, error) {
	const op = "suppliers.CreateSupplier"
	if err := validateSupplier(op, in); err != nil {
		return Supplier{}, err
	}
	terms := in.PaymentTerms
	if terms == "" {
		terms = TermsCash
	}
	sup := Supplier{
		Record:       docstore.NewRecord(in.WorkspaceID, s.now()),
		Name:         in.Name,
		ContactName:  in.ContactName,
		Email:        in.Email,
		Phone:        in.Phone,
		Address:      in.Address,
		PaymentTerms: terms,
		LeadTimeDays: in.LeadTimeDays,
		IsActive:     true,
		Notes:        in.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, sup)
	})
	return sup, err
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, in SupplierInput) (Supplier, error) {
	const op = "suppliers.UpdateSupplier"
	if err := validateSupplier(op, in); err != nil {
		return Supplier{}, err
	}
	var out Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sup, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sup.Name = in.Name
		sup.ContactName = in.ContactName
		sup.Email = in.Email
		sup.Phone = in.Phone
		sup.Address = in.Address
		if in.PaymentTerms != "" {
			sup.PaymentTerms = in.PaymentTerms
		}
		sup.LeadTimeDays = in.LeadTimeDays
		sup.Notes = in.Notes
		sup.MarkDirty(s.now())
		out = sup
		return tx.Save(ctx, sup)
	})
	return out, notFound(op, id, err)
}

func (s *Service) DeactivateSupplier(ctx context.Context, id string) (Supplier, error) {
	return s.mutate(ctx, "suppliers.DeactivateSupplier", id, func(sup *Supplier, now time.Time) {
		sup.IsActive = false
		sup.MarkDirty(now)
	})
}

func (s *Service) ActivateSupplier(ctx context.Context, id string) (Supplier, error) {
	return s.mutate(ctx, "suppliers.ActivateSupplier", id, func(sup *Supplier, now time.Time) {
		sup.IsActive = true
		sup.MarkDirty(now)
	})
}

// DeleteSupplier soft-deletes the supplier. Its links stay for history.
func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, "suppliers.DeleteSupplier", id, func(sup *Supplier, now time.Time) {
		sup.IsActive = false
		sup.SoftDelete(now)
	})
	return err
}

func (s *Service) mutate(ctx context.Context, op, id string, fn func(*Supplier, time.Time)) (Supplier, error) {
	var out Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sup, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		fn(&sup, s.now())
		out = sup
		return tx.Save(ctx, sup)
	})
	return out, notFound(op, id, err)
}

func (s *Service) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	var out Supplier
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.Get(ctx, id)
		return err
	})
	return out, notFound("suppliers.GetSupplier", id, err)
}

func (s *Service) ListSuppliers(ctx context.Context, workspaceID string, activeOnly bool) ([]Supplier, error) {
	var out []Supplier
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.List(ctx, workspaceID, activeOnly)
		return err
	})
	return out, err
}

// LinkProduct creates or updates the link between a product and a supplier.
// Marking a link preferred clears the flag on the product's other links.
func (s *Service) LinkProduct(ctx context.Context, in LinkInput) (ProductSupplier, error) {
	const op = "suppliers.LinkProduct"
	if err := validateLink(op, in); err != nil {
		return ProductSupplier{}, err
	}
	now := s.now()
	var out ProductSupplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sup, err := tx.Get(ctx, in.SupplierID)
		if err != nil {
			return err
		}
		if _, err := tx.GetProduct(ctx, in.ProductID); err != nil {
			return err
		}
		links, err := tx.LinksByProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}
		var link *ProductSupplier
		for i := range links {
			if links[i].SupplierID == in.SupplierID {
				link = &links[i]
				continue
			}
			if in.IsPreferred && links[i].IsPreferred {
				links[i].IsPreferred = false
				links[i].MarkDirty(now)
				if err := tx.SaveLink(ctx, links[i]); err != nil {
					return err
				}
			}
		}
		if link == nil {
			fresh := ProductSupplier{
				Record:     docstore.NewRecord(sup.WorkspaceID, now),
				ProductID:  in.ProductID,
				SupplierID: in.SupplierID,
			}
			applyLink(&fresh, in)
			out = fresh
			return tx.InsertLink(ctx, fresh)
		}
		applyLink(link, in)
		link.MarkDirty(now)
		out = *link
		return tx.SaveLink(ctx, *link)
	})
	return out, notFound(op, in.SupplierID, err)
}

func applyLink(link *ProductSupplier, in LinkInput) {
	link.CostPrice = in.CostPrice
	link.IsPreferred = in.IsPreferred
	link.MinOrderQuantity = in.MinOrderQuantity
	link.SupplierSKU = in.SupplierSKU
}

func (s *Service) UnlinkProduct(ctx context.Context, productID, supplierID string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		links, err := tx.LinksByProduct(ctx, productID)
		if err != nil {
			return err
		}
		for _, link := range links {
			if link.SupplierID == supplierID {
				link.SoftDelete(s.now())
				return tx.SaveLink(ctx, link)
			}
		}
		return ErrLinkNotFound
	})
	return notFound("suppliers.UnlinkProduct", productID, err)
}

func (s *Service) GetProductSuppliers(ctx context.Context, productID string) ([]ProductSupplier, error) {
	var out []ProductSupplier
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.LinksByProduct(ctx, productID)
		return err
	})
	return out, err
}

func (s *Service) GetSupplierProducts(ctx context.Context, supplierID string) ([]ProductSupplier, error) {
	var out []ProductSupplier
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.Get(ctx, supplierID); err != nil {
			return err
		}
		var err error
		out, err = tx.LinksBySupplier(ctx, supplierID)
		return err
	})
	return out, notFound("suppliers.GetSupplierProducts", supplierID, err)
}

// GetPreferredSupplier picks the link flagged preferred, else the first link
// in insertion order. Links to inactive suppliers are skipped.
func (s *Service) GetPreferredSupplier(ctx context.Context, productID string) (ProductSupplier, Supplier, error) {
	var (
		link ProductSupplier
		sup  Supplier
	)
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		links, err := tx.LinksByProduct(ctx, productID)
		if err != nil {
			return err
		}
		found := false
		for _, l := range links {
			candidate, err := tx.Get(ctx, l.SupplierID)
			if errors.Is(err, ErrSupplierNotFound) || (err == nil && !candidate.IsActive) {
				continue
			}
			if err != nil {
				return err
			}
			if !found || l.IsPreferred {
				link, sup, found = l, candidate, true
			}
			if l.IsPreferred {
				break
			}
		}
		if !found {
			return ErrLinkNotFound
		}
		return nil
	})
	return link, sup, notFound("suppliers.GetPreferredSupplier", productID, err)
}

// GetSupplierStats recomputes the supplier's product count and purchase
// totals on every call.
func (s *Service) GetSupplierStats(ctx context.Context, supplierID string) (Stats, error) {
	products, err := s.GetSupplierProducts(ctx, supplierID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{SupplierID: supplierID, ProductCount: len(products), TotalSpend: money.Zero}
	if s.history == nil {
		return stats, nil
	}
	summary, err := s.history.PurchaseSummary(ctx, supplierID)
	if err != nil {
		return Stats{}, err
	}
	stats.PurchaseOrderCount = summary.OrderCount
	stats.TotalSpend = summary.TotalSpend
	return stats, nil
}
