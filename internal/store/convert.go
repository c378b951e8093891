package store

import (
	"vendor-service/internal/models"
	"vendor-service/internal/reliability"
)

func supplierRow(s *reliability.Supplier) models.Supplier {
	st := s.State()
	return models.Supplier{
		ID:             st.ID,
		Name:           st.Name,
		Contact:        st.Contact,
		Category:       st.Category,
		MainProduct:    st.MainProduct,
		DeliveryRating: st.DeliveryRating,
		DelayRate:      st.Reliability.DelayRate,
		RiskTier:       string(st.Reliability.RiskTier),
		Score:          st.Reliability.Score,
		CreatedAt:      st.CreatedAt,
	}
}

func orderRow(s *reliability.Supplier, position int, o reliability.PurchaseOrder) models.PurchaseOrder {
	return models.PurchaseOrder{
		ID:           o.ID,
		SupplierID:   s.ID,
		Position:     position,
		InvoiceNo:    o.InvoiceNo,
		ProductName:  o.Product,
		OrderDate:    o.OrderDate,
		ExpectedDate: o.ExpectedDate,
		ActualDate:   o.ActualDate,
		UnitPrice:    o.UnitPrice,
	}
}

// toSupplier rebuilds the aggregate. With no order rows the stored
// reliability is kept as is.
func toSupplier(row models.Supplier, rows []models.PurchaseOrder) (*reliability.Supplier, error) {
	orders := make([]reliability.PurchaseOrder, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, reliability.PurchaseOrder{
			ID:           r.ID,
			InvoiceNo:    r.InvoiceNo,
			Product:      r.ProductName,
			OrderDate:    r.OrderDate,
			ExpectedDate: r.ExpectedDate,
			ActualDate:   r.ActualDate,
			UnitPrice:    r.UnitPrice,
		})
	}

	return reliability.Restore(reliability.State{
		ID:             row.ID,
		Name:           row.Name,
		Contact:        row.Contact,
		Category:       row.Category,
		MainProduct:    row.MainProduct,
		DeliveryRating: row.DeliveryRating,
		CreatedAt:      row.CreatedAt,
		Reliability: reliability.Reliability{
			DelayRate: row.DelayRate,
			RiskTier:  reliability.RiskTier(row.RiskTier),
			Score:     row.Score,
		},
	}, orders)
}
