package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
)

// Ledger is an in-memory host ledger holding purchase invoices and the
// settlements recorded against them.
type Ledger struct {
	mu sync.RWMutex

	invoices    map[string]ports.Invoice
	settlements map[string]ports.Settlement

	// SettlementErr, when set, is returned by CreateSettlement.
	SettlementErr error
}

func NewLedger() *Ledger {
	return &Ledger{
		invoices:    make(map[string]ports.Invoice),
		settlements: make(map[string]ports.Settlement),
	}
}

func (l *Ledger) PutInvoice(invoice ports.Invoice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invoices[strings.TrimSpace(invoice.InvoiceRef)] = invoice
}

func (l *Ledger) GetInvoice(_ context.Context, invoiceRef string) (ports.Invoice, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	invoice, ok := l.invoices[strings.TrimSpace(invoiceRef)]
	if !ok {
		return ports.Invoice{}, domainerrors.NotFound("get invoice", domainerrors.ErrInvoiceNotFound)
	}
	return invoice, nil
}

func (l *Ledger) CreateSettlement(_ context.Context, settlement ports.Settlement) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	const op = "create settlement"
	if l.SettlementErr != nil {
		return "", domainerrors.Ledger(op, l.SettlementErr)
	}
	invoice, ok := l.invoices[settlement.InvoiceRef]
	if !ok {
		return "", domainerrors.Ledger(op, domainerrors.ErrInvoiceNotFound)
	}
	if strings.TrimSpace(settlement.SettlementID) == "" {
		return "", domainerrors.Ledger(op, domainerrors.ErrInvalidInput)
	}
	for _, existing := range l.settlements {
		if existing.BankUniqueID == settlement.BankUniqueID {
			return "", domainerrors.Ledger(op, fmt.Errorf("settlement for %s already exists", settlement.BankUniqueID))
		}
	}

	invoice.OutstandingAmount = invoice.OutstandingAmount.Sub(settlement.Amount)
	l.invoices[settlement.InvoiceRef] = invoice
	l.settlements[settlement.SettlementID] = settlement
	return settlement.SettlementID, nil
}

func (l *Ledger) Settlements(invoiceRef string) []ports.Settlement {
	l.mu.RLock()
	defer l.mu.RUnlock()

	items := make([]ports.Settlement, 0)
	for _, settlement := range l.settlements {
		if settlement.InvoiceRef == invoiceRef {
			items = append(items, settlement)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}
