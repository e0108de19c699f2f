package bankpaymentservice

import (
	"io"
	"log/slog"

	httpadapter "bankpay/contexts/finance-core/bank-payment-service/adapters/http"
	"bankpay/contexts/finance-core/bank-payment-service/adapters/memory"
	"bankpay/contexts/finance-core/bank-payment-service/application/commands"
	"bankpay/contexts/finance-core/bank-payment-service/application/queries"
	"bankpay/contexts/finance-core/bank-payment-service/domain/services"
	"bankpay/contexts/finance-core/bank-payment-service/ports"

	"github.com/go-playground/validator/v10"
)

// Module is the composition surface for bank supplier payments.
// Runtime wiring should consume Handler; Store and Ledger are set only by
// NewInMemoryModule, for tests and local runs.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
	Ledger  *memory.Ledger
}

type Dependencies struct {
	Transactions ports.TransactionLog
	Ledger       ports.Ledger
	Gateway      ports.BankGateway
	Settings     ports.BankSettings
	Keys         services.Keyring
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	Random       io.Reader
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	requestOTP := commands.RequestOTPUseCase{
		Transactions: deps.Transactions,
		Gateway:      deps.Gateway,
		Settings:     deps.Settings,
		Keys:         deps.Keys,
		Clock:        deps.Clock,
		IDGenerator:  deps.IDGenerator,
		Random:       deps.Random,
		Logger:       deps.Logger,
	}
	makePayment := commands.MakePaymentUseCase{
		Transactions: deps.Transactions,
		Ledger:       deps.Ledger,
		Gateway:      deps.Gateway,
		Settings:     deps.Settings,
		Keys:         deps.Keys,
		Clock:        deps.Clock,
		IDGenerator:  deps.IDGenerator,
		Random:       deps.Random,
		Logger:       deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			RequestOTP:  requestOTP,
			MakePayment: makePayment,
			GetTransaction: queries.GetTransactionUseCase{
				Transactions: deps.Transactions,
				Logger:       deps.Logger,
			},
			ListTransactions: queries.ListTransactionsUseCase{
				Transactions: deps.Transactions,
				Logger:       deps.Logger,
			},
			Validate: validator.New(),
			Logger:   deps.Logger,
		},
	}
}

func NewInMemoryModule(
	settings ports.BankSettings,
	keys services.Keyring,
	gateway ports.BankGateway,
	logger *slog.Logger,
) Module {
	store := memory.NewStore()
	ledger := memory.NewLedger()
	module := NewModule(Dependencies{
		Transactions: store,
		Ledger:       ledger,
		Gateway:      gateway,
		Settings:     settings,
		Keys:         keys,
		Clock:        store,
		IDGenerator:  store,
		Logger:       logger,
	})
	module.Store = store
	module.Ledger = ledger
	return module
}
