package lending

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"collateral-lending/internal/domain/event"
	"collateral-lending/internal/domain/loan"
	"collateral-lending/internal/domain/uow"
	"collateral-lending/internal/domain/vault"
	"collateral-lending/internal/infrastructure/metrics"
	"collateral-lending/pkg/units"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Engine owns the loan ledger. Every operation runs in one unit of work: flags that record
// the outcome are written before any value leaves escrow, and a failure anywhere rolls the
// whole call back, attached value included.
type Engine struct {
	uow     uow.UnitOfWork
	escrow  common.Address
	metrics *metrics.LendingMetrics
	tracer  trace.Tracer
	logger  *slog.Logger

	mu        sync.RWMutex
	receivers map[common.Address]Receiver
}

type Option func(*Engine)

func WithMetrics(m *metrics.LendingMetrics) Option { return func(e *Engine) { e.metrics = m } }

func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// NewEngine holds attached value at escrow until it is paid out.
func NewEngine(tx uow.UnitOfWork, escrow common.Address, opts ...Option) *Engine {
	e := &Engine{
		uow:       tx,
		escrow:    escrow,
		tracer:    otel.Tracer("collateral-lending/lending"),
		logger:    slog.Default(),
		receivers: make(map[common.Address]Receiver),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Escrow() common.Address { return e.escrow }

// RegisterReceiver installs code to run whenever value is sent to addr.
func (e *Engine) RegisterReceiver(addr common.Address, r Receiver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.receivers[addr] = r
}

func (e *Engine) UnregisterReceiver(addr common.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.receivers, addr)
}

func (e *Engine) receiver(addr common.Address) Receiver {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.receivers[addr]
}

// mutate runs fn as one value-moving operation.
func (e *Engine) mutate(ctx context.Context, op string, call Call, loanID *uint64, fn func(ctx context.Context, x *exec) error) error {
	attrs := []attribute.KeyValue{
		attribute.String("lending.sender", call.Sender.Hex()),
		attribute.String("lending.value_wei", call.value().Dec()),
	}
	if loanID != nil {
		attrs = append(attrs, attribute.Int64("lending.loan_id", int64(*loanID)))
	}
	ctx, span := e.tracer.Start(ctx, "lending."+op, trace.WithAttributes(attrs...))
	defer span.End()

	err := e.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		return fn(ctx, &exec{Engine: e, r: r, call: call})
	})

	kind := loan.Kind(err)
	e.metrics.ObserveOperation(op, kind)
	switch kind {
	case "":
		span.SetStatus(codes.Ok, "")
	case "internal":
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.ErrorContext(ctx, "lending operation failed", "operation", op, "sender", call.Sender.Hex(), "error", err)
	default:
		span.SetAttributes(attribute.String("lending.rejection", kind))
		span.SetStatus(codes.Error, kind)
		e.logger.InfoContext(ctx, "lending operation rejected", "operation", op, "sender", call.Sender.Hex(), "kind", kind, "reason", err.Error())
	}
	return err
}

// read runs fn against a consistent view of the ledger.
func (e *Engine) read(ctx context.Context, fn func(ctx context.Context, r uow.Repos) error) error {
	return e.uow.WithinTx(uow.ReadOnly(ctx), fn)
}

// Request opens a loan for the caller, locking the attached value as collateral.
func (e *Engine) Request(ctx context.Context, call Call, in RequestInput) (*LoanDTO, error) {
	var out *loan.Loan
	err := e.mutate(ctx, "request", call, nil, func(ctx context.Context, x *exec) error {
		collateral := call.value()
		if err := checkRequest(collateral, in); err != nil {
			return err
		}
		now := call.Now.UTC()
		l := &loan.Loan{
			Borrower:         call.Sender,
			CollateralAmount: *collateral,
			LoanAmount:       *loan.LoanAmountFor(collateral),
			InterestRate:     in.InterestRate,
			DueDate:          now.Add(in.Duration),
			CreatedAt:        now,
		}
		id, err := x.r.Loans.Create(ctx, l)
		if err != nil {
			return err
		}
		l.ID = id
		if err := x.deposit(ctx, id); err != nil {
			return err
		}
		out = l
		return x.emit(ctx, event.KindLoanRequested, id, map[string]string{
			"borrower":        l.Borrower.Hex(),
			"collateral_wei":  l.CollateralAmount.Dec(),
			"loan_amount_wei": l.LoanAmount.Dec(),
			"interest_rate":   strconv.FormatUint(l.InterestRate, 10),
			"due_date_unix":   strconv.FormatInt(l.DueDate.Unix(), 10),
		})
	})
	if err != nil {
		return nil, err
	}
	return toLoanDTO(out), nil
}

// Fund records the caller as lender and forwards the attached principal to the borrower.
func (e *Engine) Fund(ctx context.Context, call Call, loanID uint64) (*LoanDTO, error) {
	var out *loan.Loan
	err := e.mutate(ctx, "fund", call, &loanID, func(ctx context.Context, x *exec) error {
		value := call.value()
		l, err := x.r.Loans.Update(ctx, loanID, func(l *loan.Loan) error {
			if err := firstErr(
				func() error { return notFunded(l) },
				func() error { return exactValue(l, value) },
			); err != nil {
				return err
			}
			lender := call.Sender
			l.Lender = &lender
			l.IsFunded = true
			return nil
		})
		if err != nil {
			return err
		}
		if err := x.deposit(ctx, loanID); err != nil {
			return err
		}
		if err := x.send(ctx, loanID, vault.KindDisbursement, l.Borrower, &l.LoanAmount); err != nil {
			return err
		}
		out = l
		return x.emit(ctx, event.KindLoanFunded, loanID, map[string]string{
			"lender":          call.Sender.Hex(),
			"loan_amount_wei": l.LoanAmount.Dec(),
		})
	})
	if err != nil {
		return nil, err
	}
	return toLoanDTO(out), nil
}

// Repay settles the loan: total due to the lender, collateral and any overpayment back to the borrower.
func (e *Engine) Repay(ctx context.Context, call Call, loanID uint64) (*RepaymentDTO, error) {
	var (
		out    *loan.Loan
		quote  *loan.Quote
		excess = new(uint256.Int)
	)
	err := e.mutate(ctx, "repay", call, &loanID, func(ctx context.Context, x *exec) error {
		value := call.value()
		l, err := x.r.Loans.Update(ctx, loanID, func(l *loan.Loan) error {
			if err := firstErr(
				func() error { return onlyBorrower(l, call.Sender) },
				func() error { return outstanding(l) },
			); err != nil {
				return err
			}
			q, err := loan.QuoteFor(l, call.Now)
			if err != nil {
				return err
			}
			if err := coversTotal(q, value); err != nil {
				return err
			}
			l.IsRepaid = true
			l.RebateApplied = q.RebateApplied
			quote = q
			return nil
		})
		if err != nil {
			return err
		}
		if err := x.deposit(ctx, loanID); err != nil {
			return err
		}
		if err := x.send(ctx, loanID, vault.KindRepayment, *l.Lender, &quote.TotalDue); err != nil {
			return err
		}
		if err := x.send(ctx, loanID, vault.KindCollateral, l.Borrower, &l.CollateralAmount); err != nil {
			return err
		}
		excess.Sub(value, &quote.TotalDue)
		if !excess.IsZero() {
			if err := x.send(ctx, loanID, vault.KindRefund, l.Borrower, excess); err != nil {
				return err
			}
		}
		out = l
		return x.emit(ctx, event.KindLoanRepaid, loanID, map[string]string{
			"total_due_wei":  quote.TotalDue.Dec(),
			"rebate_applied": formatBool(quote.RebateApplied),
			"refunded_wei":   excess.Dec(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &RepaymentDTO{
		Loan:        *toLoanDTO(out),
		Quote:       toQuoteDTO(loanID, call.Now.UTC(), quote),
		RefundedWei: excess.Dec(),
	}, nil
}

// Claim forfeits the collateral of an overdue, unrepaid loan to its lender.
func (e *Engine) Claim(ctx context.Context, call Call, loanID uint64) (*LoanDTO, error) {
	var out *loan.Loan
	err := e.mutate(ctx, "claim", call, &loanID, func(ctx context.Context, x *exec) error {
		if err := noValue(call.value()); err != nil {
			return err
		}
		l, err := x.r.Loans.Update(ctx, loanID, func(l *loan.Loan) error {
			if err := firstErr(
				func() error { return onlyLender(l, call.Sender) },
				func() error { return outstanding(l) },
				func() error { return pastDue(l, call.Now) },
			); err != nil {
				return err
			}
			l.IsClaimed = true
			return nil
		})
		if err != nil {
			return err
		}
		if err := x.send(ctx, loanID, vault.KindForfeiture, *l.Lender, &l.CollateralAmount); err != nil {
			return err
		}
		out = l
		return x.emit(ctx, event.KindCollateralClaimed, loanID, map[string]string{
			"lender":         l.Lender.Hex(),
			"collateral_wei": l.CollateralAmount.Dec(),
		})
	})
	if err != nil {
		return nil, err
	}
	return toLoanDTO(out), nil
}

func (e *Engine) Get(ctx context.Context, loanID uint64) (*LoanDTO, error) {
	var out *LoanDTO
	err := e.read(ctx, func(ctx context.Context, r uow.Repos) error {
		l, err := r.Loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		out = toLoanDTO(l)
		return nil
	})
	return out, err
}

// List pages through the ledger in id order. A non-positive limit means the default page size.
func (e *Engine) List(ctx context.Context, offset, limit int) ([]LoanDTO, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	out := make([]LoanDTO, 0)
	err := e.read(ctx, func(ctx context.Context, r uow.Repos) error {
		loans, err := r.Loans.List(ctx, offset, limit)
		if err != nil {
			return err
		}
		for _, l := range loans {
			out = append(out, *toLoanDTO(l))
		}
		return nil
	})
	return out, err
}

// Quote prices repaying loanID at now without changing anything.
func (e *Engine) Quote(ctx context.Context, loanID uint64, now time.Time) (*QuoteDTO, error) {
	var out QuoteDTO
	err := e.read(ctx, func(ctx context.Context, r uow.Repos) error {
		l, err := r.Loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		q, err := loan.QuoteFor(l, now)
		if err != nil {
			return err
		}
		out = toQuoteDTO(loanID, now.UTC(), q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Transfers lists the value movements journaled for loanID.
func (e *Engine) Transfers(ctx context.Context, loanID uint64) ([]TransferDTO, error) {
	out := make([]TransferDTO, 0)
	err := e.read(ctx, func(ctx context.Context, r uow.Repos) error {
		if _, err := r.Loans.GetByID(ctx, loanID); err != nil {
			return err
		}
		ts, err := r.Vault.ListByLoan(ctx, loanID)
		if err != nil {
			return err
		}
		for _, t := range ts {
			out = append(out, toTransferDTO(t))
		}
		return nil
	})
	return out, err
}

// Events lists the notifications emitted for loanID.
func (e *Engine) Events(ctx context.Context, loanID uint64) ([]EventDTO, error) {
	out := make([]EventDTO, 0)
	err := e.read(ctx, func(ctx context.Context, r uow.Repos) error {
		if _, err := r.Loans.GetByID(ctx, loanID); err != nil {
			return err
		}
		evs, err := r.Events.ListByLoan(ctx, loanID)
		if err != nil {
			return err
		}
		for _, ev := range evs {
			out = append(out, toEventDTO(ev))
		}
		return nil
	})
	return out, err
}

func (e *Engine) BalanceOf(ctx context.Context, addr common.Address) (*BalanceDTO, error) {
	var out *BalanceDTO
	err := e.read(ctx, func(ctx context.Context, r uow.Repos) error {
		bal, err := r.Vault.BalanceOf(ctx, addr)
		if err != nil {
			return err
		}
		out = &BalanceDTO{Address: addr.Hex(), BalanceWei: bal.Dec(), Balance: units.FormatEther(bal)}
		return nil
	})
	return out, err
}
